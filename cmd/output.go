package main

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// drain prints every event and returns the final done event. A stream
// that ends without one returns the last error message.
func drain(w io.Writer, events iter.Seq[model.Event], asJSON bool) (*model.Event, error) {
	var (
		done    *model.Event
		lastErr string
	)
	enc := json.NewEncoder(w)

	for e := range events {
		if asJSON {
			if err := enc.Encode(e); err != nil {
				return nil, eris.Wrap(err, "write event")
			}
		} else {
			_, _ = fmt.Fprintln(w, formatEvent(e))
		}

		switch e.Type {
		case model.EventDone:
			d := e
			done = &d
		case model.EventError:
			lastErr = e.Message
		}
	}

	if done == nil {
		if lastErr == "" {
			lastErr = "run ended without a result"
		}
		return nil, eris.New(lastErr)
	}
	return done, nil
}

func formatEvent(e model.Event) string {
	switch e.Type {
	case model.EventProgress:
		if e.Total > 0 {
			return fmt.Sprintf("[%d/%d] %s", e.Count, e.Total, e.LatestLead)
		}
		return fmt.Sprintf("[%d] %s", e.Count, e.LatestLead)
	case model.EventError:
		return "ERROR: " + e.Message
	case model.EventDone:
		return fmt.Sprintf("Done: %d leads in %s", e.Count, e.Path)
	default:
		return e.Message
	}
}
