package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

// handleGenerate runs one request and streams its events. A client that
// disconnects cancels the run.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := pipeline.Request{
		Keyword:        strings.TrimSpace(q.Get("keyword")),
		Location:       strings.TrimSpace(q.Get("location")),
		Limit:          parseLimit(q.Get("limit")),
		RequireEmail:   parseBool(q.Get("require_email")),
		RequireWebsite: parseBool(q.Get("require_website")),
	}

	preset := strings.TrimSpace(q.Get("preset"))
	if preset == "" {
		preset = s.cfg.DefaultPreset
	}
	p, err := pipeline.LookupPreset(preset)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if p.Adapter == pipeline.AdapterFile {
		src, ok := s.confine(q.Get("source"))
		if !ok {
			writeError(w, http.StatusBadRequest, "A source file from the output directory is required")
			return
		}
		req.Source = src
		req.Limit = 0
	} else if req.Keyword == "" || req.Location == "" {
		writeError(w, http.StatusBadRequest, "Keyword and location are required")
		return
	}

	o, err := s.cfg.Builder.Build(r.Context(), p.Name, pipeline.Overrides{SerpAPIKey: q.Get("api_key")})
	if err != nil {
		var ce *config.ConfigError
		if errors.As(err, &ce) {
			writeError(w, http.StatusBadRequest, ce.Error())
			return
		}
		zap.L().Error("server: build pipeline", zap.String("preset", p.Name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	target := o.TargetFor(req)
	if !s.acquire(target) {
		writeError(w, http.StatusConflict, "A run for this target is already in progress")
		return
	}
	defer s.release(target)
	req.Target = target

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	for e := range o.Run(r.Context(), req) {
		if err := writeEvent(w, e); err != nil {
			zap.L().Info("server: client went away", zap.String("target", target), zap.Error(err))
			return
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return
		}
	}
}

// writeEvent frames one event as "data: {json}\n\n".
func writeEvent(w http.ResponseWriter, e model.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func parseLimit(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return pipeline.DefaultLimit
	}
	return n
}

func parseBool(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}
