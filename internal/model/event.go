package model

import "encoding/json"

// EventType discriminates pipeline events.
type EventType string

const (
	EventLog      EventType = "log"
	EventProgress EventType = "progress"
	EventError    EventType = "error"
	EventDone     EventType = "done"
)

// Event is one item of a run's event stream. Which fields are meaningful
// depends on Type; MarshalJSON emits only those.
type Event struct {
	Type       EventType
	Message    string
	Count      int
	Total      int
	LatestLead string
	Filename   string
	Path       string
}

// LogEvent returns a log event.
func LogEvent(msg string) Event { return Event{Type: EventLog, Message: msg} }

// ErrorEvent returns an error event.
func ErrorEvent(msg string) Event { return Event{Type: EventError, Message: msg} }

// ProgressEvent returns a progress event.
func ProgressEvent(count, total int, latest string) Event {
	return Event{Type: EventProgress, Count: count, Total: total, LatestLead: latest}
}

// DoneEvent returns the terminal success event.
func DoneEvent(filename, path string, count int) Event {
	return Event{Type: EventDone, Filename: filename, Path: path, Count: count}
}

// Terminal reports whether the event ends a run.
func (e Event) Terminal() bool {
	return e.Type == EventError || e.Type == EventDone
}

type logWire struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
}

type progressWire struct {
	Type       EventType `json:"type"`
	Count      int       `json:"count"`
	Total      int       `json:"total"`
	LatestLead string    `json:"latest_lead"`
}

type doneWire struct {
	Type     EventType `json:"type"`
	Filename string    `json:"filename"`
	Path     string    `json:"path"`
	Count    int       `json:"count"`
}

// MarshalJSON encodes the event in its wire shape.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventProgress:
		return json.Marshal(progressWire{e.Type, e.Count, e.Total, e.LatestLead})
	case EventDone:
		return json.Marshal(doneWire{e.Type, e.Filename, e.Path, e.Count})
	default:
		return json.Marshal(logWire{e.Type, e.Message})
	}
}

// UnmarshalJSON decodes any of the wire shapes.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w struct {
		Type       EventType `json:"type"`
		Message    string    `json:"message"`
		Count      int       `json:"count"`
		Total      int       `json:"total"`
		LatestLead string    `json:"latest_lead"`
		Filename   string    `json:"filename"`
		Path       string    `json:"path"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Event(w)
	return nil
}
