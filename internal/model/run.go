package model

import "time"

// RunState is the orchestrator state of a lead run.
type RunState string

const (
	RunStateInit     RunState = "init"
	RunStateRunning  RunState = "running"
	RunStateComplete RunState = "complete"
	RunStateFailed   RunState = "failed"
)

// Run is a ledger entry describing one lead run. The run target file, not
// this record, is the source of truth for which leads were persisted.
type Run struct {
	ID          string     `json:"id"`
	Preset      string     `json:"preset"`
	Keyword     string     `json:"keyword"`
	Location    string     `json:"location"`
	Target      string     `json:"target"`
	Limit       int        `json:"limit"`
	State       RunState   `json:"state"`
	Accepted    int        `json:"accepted"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RunStats summarizes the ledger.
type RunStats struct {
	Total    int `json:"total"`
	Complete int `json:"complete"`
	Failed   int `json:"failed"`
	Running  int `json:"running"`
	Leads    int `json:"leads"`
}
