package types

import "time"

// RunReport summarizes one aggregation run
type RunReport struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Filters    map[string]string `json:"filters"`
	PageCap    int               `json:"page_cap"`
	Pages      int               `json:"pages"`
	Rows       int               `json:"rows"`
	PublicRows int               `json:"public_rows"`
	Sponsors   int               `json:"sponsors"`
	StopReason StopReason        `json:"stop_reason"`
	LastError  string            `json:"last_error,omitempty"`
	SinkErrors []string          `json:"sink_errors,omitempty"`
}

// Duration is the wall time of the run
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Partial reports whether pagination stopped on an error
func (r *RunReport) Partial() bool {
	switch r.StopReason {
	case StopExhausted, StopPageCap:
		return false
	default:
		return true
	}
}
