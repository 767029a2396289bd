package models

import "time"

// SweepReport summarizes one retention sweep.
type SweepReport struct {
	Expired         int      `json:"expired"`
	MonitorsDeleted int      `json:"monitors_deleted"`
	ConfigsDeleted  int      `json:"configs_deleted"`
	Errors          []string `json:"errors,omitempty"`
}

// Removed reports whether the sweep expired or deleted anything.
func (r SweepReport) Removed() bool {
	return r.Expired+r.MonitorsDeleted+r.ConfigsDeleted > 0
}

// CycleReport summarizes one scheduler cycle.
type CycleReport struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Monitors   int            `json:"monitors"`
	Outcomes   map[string]int `json:"outcomes"`
	Failures   map[string]int `json:"failures"`
	Notified   int            `json:"notified"`
	NotifyErrs int            `json:"notify_errors"`
	Abandoned  int            `json:"abandoned"`
	Sweep      *SweepReport   `json:"sweep,omitempty"`
}

func (r CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
