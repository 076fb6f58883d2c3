package model

import "time"

// RunRecord is one verification run as kept in the local history file.
type RunRecord struct {
	StartedAt time.Time      `json:"started_at"`
	DocID     string         `json:"doc_id"`
	Expect    string         `json:"expect"`
	Targets   []TargetRecord `json:"targets"`
}

// TargetRecord is the outcome for a single device or browser target.
type TargetRecord struct {
	Name      string        `json:"name"`
	Passed    bool          `json:"passed"`
	Attempts  int           `json:"attempts"`
	Elapsed   time.Duration `json:"elapsed"`
	Error     string        `json:"error,omitempty"`
	Artifacts []string      `json:"artifacts,omitempty"`
}

// Passed reports whether every target passed. An empty run never passes.
func (r RunRecord) Passed() bool {
	if len(r.Targets) == 0 {
		return false
	}
	for _, t := range r.Targets {
		if !t.Passed {
			return false
		}
	}
	return true
}
