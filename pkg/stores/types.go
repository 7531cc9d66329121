package stores

import "time"

// RunStatus represents the status of a provisioning run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAborted   RunStatus = "aborted"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one provisioning session recorded in the journal.
type Run struct {
	ID          string     `json:"id"`
	Space       string     `json:"space"`
	Mode        string     `json:"mode"`
	Status      RunStatus  `json:"status"`
	Error       *string    `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Command is one dispatched shell command and its observed outcome.
type Command struct {
	ID         int64      `json:"id"`
	RunID      string     `json:"run_id"`
	Seq        int        `json:"seq"`
	Section    string     `json:"section"`
	Command    string     `json:"command"`
	ExitStatus *int       `json:"exit_status,omitempty"`
	Stdout     string     `json:"stdout"`
	Stderr     string     `json:"stderr"`
	IssuedAt   time.Time  `json:"issued_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
