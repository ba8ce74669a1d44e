package jobs

import "time"

// Status is the lifecycle state of a validation run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Statuses lists every status in display order.
func Statuses() []Status {
	return []Status{StatusRunning, StatusSucceeded, StatusFailed}
}

// IsTerminal reports whether no further updates are expected.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Job is one recorded validation run.
type Job struct {
	ID           int64
	RequestID    string
	QiitaJobID   string
	PrepID       string
	ArtifactType string
	Status       Status
	Step         string
	Verdict      string
	ErrorKind    string
	ErrorMessage string
	TablePath    string
	ArchiveKey   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	FinishedAt   *time.Time
}

// StartParams identifies a new run.
type StartParams struct {
	RequestID    string
	QiitaJobID   string
	PrepID       string
	ArtifactType string
}

// Result is the terminal state recorded by Finish.
type Result struct {
	Success      bool
	Verdict      string
	ErrorKind    string
	ErrorMessage string
	TablePath    string
	ArchiveKey   string
}
