package app

import "time"

// Operation is the CLI command an App was opened for. Mutating operations
// snapshot the database to the vault when the App closes.
type Operation struct {
	Name      string
	Mutating  bool
	StartedAt time.Time
	Status    string // "success" or "error"
}

// NewOperation creates an operation that has not failed yet.
func NewOperation(name string, mutating bool, startedAt time.Time) *Operation {
	return &Operation{
		Name:      name,
		Mutating:  mutating,
		StartedAt: startedAt.UTC(),
		Status:    "success",
	}
}

// ID identifies the operation in log lines: the command name and its start time.
func (op *Operation) ID() string {
	return op.Name + "-" + op.StartedAt.Format("20060102T150405Z")
}

// Fail marks the operation as failed. A failed operation still snapshots:
// whatever it committed before failing is durable.
func (op *Operation) Fail() {
	op.Status = "error"
}

// Failed reports whether Fail was called.
func (op *Operation) Failed() bool {
	return op.Status == "error"
}
