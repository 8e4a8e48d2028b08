package testutil

import (
	"context"
	"errors"
	"sync"

	"qvcs-go/internal/qvcs"
)

// RecordingObserver collects delivered notifications in arrival order.
type RecordingObserver struct {
	ID string
	// Fail makes every delivery return an error.
	Fail bool

	mu       sync.Mutex
	received []qvcs.Notification
}

func NewRecordingObserver(id string) *RecordingObserver {
	return &RecordingObserver{ID: id}
}

func (o *RecordingObserver) SessionID() string { return o.ID }

func (o *RecordingObserver) Deliver(_ context.Context, n qvcs.Notification) error {
	if o.Fail {
		return errors.New("observer gone")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.received = append(o.received, n)
	return nil
}

// Received returns a copy of everything delivered so far.
func (o *RecordingObserver) Received() []qvcs.Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]qvcs.Notification(nil), o.received...)
}

// Actions returns the actions delivered so far, in order.
func (o *RecordingObserver) Actions() []qvcs.Action {
	var out []qvcs.Action
	for _, n := range o.Received() {
		out = append(out, n.Action)
	}
	return out
}

var _ qvcs.Observer = (*RecordingObserver)(nil)
