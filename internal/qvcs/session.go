package qvcs

import (
	"context"
	"fmt"
	"time"
)

// SessionContext is the per-connection state threaded explicitly through
// every request. The transport owns it and processes one request at a time
// per session, so its fields need no locking beyond the Outbox.
type SessionContext struct {
	ID string
	// UserName is the authenticated user, empty when authentication is disabled.
	UserName string
	Outbox   *Outbox

	tx   Tx
	held []pendingNotification
}

// NewSessionContext creates the state for a newly connected session.
func NewSessionContext(id, userName string) *SessionContext {
	return &SessionContext{
		ID:       id,
		UserName: userName,
		Outbox:   &Outbox{},
	}
}

// InTransaction reports whether an explicit transaction bracket is open.
func (s *SessionContext) InTransaction() bool {
	return s.tx != nil
}

// Close rolls back an open transaction bracket and drops its notifications.
// The transport calls it when the connection goes away.
func (s *SessionContext) Close() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	s.held = nil
	if err != nil {
		return fmt.Errorf("rolling back open transaction: %w: %w", ErrStorageFailure, err)
	}
	return nil
}

// pendingNotification is a notification produced by a mutation that has not
// been committed yet.
type pendingNotification struct {
	coord  DirectoryCoordinate
	info   *SkinnyLogfileInfo
	action Action
}

// notifications collects what a mutation wants to announce once committed.
type notifications struct {
	pending []pendingNotification
}

func (n *notifications) add(coord DirectoryCoordinate, info *SkinnyLogfileInfo, action Action) {
	n.pending = append(n.pending, pendingNotification{coord: coord, info: info, action: action})
}

// Authorizer checks whether a user may issue a request kind against a project.
// Denials wrap ErrUnauthorized.
type Authorizer interface {
	Authorize(ctx context.Context, userName string, kind RequestKind, projectName string) error
}

// AllowAll authorizes everything.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, string, RequestKind, string) error { return nil }

// Recorder receives request, promotion and delivery outcomes; the metrics
// package implements it.
type Recorder interface {
	DispatchRecorder
	RequestHandled(kind RequestKind, status string, d time.Duration)
	PromotionCompleted(variant PromotionVariant)
}

// NopRecorder discards everything.
type NopRecorder struct{ nopDispatchRecorder }

func (NopRecorder) RequestHandled(RequestKind, string, time.Duration) {}
func (NopRecorder) PromotionCompleted(PromotionVariant)               {}
