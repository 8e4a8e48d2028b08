package qvcs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Action is what happened to a file in a watched directory.
type Action string

const (
	ActionAddFile Action = "AddFile"
	ActionRemove  Action = "Remove"
	ActionUpdate  Action = "Update"
)

// Notification is one change event pushed to observers of a directory.
type Notification struct {
	Coordinate    DirectoryCoordinate `json:"coordinate"`
	Info          *SkinnyLogfileInfo  `json:"info"`
	Action        Action              `json:"action"`
	OriginSession string              `json:"originSession"`
}

// Outbox holds the notifications a session's current request produced. The
// transport drains it only after that request's response has been written.
type Outbox struct {
	mu      sync.Mutex
	pending []Notification
}

// Queue appends n; notifications are delivered in the order queued.
func (o *Outbox) Queue(n Notification) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, n)
}

// Drain removes and returns every queued notification.
func (o *Outbox) Drain() []Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.pending
	o.pending = nil
	return out
}

// Len returns the number of queued notifications.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Observer is a connected session that can receive notifications.
type Observer interface {
	SessionID() string
	Deliver(ctx context.Context, n Notification) error
}

// registration is one watched directory. pattern is the cleaned appended path
// or a doublestar glob over appended paths.
type registration struct {
	project string
	branch  string
	pattern string
}

func newRegistration(coord DirectoryCoordinate) (registration, error) {
	pattern := CleanAppendedPath(coord.AppendedPath)
	if !doublestar.ValidatePattern(pattern) {
		return registration{}, invalidf("bad watch pattern %q", coord.AppendedPath)
	}
	return registration{
		project: coord.ProjectName,
		branch:  coord.branchOrTrunk(),
		pattern: pattern,
	}, nil
}

func (r registration) matches(coord DirectoryCoordinate) bool {
	if r.project != coord.ProjectName || r.branch != coord.branchOrTrunk() {
		return false
	}
	p := CleanAppendedPath(coord.AppendedPath)
	if r.pattern == p {
		return true
	}
	ok, err := doublestar.Match(r.pattern, p)
	return err == nil && ok
}

type observerEntry struct {
	observer      Observer
	registrations []registration
}

// DispatchRecorder receives delivery outcomes; the metrics package implements it.
type DispatchRecorder interface {
	NotificationDelivered(action Action)
	NotificationFailed(action Action)
}

type nopDispatchRecorder struct{}

func (nopDispatchRecorder) NotificationDelivered(Action) {}
func (nopDispatchRecorder) NotificationFailed(Action)    {}

// Dispatcher keeps the observer registry and fans queued notifications out
// to every session watching the affected directory.
type Dispatcher struct {
	mu        sync.RWMutex
	observers map[string]*observerEntry
	logger    Logger
	recorder  DispatchRecorder
}

// NewDispatcher creates an empty dispatcher. recorder may be nil.
func NewDispatcher(logger Logger, recorder DispatchRecorder) *Dispatcher {
	if recorder == nil {
		recorder = nopDispatchRecorder{}
	}
	return &Dispatcher{
		observers: make(map[string]*observerEntry),
		logger:    logger,
		recorder:  recorder,
	}
}

// Register adds a session. It receives nothing until it watches a directory.
func (d *Dispatcher) Register(obs Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.observers[obs.SessionID()]; ok {
		return
	}
	d.observers[obs.SessionID()] = &observerEntry{observer: obs}
}

// Unregister removes a session and all of its watches.
func (d *Dispatcher) Unregister(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.observers, sessionID)
}

// Watch registers sessionID as an observer of coord. The appended path may be
// a doublestar pattern such as "src/**".
func (d *Dispatcher) Watch(sessionID string, coord DirectoryCoordinate) error {
	reg, err := newRegistration(coord)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.observers[sessionID]
	if !ok {
		return notFoundf("session %s", sessionID)
	}
	for _, existing := range entry.registrations {
		if existing == reg {
			return nil
		}
	}
	entry.registrations = append(entry.registrations, reg)
	return nil
}

// Unwatch removes a registration added by Watch. Unknown registrations are ignored.
func (d *Dispatcher) Unwatch(sessionID string, coord DirectoryCoordinate) error {
	reg, err := newRegistration(coord)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.observers[sessionID]
	if !ok {
		return notFoundf("session %s", sessionID)
	}
	kept := entry.registrations[:0]
	for _, existing := range entry.registrations {
		if existing != reg {
			kept = append(kept, existing)
		}
	}
	entry.registrations = kept
	return nil
}

// QueueNotification appends an event to the originating session's outbox.
// Nothing is sent until Flush.
func (d *Dispatcher) QueueNotification(outbox *Outbox, originSession string, coord DirectoryCoordinate, info *SkinnyLogfileInfo, action Action) {
	coord.BranchName = coord.branchOrTrunk()
	coord.AppendedPath = CleanAppendedPath(coord.AppendedPath)
	outbox.Queue(Notification{
		Coordinate:    coord,
		Info:          info,
		Action:        action,
		OriginSession: originSession,
	})
}

// Recipients returns the observers currently watching coord, ordered by
// session id.
func (d *Dispatcher) Recipients(coord DirectoryCoordinate) []Observer {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Observer
	for _, entry := range d.observers {
		for _, reg := range entry.registrations {
			if reg.matches(coord) {
				out = append(out, entry.observer)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID() < out[j].SessionID() })
	return out
}

// Flush drains outbox and delivers each notification, in queue order, to
// every current recipient. Delivery is best effort: a failing recipient is
// logged and skipped. Returns the number of successful deliveries.
func (d *Dispatcher) Flush(ctx context.Context, outbox *Outbox) int {
	delivered := 0
	for _, n := range outbox.Drain() {
		for _, obs := range d.Recipients(n.Coordinate) {
			if err := obs.Deliver(ctx, n); err != nil {
				d.recorder.NotificationFailed(n.Action)
				d.logger.Warn("notification delivery failed",
					"recipient", obs.SessionID(),
					"action", string(n.Action),
					"coordinate", n.Coordinate.String(),
					"error", err)
				continue
			}
			d.recorder.NotificationDelivered(n.Action)
			delivered++
		}
	}
	return delivered
}

// String renders a notification for logs.
func (n Notification) String() string {
	name := ""
	if n.Info != nil {
		name = n.Info.ShortName
	}
	return fmt.Sprintf("%s %s/%s", n.Action, n.Coordinate, name)
}
