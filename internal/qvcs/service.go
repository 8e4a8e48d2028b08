package qvcs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service is the request handling layer. It owns no per-request state: the
// session context and the request are passed explicitly to every call, so
// concurrent sessions share one Service safely.
type Service struct {
	db         Database
	content    ContentArchive
	dispatcher *Dispatcher
	authz      Authorizer
	logger     Logger
	clock      Clock
	recorder   Recorder

	handlers map[RequestKind]handlerFunc
}

// call is one request in flight.
type call struct {
	sess *SessionContext
	req  *Request
	resp *Response
	user string
}

type handlerFunc func(ctx context.Context, c *call) error

// NewService creates a new Service with the provided dependencies. authz and
// recorder may be nil.
func NewService(db Database, content ContentArchive, dispatcher *Dispatcher, authz Authorizer, logger Logger, clock Clock, recorder Recorder) *Service {
	if authz == nil {
		authz = AllowAll{}
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	s := &Service{
		db:         db,
		content:    content,
		dispatcher: dispatcher,
		authz:      authz,
		logger:     logger,
		clock:      clock,
		recorder:   recorder,
	}
	s.handlers = map[RequestKind]handlerFunc{
		KindPromoteSimple:          s.promote(PromoteSimple),
		KindPromoteRename:          s.promote(PromoteRename),
		KindPromoteMove:            s.promote(PromoteMove),
		KindPromoteMoveAndRename:   s.promote(PromoteMoveAndRename),
		KindApplyTag:               s.applyTag,
		KindGetTags:                s.getTags,
		KindGetTagsInfo:            s.getTagsInfo,
		KindGetBriefCommitInfoList: s.getBriefCommitInfoList,
		KindGetMostRecentActivity:  s.getMostRecentActivity,
		KindTransactionBegin:       s.transactionBegin,
		KindTransactionEnd:         s.transactionEnd,
		KindCheckIn:                s.checkIn,
		KindGetRevision:            s.getRevision,
		KindRegisterObserver:       s.registerObserver,
		KindUnregisterObserver:     s.unregisterObserver,
		KindGetInfoForMerge:        s.getInfoForMerge,
	}
	return s
}

// Dispatcher returns the dispatcher notifications are queued on.
func (s *Service) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Handle processes one request and always returns exactly one response.
// Notifications produced by the request are left in sess.Outbox; the caller
// flushes them after writing the response.
func (s *Service) Handle(ctx context.Context, sess *SessionContext, req *Request) *Response {
	start := time.Now()
	c := &call{
		sess: sess,
		req:  req,
		resp: &Response{Kind: req.Kind, SyncToken: req.SyncToken},
	}

	err := s.handle(ctx, c)
	if err != nil {
		c.resp = s.errorResponse(c, err)
	}
	c.resp.TransactionOpen = sess.InTransaction()

	status := "ok"
	if err != nil {
		status = string(c.resp.Error.Kind)
	}
	s.recorder.RequestHandled(req.Kind, status, time.Since(start))

	log := s.logger.With("session", sess.ID, "kind", string(req.Kind), "sync_token", req.SyncToken)
	switch {
	case err == nil:
		log.Debug("request handled", "duration", time.Since(start))
	case c.resp.Error.Kind == KindFatal:
		log.Error("request failed", "error_kind", string(c.resp.Error.Kind), "error", err)
	default:
		log.Warn("request failed", "error_kind", string(c.resp.Error.Kind), "error", err)
	}
	return c.resp
}

func (s *Service) handle(ctx context.Context, c *call) error {
	h, ok := s.handlers[c.req.Kind]
	if !ok {
		return invalidf("unknown request kind %q", c.req.Kind)
	}

	user, err := requestUser(c.sess, c.req)
	if err != nil {
		return err
	}
	c.user = user

	if err := s.authz.Authorize(ctx, user, c.req.Kind, c.req.ProjectName); err != nil {
		if !errors.Is(err, ErrUnauthorized) {
			err = fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return err
	}

	return h(ctx, c)
}

// requestUser returns the user a request acts as. An authenticated session
// may only act as itself.
func requestUser(sess *SessionContext, req *Request) (string, error) {
	if sess.UserName != "" {
		if req.UserName != "" && req.UserName != sess.UserName {
			return "", fmt.Errorf("session authenticated as %q cannot act as %q: %w", sess.UserName, req.UserName, ErrUnauthorized)
		}
		return sess.UserName, nil
	}
	if req.UserName == "" {
		return "", invalidf("user name is required")
	}
	return req.UserName, nil
}

// errorResponse replaces the success payload with an error payload. Storage
// failures and fatal errors inside a transaction bracket abort the bracket.
func (s *Service) errorResponse(c *call, err error) *Response {
	kind := Classify(err)
	if c.sess.InTransaction() && (kind == KindStorageFailure || kind == KindFatal) {
		if rbErr := c.sess.Close(); rbErr != nil {
			s.logger.Error("aborting transaction", "session", c.sess.ID, "error", rbErr)
		}
	}

	appendedPath := c.req.AppendedPath
	if appendedPath == "" && c.req.Promotion != nil {
		appendedPath = c.req.Promotion.FeatureAppendedPath
	}
	return &Response{
		Kind:      c.req.Kind,
		SyncToken: c.req.SyncToken,
		Error: &ErrorPayload{
			Kind:         kind,
			Message:      err.Error(),
			ProjectName:  c.req.ProjectName,
			BranchName:   c.req.BranchName,
			AppendedPath: appendedPath,
		},
	}
}

// reader returns the store reads should go through: the open transaction
// bracket if there is one, so the session sees its own uncommitted writes.
func (s *Service) reader(sess *SessionContext) Store {
	if sess.tx != nil {
		return sess.tx
	}
	return s.db
}

const requestSavepoint = "request"

// mutate runs fn inside the session's transaction bracket, or inside a
// transaction of its own that commits when fn succeeds. Notifications fn
// collects reach the outbox only once they are committed.
func (s *Service) mutate(ctx context.Context, sess *SessionContext, fn func(store Store, n *notifications) error) error {
	var n notifications

	if sess.tx != nil {
		// A failed request inside a bracket leaves no partial writes behind.
		if err := sess.tx.Savepoint(ctx, requestSavepoint); err != nil {
			return fmt.Errorf("opening savepoint: %w", err)
		}
		if err := fn(sess.tx, &n); err != nil {
			if rbErr := sess.tx.RollbackTo(ctx, requestSavepoint); rbErr != nil {
				s.logger.Warn("rollback to savepoint failed", "session", sess.ID, "error", rbErr)
			} else if relErr := sess.tx.ReleaseSavepoint(ctx, requestSavepoint); relErr != nil {
				s.logger.Warn("releasing savepoint failed", "session", sess.ID, "error", relErr)
			}
			return err
		}
		if err := sess.tx.ReleaseSavepoint(ctx, requestSavepoint); err != nil {
			return fmt.Errorf("releasing savepoint: %w", err)
		}
		sess.held = append(sess.held, n.pending...)
		return nil
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx, &n); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", "session", sess.ID, "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.release(sess, n.pending)
	return nil
}

// release hands committed notifications to the session outbox.
func (s *Service) release(sess *SessionContext, pending []pendingNotification) {
	for _, p := range pending {
		s.dispatcher.QueueNotification(sess.Outbox, sess.ID, p.coord, p.info, p.action)
	}
}

func userID(ctx context.Context, store Store, name string) (int64, error) {
	user, err := store.FindOrCreateUser(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("finding user %q: %w", name, err)
	}
	return user.ID, nil
}
