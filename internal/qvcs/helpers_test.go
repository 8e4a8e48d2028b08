package qvcs_test

import (
	"context"
	"testing"
	"time"

	"qvcs-go/internal/database"
	"qvcs-go/internal/qvcs"
	"qvcs-go/internal/testutil"
)

// harness is a Service over a real SQLite database seeded with project P,
// its trunk and branch Feat.
type harness struct {
	db    *database.SQLiteDatabase
	fx    *testutil.Fixture
	svc   *qvcs.Service
	clock *testutil.StubClock
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	archive qvcs.ContentArchive
	authz   qvcs.Authorizer
	wrapDB  func(qvcs.Database) qvcs.Database
}

func withArchive(a qvcs.ContentArchive) harnessOption {
	return func(c *harnessConfig) { c.archive = a }
}

func withAuthorizer(a qvcs.Authorizer) harnessOption {
	return func(c *harnessConfig) { c.authz = a }
}

// withDatabase lets wrap stand between the service and the database.
func withDatabase(wrap func(qvcs.Database) qvcs.Database) harnessOption {
	return func(c *harnessConfig) { c.wrapDB = wrap }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	cfg := harnessConfig{archive: testutil.NewTestArchive(t)}
	for _, opt := range opts {
		opt(&cfg)
	}

	db := testutil.NewTestDatabase(t)
	fx := testutil.NewFixture(t, db)
	clock := testutil.FixedClock()
	logger := qvcs.NewNopLogger()
	dispatcher := qvcs.NewDispatcher(logger, nil)
	var svcDB qvcs.Database = db
	if cfg.wrapDB != nil {
		svcDB = cfg.wrapDB(db)
	}
	svc := qvcs.NewService(svcDB, cfg.archive, dispatcher, cfg.authz, logger, clock, nil)
	return &harness{db: db, fx: fx, svc: svc, clock: clock}
}

// session opens a session whose observer is registered with the dispatcher.
func (h *harness) session(id string) (*qvcs.SessionContext, *testutil.RecordingObserver) {
	sess := qvcs.NewSessionContext(id, "")
	obs := testutil.NewRecordingObserver(id)
	h.svc.Dispatcher().Register(obs)
	return sess, obs
}

func (h *harness) do(sess *qvcs.SessionContext, req *qvcs.Request) *qvcs.Response {
	if req.UserName == "" && sess.UserName == "" {
		req.UserName = "alice"
	}
	if req.ProjectName == "" {
		req.ProjectName = "P"
	}
	return h.svc.Handle(context.Background(), sess, req)
}

// mustDo fails the test on an error response.
func (h *harness) mustDo(t *testing.T, sess *qvcs.SessionContext, req *qvcs.Request) *qvcs.Response {
	t.Helper()
	resp := h.do(sess, req)
	if !resp.OK() {
		t.Fatalf("Handle(%s) error = %s: %s", req.Kind, resp.Error.Kind, resp.Error.Message)
	}
	return resp
}

// flush delivers everything in the session outbox.
func (h *harness) flush(sess *qvcs.SessionContext) int {
	return h.svc.Dispatcher().Flush(context.Background(), sess.Outbox)
}

// checkIn stores content as a new revision and discards the notifications it
// produced. fileID 0 creates a new file.
func (h *harness) checkIn(t *testing.T, sess *qvcs.SessionContext, branch, appendedPath, shortName string, fileID int64, content string) *qvcs.SkinnyLogfileInfo {
	t.Helper()
	h.clock.Advance(time.Minute)
	resp := h.mustDo(t, sess, &qvcs.Request{
		Kind:         qvcs.KindCheckIn,
		BranchName:   branch,
		AppendedPath: appendedPath,
		ShortName:    shortName,
		FileID:       fileID,
		Content:      []byte(content),
	})
	sess.Outbox.Drain()
	return resp.Info
}

func (h *harness) watch(t *testing.T, sess *qvcs.SessionContext, branch, appendedPath string) {
	t.Helper()
	h.mustDo(t, sess, &qvcs.Request{
		Kind:         qvcs.KindRegisterObserver,
		BranchName:   branch,
		AppendedPath: appendedPath,
	})
}

func errorKind(resp *qvcs.Response) qvcs.ErrorKind {
	if resp.Error == nil {
		return ""
	}
	return resp.Error.Kind
}

func (h *harness) maxCommitID(t *testing.T) int64 {
	t.Helper()
	id, err := h.db.MaxCommitID(context.Background())
	if err != nil {
		t.Fatalf("MaxCommitID() error = %v", err)
	}
	return id
}
