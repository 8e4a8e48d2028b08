package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/go-cmp/cmp"

	"qvcs-go/internal/auth"
	"qvcs-go/internal/metrics"
	"qvcs-go/internal/qvcs"
	"qvcs-go/internal/testutil"
)

type testServer struct {
	*httptest.Server
	tokens *auth.TokenService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.NewTestDatabase(t)
	testutil.NewFixture(t, db)
	logger := qvcs.NewNopLogger()
	m := metrics.New()
	dispatcher := qvcs.NewDispatcher(logger, m)
	service := qvcs.NewService(db, testutil.NewTestArchive(t), dispatcher, nil, logger, testutil.FixedClock(), m)

	tokens, err := auth.NewTokenService([]byte("test-secret"), "qvcsd", time.Hour, nil)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	srv := New(service, tokens, testutil.NewStubIDGenerator(), logger, Options{
		WriteTimeout: 5 * time.Second,
		Metrics:      m.Handler(),
		Sessions:     m,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, tokens: tokens}
}

func (ts *testServer) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()

	token, err := ts.tokens.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, ts.URL+"/ws", &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func send(t *testing.T, c *websocket.Conn, req qvcs.Request) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, c, req); err != nil {
		t.Fatalf("write request: %v", err)
	}
}

func readFrame(t *testing.T, c *websocket.Conn) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var f Frame
	if err := wsjson.Read(ctx, c, &f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

// roundTrip sends req and returns the response frame that answers it.
func roundTrip(t *testing.T, c *websocket.Conn, req qvcs.Request) *qvcs.Response {
	t.Helper()
	send(t, c, req)
	f := readFrame(t, c)
	if f.Type != FrameResponse || f.Response == nil {
		t.Fatalf("first frame after %s = %+v, want a response", req.Kind, f)
	}
	return f.Response
}

func mustRoundTrip(t *testing.T, c *websocket.Conn, req qvcs.Request) *qvcs.Response {
	t.Helper()
	resp := roundTrip(t, c, req)
	if !resp.OK() {
		t.Fatalf("%s error = %+v", req.Kind, resp.Error)
	}
	return resp
}

func TestServer_PromotionNotifiesAfterResponse(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t, "alice")
	bob := ts.dial(t, "bob")

	created := mustRoundTrip(t, alice, qvcs.Request{Kind: qvcs.KindCheckIn, ProjectName: "P", ShortName: "f.txt", Content: []byte("v1")})
	fileID := created.Info.FileID
	feature := mustRoundTrip(t, alice, qvcs.Request{Kind: qvcs.KindCheckIn, ProjectName: "P", BranchName: "Feat", ShortName: "f.txt", FileID: fileID, Content: []byte("v2")})

	for _, c := range []*websocket.Conn{alice, bob} {
		for _, branch := range []string{"Trunk", "Feat"} {
			mustRoundTrip(t, c, qvcs.Request{Kind: qvcs.KindRegisterObserver, ProjectName: "P", BranchName: branch})
		}
	}

	send(t, alice, qvcs.Request{
		Kind:        qvcs.KindPromoteSimple,
		SyncToken:   "sync-42",
		ProjectName: "P",
		BranchName:  "Feat",
		Promotion: &qvcs.FilePromotionInfo{
			FileID:                  fileID,
			FeatureBranchRevisionID: feature.Info.RevisionID,
			FeatureShortName:        "f.txt",
			ParentShortName:         "f.txt",
		},
	})

	first := readFrame(t, alice)
	if first.Type != FrameResponse || first.Response.SyncToken != "sync-42" {
		t.Fatalf("first frame = %+v, want the promotion response", first)
	}
	if !first.Response.OK() {
		t.Fatalf("promotion error = %+v", first.Response.Error)
	}

	wantActions := []qvcs.Action{qvcs.ActionRemove, qvcs.ActionAddFile}
	wantBranches := []string{"Feat", "Trunk"}
	for name, c := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		var actions []qvcs.Action
		var branches []string
		for range wantActions {
			f := readFrame(t, c)
			if f.Type != FrameNotification || f.Notification == nil {
				t.Fatalf("%s: frame = %+v, want a notification", name, f)
			}
			actions = append(actions, f.Notification.Action)
			branches = append(branches, f.Notification.Coordinate.BranchName)
		}
		if diff := cmp.Diff(wantActions, actions); diff != "" {
			t.Errorf("%s: actions mismatch (-want +got):\n%s", name, diff)
		}
		if diff := cmp.Diff(wantBranches, branches); diff != "" {
			t.Errorf("%s: branches mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestServer_MalformedRequestKeepsSession(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	f := readFrame(t, c)
	if f.Response == nil || f.Response.Error == nil || f.Response.Error.Kind != qvcs.KindInvalidRequest {
		t.Fatalf("frame = %+v, want InvalidRequest response", f)
	}

	if err := c.Write(ctx, websocket.MessageBinary, []byte{0x01}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	f = readFrame(t, c)
	if f.Response == nil || f.Response.Error == nil || f.Response.Error.Kind != qvcs.KindInvalidRequest {
		t.Fatalf("frame = %+v, want InvalidRequest response", f)
	}

	mustRoundTrip(t, c, qvcs.Request{Kind: qvcs.KindGetTags, ProjectName: "P"})
}

func TestServer_SessionActsAsTokenUser(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t, "alice")

	resp := roundTrip(t, c, qvcs.Request{Kind: qvcs.KindGetTags, ProjectName: "P", UserName: "mallory"})
	if resp.Error == nil || resp.Error.Kind != qvcs.KindUnauthorized {
		t.Errorf("response error = %+v, want Unauthorized", resp.Error)
	}

	resp = mustRoundTrip(t, c, qvcs.Request{Kind: qvcs.KindApplyTag, ProjectName: "P", TagText: "v1"})
	recent := mustRoundTrip(t, c, qvcs.Request{Kind: qvcs.KindGetMostRecentActivity, ProjectName: "P"})
	if len(recent.Commits) != 1 || recent.Commits[0].UserName != "alice" || recent.Commits[0].CommitID != resp.CommitID {
		t.Errorf("Commits = %+v, want alice's tag commit", recent.Commits)
	}
}

func TestServer_ClosedSessionRollsBack(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t, "alice")

	mustRoundTrip(t, c, qvcs.Request{Kind: qvcs.KindTransactionBegin})
	resp := mustRoundTrip(t, c, qvcs.Request{Kind: qvcs.KindApplyTag, ProjectName: "P", TagText: "never"})
	if !resp.TransactionOpen {
		t.Error("TransactionOpen = false inside bracket")
	}
	c.Close(websocket.StatusNormalClosure, "")

	other := ts.dial(t, "bob")
	tags := mustRoundTrip(t, other, qvcs.Request{Kind: qvcs.KindGetTags, ProjectName: "P"})
	if len(tags.Tags) != 0 {
		t.Errorf("Tags = %v, want none", tags.Tags)
	}
}

func TestServer_RejectsMissingToken(t *testing.T) {
	ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, ts.URL+"/ws", nil)
	if err == nil {
		t.Fatal("Dial() succeeded without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Dial() response = %v, want 401", resp)
	}
}

func TestServer_HTTPEndpoints(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		path     string
		contains string
	}{
		{"/healthz", `"status":"ok"`},
		{"/metrics", "qvcsd_sessions_open"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s error = %v", tt.path, err)
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("reading body: %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d, want 200", resp.StatusCode)
			}
			if !strings.Contains(string(body), tt.contains) {
				t.Errorf("body does not contain %q:\n%s", tt.contains, body)
			}
		})
	}
}
