package qvcs_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"qvcs-go/internal/qvcs"
)

func TestPromote_Simple(t *testing.T) {
	h := newHarness(t)
	sess, obs := h.session("s1")

	r1 := h.checkIn(t, sess, "", "", "f.txt", 0, "trunk content")
	r2 := h.checkIn(t, sess, "Feat", "", "f.txt", r1.FileID, "feature content")
	h.watch(t, sess, "Feat", "")
	h.watch(t, sess, "", "")
	commitsBefore := h.maxCommitID(t)

	resp := h.mustDo(t, sess, &qvcs.Request{
		Kind:       qvcs.KindPromoteSimple,
		SyncToken:  "tok-1",
		BranchName: "Feat",
		Promotion: &qvcs.FilePromotionInfo{
			FileID:                  r1.FileID,
			FeatureBranchRevisionID: r2.RevisionID,
			FeatureShortName:        "f.txt",
			ParentShortName:         "f.txt",
		},
	})

	if resp.SyncToken != "tok-1" {
		t.Errorf("SyncToken = %q, want tok-1", resp.SyncToken)
	}
	r3 := resp.PromotedTo
	if r3 == nil {
		t.Fatal("PromotedTo is nil")
	}
	if r3.RevisionID == r1.RevisionID || r3.RevisionID == r2.RevisionID {
		t.Errorf("PromotedTo revision = %d, want a new revision", r3.RevisionID)
	}
	if r3.BranchID != h.fx.Trunk.ID {
		t.Errorf("PromotedTo.BranchID = %d, want trunk %d", r3.BranchID, h.fx.Trunk.ID)
	}
	if r3.ContentID != r2.ContentID {
		t.Errorf("PromotedTo.ContentID = %s, want feature content %s", r3.ContentID, r2.ContentID)
	}
	if resp.ParentTipRevisionID != r3.RevisionID {
		t.Errorf("ParentTipRevisionID = %d, want %d", resp.ParentTipRevisionID, r3.RevisionID)
	}
	if resp.PromotedFrom == nil || resp.PromotedFrom.RevisionID != r2.RevisionID {
		t.Errorf("PromotedFrom = %+v, want revision %d", resp.PromotedFrom, r2.RevisionID)
	}
	if resp.Superseded == nil || resp.Superseded.RevisionID != r1.RevisionID {
		t.Errorf("Superseded = %+v, want revision %d", resp.Superseded, r1.RevisionID)
	}
	if resp.CommitID != r3.CommitID {
		t.Errorf("CommitID = %d, want %d", resp.CommitID, r3.CommitID)
	}

	// Exactly one commit and one revision were added.
	if got := h.maxCommitID(t); got != commitsBefore+1 || got != resp.CommitID {
		t.Errorf("MaxCommitID() = %d, want %d", got, commitsBefore+1)
	}
	if r3.RevisionID != r2.RevisionID+1 {
		t.Errorf("PromotedTo revision = %d, want %d", r3.RevisionID, r2.RevisionID+1)
	}
	extra, err := h.db.FindFileRevisionByID(context.Background(), r3.RevisionID+1)
	if err != nil {
		t.Fatalf("FindFileRevisionByID() error = %v", err)
	}
	if extra != nil {
		t.Errorf("unexpected extra revision %+v", extra)
	}

	// Nothing is delivered until the caller flushes after the response.
	if got := len(obs.Received()); got != 0 {
		t.Fatalf("delivered %d notifications before flush", got)
	}
	if got := sess.Outbox.Len(); got != 2 {
		t.Fatalf("Outbox.Len() = %d, want 2", got)
	}
	if got := h.flush(sess); got != 2 {
		t.Errorf("Flush() = %d, want 2", got)
	}

	received := obs.Received()
	want := []qvcs.Notification{
		{
			Coordinate:    qvcs.DirectoryCoordinate{ProjectName: "P", BranchName: "Feat"},
			Info:          resp.PromotedFrom,
			Action:        qvcs.ActionRemove,
			OriginSession: "s1",
		},
		{
			Coordinate:    qvcs.DirectoryCoordinate{ProjectName: "P", BranchName: "Trunk"},
			Info:          r3,
			Action:        qvcs.ActionAddFile,
			OriginSession: "s1",
		},
	}
	if diff := cmp.Diff(want, received); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}

	// The trunk now serves the feature content.
	got := h.mustDo(t, sess, &qvcs.Request{Kind: qvcs.KindGetRevision, FileID: r1.FileID})
	if string(got.Content) != "feature content" {
		t.Errorf("trunk content = %q, want %q", got.Content, "feature content")
	}
}

func TestPromote_Variants(t *testing.T) {
	tests := []struct {
		name         string
		kind         qvcs.RequestKind
		featurePath  string
		featureName  string
		wantPath     string
		wantName     string
		wantRemoveAt string
	}{
		{"rename", qvcs.KindPromoteRename, "", "g.txt", "", "g.txt", ""},
		{"move", qvcs.KindPromoteMove, "docs", "f.txt", "docs", "f.txt", "docs"},
		{"move and rename", qvcs.KindPromoteMoveAndRename, "docs", "g.txt", "docs", "g.txt", "docs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			sess, obs := h.session("s1")

			r1 := h.checkIn(t, sess, "", "", "f.txt", 0, "v1")
			r2 := h.checkIn(t, sess, "Feat", tt.featurePath, tt.featureName, r1.FileID, "v2")
			for _, branch := range []string{"Feat", ""} {
				h.watch(t, sess, branch, "")
				h.watch(t, sess, branch, "docs")
			}

			resp := h.mustDo(t, sess, &qvcs.Request{
				Kind:       tt.kind,
				BranchName: "Feat",
				Promotion: &qvcs.FilePromotionInfo{
					FileID:                  r1.FileID,
					FeatureBranchRevisionID: r2.RevisionID,
					FeatureAppendedPath:     tt.featurePath,
					FeatureShortName:        tt.featureName,
					ParentAppendedPath:      "",
					ParentShortName:         "f.txt",
				},
			})

			to := resp.PromotedTo
			if to.AppendedPath != tt.wantPath || to.ShortName != tt.wantName {
				t.Errorf("PromotedTo location = %q/%q, want %q/%q", to.AppendedPath, to.ShortName, tt.wantPath, tt.wantName)
			}
			if resp.Superseded.ShortName != "f.txt" || resp.Superseded.AppendedPath != "" {
				t.Errorf("Superseded location = %q/%q, want /f.txt", resp.Superseded.AppendedPath, resp.Superseded.ShortName)
			}

			h.flush(sess)
			received := obs.Received()
			if len(received) != 2 {
				t.Fatalf("received %d notifications, want 2", len(received))
			}
			remove, add := received[0], received[1]
			if remove.Action != qvcs.ActionRemove || remove.Coordinate.BranchName != "Feat" || remove.Coordinate.AppendedPath != tt.wantRemoveAt {
				t.Errorf("first notification = %s, want Remove on Feat/%s", remove, tt.wantRemoveAt)
			}
			if add.Action != qvcs.ActionAddFile || add.Coordinate.BranchName != "Trunk" || add.Coordinate.AppendedPath != tt.wantPath {
				t.Errorf("second notification = %s, want AddFile on Trunk/%s", add, tt.wantPath)
			}
		})
	}
}

func TestPromote_FileCreatedOnFeature(t *testing.T) {
	h := newHarness(t)
	sess, _ := h.session("s1")

	r := h.checkIn(t, sess, "Feat", "new", "n.txt", 0, "fresh")

	resp := h.mustDo(t, sess, &qvcs.Request{
		Kind:       qvcs.KindPromoteSimple,
		BranchName: "Feat",
		Promotion: &qvcs.FilePromotionInfo{
			FileID:                  r.FileID,
			FeatureBranchRevisionID: r.RevisionID,
			FeatureAppendedPath:     "new",
			FeatureShortName:        "n.txt",
			ParentAppendedPath:      "new",
			ParentShortName:         "n.txt",
		},
	})
	if resp.Superseded != nil {
		t.Errorf("Superseded = %+v, want nil", resp.Superseded)
	}
	if resp.PromotedTo.BranchID != h.fx.Trunk.ID || resp.PromotedTo.AppendedPath != "new" {
		t.Errorf("PromotedTo = %+v, want trunk revision under new/", resp.PromotedTo)
	}
}

func TestPromote_Errors(t *testing.T) {
	h := newHarness(t)
	sess, _ := h.session("s1")

	r1 := h.checkIn(t, sess, "", "", "f.txt", 0, "v1")
	r2 := h.checkIn(t, sess, "Feat", "", "g.txt", r1.FileID, "v2")
	other := h.checkIn(t, sess, "", "", "other.txt", 0, "x")

	renamed := qvcs.FilePromotionInfo{
		FileID:                  r1.FileID,
		FeatureBranchRevisionID: r2.RevisionID,
		FeatureShortName:        "g.txt",
		ParentShortName:         "f.txt",
	}

	tests := []struct {
		name   string
		kind   qvcs.RequestKind
		branch string
		info   *qvcs.FilePromotionInfo
		want   qvcs.ErrorKind
	}{
		{"missing promotion info", qvcs.KindPromoteRename, "Feat", nil, qvcs.KindInvalidRequest},
		{"variant does not match locations", qvcs.KindPromoteSimple, "Feat", &renamed, qvcs.KindInvalidRequest},
		{"promote from trunk", qvcs.KindPromoteRename, "Trunk", &renamed, qvcs.KindInvalidRequest},
		{"unknown branch", qvcs.KindPromoteRename, "Nope", &renamed, qvcs.KindNotFound},
		{
			"stale parent location", qvcs.KindPromoteRename, "Feat",
			&qvcs.FilePromotionInfo{FileID: r1.FileID, FeatureBranchRevisionID: r2.RevisionID, FeatureShortName: "g.txt", ParentShortName: "h.txt"},
			qvcs.KindInvalidRequest,
		},
		{
			"revision of another file", qvcs.KindPromoteRename, "Feat",
			&qvcs.FilePromotionInfo{FileID: r1.FileID, FeatureBranchRevisionID: other.RevisionID, FeatureShortName: "g.txt", ParentShortName: "f.txt"},
			qvcs.KindInvalidRequest,
		},
		{
			"revision not on feature branch", qvcs.KindPromoteSimple, "Feat",
			&qvcs.FilePromotionInfo{FileID: r1.FileID, FeatureBranchRevisionID: r1.RevisionID, FeatureShortName: "f.txt", ParentShortName: "f.txt"},
			qvcs.KindInvalidRequest,
		},
		{
			"unknown revision", qvcs.KindPromoteRename, "Feat",
			&qvcs.FilePromotionInfo{FileID: r1.FileID, FeatureBranchRevisionID: 9999, FeatureShortName: "g.txt", ParentShortName: "f.txt"},
			qvcs.KindNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.do(sess, &qvcs.Request{Kind: tt.kind, BranchName: tt.branch, Promotion: tt.info})
			if got := errorKind(resp); got != tt.want {
				t.Errorf("error kind = %q, want %q (%+v)", got, tt.want, resp.Error)
			}
			if sess.Outbox.Len() != 0 {
				t.Errorf("failed promotion queued %d notifications", sess.Outbox.Len())
			}
		})
	}

	// Failed promotions leave the trunk untouched.
	got := h.mustDo(t, sess, &qvcs.Request{Kind: qvcs.KindGetRevision, FileID: r1.FileID})
	if got.Info.RevisionID != r1.RevisionID {
		t.Errorf("trunk tip = %d, want %d", got.Info.RevisionID, r1.RevisionID)
	}
}

func TestPromote_FeatureBranchAfterPromotion(t *testing.T) {
	h := newHarness(t)
	sess, _ := h.session("s1")

	r1 := h.checkIn(t, sess, "", "", "f.txt", 0, "v1")
	r2 := h.checkIn(t, sess, "Feat", "", "f.txt", r1.FileID, "v2")
	simple := func(rev *qvcs.SkinnyLogfileInfo) *qvcs.Request {
		return &qvcs.Request{
			Kind:       qvcs.KindPromoteSimple,
			BranchName: "Feat",
			Promotion: &qvcs.FilePromotionInfo{
				FileID:                  rev.FileID,
				FeatureBranchRevisionID: rev.RevisionID,
				FeatureShortName:        "f.txt",
				ParentShortName:         "f.txt",
			},
		}
	}
	tipOf := func(t *testing.T, branch string) *qvcs.Response {
		t.Helper()
		return h.mustDo(t, sess, &qvcs.Request{Kind: qvcs.KindGetRevision, BranchName: branch, FileID: r1.FileID})
	}

	r3 := h.mustDo(t, sess, simple(r2)).PromotedTo
	sess.Outbox.Drain()

	t.Run("feature branch sees the promoted parent revision", func(t *testing.T) {
		got := tipOf(t, "Feat")
		if got.Info.RevisionID != r3.RevisionID {
			t.Errorf("Feat tip = %d, want promoted revision %d", got.Info.RevisionID, r3.RevisionID)
		}
	})

	r4 := h.checkIn(t, sess, "", "", "f.txt", r1.FileID, "v3 on trunk")

	t.Run("feature branch follows later parent check-ins", func(t *testing.T) {
		got := tipOf(t, "Feat")
		if got.Info.RevisionID != r4.RevisionID || string(got.Content) != "v3 on trunk" {
			t.Errorf("Feat tip = %d %q, want %d %q", got.Info.RevisionID, got.Content, r4.RevisionID, "v3 on trunk")
		}
	})

	t.Run("promoting the same revision again is rejected", func(t *testing.T) {
		before := h.maxCommitID(t)
		resp := h.do(sess, simple(r2))
		if got := errorKind(resp); got != qvcs.KindInvalidRequest {
			t.Fatalf("error kind = %q, want InvalidRequest (%+v)", got, resp.Error)
		}
		if sess.Outbox.Len() != 0 {
			t.Errorf("rejected promotion queued %d notifications", sess.Outbox.Len())
		}
		if got := h.maxCommitID(t); got != before {
			t.Errorf("MaxCommitID() = %d, want %d", got, before)
		}
		if got := tipOf(t, ""); string(got.Content) != "v3 on trunk" {
			t.Errorf("trunk content = %q, want %q", got.Content, "v3 on trunk")
		}
	})

	t.Run("new feature check-in is promotable", func(t *testing.T) {
		r5 := h.checkIn(t, sess, "Feat", "", "f.txt", r1.FileID, "v4")
		if got := tipOf(t, "Feat"); got.Info.RevisionID != r5.RevisionID {
			t.Errorf("Feat tip = %d, want %d", got.Info.RevisionID, r5.RevisionID)
		}
		resp := h.mustDo(t, sess, simple(r5))
		sess.Outbox.Drain()
		if resp.Superseded == nil || resp.Superseded.RevisionID != r4.RevisionID {
			t.Errorf("Superseded = %+v, want revision %d", resp.Superseded, r4.RevisionID)
		}
		if got := tipOf(t, ""); string(got.Content) != "v4" {
			t.Errorf("trunk content = %q, want v4", got.Content)
		}
	})
}

func TestPromote_LocationTaken(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, h *harness, sess *qvcs.SessionContext) *qvcs.Request
	}{
		{
			name: "simple promotion of a new file",
			setup: func(t *testing.T, h *harness, sess *qvcs.SessionContext) *qvcs.Request {
				feature := h.checkIn(t, sess, "Feat", "", "g.txt", 0, "feature g")
				h.checkIn(t, sess, "", "", "g.txt", 0, "trunk g")
				return &qvcs.Request{
					Kind:       qvcs.KindPromoteSimple,
					BranchName: "Feat",
					Promotion: &qvcs.FilePromotionInfo{
						FileID:                  feature.FileID,
						FeatureBranchRevisionID: feature.RevisionID,
						FeatureShortName:        "g.txt",
						ParentShortName:         "g.txt",
					},
				}
			},
		},
		{
			name: "rename onto a parent file",
			setup: func(t *testing.T, h *harness, sess *qvcs.SessionContext) *qvcs.Request {
				r1 := h.checkIn(t, sess, "", "", "f.txt", 0, "v1")
				renamed := h.checkIn(t, sess, "Feat", "", "h.txt", r1.FileID, "v2")
				h.checkIn(t, sess, "", "", "h.txt", 0, "trunk h")
				return &qvcs.Request{
					Kind:       qvcs.KindPromoteRename,
					BranchName: "Feat",
					Promotion: &qvcs.FilePromotionInfo{
						FileID:                  r1.FileID,
						FeatureBranchRevisionID: renamed.RevisionID,
						FeatureShortName:        "h.txt",
						ParentShortName:         "f.txt",
					},
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			sess, _ := h.session("s1")
			req := tt.setup(t, h, sess)
			before := h.maxCommitID(t)

			resp := h.do(sess, req)
			if got := errorKind(resp); got != qvcs.KindInvalidRequest {
				t.Fatalf("error kind = %q, want InvalidRequest (%+v)", got, resp.Error)
			}
			if sess.Outbox.Len() != 0 {
				t.Errorf("rejected promotion queued %d notifications", sess.Outbox.Len())
			}
			if got := h.maxCommitID(t); got != before {
				t.Errorf("MaxCommitID() = %d, want %d", got, before)
			}
		})
	}
}

// failingRevisionsDB fails InsertFileRevision inside transactions while fail
// is set.
type failingRevisionsDB struct {
	qvcs.Database
	fail *atomic.Bool
}

func (d failingRevisionsDB) BeginTx(ctx context.Context) (qvcs.Tx, error) {
	tx, err := d.Database.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return failingRevisionsTx{Tx: tx, fail: d.fail}, nil
}

type failingRevisionsTx struct {
	qvcs.Tx
	fail *atomic.Bool
}

func (t failingRevisionsTx) InsertFileRevision(ctx context.Context, rev *qvcs.FileRevision) (int64, error) {
	if t.fail.Load() {
		return 0, fmt.Errorf("inserting file revision: %w: disk I/O error", qvcs.ErrStorageFailure)
	}
	return t.Tx.InsertFileRevision(ctx, rev)
}

func TestPromote_StorageFailure(t *testing.T) {
	var fail atomic.Bool
	h := newHarness(t, withDatabase(func(db qvcs.Database) qvcs.Database {
		return failingRevisionsDB{Database: db, fail: &fail}
	}))
	sess, obs := h.session("s1")

	r1 := h.checkIn(t, sess, "", "", "f.txt", 0, "v1")
	r2 := h.checkIn(t, sess, "Feat", "", "f.txt", r1.FileID, "v2")
	h.watch(t, sess, "Feat", "")
	h.watch(t, sess, "", "")
	before := h.maxCommitID(t)

	req := &qvcs.Request{
		Kind:       qvcs.KindPromoteSimple,
		BranchName: "Feat",
		Promotion: &qvcs.FilePromotionInfo{
			FileID:                  r1.FileID,
			FeatureBranchRevisionID: r2.RevisionID,
			FeatureShortName:        "f.txt",
			ParentShortName:         "f.txt",
		},
	}

	fail.Store(true)
	resp := h.do(sess, req)
	fail.Store(false)

	if got := errorKind(resp); got != qvcs.KindStorageFailure {
		t.Fatalf("error kind = %q, want StorageFailure (%+v)", got, resp.Error)
	}
	if got := h.maxCommitID(t); got != before {
		t.Errorf("MaxCommitID() = %d, want %d after rollback", got, before)
	}
	if got := sess.Outbox.Len(); got != 0 {
		t.Errorf("Outbox.Len() = %d, want 0", got)
	}
	h.flush(sess)
	if got := len(obs.Received()); got != 0 {
		t.Errorf("delivered %d notifications for a failed promotion", got)
	}

	trunk := h.mustDo(t, sess, &qvcs.Request{Kind: qvcs.KindGetRevision, FileID: r1.FileID})
	if trunk.Info.RevisionID != r1.RevisionID {
		t.Errorf("trunk tip = %d, want %d", trunk.Info.RevisionID, r1.RevisionID)
	}
	feature := h.mustDo(t, sess, &qvcs.Request{Kind: qvcs.KindGetRevision, BranchName: "Feat", FileID: r1.FileID})
	if feature.Info.RevisionID != r2.RevisionID {
		t.Errorf("Feat tip = %d, want %d", feature.Info.RevisionID, r2.RevisionID)
	}

	// The rolled back attempt left no promotion record behind.
	if retry := h.do(sess, req); !retry.OK() {
		t.Errorf("retry error = %+v", retry.Error)
	}
}

func TestVariantFor(t *testing.T) {
	tests := []struct {
		name string
		info qvcs.FilePromotionInfo
		want qvcs.PromotionVariant
	}{
		{"same location", qvcs.FilePromotionInfo{FeatureShortName: "a", ParentShortName: "a"}, qvcs.PromoteSimple},
		{"equivalent paths", qvcs.FilePromotionInfo{FeatureAppendedPath: "/src/", ParentAppendedPath: "src", FeatureShortName: "a", ParentShortName: "a"}, qvcs.PromoteSimple},
		{"renamed", qvcs.FilePromotionInfo{FeatureShortName: "b", ParentShortName: "a"}, qvcs.PromoteRename},
		{"moved", qvcs.FilePromotionInfo{FeatureAppendedPath: "x", FeatureShortName: "a", ParentShortName: "a"}, qvcs.PromoteMove},
		{"both", qvcs.FilePromotionInfo{FeatureAppendedPath: "x", FeatureShortName: "b", ParentShortName: "a"}, qvcs.PromoteMoveAndRename},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := qvcs.VariantFor(tt.info); got != tt.want {
				t.Errorf("VariantFor() = %s, want %s", got, tt.want)
			}
		})
	}
}
