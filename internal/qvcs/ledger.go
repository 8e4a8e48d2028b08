package qvcs

import (
	"context"
	"fmt"
	"time"
)

// CommitLookBackWindow is how many commit ids before the requested one a
// brief commit listing reaches back.
const CommitLookBackWindow = 100

// DefaultRecentActivityLimit bounds GetMostRecentActivity when the request
// does not specify a limit.
const DefaultRecentActivityLimit = 20

// AppendCommit records a new commit. It succeeds or fails with the caller's
// transaction; nothing is written outside it.
func AppendCommit(ctx context.Context, store Store, userID, branchID int64, message string, at time.Time) (int64, error) {
	id, err := store.InsertCommit(ctx, &Commit{
		UserID:     userID,
		BranchID:   branchID,
		CommitDate: at,
		Message:    message,
	})
	if err != nil {
		return 0, fmt.Errorf("appending commit: %w", err)
	}
	return id, nil
}

// LookBackStart returns the first commit id included in a listing that was
// requested at startingCommitID.
func LookBackStart(startingCommitID int64) int64 {
	start := startingCommitID - CommitLookBackWindow
	if start < 1 {
		return 1
	}
	return start
}

// ListCommitsSince returns commits on the branches in branchFilter whose id is
// at least LookBackStart(startingCommitID), in insertion order.
func ListCommitsSince(ctx context.Context, store Store, branchFilter []int64, startingCommitID int64) ([]*Commit, error) {
	if len(branchFilter) == 0 {
		return nil, nil
	}
	commits, err := store.ListCommits(ctx, branchFilter, LookBackStart(startingCommitID))
	if err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}
	return commits, nil
}

// MostRecentCommits returns the newest commits visible through branchFilter,
// optionally restricted to one user.
func MostRecentCommits(ctx context.Context, store Store, branchFilter []int64, userID *int64, limit int) ([]*Commit, error) {
	if limit <= 0 {
		limit = DefaultRecentActivityLimit
	}
	commits, err := store.ListMostRecentCommits(ctx, branchFilter, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent commits: %w", err)
	}
	return commits, nil
}
