package qvcs

import "context"

// Store is the storage contract the core consumes. Find methods return
// (nil, nil) when the row does not exist; every other failure is an error
// wrapping ErrStorageFailure. All calls are transactional with the caller:
// a Store obtained from Tx sees and commits with that transaction.
type Store interface {
	// Project operations

	FindProjectByName(ctx context.Context, name string) (*Project, error)
	InsertProject(ctx context.Context, name string) (*Project, error)

	// Branch operations

	FindBranchByID(ctx context.Context, id int64) (*Branch, error)
	FindBranchByProjectIDAndName(ctx context.Context, projectID int64, name string) (*Branch, error)
	InsertBranch(ctx context.Context, projectID int64, name string, parentBranchID *int64) (*Branch, error)
	ListBranches(ctx context.Context, projectID int64) ([]*Branch, error)

	// User operations

	FindUserByName(ctx context.Context, name string) (*User, error)
	// FindOrCreateUser returns the user with the given name, inserting it on
	// first use.
	FindOrCreateUser(ctx context.Context, name string) (*User, error)

	// Directory operations

	FindDirectory(ctx context.Context, projectID int64, appendedPath string) (*Directory, error)
	FindDirectoryByID(ctx context.Context, id int64) (*Directory, error)
	InsertDirectory(ctx context.Context, projectID int64, appendedPath string) (*Directory, error)

	// Commit operations

	InsertCommit(ctx context.Context, commit *Commit) (int64, error)
	FindCommitByID(ctx context.Context, id int64) (*Commit, error)
	// ListCommits returns commits on any of branchIDs with id >= minCommitID,
	// ascending by id.
	ListCommits(ctx context.Context, branchIDs []int64, minCommitID int64) ([]*Commit, error)
	// ListMostRecentCommits returns up to limit commits on any of branchIDs,
	// newest first. A non-nil userID restricts to that user's commits.
	ListMostRecentCommits(ctx context.Context, branchIDs []int64, userID *int64, limit int) ([]*Commit, error)

	// Tag operations

	InsertTag(ctx context.Context, tag *Tag) (int64, error)
	ListTagsByBranchID(ctx context.Context, branchID int64) ([]*Tag, error)

	// File and revision operations

	InsertFile(ctx context.Context, file *File) (int64, error)
	FindFileByID(ctx context.Context, id int64) (*File, error)
	InsertFileRevision(ctx context.Context, rev *FileRevision) (int64, error)
	FindFileRevisionByID(ctx context.Context, id int64) (*FileRevision, error)
	// FindBranchTipRevision returns the newest revision of fileID recorded on
	// branchID itself. Ancestors are not consulted.
	FindBranchTipRevision(ctx context.Context, branchID, fileID int64) (*FileRevision, error)
	// InsertPromotion records that p.FeatureRevisionID was promoted as
	// p.ParentRevisionID.
	InsertPromotion(ctx context.Context, p *Promotion) error
	// FindPromotion returns the promotion of featureRevisionID.
	FindPromotion(ctx context.Context, featureRevisionID int64) (*Promotion, error)
	// FindFileIDsAtLocation returns the ids of files that have any revision
	// at the given directory and short name, on any branch.
	FindFileIDsAtLocation(ctx context.Context, directoryID int64, shortName string) ([]int64, error)
	// GetSkinnyLogfileInfo projects a revision joined with its directory and
	// the committing user.
	GetSkinnyLogfileInfo(ctx context.Context, revisionID int64) (*SkinnyLogfileInfo, error)
}

// Tx is a Store bound to an open storage transaction.
type Tx interface {
	Store
	Commit() error
	Rollback() error

	// Savepoint marks a point inside the transaction that RollbackTo undoes
	// back to without ending the transaction. ReleaseSavepoint forgets it.
	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error
}

// Database is the shared storage backend. Reads outside a transaction go
// through the embedded Store; mutations always go through BeginTx.
type Database interface {
	Store

	// BeginTx starts a transaction with auto-commit disabled until Commit.
	BeginTx(ctx context.Context) (Tx, error)

	// Close closes the database connection.
	Close() error
}
