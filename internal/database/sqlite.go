package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"qvcs-go/internal/database/migrations"
	"qvcs-go/internal/database/sqlc"
	"qvcs-go/internal/qvcs"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the qvcs.Database interface using SQLite.
type SQLiteDatabase struct {
	queryStore
	db   *sql.DB
	path string
	// tempDir holds an ephemeral database file and is removed by Close.
	tempDir string
}

// sqliteTx is a qvcs.Tx over one *sql.Tx.
type sqliteTx struct {
	queryStore
	tx *sql.Tx
}

// queryStore implements qvcs.Store on top of the generated queries, so the
// same code serves both the pooled connection and a transaction.
type queryStore struct {
	queries *sqlc.Queries
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return NewSQLiteDatabaseFromDB(db, path), nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB, path string) *SQLiteDatabase {
	return &SQLiteDatabase{
		queryStore: queryStore{queries: sqlc.New(db)},
		db:         db,
		path:       path,
	}
}

// OpenConnection opens and configures a SQLite database connection.
// Settings are passed in the DSN so that every pooled connection gets them.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		// Writers take the lock at BEGIN so two sessions never deadlock
		// upgrading from a read lock.
		"_txlock=immediate",
	}
	memory := path == ":memory:"
	if !memory {
		params = append(params, "_journal_mode=WAL", "_synchronous=NORMAL")
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?"+strings.Join(params, "&"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if memory {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// BeginTx starts a transaction. Everything done through the returned Tx
// commits or rolls back together.
func (s *SQLiteDatabase) BeginTx(ctx context.Context) (qvcs.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("starting transaction", err)
	}
	return &sqliteTx{
		queryStore: queryStore{queries: s.queries.WithTx(tx)},
		tx:         tx,
	}, nil
}

func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return storageErr("committing transaction", err)
	}
	return nil
}

func (t *sqliteTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return storageErr("rolling back transaction", err)
	}
	return nil
}

func (t *sqliteTx) Savepoint(ctx context.Context, name string) error {
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return storageErr("creating savepoint", err)
	}
	return nil
}

func (t *sqliteTx) RollbackTo(ctx context.Context, name string) error {
	if _, err := t.tx.ExecContext(ctx, "ROLLBACK TO "+name); err != nil {
		return storageErr("rolling back to savepoint", err)
	}
	return nil
}

func (t *sqliteTx) ReleaseSavepoint(ctx context.Context, name string) error {
	if _, err := t.tx.ExecContext(ctx, "RELEASE "+name); err != nil {
		return storageErr("releasing savepoint", err)
	}
	return nil
}

// storageErr marks err as a persistence failure.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, qvcs.ErrStorageFailure, err)
}

// Project operations

func (s *queryStore) FindProjectByName(ctx context.Context, name string) (*qvcs.Project, error) {
	p, err := s.queries.GetProjectByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, storageErr("finding project by name", err)
	}
	return toProject(p), nil
}

func (s *queryStore) InsertProject(ctx context.Context, name string) (*qvcs.Project, error) {
	p, err := s.queries.InsertProject(ctx, sqlc.InsertProjectParams{
		Name:      name,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, storageErr("inserting project", err)
	}
	return toProject(p), nil
}

// Branch operations

func (s *queryStore) FindBranchByID(ctx context.Context, id int64) (*qvcs.Branch, error) {
	b, err := s.queries.GetBranchByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("finding branch by id", err)
	}
	return toBranch(b), nil
}

func (s *queryStore) FindBranchByProjectIDAndName(ctx context.Context, projectID int64, name string) (*qvcs.Branch, error) {
	b, err := s.queries.GetBranchByProjectIDAndName(ctx, sqlc.GetBranchByProjectIDAndNameParams{
		ProjectID: projectID,
		Name:      name,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("finding branch by name", err)
	}
	return toBranch(b), nil
}

func (s *queryStore) InsertBranch(ctx context.Context, projectID int64, name string, parentBranchID *int64) (*qvcs.Branch, error) {
	var parent sql.NullInt64
	if parentBranchID != nil {
		parent = sql.NullInt64{Int64: *parentBranchID, Valid: true}
	}
	b, err := s.queries.InsertBranch(ctx, sqlc.InsertBranchParams{
		ProjectID:      projectID,
		Name:           name,
		ParentBranchID: parent,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return nil, storageErr("inserting branch", err)
	}
	return toBranch(b), nil
}

func (s *queryStore) ListBranches(ctx context.Context, projectID int64) ([]*qvcs.Branch, error) {
	rows, err := s.queries.ListBranchesByProjectID(ctx, projectID)
	if err != nil {
		return nil, storageErr("listing branches", err)
	}
	result := make([]*qvcs.Branch, len(rows))
	for i := range rows {
		result[i] = toBranch(rows[i])
	}
	return result, nil
}

// User operations

func (s *queryStore) FindUserByName(ctx context.Context, name string) (*qvcs.User, error) {
	u, err := s.queries.GetUserByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("finding user by name", err)
	}
	return &qvcs.User{ID: u.ID, Name: u.Name}, nil
}

func (s *queryStore) FindOrCreateUser(ctx context.Context, name string) (*qvcs.User, error) {
	u, err := s.queries.UpsertUser(ctx, name)
	if err != nil {
		return nil, storageErr("upserting user", err)
	}
	return &qvcs.User{ID: u.ID, Name: u.Name}, nil
}

// Directory operations

func (s *queryStore) FindDirectory(ctx context.Context, projectID int64, appendedPath string) (*qvcs.Directory, error) {
	d, err := s.queries.GetDirectory(ctx, sqlc.GetDirectoryParams{
		ProjectID:    projectID,
		AppendedPath: appendedPath,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("finding directory", err)
	}
	return toDirectory(d), nil
}

func (s *queryStore) FindDirectoryByID(ctx context.Context, id int64) (*qvcs.Directory, error) {
	d, err := s.queries.GetDirectoryByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("finding directory by id", err)
	}
	return toDirectory(d), nil
}

func (s *queryStore) InsertDirectory(ctx context.Context, projectID int64, appendedPath string) (*qvcs.Directory, error) {
	d, err := s.queries.InsertDirectory(ctx, sqlc.InsertDirectoryParams{
		ProjectID:    projectID,
		AppendedPath: appendedPath,
	})
	if err != nil {
		return nil, storageErr("inserting directory", err)
	}
	return toDirectory(d), nil
}

// Commit operations

func (s *queryStore) InsertCommit(ctx context.Context, commit *qvcs.Commit) (int64, error) {
	id, err := s.queries.InsertCommit(ctx, sqlc.InsertCommitParams{
		UserID:     commit.UserID,
		BranchID:   commit.BranchID,
		CommitDate: commit.CommitDate,
		Message:    commit.Message,
	})
	if err != nil {
		return 0, storageErr("inserting commit", err)
	}
	return id, nil
}

func (s *queryStore) FindCommitByID(ctx context.Context, id int64) (*qvcs.Commit, error) {
	c, err := s.queries.GetCommitByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("finding commit by id", err)
	}
	return &qvcs.Commit{
		ID:         c.ID,
		UserID:     c.UserID,
		BranchID:   c.BranchID,
		CommitDate: c.CommitDate,
		Message:    c.Message,
		UserName:   c.UserName,
	}, nil
}

func (s *queryStore) ListCommits(ctx context.Context, branchIDs []int64, minCommitID int64) ([]*qvcs.Commit, error) {
	rows, err := s.queries.ListCommitsSince(ctx, sqlc.ListCommitsSinceParams{
		BranchIds: branchIDs,
		MinID:     minCommitID,
	})
	if err != nil {
		return nil, storageErr("listing commits", err)
	}
	result := make([]*qvcs.Commit, len(rows))
	for i, c := range rows {
		result[i] = &qvcs.Commit{
			ID:         c.ID,
			UserID:     c.UserID,
			BranchID:   c.BranchID,
			CommitDate: c.CommitDate,
			Message:    c.Message,
			UserName:   c.UserName,
		}
	}
	return result, nil
}

func (s *queryStore) ListMostRecentCommits(ctx context.Context, branchIDs []int64, userID *int64, limit int) ([]*qvcs.Commit, error) {
	var result []*qvcs.Commit
	if userID != nil {
		rows, err := s.queries.ListMostRecentUserCommits(ctx, sqlc.ListMostRecentUserCommitsParams{
			BranchIds: branchIDs,
			UserID:    *userID,
			Limit:     int64(limit),
		})
		if err != nil {
			return nil, storageErr("listing recent user commits", err)
		}
		for _, c := range rows {
			result = append(result, &qvcs.Commit{
				ID:         c.ID,
				UserID:     c.UserID,
				BranchID:   c.BranchID,
				CommitDate: c.CommitDate,
				Message:    c.Message,
				UserName:   c.UserName,
			})
		}
		return result, nil
	}

	rows, err := s.queries.ListMostRecentCommits(ctx, sqlc.ListMostRecentCommitsParams{
		BranchIds: branchIDs,
		Limit:     int64(limit),
	})
	if err != nil {
		return nil, storageErr("listing recent commits", err)
	}
	for _, c := range rows {
		result = append(result, &qvcs.Commit{
			ID:         c.ID,
			UserID:     c.UserID,
			BranchID:   c.BranchID,
			CommitDate: c.CommitDate,
			Message:    c.Message,
			UserName:   c.UserName,
		})
	}
	return result, nil
}

// Tag operations

func (s *queryStore) InsertTag(ctx context.Context, tag *qvcs.Tag) (int64, error) {
	id, err := s.queries.InsertTag(ctx, sqlc.InsertTagParams{
		BranchID:    tag.BranchID,
		CommitID:    tag.CommitID,
		TagText:     tag.TagText,
		Description: tag.Description,
		Moveable:    tag.Moveable,
	})
	if err != nil {
		return 0, storageErr("inserting tag", err)
	}
	return id, nil
}

func (s *queryStore) ListTagsByBranchID(ctx context.Context, branchID int64) ([]*qvcs.Tag, error) {
	rows, err := s.queries.ListTagsByBranchID(ctx, branchID)
	if err != nil {
		return nil, storageErr("listing tags", err)
	}
	result := make([]*qvcs.Tag, len(rows))
	for i, t := range rows {
		result[i] = &qvcs.Tag{
			ID:          t.ID,
			BranchID:    t.BranchID,
			CommitID:    t.CommitID,
			TagText:     t.TagText,
			Description: t.Description,
			Moveable:    t.Moveable,
		}
	}
	return result, nil
}

// File and revision operations

func (s *queryStore) InsertFile(ctx context.Context, file *qvcs.File) (int64, error) {
	id, err := s.queries.InsertFile(ctx, sqlc.InsertFileParams{
		ProjectID:         file.ProjectID,
		CreatedOnBranchID: file.CreatedOnBranchID,
	})
	if err != nil {
		return 0, storageErr("inserting file", err)
	}
	return id, nil
}

func (s *queryStore) FindFileByID(ctx context.Context, id int64) (*qvcs.File, error) {
	f, err := s.queries.GetFileByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("finding file by id", err)
	}
	return &qvcs.File{ID: f.ID, ProjectID: f.ProjectID, CreatedOnBranchID: f.CreatedOnBranchID}, nil
}

func (s *queryStore) InsertFileRevision(ctx context.Context, rev *qvcs.FileRevision) (int64, error) {
	id, err := s.queries.InsertFileRevision(ctx, sqlc.InsertFileRevisionParams{
		FileID:      rev.FileID,
		BranchID:    rev.BranchID,
		CommitID:    rev.CommitID,
		DirectoryID: rev.DirectoryID,
		ShortName:   rev.ShortName,
		ContentID:   rev.ContentID,
		Size:        rev.Size,
		Attributes:  int64(rev.Attributes),
		CreatedAt:   rev.CreatedAt,
	})
	if err != nil {
		return 0, storageErr("inserting file revision", err)
	}
	return id, nil
}

func (s *queryStore) FindFileRevisionByID(ctx context.Context, id int64) (*qvcs.FileRevision, error) {
	r, err := s.queries.GetFileRevisionByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("finding file revision by id", err)
	}
	return toFileRevision(r), nil
}

func (s *queryStore) FindBranchTipRevision(ctx context.Context, branchID, fileID int64) (*qvcs.FileRevision, error) {
	r, err := s.queries.GetBranchTipRevision(ctx, sqlc.GetBranchTipRevisionParams{
		BranchID: branchID,
		FileID:   fileID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("finding branch tip revision", err)
	}
	return toFileRevision(r), nil
}

func (s *queryStore) InsertPromotion(ctx context.Context, p *qvcs.Promotion) error {
	err := s.queries.InsertPromotion(ctx, sqlc.InsertPromotionParams{
		FeatureRevisionID: p.FeatureRevisionID,
		ParentRevisionID:  p.ParentRevisionID,
	})
	if err != nil {
		return storageErr("inserting promotion", err)
	}
	return nil
}

func (s *queryStore) FindPromotion(ctx context.Context, featureRevisionID int64) (*qvcs.Promotion, error) {
	p, err := s.queries.GetPromotionByFeatureRevisionID(ctx, featureRevisionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("finding promotion", err)
	}
	return &qvcs.Promotion{FeatureRevisionID: p.FeatureRevisionID, ParentRevisionID: p.ParentRevisionID}, nil
}

func (s *queryStore) FindFileIDsAtLocation(ctx context.Context, directoryID int64, shortName string) ([]int64, error) {
	ids, err := s.queries.ListFileIDsAtLocation(ctx, sqlc.ListFileIDsAtLocationParams{
		DirectoryID: directoryID,
		ShortName:   shortName,
	})
	if err != nil {
		return nil, storageErr("listing files at location", err)
	}
	return ids, nil
}

func (s *queryStore) GetSkinnyLogfileInfo(ctx context.Context, revisionID int64) (*qvcs.SkinnyLogfileInfo, error) {
	r, err := s.queries.GetSkinnyLogfileInfo(ctx, revisionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("getting skinny logfile info", err)
	}
	return &qvcs.SkinnyLogfileInfo{
		FileID:       r.FileID,
		RevisionID:   r.RevisionID,
		CommitID:     r.CommitID,
		BranchID:     r.BranchID,
		ShortName:    r.ShortName,
		AppendedPath: r.AppendedPath,
		Size:         r.Size,
		Attributes:   uint32(r.Attributes),
		ContentID:    r.ContentID,
		LastEditBy:   r.LastEditBy,
		LastEditAt:   r.LastEditAt,
	}, nil
}

func toProject(p sqlc.Project) *qvcs.Project {
	return &qvcs.Project{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt}
}

func toBranch(b sqlc.Branch) *qvcs.Branch {
	branch := &qvcs.Branch{
		ID:        b.ID,
		ProjectID: b.ProjectID,
		Name:      b.Name,
		CreatedAt: b.CreatedAt,
	}
	if b.ParentBranchID.Valid {
		parent := b.ParentBranchID.Int64
		branch.ParentBranchID = &parent
	}
	return branch
}

func toDirectory(d sqlc.Directory) *qvcs.Directory {
	return &qvcs.Directory{ID: d.ID, ProjectID: d.ProjectID, AppendedPath: d.AppendedPath}
}

func toFileRevision(r sqlc.FileRevision) *qvcs.FileRevision {
	return &qvcs.FileRevision{
		ID:          r.ID,
		FileID:      r.FileID,
		BranchID:    r.BranchID,
		CommitID:    r.CommitID,
		DirectoryID: r.DirectoryID,
		ShortName:   r.ShortName,
		ContentID:   r.ContentID,
		Size:        r.Size,
		Attributes:  uint32(r.Attributes),
		CreatedAt:   r.CreatedAt,
	}
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// MigrateUp applies any pending schema migrations.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// SchemaVersion returns the applied migration version and whether the last
// migration failed part way.
func (s *SQLiteDatabase) SchemaVersion() (uint, bool, error) {
	return migrations.Version(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// MaxCommitID returns the id of the newest commit, 0 if there is none. It
// versions database snapshots uploaded to the vault.
func (s *SQLiteDatabase) MaxCommitID(ctx context.Context) (int64, error) {
	id, err := s.queries.GetMaxCommitID(ctx)
	if err != nil {
		return 0, storageErr("getting max commit id", err)
	}
	return id, nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if s.tempDir != "" {
		err = errors.Join(err, os.RemoveAll(s.tempDir))
	}
	return err
}

// Compile-time check that SQLiteDatabase implements qvcs.Database interface
var _ qvcs.Database = (*SQLiteDatabase)(nil)
