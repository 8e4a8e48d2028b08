package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"qvcs-go/internal/auth"
	"qvcs-go/internal/config"
	"qvcs-go/internal/content"
	"qvcs-go/internal/database"
	"qvcs-go/internal/encryption"
	"qvcs-go/internal/metrics"
	"qvcs-go/internal/qvcs"
	"qvcs-go/internal/server"
	"qvcs-go/internal/vault"
)

// MetadataDB is the vault metadata name database snapshots are stored under.
const MetadataDB = "db"

// Options carries what New cannot read from the config file.
type Options struct {
	// Passphrase unlocks the age identity. nil prompts via ReadPassphrase.
	Passphrase func() (string, error)
	// Stderr receives log lines next to the log file. nil means os.Stderr.
	Stderr io.Writer
	// Clock defaults to qvcs.RealClock.
	Clock qvcs.Clock
}

// App is the application layer between the CLI and the qvcs Service.
// It constructs all dependencies from config, exposes the operations the CLI
// needs, and snapshots the database to the vault on Close.
type App struct {
	cfg     *config.Config
	db      *database.SQLiteDatabase
	vault   qvcs.Vault
	metrics *metrics.Metrics
	tokens  *auth.TokenService
	service *qvcs.Service
	logger  *slogAdapter
	op      *Operation
	logFile *os.File
}

// New creates a fully wired App from the given config.
// The caller must call Close when done.
func New(ctx context.Context, cfg *config.Config, op *Operation, opts Options) (*App, error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = qvcs.RealClock{}
	}
	if opts.Passphrase == nil {
		opts.Passphrase = func() (string, error) { return ReadPassphrase("Passphrase: ") }
	}

	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	sl, logFile, err := newLogger(cfg.LogDir, op.ID(), level, opts.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: sl}

	a := &App{cfg: cfg, logger: logger, op: op, logFile: logFile}
	if err := a.init(ctx, opts); err != nil {
		a.closeResources()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, opts Options) error {
	cfg := a.cfg

	v, err := vault.NewVaultFromConfig(ctx, cfg.Vault)
	if err != nil {
		return fmt.Errorf("creating vault: %w", err)
	}
	if err := v.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("validating vault: %w", err)
	}
	a.vault = v

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.ServerID)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	a.db = db

	if err := db.CheckMigrations(); err != nil {
		return fmt.Errorf("database schema out of date (run `qvcsd db migrate`): %w", err)
	}

	// Refuse to run on a database older than the last snapshot in the vault.
	remoteVersion, err := v.GetMetadataVersion(ctx, MetadataDB)
	if err != nil {
		return fmt.Errorf("checking remote metadata version: %w", err)
	}
	localMax, err := db.MaxCommitID(ctx)
	if err != nil {
		return fmt.Errorf("checking local metadata version: %w", err)
	}
	if remoteVersion > localMax {
		return fmt.Errorf("local database is behind remote (local=%d, remote=%d): restore from vault or re-initialize", localMax, remoteVersion)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if !enc.IsConfigured() {
		return fmt.Errorf("encryption keys missing (run `qvcsd keys init`)")
	}
	passphrase := ""
	if cfg.Encryption.Type == "age" {
		passphrase, err = opts.Passphrase()
		if err != nil {
			return err
		}
	}
	dc, err := enc.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking encryption key: %w", err)
	}

	authz, err := a.initAuth()
	if err != nil {
		return err
	}

	a.metrics = metrics.New()
	dispatcher := qvcs.NewDispatcher(a.logger, a.metrics)
	archive := content.NewArchive(v, enc, dc)
	a.service = qvcs.NewService(db, archive, dispatcher, authz, a.logger, opts.Clock, a.metrics)

	a.logger.Info("app initialized",
		"operation", a.op.Name,
		"database", db.Path(),
		"vault", cfg.Vault.Type,
		"encryption", cfg.Encryption.Type,
		"auth", cfg.Auth.Type,
		"commit_id", localMax)
	return nil
}

// initAuth returns the authorizer, nil when authentication is disabled.
func (a *App) initAuth() (qvcs.Authorizer, error) {
	cfg := a.cfg.Auth
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "jwt":
	default:
		return nil, fmt.Errorf("unknown auth type: %q", cfg.Type)
	}

	secret := cfg.Secret
	if s := os.Getenv(EnvJWTSecret); s != "" {
		secret = s
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = config.DefaultTokenTTL
	}
	tokens, err := auth.NewTokenService([]byte(secret), cfg.Issuer, ttl, nil)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	authz, err := auth.NewRoleAuthorizer(cfg.Roles)
	if err != nil {
		return nil, fmt.Errorf("creating authorizer: %w", err)
	}
	a.tokens = tokens
	return authz, nil
}

// Service returns the request handling layer.
func (a *App) Service() *qvcs.Service {
	return a.service
}

// Serve accepts client sessions on the configured address until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	opts := server.Options{
		WriteTimeout: a.cfg.Server.WriteTimeout,
		ReadLimit:    a.cfg.Server.ReadLimit,
		Sessions:     a.metrics,
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = config.DefaultReadLimit
	}
	if a.cfg.Server.MetricsEnabled {
		opts.Metrics = a.metrics.Handler()
	}
	listen := a.cfg.Listen
	if listen == "" {
		listen = config.DefaultListen
	}

	srv := server.New(a.service, a.tokens, qvcs.UUIDGenerator{}, a.logger, opts)
	if err := srv.ListenAndServe(ctx, listen); err != nil {
		a.op.Fail()
		return fmt.Errorf("serving on %s: %w", listen, err)
	}
	return nil
}

// CreateProject creates a project with its trunk.
func (a *App) CreateProject(ctx context.Context, name string) (*qvcs.Project, error) {
	project, _, err := qvcs.CreateProject(ctx, a.db, name)
	if err != nil {
		a.op.Fail()
		return nil, err
	}
	a.logger.Info("project created", "project", name, "project_id", project.ID)
	return project, nil
}

// CreateBranch creates branchName in projectName, off parentName (the trunk when empty).
func (a *App) CreateBranch(ctx context.Context, projectName, branchName, parentName string) (*qvcs.Branch, error) {
	branch, err := qvcs.CreateBranch(ctx, a.db, projectName, branchName, parentName)
	if err != nil {
		a.op.Fail()
		return nil, err
	}
	a.logger.Info("branch created", "project", projectName, "branch", branchName, "parent", parentName, "branch_id", branch.ID)
	return branch, nil
}

// ListBranches returns every branch of projectName.
func (a *App) ListBranches(ctx context.Context, projectName string) ([]*qvcs.Branch, error) {
	project, _, err := qvcs.ResolveBranch(ctx, a.db, projectName, "")
	if err != nil {
		return nil, err
	}
	return a.db.ListBranches(ctx, project.ID)
}

// IssueToken signs a session token for userName.
func (a *App) IssueToken(userName string) (string, error) {
	if a.tokens == nil {
		return "", fmt.Errorf("authentication is disabled (auth.type = %q)", a.cfg.Auth.Type)
	}
	return a.tokens.IssueToken(userName)
}

// Snapshot copies the database into the vault, versioned by the newest commit id.
func (a *App) Snapshot(ctx context.Context) (int64, error) {
	version, err := a.db.MaxCommitID(ctx)
	if err != nil {
		return 0, err
	}

	tmpFile, err := os.CreateTemp("", "qvcsd-db-snapshot-*.db")
	if err != nil {
		return 0, fmt.Errorf("creating temp file for db snapshot: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	if err := a.db.BackupTo(tmpPath); err != nil {
		return 0, err
	}
	if err := a.uploadMetadata(ctx, tmpPath, version); err != nil {
		return 0, err
	}
	a.logger.Info("database snapshot uploaded", "version", version)
	return version, nil
}

// uploadMetadata opens the snapshot file and uploads it to the vault as metadata.
func (a *App) uploadMetadata(ctx context.Context, path string, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening db snapshot for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat db snapshot: %w", err)
	}

	if err := a.vault.PutMetadata(ctx, MetadataDB, f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading metadata to vault: %w", err)
	}
	return nil
}

// Close finalizes the operation and closes all resources. Mutating operations
// snapshot the database to the vault first.
func (a *App) Close() error {
	var firstErr error

	if a.op.Mutating && a.db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		if _, err := a.Snapshot(ctx); err != nil {
			firstErr = fmt.Errorf("snapshotting database: %w", err)
		}
		cancel()
	}

	a.logger.Info("operation finished", "operation", a.op.Name, "status", a.op.Status,
		"duration", time.Since(a.op.StartedAt).Truncate(time.Millisecond))

	if err := a.closeResources(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (a *App) closeResources() error {
	var firstErr error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
		a.db = nil
	}
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
	return firstErr
}

