package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qvcs-go/internal/app"
	"qvcs-go/internal/config"
	"qvcs-go/internal/database"
	"qvcs-go/internal/database/migrations"
	"qvcs-go/internal/encryption"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func readConfig() (*config.Config, error) {
	paths, err := app.DefaultPaths()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(paths.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// Mutating operations snapshot the database to the vault on Close.
func newApp(ctx context.Context, operation string, mutating bool) (*app.App, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, cfg, app.NewOperation(operation, mutating, time.Now()), app.Options{})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "qvcsd",
	Short:        "Branch-based source control server",
	SilenceUsage: true,
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept client sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "Serve", true)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Serve(ctx)
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		serverID := uuid.New().String()
		cfg := config.NewConfig(serverID, paths.BaseDir)

		if err := config.Init(paths.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", paths.ConfigPath)
		fmt.Printf("Server ID: %s\n", serverID)
		fmt.Printf("Base Dir:  %s\n", paths.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(paths.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", paths.ConfigPath)
		fmt.Printf("Server ID:  %s\n", cfg.ServerID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Listen:     %s\n", cfg.Listen)
		fmt.Printf("Database:   %s\n", cfg.Database.Type)
		fmt.Printf("Vault:      %s (%s)\n", cfg.Vault.Type, cfg.Vault.Name)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		fmt.Printf("Auth:       %s\n", cfg.Auth.Type)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage content encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the age key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		if cfg.Encryption.Type != "age" {
			return fmt.Errorf("encryption.type is %q, keys are only used with \"age\"", cfg.Encryption.Type)
		}

		passphrase, err := app.ReadNewPassphrase()
		if err != nil {
			return err
		}
		if err := encryption.NewAgeEncryptor(cfg.Encryption).Setup(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the repository database",
}

// openDatabase opens the configured database without applying migrations.
func openDatabase() (*database.SQLiteDatabase, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}
	dbCfg := cfg.Database
	dbCfg.AutoMigrate = false
	return database.NewDatabaseFromConfig(dbCfg, cfg.ServerID)
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.MigrateUp(); err != nil {
			return err
		}
		version, _, err := db.SchemaVersion()
		if err != nil {
			return err
		}
		fmt.Printf("Database %s at schema version %d\n", db.Path(), version)
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		latest, err := migrations.LatestVersion()
		if err != nil {
			return err
		}
		version, dirty, err := db.SchemaVersion()
		switch {
		case errors.Is(err, migrations.ErrNoSchema):
			fmt.Printf("Database %s has no schema (latest %d)\n", db.Path(), latest)
			return nil
		case err != nil:
			return err
		}

		state := "up to date"
		switch {
		case dirty:
			state = "dirty"
		case version < latest:
			state = fmt.Sprintf("%d migration(s) pending", latest-version)
		case version > latest:
			state = "newer than this binary"
		}
		fmt.Printf("Database %s at schema version %d (latest %d): %s\n", db.Path(), version, latest, state)
		return nil
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload a database snapshot to the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Snapshot", false)
		if err != nil {
			return err
		}
		defer a.Close()

		version, err := a.Snapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("snapshot failed: %w", err)
		}
		fmt.Printf("Uploaded snapshot at commit %d\n", version)
		return nil
	},
}

// admin command
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administer projects, branches and tokens",
}

var adminProjectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var adminProjectCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a project with its trunk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "CreateProject", true)
		if err != nil {
			return err
		}
		defer a.Close()

		project, err := a.CreateProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Created project %s (#%d)\n", project.Name, project.ID)
		return nil
	},
}

var adminBranchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Manage branches",
}

var adminBranchCreateCmd = &cobra.Command{
	Use:   "create PROJECT BRANCH",
	Short: "Create a feature branch",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, _ := cmd.Flags().GetString("parent")

		a, err := newApp(cmd.Context(), "CreateBranch", true)
		if err != nil {
			return err
		}
		defer a.Close()

		branch, err := a.CreateBranch(cmd.Context(), args[0], args[1], parent)
		if err != nil {
			return err
		}
		fmt.Printf("Created branch %s (#%d)\n", branch.Name, branch.ID)
		return nil
	},
}

var adminBranchListCmd = &cobra.Command{
	Use:   "list PROJECT",
	Short: "List the branches of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListBranches", false)
		if err != nil {
			return err
		}
		defer a.Close()

		branches, err := a.ListBranches(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		names := make(map[int64]string, len(branches))
		for _, b := range branches {
			names[b.ID] = b.Name
		}
		for _, b := range branches {
			parent := "-"
			if !b.IsTrunk() {
				parent = names[*b.ParentBranchID]
			}
			fmt.Printf("#%-4d  %-20s  parent:%-20s  %s\n",
				b.ID, b.Name, parent, b.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var adminTokenCmd = &cobra.Command{
	Use:   "token USER",
	Short: "Issue a session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "IssueToken", false)
		if err != nil {
			return err
		}
		defer a.Close()

		token, err := a.IssueToken(args[0])
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	keysCmd.AddCommand(keysInitCmd)

	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbBackupCmd)

	adminProjectCmd.AddCommand(adminProjectCreateCmd)
	adminBranchCmd.AddCommand(adminBranchCreateCmd)
	adminBranchCmd.AddCommand(adminBranchListCmd)
	adminBranchCreateCmd.Flags().StringP("parent", "p", "", "Parent branch (default: the trunk)")
	adminCmd.AddCommand(adminProjectCmd)
	adminCmd.AddCommand(adminBranchCmd)
	adminCmd.AddCommand(adminTokenCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(adminCmd)
}
