package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for qvcsd.
type Config struct {
	ServerID   string           `toml:"server_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	LogLevel   string           `toml:"log_level"` // "debug", "info" (default), "warn", "error"
	Listen     string           `toml:"listen"`
	Database   DatabaseConfig   `toml:"database"`
	Vault      VaultConfig      `toml:"vault"`
	Encryption EncryptionConfig `toml:"encryption"`
	Auth       AuthConfig       `toml:"auth"`
	Server     ServerConfig     `toml:"server"`
}

// EncryptionConfig holds paths to the age key pair used to encrypt revision
// content at rest.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// VaultConfig represents configuration for the content vault.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // S3-compatible stores such as MinIO

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// DatabaseConfig represents configuration for the repository database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
	// AutoMigrate applies pending migrations at server start instead of
	// refusing to start.
	AutoMigrate bool `toml:"auto_migrate"`
}

// AuthConfig selects how sessions authenticate and what each user may do.
type AuthConfig struct {
	Type     string        `toml:"type"` // "none" (default) or "jwt"
	Issuer   string        `toml:"issuer,omitempty"`
	Secret   string        `toml:"secret,omitempty"` // HMAC key; QVCS_JWT_SECRET overrides it
	TokenTTL time.Duration `toml:"token_ttl,omitempty"`
	Roles    []RoleConfig  `toml:"roles,omitempty"`
}

// RoleConfig grants a role to a user on a project. Project "*" matches every project.
type RoleConfig struct {
	User    string `toml:"user"`
	Project string `toml:"project"`
	Role    string `toml:"role"` // "reader", "writer" or "admin"
}

// ServerConfig tunes the websocket transport.
type ServerConfig struct {
	WriteTimeout   time.Duration `toml:"write_timeout,omitempty"`
	ReadLimit      int64         `toml:"read_limit,omitempty"` // max request size in bytes
	MetricsEnabled bool          `toml:"metrics_enabled"`
}

// Defaults applied by NewConfig and by the app when a field is left empty.
const (
	DefaultListen       = "127.0.0.1:9889"
	DefaultWriteTimeout = 10 * time.Second
	DefaultReadLimit    = 32 << 20
	DefaultTokenTTL     = 24 * time.Hour
)

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(serverID, baseDir string) *Config {
	return &Config{
		ServerID: serverID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Listen:   DefaultListen,
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Vault: VaultConfig{
			Type:        "filesystem",
			Name:        "local",
			FSVaultRoot: filepath.Join(baseDir, "vault"),
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "qvcsd.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "qvcsd.key"),
		},
		Auth: AuthConfig{
			Type:     "none",
			Issuer:   "qvcsd",
			TokenTTL: DefaultTokenTTL,
		},
		Server: ServerConfig{
			WriteTimeout:   DefaultWriteTimeout,
			ReadLimit:      DefaultReadLimit,
			MetricsEnabled: true,
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path. The file may hold
// the JWT secret, so it is created owner-only.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
