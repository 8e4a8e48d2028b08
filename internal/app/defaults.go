package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables that override the default locations.
const (
	EnvConfigPath = "QVCS_CONFIG_PATH"
	EnvHome       = "QVCS_HOME"
)

// Paths are the locations qvcsd uses before a config file has been read.
type Paths struct {
	ConfigPath string // $QVCS_CONFIG_PATH or ~/.config/qvcsd.toml
	BaseDir    string // $QVCS_HOME or ~/.local/share/qvcsd
}

// LogDir is where log files go unless the config says otherwise.
func (p Paths) LogDir() string {
	return filepath.Join(p.BaseDir, "log")
}

// DefaultPaths resolves Paths from the environment and the home directory.
func DefaultPaths() (Paths, error) {
	p := Paths{
		ConfigPath: os.Getenv(EnvConfigPath),
		BaseDir:    os.Getenv(EnvHome),
	}
	if p.ConfigPath != "" && p.BaseDir != "" {
		return p, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("cannot determine home directory: %w", err)
	}
	if p.ConfigPath == "" {
		p.ConfigPath = filepath.Join(home, ".config", "qvcsd.toml")
	}
	if p.BaseDir == "" {
		p.BaseDir = filepath.Join(home, ".local", "share", "qvcsd")
	}
	return p, nil
}
