package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ClientConfig is the configuration of the naskah command line editor.
type ClientConfig struct {
	APIURL    string `toml:"api_url"`
	SessionDB string `toml:"session_db"` // sqlite file holding the logged-in user
	LogLevel  string `toml:"log_level"`
}

// NewClientConfig returns the defaults rooted at baseDir.
func NewClientConfig(baseDir string) *ClientConfig {
	return &ClientConfig{
		APIURL:    "http://localhost:3001",
		SessionDB: filepath.Join(baseDir, "session.db"),
		LogLevel:  "warn",
	}
}

// DefaultClientPaths returns the base directory and config file path for the current user.
func DefaultClientPaths() (baseDir, configPath string, err error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", "", fmt.Errorf("locating user config dir: %w", err)
	}
	baseDir = filepath.Join(dir, "naskah")
	return baseDir, filepath.Join(baseDir, "config.toml"), nil
}

// Manager handles reading and writing client configuration.
type Manager struct{}

// Read decodes a ClientConfig from the provided reader.
func (m *Manager) Read(r io.Reader) (*ClientConfig, error) {
	var cfg ClientConfig
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a ClientConfig to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *ClientConfig) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadClientConfig reads the config file at path. A missing file yields the defaults
// rooted next to it. NASKAH_API_URL overrides the configured API URL.
func ReadClientConfig(path string) (*ClientConfig, error) {
	cfg := NewClientConfig(filepath.Dir(path))

	f, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	default:
		defer f.Close()
		m := &Manager{}
		read, err := m.Read(f)
		if err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
		mergeClientConfig(cfg, read)
	}

	if v := env("NASKAH_API_URL", ""); v != "" {
		cfg.APIURL = v
	}
	return cfg, nil
}

// InitClientConfig writes cfg to path, refusing to overwrite an existing file.
func InitClientConfig(path string, cfg *ClientConfig) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

func mergeClientConfig(dst, src *ClientConfig) {
	if src.APIURL != "" {
		dst.APIURL = src.APIURL
	}
	if src.SessionDB != "" {
		dst.SessionDB = src.SessionDB
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
}
