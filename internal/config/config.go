package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains working and state directory configuration.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
}

// Qiita contains connection settings for the Qiita REST API.
type Qiita struct {
	URL            string `toml:"url"`
	ClientID       string `toml:"client_id"`
	ClientSecret   string `toml:"client_secret"`
	ServerCert     string `toml:"server_cert"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Validation contains settings for the table validation workflow.
type Validation struct {
	GeneratedBy        string `toml:"generated_by"`
	LockTimeoutSeconds int    `toml:"lock_timeout_seconds"`
}

// Storage selects where corrected tables are archived.
type Storage struct {
	Driver         string `toml:"driver"`
	FSRoot         string `toml:"fs_root"`
	S3Bucket       string `toml:"s3_bucket"`
	S3Region       string `toml:"s3_region"`
	S3Endpoint     string `toml:"s3_endpoint"`
	S3Prefix       string `toml:"s3_prefix"`
	S3AccessKey    string `toml:"s3_access_key"`
	S3SecretKey    string `toml:"s3_secret_key"`
	S3UsePathStyle bool   `toml:"s3_use_path_style"`
}

// Metrics contains Prometheus textfile settings.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for biomtype.
//
// Configuration sections by subsystem:
//   - Paths: job working directory, logs and the job ledger
//   - Qiita: REST endpoint and client credentials
//   - Validation: generated_by stamp and output lock timeout
//   - Storage: optional archive of corrected tables (fs, s3, memory)
//   - Metrics: node-exporter textfile output
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Qiita      Qiita      `toml:"qiita"`
	Validation Validation `toml:"validation"`
	Storage    Storage    `toml:"storage"`
	Metrics    Metrics    `toml:"metrics"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv(envConfigPath))
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("biomtype.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the working, log and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Storage.Driver == StorageFS && strings.TrimSpace(c.Storage.FSRoot) != "" {
		if err := os.MkdirAll(c.Storage.FSRoot, 0o755); err != nil {
			return fmt.Errorf("create archive directory %q: %w", c.Storage.FSRoot, err)
		}
	}
	return nil
}

// LedgerPath returns the SQLite job ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "biomtype.db")
}

// LockPath returns the lock file guarding ledger maintenance.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "biomtype.lock")
}

// QiitaTimeout returns the per-request timeout for Qiita calls.
func (c *Config) QiitaTimeout() time.Duration {
	return time.Duration(c.Qiita.TimeoutSeconds) * time.Second
}

// LockTimeout returns how long a run waits for the output directory lock.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Validation.LockTimeoutSeconds) * time.Second
}

// RequireQiita reports whether the Qiita section is complete enough to talk to
// a server. Only commands that contact Qiita call it.
func (c *Config) RequireQiita() error {
	if strings.TrimSpace(c.Qiita.URL) == "" {
		return errors.New("qiita.url must be set")
	}
	if c.Qiita.ClientID == "" || c.Qiita.ClientSecret == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("qiita.client_id and qiita.client_secret are required. Set QIITA_CLIENT_ID/QIITA_CLIENT_SECRET or edit %s (create with 'biomtype config init')", defaultPath)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
