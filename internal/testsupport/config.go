package testsupport

import (
	"path/filepath"
	"testing"

	"biomtype/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Storage.FSRoot = filepath.Join(base, "archive")
	cfgVal.Qiita.ClientID = "test-client"
	cfgVal.Qiita.ClientSecret = "test-secret"
	cfgVal.Validation.GeneratedBy = "biomtype tests"
	cfgVal.Validation.LockTimeoutSeconds = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithQiitaURL points the test config at a fake Qiita server.
func WithQiitaURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Qiita.URL = url
	}
}

// WithStorageDriver selects the archive driver.
func WithStorageDriver(driver string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.Driver = driver
	}
}

// WithMetricsTextfile enables textfile metrics under the temp directory.
func WithMetricsTextfile() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metrics.Textfile = filepath.Join(b.baseDir, "metrics", "biomtype.prom")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
