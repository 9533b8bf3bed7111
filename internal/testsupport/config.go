package testsupport

import (
	"path/filepath"
	"testing"

	"ddexer/internal/config"
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
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Workflow.PollInterval = 1
	cfgVal.Workflow.PublishInterval = 1
	cfgVal.Workflow.IdleInterval = 1
	cfgVal.Workflow.ErrorRetryInterval = 1

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

// WithSource appends a delivery source. A source without S3 bucket and
// local dir gets a local dir under the temp base.
func WithSource(src config.Source) ConfigOption {
	return func(b *configBuilder) {
		if src.LocalDir == "" && !src.S3.Enabled() {
			src.LocalDir = filepath.Join(b.baseDir, "deliveries", src.Name)
		}
		if src.SDK.APIKey == "" {
			src.SDK.APIKey = src.Name + "-key"
		}
		b.cfg.Sources = append(b.cfg.Sources, src)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
