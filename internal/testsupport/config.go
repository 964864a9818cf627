package testsupport

import (
	"path/filepath"
	"testing"

	"majdl/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Memoization and raw dumps stay disabled unless an option enables them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "records")
	cfgVal.Paths.SessionFile = filepath.Join(base, "session.json")
	cfgVal.Paths.SchemaFile = filepath.Join(base, "liqi.json")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithMemoizeFile enables the memoization ledger inside the temp tree.
func WithMemoizeFile() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.MemoizeFile = filepath.Join(b.baseDir, "memoized.txt")
	}
}

// WithRawDir enables raw protobuf dumps inside the temp tree.
func WithRawDir() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.RawDir = filepath.Join(b.baseDir, "raw")
	}
}

// WithPageSize overrides download.page_size.
func WithPageSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.PageSize = size
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
