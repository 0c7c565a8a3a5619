package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, "snapshots", cfg.Search.SnapshotDir)
	assert.Equal(t, ".snap", cfg.Search.Extension)
	assert.Equal(t, "cargo-insta", cfg.Review.Tool)
	assert.Equal(t, 250, cfg.Watch.DebounceMS)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Search.StrictAmbiguity)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapreview.toml")
	content := `
[search]
snapshot_dir = "golden"
strict_ambiguity = true

[review]
tool = "my-reviewer"
context_lines = 8

[logging]
level = "debug"
format = "json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "golden", cfg.Search.SnapshotDir)
	assert.True(t, cfg.Search.StrictAmbiguity)
	assert.Equal(t, "my-reviewer", cfg.Review.Tool)
	assert.Equal(t, 8, cfg.Review.ContextLines)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Unset sections keep defaults.
	assert.Equal(t, ".snap", cfg.Search.Extension)
	assert.Equal(t, 250, cfg.Watch.DebounceMS)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SNAPREVIEW_TOOL", "env-tool")
	t.Setenv("SNAPREVIEW_STRICT", "true")
	t.Setenv("SNAPREVIEW_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-tool", cfg.Review.Tool)
	assert.True(t, cfg.Search.StrictAmbiguity)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"zero debounce", func(c *Config) { c.Watch.DebounceMS = 0 }},
		{"empty tool", func(c *Config) { c.Review.Tool = "" }},
		{"negative context", func(c *Config) { c.Review.ContextLines = -1 }},
		{"bad grammar pattern", func(c *Config) { c.Grammar.Head = "(" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestScannerGrammar_Overrides(t *testing.T) {
	cfg := Default()
	cfg.Grammar.Head = `\bsnapshot\s*\(`
	cfg.Grammar.TestPrefix = "check_"

	g, err := cfg.ScannerGrammar()
	require.NoError(t, err)
	assert.Equal(t, "check_", g.TestPrefix)
	assert.True(t, g.Head.MatchString("    snapshot(value)"))
}
