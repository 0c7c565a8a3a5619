// Package config handles configuration loading and validation for
// snapreview. Configuration is a TOML file; every field has a
// default so a missing file is not an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/BurntSushi/toml"

	"snapreview/internal/scanner"
)

// Config is the top-level configuration.
type Config struct {
	Grammar GrammarConfig `toml:"grammar"`
	Search  SearchConfig  `toml:"search"`
	Review  ReviewConfig  `toml:"review"`
	Watch   WatchConfig   `toml:"watch"`
	Logging LoggingConfig `toml:"logging"`
}

// GrammarConfig overrides the assertion-call grammar. Empty fields
// keep the built-in insta-style defaults.
type GrammarConfig struct {
	Head           string `toml:"head"`
	Named          string `toml:"named"`
	TestAnnotation string `toml:"test_annotation"`
	FuncDecl       string `toml:"func_decl"`
	TestPrefix     string `toml:"test_prefix"`
}

// SearchConfig controls snapshot file lookup.
type SearchConfig struct {
	SnapshotDir     string `toml:"snapshot_dir"`
	Extension       string `toml:"extension"`
	StrictAmbiguity bool   `toml:"strict_ambiguity"`
}

// ReviewConfig controls the review session.
type ReviewConfig struct {
	// Tool is the external reviewer command used for discovery and
	// accept/reject delegation.
	Tool         string   `toml:"tool"`
	ToolArgs     []string `toml:"tool_args"`
	ContextLines int      `toml:"context_lines"`
}

// WatchConfig controls the debounced rescan scheduler.
type WatchConfig struct {
	Enabled    bool `toml:"enabled"`
	DebounceMS int  `toml:"debounce_ms"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Grammar: GrammarConfig{
			TestPrefix: "test_",
		},
		Search: SearchConfig{
			SnapshotDir: "snapshots",
			Extension:   ".snap",
		},
		Review: ReviewConfig{
			Tool:         "cargo-insta",
			ContextLines: 4,
		},
		Watch: WatchConfig{
			DebounceMS: 250,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration from path, fills unset fields with
// defaults, applies environment overrides, and validates. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("loading config %s: %w", path, err)
			}
		}
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies SNAPREVIEW_* environment variables on top
// of the loaded file.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SNAPREVIEW_TOOL"); v != "" {
		c.Review.Tool = v
	}
	if v := os.Getenv("SNAPREVIEW_SNAPSHOT_DIR"); v != "" {
		c.Search.SnapshotDir = v
	}
	if v := os.Getenv("SNAPREVIEW_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SNAPREVIEW_STRICT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Search.StrictAmbiguity = b
		}
	}
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Logging.Format)
	}
	if c.Watch.DebounceMS <= 0 {
		return fmt.Errorf("watch debounce must be positive, got %d", c.Watch.DebounceMS)
	}
	if c.Review.ContextLines < 0 {
		return fmt.Errorf("context lines must not be negative, got %d", c.Review.ContextLines)
	}
	if c.Review.Tool == "" {
		return errors.New("review tool must not be empty")
	}
	if _, err := c.ScannerGrammar(); err != nil {
		return err
	}
	return nil
}

// ScannerGrammar builds the scanner grammar, compiling any pattern
// overrides from the grammar section.
func (c *Config) ScannerGrammar() (scanner.Grammar, error) {
	g := scanner.DefaultGrammar()
	if c.Grammar.TestPrefix != "" {
		g.TestPrefix = c.Grammar.TestPrefix
	}

	compile := func(name, pattern string, dst **regexp.Regexp) error {
		if pattern == "" {
			return nil
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("grammar.%s: %w", name, err)
		}
		*dst = re
		return nil
	}
	if err := compile("head", c.Grammar.Head, &g.Head); err != nil {
		return scanner.Grammar{}, err
	}
	if err := compile("named", c.Grammar.Named, &g.Named); err != nil {
		return scanner.Grammar{}, err
	}
	if err := compile("test_annotation", c.Grammar.TestAnnotation, &g.TestAnnotation); err != nil {
		return scanner.Grammar{}, err
	}
	if err := compile("func_decl", c.Grammar.FuncDecl, &g.FuncDecl); err != nil {
		return scanner.Grammar{}, err
	}
	return g, nil
}
