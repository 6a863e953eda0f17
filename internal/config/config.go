// Package config loads the kindred configuration file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// EnvDataDir overrides data_dir when set.
const EnvDataDir = "KINDRED_DATA_DIR"

// SignalsFileName is the default signals file inside the data directory.
const SignalsFileName = "account.yaml"

// Config is the kindred configuration.
type Config struct {
	DataDir     string `yaml:"data_dir"     json:"data_dir"`
	PageSize    int    `yaml:"page_size"    json:"page_size"`
	Listen      string `yaml:"listen"       json:"listen"`
	LogLevel    string `yaml:"log_level"    json:"log_level"`
	SignalsFile string `yaml:"signals_file" json:"signals_file"`
	EventBuffer int    `yaml:"event_buffer" json:"event_buffer"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DataDir:     defaultDataDir(),
		PageSize:    200,
		Listen:      "127.0.0.1:8080",
		LogLevel:    "info",
		EventBuffer: 8,
	}
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".kindred"
	}
	return filepath.Join(dir, "kindred")
}

// Load reads path over the defaults, applies the environment override and
// validates the result. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("open config: %w", err)
		default:
			defer f.Close()
			if err := decode(f, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if dir := os.Getenv(EnvDataDir); dir != "" {
		cfg.DataDir = dir
	}
	if cfg.SignalsFile == "" {
		cfg.SignalsFile = filepath.Join(cfg.DataDir, SignalsFileName)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Error lists every schema violation of a configuration.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

// Validate checks cfg against the embedded CUE schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		var problems []string
		for _, e := range cueerrors.Errors(err) {
			problems = append(problems, strings.TrimSpace(cueerrors.Details(e, nil)))
		}
		return &Error{Problems: problems}
	}
	return nil
}

// SlogLevel maps log_level onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
