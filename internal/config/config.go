// Package config loads the TOML configuration an engine.Open call needs:
// data directory, on-disk page sizing, and the lock/checkpoint timers —
// ambient surface explicitly out of scope for the storage/execution core
// itself (spec §1: "Configuration loading ... the CLI entry points"), but
// still carried the way the teacher loads its own TOML schema files.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the engine-open configuration document.
type Config struct {
	DataDir          string        `toml:"data_dir"`
	SectorSize       int           `toml:"sector_size"`
	IndexBlockSize   int           `toml:"index_block_size"`
	LockTimeout      duration      `toml:"lock_timeout"`
	CheckpointPeriod duration      `toml:"checkpoint_period"`
}

// duration wraps time.Duration so it can decode from a TOML string like
// "30s" rather than forcing callers to write raw nanosecond integers.
type duration struct{ time.Duration }

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// Defaults returns the configuration used when no file is supplied.
func Defaults() Config {
	return Config{
		DataDir:          "./data",
		SectorSize:       4096,
		IndexBlockSize:   4096,
		LockTimeout:       duration{30 * time.Second},
		CheckpointPeriod:  duration{60 * time.Second},
	}
}

// Load reads and decodes a TOML config file at path, starting from
// Defaults() so a partial file only overrides what it sets.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a TOML document from r, starting from Defaults().
func Parse(r io.Reader) (Config, error) {
	cfg := Defaults()
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.SectorSize <= 0 {
		return fmt.Errorf("config: sector_size must be positive, got %d", c.SectorSize)
	}
	if c.IndexBlockSize <= 0 {
		return fmt.Errorf("config: index_block_size must be positive, got %d", c.IndexBlockSize)
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	return nil
}

// LockTimeoutDuration returns the configured lock timeout as a time.Duration.
func (c Config) LockTimeoutDuration() time.Duration { return c.LockTimeout.Duration }

// CheckpointPeriodDuration returns the configured checkpoint period.
func (c Config) CheckpointPeriodDuration() time.Duration { return c.CheckpointPeriod.Duration }
