// Package config loads the settings of the isvd command line driver.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendS3     = "s3"
	BackendMinio  = "minio"
)

// Config holds all settings of a run.
type Config struct {
	Workers     int           `yaml:"workers"`
	MetricsAddr string        `yaml:"metrics_addr"`
	Log         LogConfig     `yaml:"log"`
	Source      SourceConfig  `yaml:"source"`
	Solver      SolverConfig  `yaml:"solver"`
	Storage     StorageConfig `yaml:"storage"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SourceConfig describes the synthetic advection snapshot sequence.
type SourceConfig struct {
	Points   int     `yaml:"points"`
	Steps    int     `yaml:"steps"`
	Dt       float64 `yaml:"dt"`
	Length   float64 `yaml:"length"`
	Velocity float64 `yaml:"velocity"`
	Width    float64 `yaml:"width"`
}

// SolverConfig maps onto the isvd options.
type SolverConfig struct {
	Tolerance             float64 `yaml:"tolerance"`
	IncrementsPerInterval int     `yaml:"increments_per_interval"`
	Variant               string  `yaml:"variant"`
	SVD                   string  `yaml:"svd"`
	Reorthogonalization   string  `yaml:"reorthogonalization"`
	OrthTolerance         float64 `yaml:"orth_tolerance"`
	SkipRedundant         bool    `yaml:"skip_redundant"`
	TemporalBasis         *bool   `yaml:"temporal_basis"`
	EnergyFraction        float64 `yaml:"energy_fraction"`
}

// TemporalBasisOrDefault reports whether right singular vectors are kept;
// defaults to true when unset.
func (s *SolverConfig) TemporalBasisOrDefault() bool {
	if s.TemporalBasis != nil {
		return *s.TemporalBasis
	}
	return true
}

// StorageConfig selects where interval bases are persisted.
type StorageConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Base        string `yaml:"base"`
	Compression string `yaml:"compression"`
	RateLimit   int    `yaml:"rate_limit"`
	Concurrency int    `yaml:"concurrency"`

	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix"`
	Region        string `yaml:"region"`
	DynamoDBTable string `yaml:"dynamodb_table"`

	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Load reads a YAML config from path and applies defaults. Relative
// storage paths are resolved against the directory of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	if cfg.Storage.Path != "" {
		cfg.Storage.Path = expandPath(cfg.Storage.Path, filepath.Dir(path))
	}
	return &cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the config for values the driver cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.Source.Points < c.Workers {
		errs = append(errs, fmt.Errorf("source.points (%d) must be at least workers (%d)", c.Source.Points, c.Workers))
	}
	if c.Source.Steps <= 0 {
		errs = append(errs, fmt.Errorf("source.steps must be positive, got %d", c.Source.Steps))
	}
	if c.Source.Dt <= 0 {
		errs = append(errs, fmt.Errorf("source.dt must be positive, got %g", c.Source.Dt))
	}
	if c.Source.Length <= 0 || c.Source.Width <= 0 {
		errs = append(errs, errors.New("source.length and source.width must be positive"))
	}

	if c.Solver.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("solver.tolerance must be positive, got %g", c.Solver.Tolerance))
	}
	if c.Solver.IncrementsPerInterval <= 0 {
		errs = append(errs, fmt.Errorf("solver.increments_per_interval must be positive, got %d", c.Solver.IncrementsPerInterval))
	}
	switch c.Solver.Variant {
	case "fast", "naive":
	default:
		errs = append(errs, fmt.Errorf("unknown solver.variant %q", c.Solver.Variant))
	}
	switch c.Solver.SVD {
	case "golub-kahan", "jacobi":
	default:
		errs = append(errs, fmt.Errorf("unknown solver.svd %q", c.Solver.SVD))
	}
	switch c.Solver.Reorthogonalization {
	case "auto", "manual":
	default:
		errs = append(errs, fmt.Errorf("unknown solver.reorthogonalization %q", c.Solver.Reorthogonalization))
	}
	if c.Solver.EnergyFraction <= 0 || c.Solver.EnergyFraction > 1 {
		errs = append(errs, fmt.Errorf("solver.energy_fraction must be in (0, 1], got %g", c.Solver.EnergyFraction))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log.level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	errs = append(errs, c.Storage.validate()...)
	return errors.Join(errs...)
}

func (s *StorageConfig) validate() []error {
	var errs []error
	switch s.Backend {
	case BackendNone, BackendMemory:
	case BackendLocal:
		if s.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the local backend"))
		}
	case BackendS3:
		if s.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket is required for the s3 backend"))
		}
	case BackendMinio:
		if s.Bucket == "" || s.Endpoint == "" {
			errs = append(errs, errors.New("storage.bucket and storage.endpoint are required for the minio backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", s.Backend))
	}
	switch s.Compression {
	case "none", "lz4", "zstd":
	default:
		errs = append(errs, fmt.Errorf("unknown storage.compression %q", s.Compression))
	}
	if s.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("storage.rate_limit must not be negative, got %d", s.RateLimit))
	}
	return errs
}

// expandPath converts a path to absolute. Relative paths are relative to
// configDir; a leading "~/" is the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	return filepath.Join(configDir, path)
}
