package config

import (
	"github.com/hupe1980/isvd"
	"github.com/hupe1980/isvd/linalg"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	if cfg.Source.Points == 0 {
		cfg.Source.Points = 1024
	}
	if cfg.Source.Steps == 0 {
		cfg.Source.Steps = 200
	}
	if cfg.Source.Dt == 0 {
		cfg.Source.Dt = 0.01
	}
	if cfg.Source.Length == 0 {
		cfg.Source.Length = 1
	}
	if cfg.Source.Velocity == 0 {
		cfg.Source.Velocity = 1
	}
	if cfg.Source.Width == 0 {
		cfg.Source.Width = 0.05
	}

	if cfg.Solver.Tolerance == 0 {
		cfg.Solver.Tolerance = isvd.DefaultRedundancyTolerance
	}
	if cfg.Solver.IncrementsPerInterval == 0 {
		cfg.Solver.IncrementsPerInterval = isvd.DefaultIncrementsPerInterval
	}
	if cfg.Solver.Variant == "" {
		cfg.Solver.Variant = isvd.Fast.String()
	}
	if cfg.Solver.SVD == "" {
		cfg.Solver.SVD = linalg.GolubKahan{}.Name()
	}
	if cfg.Solver.Reorthogonalization == "" {
		cfg.Solver.Reorthogonalization = isvd.ReorthAuto.String()
	}
	if cfg.Solver.OrthTolerance == 0 {
		cfg.Solver.OrthTolerance = isvd.DefaultOrthogonalityTolerance
	}
	if cfg.Solver.EnergyFraction == 0 {
		cfg.Solver.EnergyFraction = 0.9999
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendNone
	}
	if cfg.Storage.Base == "" {
		cfg.Storage.Base = "isvd"
	}
	if cfg.Storage.Compression == "" {
		cfg.Storage.Compression = "zstd"
	}
	if cfg.Storage.Concurrency == 0 {
		cfg.Storage.Concurrency = 4
	}
}
