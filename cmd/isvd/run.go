package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/hupe1980/isvd"
	"github.com/hupe1980/isvd/blobstore"
	"github.com/hupe1980/isvd/collective"
	"github.com/hupe1980/isvd/internal/config"
	"github.com/hupe1980/isvd/linalg"
	"github.com/hupe1980/isvd/persistence"
	"github.com/hupe1980/isvd/prommetrics"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Decompose a simulated advection snapshot stream",
		Long: `Run streams snapshots of a Gaussian pulse advected on a periodic grid
through an incremental SVD shared by in-process workers. Each worker owns a
block of grid points. The command reports the time intervals with their
ranks and leading singular values, and persists the interval bases when a
storage backend is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadRunConfig(cmd)
			if err != nil {
				return err
			}
			hold, err := cmd.Flags().GetDuration("hold")
			if err != nil {
				return err
			}
			return runCommand(cmd.Context(), cmd.OutOrStdout(), cfg, hold)
		},
	}

	fs := cmd.Flags()
	fs.Int("workers", 0, "number of in-process workers")
	fs.Int("points", 0, "grid points per snapshot")
	fs.Int("steps", 0, "number of snapshots")
	fs.Float64("dt", 0, "time step between snapshots")
	fs.Float64("velocity", 0, "advection velocity")
	fs.Float64("width", 0, "pulse width")
	fs.Float64("tolerance", 0, "redundancy tolerance")
	fs.Int("increments-per-interval", 0, "basis rank cap of a time interval")
	fs.String("variant", "", "update variant (fast, naive)")
	fs.String("svd", "", "small SVD solver (golub-kahan, jacobi)")
	fs.String("reorth", "", "reorthogonalization policy (auto, manual)")
	fs.Bool("skip-redundant", false, "drop redundant samples instead of rotating the basis")
	fs.Float64("energy-fraction", 0, "energy fraction used to report a truncation rank")
	fs.String("compression", "", "basis compression (none, lz4, zstd)")
	fs.Int("rate-limit", 0, "upload limit in bytes per second (0 = unlimited)")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	fs.Duration("hold", 0, "keep the metrics endpoint up this long after the run")
	return cmd
}

func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	fs := cmd.Flags()
	for _, err := range []error{
		override(cmd, "workers", fs.GetInt, &cfg.Workers),
		override(cmd, "points", fs.GetInt, &cfg.Source.Points),
		override(cmd, "steps", fs.GetInt, &cfg.Source.Steps),
		override(cmd, "dt", fs.GetFloat64, &cfg.Source.Dt),
		override(cmd, "velocity", fs.GetFloat64, &cfg.Source.Velocity),
		override(cmd, "width", fs.GetFloat64, &cfg.Source.Width),
		override(cmd, "tolerance", fs.GetFloat64, &cfg.Solver.Tolerance),
		override(cmd, "increments-per-interval", fs.GetInt, &cfg.Solver.IncrementsPerInterval),
		override(cmd, "variant", fs.GetString, &cfg.Solver.Variant),
		override(cmd, "svd", fs.GetString, &cfg.Solver.SVD),
		override(cmd, "reorth", fs.GetString, &cfg.Solver.Reorthogonalization),
		override(cmd, "skip-redundant", fs.GetBool, &cfg.Solver.SkipRedundant),
		override(cmd, "energy-fraction", fs.GetFloat64, &cfg.Solver.EnergyFraction),
		override(cmd, "compression", fs.GetString, &cfg.Storage.Compression),
		override(cmd, "rate-limit", fs.GetInt, &cfg.Storage.RateLimit),
		override(cmd, "metrics-addr", fs.GetString, &cfg.MetricsAddr),
	} {
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runCommand(ctx context.Context, out io.Writer, cfg *config.Config, hold time.Duration) error {
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	var mc isvd.MetricsCollector
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		c, err := prommetrics.NewCollector(reg)
		if err != nil {
			return err
		}
		mc = c

		stop := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer func() {
			if hold > 0 {
				select {
				case <-time.After(hold):
				case <-ctx.Done():
				}
			}
			stop()
		}()
	}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	rep, err := decompose(ctx, cfg, store, logger, mc)
	if err != nil {
		return err
	}
	return rep.write(out)
}

// serveMetrics exposes reg over HTTP and returns a function that shuts the
// server down.
func serveMetrics(addr string, reg *prometheus.Registry, logger *isvd.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func solverOptions(cfg config.SolverConfig) []isvd.Option {
	variant := isvd.Fast
	if cfg.Variant == isvd.Naive.String() {
		variant = isvd.Naive
	}
	var solver linalg.SVDSolver = linalg.GolubKahan{}
	if cfg.SVD == (linalg.Jacobi{}).Name() {
		solver = linalg.Jacobi{}
	}
	reorth := isvd.ReorthAuto
	if cfg.Reorthogonalization == isvd.ReorthManual.String() {
		reorth = isvd.ReorthManual
	}
	return []isvd.Option{
		isvd.WithRedundancyTolerance(cfg.Tolerance),
		isvd.WithIncrementsPerInterval(cfg.IncrementsPerInterval),
		isvd.WithVariant(variant),
		isvd.WithSVDSolver(solver),
		isvd.WithReorthogonalization(reorth),
		isvd.WithOrthogonalityTolerance(cfg.OrthTolerance),
		isvd.WithSkipRedundant(cfg.SkipRedundant),
		isvd.WithTemporalBasis(cfg.TemporalBasisOrDefault()),
	}
}

// report summarizes a finished run as seen by rank 0.
type report struct {
	Workers        int
	Points         int
	Steps          int
	EnergyFraction float64
	Outcomes       map[isvd.Outcome]int
	Dropped        int
	Deviation      float64
	Repaired       bool
	Intervals      []intervalSummary
	Manifest       *persistence.Manifest
}

type intervalSummary struct {
	Index          int
	Start          float64
	Rank           int
	Samples        int
	Closed         bool
	EnergyRank     int
	SingularValues []float64
}

// decompose runs the stream on cfg.Workers in-process ranks. A nil store
// skips persistence; a nil mc records no metrics.
func decompose(ctx context.Context, cfg *config.Config, store blobstore.BlobStore, logger *isvd.Logger, mc isvd.MetricsCollector) (*report, error) {
	src := newAdvection(cfg.Source)

	rep := &report{
		Workers:        cfg.Workers,
		Points:         cfg.Source.Points,
		Steps:          cfg.Source.Steps,
		EnergyFraction: cfg.Solver.EnergyFraction,
	}
	var mu sync.Mutex

	err := collective.Run(ctx, cfg.Workers, func(ctx context.Context, comm collective.Communicator) error {
		rank := comm.Rank()
		lo, hi := collective.Partition(cfg.Source.Points, comm.Size(), rank)
		wlog := logger.WithRank(rank)

		// Every rank sees the same outcomes; only rank 0 records them.
		var metrics isvd.MetricsCollector = isvd.NoopMetricsCollector{}
		if rank == 0 && mc != nil {
			metrics = mc
		}

		inc, err := isvd.New(hi-lo, append(solverOptions(cfg.Solver),
			isvd.WithCommunicator(comm),
			isvd.WithLogger(wlog),
			isvd.WithMetricsCollector(metrics),
		)...)
		if err != nil {
			return err
		}

		outcomes := make(map[isvd.Outcome]int)
		dropped := 0
		for step := range cfg.Source.Steps {
			t := src.time(step)
			res, err := inc.Increment(ctx, src.snapshot(t, lo, hi), t)
			var ne *isvd.NumericalError
			switch {
			case errors.As(err, &ne):
				dropped++
				continue
			case err != nil:
				return err
			}
			outcomes[res.Outcome]++
		}

		dev, repaired, err := finalOrthogonality(ctx, inc, cfg.Solver)
		if err != nil {
			return err
		}

		var manifest *persistence.Manifest
		if store != nil {
			if manifest, err = persist(ctx, comm, inc, store, cfg.Storage, wlog); err != nil {
				return err
			}
		}

		if rank != 0 {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		rep.Outcomes = outcomes
		rep.Dropped = dropped
		rep.Deviation = dev
		rep.Repaired = repaired
		rep.Manifest = manifest
		for _, iv := range inc.Intervals() {
			sv := iv.SingularValues()
			rep.Intervals = append(rep.Intervals, intervalSummary{
				Index:          iv.Index(),
				Start:          iv.StartTime(),
				Rank:           iv.Rank(),
				Samples:        iv.Samples(),
				Closed:         iv.Closed(),
				EnergyRank:     energyRank(sv, cfg.Solver.EnergyFraction),
				SingularValues: sv,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// finalOrthogonality measures the current basis and, under the manual
// policy, repairs it when it drifted beyond the tolerance.
func finalOrthogonality(ctx context.Context, inc *isvd.Incremental, cfg config.SolverConfig) (float64, bool, error) {
	dev, err := inc.CheckOrthogonality(ctx)
	if errors.Is(err, isvd.ErrNoInterval) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if cfg.Reorthogonalization != isvd.ReorthManual.String() || dev <= cfg.OrthTolerance {
		return dev, false, nil
	}
	if err := inc.ReOrthogonalize(ctx); err != nil {
		return dev, false, err
	}
	dev, err = inc.CheckOrthogonality(ctx)
	return dev, true, err
}

// persist writes the intervals of one rank and, once every rank is done,
// commits the manifest from rank 0.
func persist(ctx context.Context, comm collective.Communicator, inc *isvd.Incremental, store blobstore.BlobStore, cfg config.StorageConfig, logger *isvd.Logger) (*persistence.Manifest, error) {
	c, err := persistence.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	w, err := persistence.NewWriter(store, cfg.Base, comm.Rank(),
		persistence.WithRanks(comm.Size()),
		persistence.WithCompression(c),
		persistence.WithRateLimit(cfg.RateLimit),
		persistence.WithConcurrency(cfg.Concurrency),
		persistence.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	if _, err := w.WriteAll(ctx, inc); err != nil {
		return nil, err
	}
	if err := comm.Barrier(ctx); err != nil {
		return nil, err
	}
	if comm.Rank() != 0 {
		return nil, nil
	}
	return w.Commit(ctx)
}

// energyRank returns the smallest r whose leading singular values hold at
// least fraction of the total energy Σσ².
func energyRank(sv []float64, fraction float64) int {
	total := floats.Dot(sv, sv)
	if total == 0 {
		return 0
	}
	var acc float64
	for i, s := range sv {
		acc += s * s
		if acc >= fraction*total {
			return i + 1
		}
	}
	return len(sv)
}

const maxPrintedValues = 4

func (r *report) write(out io.Writer) error {
	fmt.Fprintf(out, "workers=%d points=%d steps=%d\n", r.Workers, r.Points, r.Steps)
	fmt.Fprintf(out, "outcomes: initial=%d new=%d redundant=%d skipped=%d dropped=%d\n",
		r.Outcomes[isvd.OutcomeInitial], r.Outcomes[isvd.OutcomeNew],
		r.Outcomes[isvd.OutcomeRedundant], r.Outcomes[isvd.OutcomeSkipped], r.Dropped)
	fmt.Fprintf(out, "orthogonality deviation: %.3e", r.Deviation)
	if r.Repaired {
		fmt.Fprint(out, " (repaired)")
	}
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "INTERVAL\tSTART\tRANK\tSAMPLES\tCLOSED\tRANK@%g\tSINGULAR VALUES\n", r.EnergyFraction)
	for _, iv := range r.Intervals {
		fmt.Fprintf(tw, "%d\t%g\t%d\t%d\t%t\t%d\t%s\n",
			iv.Index, iv.Start, iv.Rank, iv.Samples, iv.Closed, iv.EnergyRank, formatValues(iv.SingularValues))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if r.Manifest != nil {
		_, err := fmt.Fprintf(out, "committed manifest %d under %q (%d intervals, %s)\n",
			r.Manifest.ID, r.Manifest.Base, len(r.Manifest.Intervals), r.Manifest.Compression)
		return err
	}
	return nil
}

func formatValues(sv []float64) string {
	s := ""
	for i, v := range sv {
		if i == maxPrintedValues {
			return s + " ..."
		}
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%.4g", v)
	}
	return s
}
