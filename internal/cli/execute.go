package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"cfdbatch/internal/config"
	"cfdbatch/internal/logging"
	"cfdbatch/internal/report"
	"cfdbatch/internal/slot"
	"cfdbatch/internal/solver"
	"cfdbatch/internal/trace"
	"cfdbatch/internal/wave"
)

// Result is the outcome of one engine run.
//
// Per-job failures do not show up here: they are folded into the report and
// the exit code stays ExitSuccess. Only engine-level failures change it.
type Result struct {
	ExitCode int
	Report   *report.FinalReport
}

// Execute runs a canonical invocation, writing the final summary to stdout.
func Execute(ctx context.Context, inv Invocation) (Result, error) {
	return ExecuteWithOutput(ctx, inv, os.Stdout)
}

// ExecuteWithOutput maps a canonical Invocation to engine execution.
//
// Responsibilities:
//   - Load and validate the config before any wave starts; a config error
//     aborts the whole batch with ExitConfigError.
//   - Create the per-run log directory and, when configured, the run trace.
//   - Drive the wave scheduler to completion or interruption.
//   - Aggregate outcomes into the final report regardless of how the run
//     ended, so every item is accounted for even on interruption.
//   - Translate engine outcomes to semantic exit codes.
func ExecuteWithOutput(ctx context.Context, inv Invocation, stdout io.Writer) (res Result, execErr error) {
	res.ExitCode = ExitInternalError

	cfg, err := config.Load(inv.ConfigPath)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}
	canonicalizePaths(cfg, inv)

	log := logging.New(cfg.Logging)
	defer log.Sync()

	family, err := solver.NewFamily(cfg.Solver)
	if err != nil {
		res.ExitCode = configExitCode(err)
		return res, err
	}

	// Both were validated with the config; failure here is an engine bug.
	width, err := slot.Width(cfg.Slots, cfg.SlotsPerJob)
	if err != nil {
		return res, err
	}
	pool, err := slot.NewPool(cfg.Slots)
	if err != nil {
		return res, err
	}

	runID := "run-" + xid.New().String()
	runDir := filepath.Join(cfg.LogDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		res.ExitCode = ExitConfigError
		return res, fmt.Errorf("creating run log directory: %w", err)
	}

	var sink trace.Sink = trace.NopSink{}
	if cfg.Trace != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Trace), 0o755); err != nil {
			res.ExitCode = ExitConfigError
			return res, fmt.Errorf("creating trace directory: %w", err)
		}
		fileSink, err := trace.NewFileSink(cfg.Trace)
		if err != nil {
			res.ExitCode = ExitConfigError
			return res, fmt.Errorf("creating run trace: %w", err)
		}
		defer fileSink.Close()
		sink = fileSink
	}

	started := time.Now()
	trace.SafeRecord(sink, trace.Event{Kind: trace.EventRunStarted, Time: started, RunID: runID})
	log.Info("run started",
		zap.String("run_id", runID),
		zap.Int("cases", len(cfg.Cases)),
		zap.Int("slots", cfg.Slots),
		zap.Int("slots_per_job", cfg.SlotsPerJob),
		zap.Int("wave_width", width),
		zap.String("log_dir", runDir))

	defer func() {
		if r := recover(); r != nil {
			res.ExitCode = ExitInternalError
			res.Report = nil
			execErr = fmt.Errorf("panic: %v", r)
		}
	}()

	sched := &wave.Scheduler{
		Runner: &wave.Runner{
			Family:      family,
			Pool:        pool,
			SlotsPerJob: cfg.SlotsPerJob,
			LogDir:      runDir,
			PinCores:    cfg.Solver.PinCores,
			Log:         log,
		},
		Width: width,
		Log:   log,
		Trace: sink,
	}

	outcomes, runErr := sched.Run(ctx, cfg.Cases)
	if runErr != nil && outcomes == nil {
		return res, runErr
	}

	agg := report.NewAggregator(runID, started)
	for _, out := range outcomes {
		if err := agg.Add(out); err != nil {
			return res, err
		}
	}
	rep := agg.Finalize(cfg.Cases)
	res.Report = &rep

	// The summary is written even on interruption so partial runs remain
	// auditable. A failed write is logged, not fatal.
	if path, err := rep.WriteFile(runDir); err != nil {
		log.Warn("writing summary failed", zap.Error(err))
	} else {
		log.Info("summary written", zap.String("path", path))
	}
	if err := rep.Render(stdout); err != nil {
		log.Warn("rendering summary failed", zap.Error(err))
	}

	trace.SafeRecord(sink, trace.Event{Kind: trace.EventRunFinished, Time: time.Now(), RunID: runID})
	log.Info("run finished",
		zap.String("run_id", runID),
		zap.Int("completed", rep.Completed),
		zap.Int("failed", rep.Failed),
		zap.Int("not_run", rep.NotRun))

	if runErr != nil {
		res.ExitCode = ExitInterrupted
		return res, runErr
	}
	res.ExitCode = ExitSuccess
	return res, nil
}

// canonicalizePaths applies invocation overrides and resolves every relative
// config path under the invocation workdir.
func canonicalizePaths(cfg *config.Config, inv Invocation) {
	if inv.LogDir != "" {
		cfg.LogDir = inv.LogDir
	}
	if inv.TracePath != "" {
		cfg.Trace = inv.TracePath
	}

	cfg.LogDir = underWorkDir(inv.WorkDir, cfg.LogDir)
	if cfg.Trace != "" {
		cfg.Trace = underWorkDir(inv.WorkDir, cfg.Trace)
	}
	if cfg.Logging.File != "" {
		cfg.Logging.File = underWorkDir(inv.WorkDir, cfg.Logging.File)
	}
	for i := range cfg.Cases {
		cfg.Cases[i].Path = underWorkDir(inv.WorkDir, cfg.Cases[i].Path)
	}
}

func underWorkDir(workDir, p string) string {
	clean := filepath.Clean(p)
	if filepath.IsAbs(clean) {
		return clean
	}
	return filepath.Clean(filepath.Join(workDir, clean))
}

func configExitCode(err error) int {
	if errors.Is(err, config.ErrInvalid) {
		return ExitConfigError
	}
	return ExitInternalError
}
