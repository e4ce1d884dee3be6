package wave

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"cfdbatch/internal/config"
	"cfdbatch/internal/slot"
	"cfdbatch/internal/solver"
)

// JobRunner runs a single work item. The scheduler depends only on this
// interface so wave behavior is testable without real solver processes.
type JobRunner interface {
	Run(ctx context.Context, item config.Case) Outcome
}

// Runner executes one solver job in isolation: verify the case directory,
// lease slots, resolve the input artifact, run the solver with all output
// redirected to the job's log file, and fold every failure mode into the
// returned Outcome.
type Runner struct {
	// Family resolves artifacts and builds invocations.
	Family solver.Family

	// Pool is the shared slot pool; SlotsPerJob slots are leased per job.
	Pool        *slot.Pool
	SlotsPerJob int

	// LogDir is the per-run log directory. One <case>.log file per item.
	LogDir string

	// PinCores wraps the invocation in taskset with the leased core list.
	PinCores bool

	Log *zap.Logger
}

// Run executes the item. It never returns an error: per-job failures become
// a failed Outcome so sibling jobs and later waves proceed unaffected.
func (r *Runner) Run(ctx context.Context, item config.Case) (out Outcome) {
	out = Outcome{Case: item.Name, Started: time.Now()}
	defer func() {
		out.Finished = time.Now()
	}()

	logFile, err := os.Create(filepath.Join(r.LogDir, item.Name+".log"))
	if err != nil {
		return errored(&out, fmt.Errorf("creating job log: %w", err))
	}
	defer logFile.Close()
	out.LogPath = logFile.Name()

	info, err := os.Stat(item.Path)
	if err != nil || !info.IsDir() {
		err = fmt.Errorf("%w: %s", ErrDirectoryMissing, item.Path)
		fmt.Fprintf(logFile, "error: %v\n", err)
		return errored(&out, err)
	}

	lease, err := r.Pool.Acquire(r.SlotsPerJob)
	if err != nil {
		return errored(&out, fmt.Errorf("leasing slots: %w", err))
	}
	defer r.Pool.Release(lease)

	art, err := r.Family.ResolveArtifact(item.Path)
	if err != nil {
		fmt.Fprintf(logFile, "error: %v\n", err)
		return errored(&out, err)
	}
	// Synthesized scripts are removed on every exit path so repeated runs
	// of the same case never see directory pollution.
	defer func() {
		if err := art.Cleanup(); err != nil {
			r.logger().Warn("artifact cleanup failed",
				zap.String("case", item.Name), zap.Error(err))
		}
	}()

	inv := r.Family.BuildInvocation(art, lease)
	path, args := inv.Path, inv.Args
	if r.PinCores {
		path, args = pinned(inv, lease)
	}

	fmt.Fprintf(logFile, "=== case %s ===\nslots: %s\ncommand: %s %s\nstarted: %s\n\n",
		item.Name, leaseList(lease), path, strings.Join(args, " "),
		out.Started.Format(time.RFC3339))

	r.logger().Info("job started",
		zap.String("case", item.Name),
		zap.String("dir", item.Path),
		zap.String("artifact", string(art.Kind)),
		zap.Ints("slots", lease.IDs))

	// The solver wait is deliberately uninterruptible: cancellation is
	// honored between waves only, and a hung solver stalls its wave.
	cmd := exec.Command(path, args...)
	cmd.Dir = item.Path
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	runErr := cmd.Run()

	exitCode := 0
	if runErr != nil {
		exitErr, ok := runErr.(*exec.ExitError)
		if !ok {
			fmt.Fprintf(logFile, "\nerror: %v\n", runErr)
			return errored(&out, fmt.Errorf("starting solver: %w", runErr))
		}
		exitCode = exitErr.ExitCode()
	}

	out.ExitCode = exitCode
	if exitCode == 0 {
		out.Status = StatusSucceeded
	} else {
		out.Status = StatusSolverFailed
	}

	fmt.Fprintf(logFile, "\nfinished: %s\nexit code: %d\n",
		time.Now().Format(time.RFC3339), exitCode)

	r.logger().Info("job finished",
		zap.String("case", item.Name),
		zap.String("status", string(out.Status)),
		zap.Int("exit_code", exitCode))

	return out
}

func (r *Runner) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func errored(out *Outcome, err error) Outcome {
	out.Status = StatusErrored
	out.Err = err
	return *out
}

// pinned wraps an invocation in taskset so the solver only runs on the
// leased cores.
func pinned(inv solver.Invocation, lease slot.Lease) (string, []string) {
	args := make([]string, 0, len(inv.Args)+3)
	args = append(args, "-c", leaseList(lease), inv.Path)
	args = append(args, inv.Args...)
	return "taskset", args
}

func leaseList(lease slot.Lease) string {
	parts := make([]string, len(lease.IDs))
	for i, id := range lease.IDs {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
