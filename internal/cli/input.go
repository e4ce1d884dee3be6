package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

const (
	ExitSuccess           = 0
	ExitInterrupted       = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// Invocation is the fully canonicalized, deterministic description of a run.
//
// All paths are normalized (Clean) and all relative paths are resolved relative
// to WorkDir.
//
// NOTE: WorkDir is required and must be absolute; this prevents any dependency
// on the process current working directory. Cluster schedulers launch the
// engine from arbitrary directories inside the allocation.
type Invocation struct {
	ConfigPath string
	WorkDir    string

	// LogDir and TracePath, when set, override their config file
	// counterparts.
	LogDir    string
	TracePath string

	OriginalConfig string
	OriginalLogDir string
	OriginalTrace  string
}

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// ParseInvocation parses CLI flags into a canonical Invocation.
//
// Determinism goals:
//   - Does not read env vars.
//   - Does not read/assume the process CWD.
//   - Requires WorkDir to be explicit and absolute.
func ParseInvocation(args []string) (Invocation, error) {
	fs := flag.NewFlagSet("cfdbatch", flag.ContinueOnError)
	fs.SetOutput(io.Discard) // parsing errors are returned, not printed

	var workDir string
	var configPath string
	var logDir string
	var tracePath string

	fs.StringVar(&workDir, "workdir", "", "Absolute working directory. Required.")
	fs.StringVar(&configPath, "config", "", "Batch config file. Required.")
	fs.StringVar(&logDir, "log-dir", "", "Log directory override (optional).")
	fs.StringVar(&tracePath, "trace", "", "Run trace output path (optional).")

	// We intentionally do not accept environment-derived defaults.
	if err := fs.Parse(args); err != nil {
		// flag package returns errors like: "flag provided but not defined: -x"
		return Invocation{}, invalidInvocationf("%v", err)
	}
	if fs.NArg() != 0 {
		return Invocation{}, invalidInvocationf("unexpected positional arguments: %q", strings.Join(fs.Args(), " "))
	}

	workDir = filepath.Clean(workDir)
	if workDir == "" || workDir == "." {
		return Invocation{}, invalidInvocationf("--workdir is required")
	}
	if !filepath.IsAbs(workDir) {
		return Invocation{}, invalidInvocationf("--workdir must be an absolute path (got %q)", workDir)
	}

	if configPath == "" {
		return Invocation{}, invalidInvocationf("--config is required")
	}

	resolvedConfig, err := resolveUnderWorkDir(workDir, configPath)
	if err != nil {
		return Invocation{}, err
	}

	inv := Invocation{
		WorkDir:        workDir,
		ConfigPath:     resolvedConfig,
		OriginalConfig: configPath,
		OriginalLogDir: logDir,
		OriginalTrace:  tracePath,
	}

	if strings.TrimSpace(logDir) != "" {
		resolved, err := resolveUnderWorkDir(workDir, logDir)
		if err != nil {
			return Invocation{}, err
		}
		inv.LogDir = resolved
	}
	if strings.TrimSpace(tracePath) != "" {
		resolved, err := resolveUnderWorkDir(workDir, tracePath)
		if err != nil {
			return Invocation{}, err
		}
		inv.TracePath = resolved
	}

	return inv, nil
}

func resolveUnderWorkDir(workDir, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", invalidInvocationf("path must not be empty")
	}
	clean := filepath.Clean(p)
	if clean == "." {
		return "", invalidInvocationf("path must not be '.'")
	}

	// If absolute, accept as-is; it is still deterministic.
	// If relative, resolve under WorkDir.
	if filepath.IsAbs(clean) {
		return clean, nil
	}

	// WorkDir is required to be absolute, so Join does not consult process CWD.
	return filepath.Clean(filepath.Join(workDir, clean)), nil
}

// ExitCode extracts a semantic exit code from a ParseInvocation error.
// If the error is not a known invocation error, it returns ExitInternalError.
func ExitCode(err error) int {
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	if err == nil {
		return ExitSuccess
	}
	return ExitInternalError
}
