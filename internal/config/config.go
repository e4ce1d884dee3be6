// Package config loads and validates the batch configuration file.
//
// The YAML config is the single source of run input: the ordered case list,
// the slot allocation handed over by the cluster scheduler, and the solver
// invocation settings. The engine does not consult environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"cfdbatch/internal/logging"
	"cfdbatch/internal/slot"
)

// ErrInvalid is the sentinel for fatal configuration failures. A config
// error aborts the engine before any wave starts.
var ErrInvalid = errors.New("invalid batch configuration")

// Error wraps a configuration failure with the offending field.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalid.Error(), e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalid.Error(), e.Field, e.Msg)
}

func (e *Error) Unwrap() error { return ErrInvalid }

func invalidf(field, format string, args ...any) error {
	return &Error{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Mode selects the solve directive variant for synthesized scripts.
type Mode string

const (
	ModeSteady      Mode = "steady"
	ModeTransient   Mode = "transient"
	ModeUnspecified Mode = ""
)

// ParseMode normalizes a raw simulation mode string.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeSteady:
		return ModeSteady, nil
	case ModeTransient:
		return ModeTransient, nil
	case ModeUnspecified:
		return ModeUnspecified, nil
	default:
		return "", invalidf("solver.mode", "invalid mode %q (expected steady|transient or empty)", raw)
	}
}

// Case identifies one unit of work: a case name and its working directory.
// Immutable once enumerated.
type Case struct {
	// Name is the case identifier used in logs and the final report.
	// Defaults to the base name of Path.
	Name string `yaml:"name"`

	// Path is the case working directory.
	Path string `yaml:"path"`
}

// Solver configures how the external solver is invoked.
type Solver struct {
	// Family selects the solver family variant (e.g. "fluent", "script").
	Family string `yaml:"family"`

	// Binary is the solver executable.
	Binary string `yaml:"binary"`

	// Args are invocation arguments placed before the per-job ones.
	Args []string `yaml:"args"`

	// Journal names an explicit input script inside each case directory.
	// When present there, it wins over discovery and synthesis.
	Journal string `yaml:"journal"`

	// ScriptPattern overrides the family's script discovery glob.
	ScriptPattern string `yaml:"script_pattern"`

	// Mode is the simulation mode for synthesized scripts.
	Mode Mode `yaml:"mode"`

	// Steps bounds the solve directive. Zero means unspecified: the case's
	// own settings bound the run.
	Steps int `yaml:"steps"`

	// PinCores wraps the invocation in taskset with the leased core list.
	PinCores bool `yaml:"pin_cores"`
}

// Config models the batch configuration file.
type Config struct {
	// Cases is the ordered work-item list. Order is preserved through
	// scheduling and into the final report.
	Cases []Case `yaml:"cases"`

	// Slots is the total execution slot count of the allocation.
	Slots int `yaml:"slots"`

	// SlotsPerJob is the slot requirement of a single job.
	SlotsPerJob int `yaml:"slots_per_job"`

	Solver Solver `yaml:"solver"`

	// LogDir is where per-run log directories are created.
	// Relative paths resolve under the invocation workdir.
	LogDir string `yaml:"log_dir"`

	Logging logging.Config `yaml:"logging"`

	// Trace is an optional JSONL run-trace output path.
	Trace string `yaml:"trace"`
}

// Load reads, decodes and validates a batch config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, invalidf("", "reading config %q: %v", path, err)
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, invalidf("", "decoding config %q: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the structural invariants of the configuration.
// Solver family resolution happens later, against the family registry.
func (c *Config) Validate() error {
	if len(c.Cases) == 0 {
		return invalidf("cases", "at least one case is required")
	}
	seen := make(map[string]struct{}, len(c.Cases))
	for i := range c.Cases {
		cs := &c.Cases[i]
		if strings.TrimSpace(cs.Path) == "" {
			return invalidf("cases", "case %d has an empty path", i)
		}
		if cs.Name == "" {
			cs.Name = filepath.Base(filepath.Clean(cs.Path))
		}
		if _, dup := seen[cs.Name]; dup {
			return invalidf("cases", "duplicate case name %q", cs.Name)
		}
		seen[cs.Name] = struct{}{}
	}

	if _, err := slot.Width(c.Slots, c.SlotsPerJob); err != nil {
		return invalidf("slots", "%v", err)
	}

	if strings.TrimSpace(c.Solver.Family) == "" {
		return invalidf("solver.family", "solver family is required")
	}
	if strings.TrimSpace(c.Solver.Binary) == "" {
		return invalidf("solver.binary", "solver binary is required")
	}
	mode, err := ParseMode(string(c.Solver.Mode))
	if err != nil {
		return err
	}
	c.Solver.Mode = mode
	if c.Solver.Steps < 0 {
		return invalidf("solver.steps", "step count must not be negative (got %d)", c.Solver.Steps)
	}

	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	return nil
}
