package solver

import (
	"fmt"
	"path/filepath"

	"cfdbatch/internal/config"
	"cfdbatch/internal/slot"
)

// scriptFamily drives solvers that take a prepared batch script and have no
// synthesis rules. A case directory without a script is a per-job input
// failure.
type scriptFamily struct {
	cfg     config.Solver
	pattern string
}

func newScript(cfg config.Solver) *scriptFamily {
	pattern := cfg.ScriptPattern
	if pattern == "" {
		pattern = "*.sh"
	}
	return &scriptFamily{cfg: cfg, pattern: pattern}
}

func (s *scriptFamily) Name() string { return "script" }

func (s *scriptFamily) ResolveArtifact(dir string) (Artifact, error) {
	if s.cfg.Journal != "" {
		p := filepath.Join(dir, s.cfg.Journal)
		if fileExists(p) {
			return Artifact{Kind: ArtifactExplicit, Path: p}, nil
		}
	}
	if p, ok, err := discoverScript(dir, s.pattern); err != nil {
		return Artifact{}, err
	} else if ok {
		return Artifact{Kind: ArtifactDiscovered, Path: p}, nil
	}
	return Artifact{}, fmt.Errorf("case directory %q: %w", dir, ErrInputNotFound)
}

// BuildInvocation appends the script path to the configured arguments; the
// lease only sizes the scheduler's math for this family.
func (s *scriptFamily) BuildInvocation(art Artifact, _ slot.Lease) Invocation {
	args := make([]string, 0, len(s.cfg.Args)+1)
	args = append(args, s.cfg.Args...)
	args = append(args, art.Path)
	return Invocation{Path: s.cfg.Binary, Args: args}
}
