// Package solver resolves per-case input artifacts and builds solver
// invocations.
//
// A solver family is one member of a small closed set of variants sharing
// the {ResolveArtifact, BuildInvocation} capability pair. The engine never
// interprets solver output or exit codes beyond zero/nonzero; the solver
// process is an opaque external collaborator.
package solver

import (
	"errors"

	"cfdbatch/internal/config"
	"cfdbatch/internal/slot"
)

// ErrInputNotFound reports that a case directory contains neither a usable
// input script nor a case-definition artifact. It is a per-job failure:
// sibling jobs and later waves proceed unaffected.
var ErrInputNotFound = errors.New("no solver input found")

// Invocation is a fully built solver command line. The runner executes it
// with the case directory as working directory.
type Invocation struct {
	Path string
	Args []string
}

// Family is one solver-family variant.
type Family interface {
	// Name returns the family identifier used in the configuration.
	Name() string

	// ResolveArtifact inspects a case directory and returns the input
	// artifact to feed the solver, synthesizing one when necessary.
	// Resolution happens fresh per job invocation and is never cached
	// across waves.
	ResolveArtifact(dir string) (Artifact, error)

	// BuildInvocation combines the resolved artifact and the job's slot
	// lease into the solver command line.
	BuildInvocation(art Artifact, lease slot.Lease) Invocation
}

// NewFamily resolves a configured family name against the closed variant
// set. An unknown name is a configuration error.
func NewFamily(cfg config.Solver) (Family, error) {
	switch cfg.Family {
	case "fluent":
		return newFluent(cfg), nil
	case "script":
		return newScript(cfg), nil
	default:
		return nil, &config.Error{Field: "solver.family", Msg: "unknown solver family " + cfg.Family}
	}
}
