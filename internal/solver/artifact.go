package solver

import "os"

// ArtifactKind tags how an input artifact was obtained.
type ArtifactKind string

const (
	// ArtifactExplicit is an existing script named in the configuration.
	ArtifactExplicit ArtifactKind = "explicit"

	// ArtifactDiscovered is an existing script found by pattern match.
	ArtifactDiscovered ArtifactKind = "discovered"

	// ArtifactSynthesized is a script generated by the resolver.
	ArtifactSynthesized ArtifactKind = "synthesized"
)

// Artifact is the resolved or synthesized command script for one job.
//
// Synthesized artifacts are deleted after use; explicit and discovered ones
// are left untouched.
type Artifact struct {
	Kind ArtifactKind

	// Path is the script location inside the case directory.
	Path string

	// Continuation reports whether a prior-solution artifact was found next
	// to the case artifact. Only meaningful for synthesized artifacts.
	Continuation bool
}

// Cleanup removes a synthesized artifact from the case directory so
// repeated runs of the same case never see stale generated scripts.
// It is a no-op for explicit and discovered artifacts.
func (a Artifact) Cleanup() error {
	if a.Kind != ArtifactSynthesized || a.Path == "" {
		return nil
	}
	err := os.Remove(a.Path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
