package solver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"cfdbatch/internal/config"
	"cfdbatch/internal/slot"
)

// GeneratedSuffix marks journals written by the resolver. Files carrying it
// are excluded from script discovery so a stale generated journal from an
// interrupted run can never shadow the decision table.
const GeneratedSuffix = ".cfdbatch.jou"

// Case-definition extensions in priority order: compressed format first,
// then the legacy format.
var caseExtensions = []string{".cas.h5", ".cas"}

// dataExtension returns the prior-solution extension paired with a case
// extension: same stem, data-file extension.
func dataExtension(caseExt string) string {
	if caseExt == ".cas.h5" {
		return ".dat.h5"
	}
	return ".dat"
}

// journalTemplate is the fixed command skeleton fed to the solver: read
// existing state (or case only), optionally initialize, solve, write results
// back to the same artifact name, then terminate the session. The trailing
// "yes" is the session's termination confirmation token.
var journalTemplate = template.Must(template.New("journal").Parse(
	`{{if .Continuation}}/file/read-case-data {{.CaseFile}}
{{else}}/file/read-case {{.CaseFile}}
/solve/initialize/initialize-flow
{{end}}{{if .Transient}}/solve/dual-time-iterate{{if .Steps}} {{.Steps}}{{end}}
{{else}}/solve/iterate{{if .Steps}} {{.Steps}}{{end}}
{{end}}/file/write-case-data {{.CaseFile}} ok
exit
yes
`))

type journalData struct {
	CaseFile     string
	Continuation bool
	Transient    bool
	Steps        int
}

// fluentFamily is the CFD solver family that synthesizes journals.
type fluentFamily struct {
	cfg     config.Solver
	pattern string
}

func newFluent(cfg config.Solver) *fluentFamily {
	pattern := cfg.ScriptPattern
	if pattern == "" {
		pattern = "*.jou"
	}
	return &fluentFamily{cfg: cfg, pattern: pattern}
}

func (f *fluentFamily) Name() string { return "fluent" }

// ResolveArtifact applies the file-presence decision table:
//
//  1. An explicitly named journal in the case directory wins.
//  2. Otherwise a journal matching the discovery pattern is used; with
//     multiple matches the lexically first wins (documented tie-break).
//  3. Otherwise a case-definition artifact selects journal synthesis, with
//     a paired prior-solution artifact switching the template from
//     initialization to continuation.
func (f *fluentFamily) ResolveArtifact(dir string) (Artifact, error) {
	if f.cfg.Journal != "" {
		p := filepath.Join(dir, f.cfg.Journal)
		if fileExists(p) {
			return Artifact{Kind: ArtifactExplicit, Path: p}, nil
		}
	}

	if p, ok, err := discoverScript(dir, f.pattern); err != nil {
		return Artifact{}, err
	} else if ok {
		return Artifact{Kind: ArtifactDiscovered, Path: p}, nil
	}

	caseFile, caseExt, err := findCaseArtifact(dir)
	if err != nil {
		return Artifact{}, err
	}

	stem := strings.TrimSuffix(caseFile, caseExt)
	dataFile := stem + dataExtension(caseExt)
	continuation := fileExists(filepath.Join(dir, dataFile))

	return f.synthesize(dir, caseFile, stem, continuation)
}

// synthesize renders the journal template and writes it into the case
// directory. The caller (the job runner) deletes it after the job
// completes, success or failure.
func (f *fluentFamily) synthesize(dir, caseFile, stem string, continuation bool) (Artifact, error) {
	data := journalData{
		CaseFile:     caseFile,
		Continuation: continuation,
		Transient:    f.cfg.Mode == config.ModeTransient,
		Steps:        f.cfg.Steps,
	}
	var sb strings.Builder
	if err := journalTemplate.Execute(&sb, data); err != nil {
		return Artifact{}, fmt.Errorf("rendering journal for %q: %w", caseFile, err)
	}
	path := filepath.Join(dir, stem+GeneratedSuffix)
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("writing journal %q: %w", path, err)
	}
	return Artifact{Kind: ArtifactSynthesized, Path: path, Continuation: continuation}, nil
}

// BuildInvocation appends the per-job process count and the journal to the
// configured solver arguments, e.g. fluent 3ddp -g -t8 -i run.jou.
func (f *fluentFamily) BuildInvocation(art Artifact, lease slot.Lease) Invocation {
	args := make([]string, 0, len(f.cfg.Args)+3)
	args = append(args, f.cfg.Args...)
	args = append(args, fmt.Sprintf("-t%d", lease.Size()), "-i", art.Path)
	return Invocation{Path: f.cfg.Binary, Args: args}
}

// discoverScript matches the discovery pattern inside dir, skipping
// generated journals. With multiple matches the lexically first is used.
func discoverScript(dir, pattern string) (string, bool, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", false, fmt.Errorf("invalid script pattern %q: %w", pattern, err)
	}
	kept := matches[:0]
	for _, m := range matches {
		if strings.HasSuffix(m, GeneratedSuffix) {
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) == 0 {
		return "", false, nil
	}
	sort.Strings(kept)
	return kept[0], true, nil
}

// findCaseArtifact locates the case-definition artifact, trying extensions
// in priority order. It returns the file's base name and its extension.
func findCaseArtifact(dir string) (string, string, error) {
	for _, ext := range caseExtensions {
		matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
		if err != nil {
			return "", "", fmt.Errorf("globbing case artifacts: %w", err)
		}
		// "*.cas" also matches "*.cas.h5" stems only when the file really
		// ends in .cas, so no cross-extension filtering is needed.
		if len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		return filepath.Base(matches[0]), ext, nil
	}
	return "", "", fmt.Errorf("case directory %q: %w", dir, ErrInputNotFound)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
