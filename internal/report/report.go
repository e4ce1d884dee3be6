// Package report aggregates per-job outcomes into the final batch summary.
//
// The aggregator is fed by the orchestration goroutine only; worker
// goroutines never touch it. Rendering produces the text handed to the
// external notification collaborator — delivery itself is out of scope.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"cfdbatch/internal/config"
	"cfdbatch/internal/wave"
)

// FailedCase describes one failed item with enough detail for postmortem
// without re-running the batch.
type FailedCase struct {
	Name     string
	Status   wave.Status
	ExitCode int
	Detail   string
	LogPath  string
}

// FinalReport is the aggregate result of a batch run.
//
// FailedCases and NotRunCases preserve the original work-item order, not
// completion order, so reports are deterministic across runs.
type FinalReport struct {
	RunID string

	Total     int
	Completed int
	Failed    int
	NotRun    int

	FailedCases []FailedCase
	NotRunCases []string

	Started  time.Time
	Finished time.Time
}

// Aggregator accumulates outcomes as they arrive.
type Aggregator struct {
	runID    string
	started  time.Time
	outcomes map[string]wave.Outcome
}

// NewAggregator starts an empty aggregation for the given run.
func NewAggregator(runID string, started time.Time) *Aggregator {
	return &Aggregator{
		runID:    runID,
		started:  started,
		outcomes: make(map[string]wave.Outcome),
	}
}

// Add records one outcome. Each work item produces exactly one outcome;
// a duplicate is an orchestration bug and is reported as an error.
func (a *Aggregator) Add(out wave.Outcome) error {
	if _, dup := a.outcomes[out.Case]; dup {
		return fmt.Errorf("duplicate outcome for case %q", out.Case)
	}
	a.outcomes[out.Case] = out
	return nil
}

// Finalize produces the FinalReport, restoring original item order.
// Items without an outcome are counted as not-run.
func (a *Aggregator) Finalize(items []config.Case) FinalReport {
	rep := FinalReport{
		RunID:    a.runID,
		Total:    len(items),
		Started:  a.started,
		Finished: time.Now(),
	}
	for _, item := range items {
		out, ok := a.outcomes[item.Name]
		if !ok || out.Status == wave.StatusNotRun {
			rep.NotRun++
			rep.NotRunCases = append(rep.NotRunCases, item.Name)
			continue
		}
		if out.Failed() {
			rep.Failed++
			fc := FailedCase{
				Name:     out.Case,
				Status:   out.Status,
				ExitCode: out.ExitCode,
				LogPath:  out.LogPath,
			}
			if out.Err != nil {
				fc.Detail = out.Err.Error()
			}
			rep.FailedCases = append(rep.FailedCases, fc)
			continue
		}
		rep.Completed++
	}
	return rep
}

var summaryTemplate = template.Must(template.New("summary").Parse(
	`batch run {{.RunID}}
started:   {{.Started.Format "2006-01-02 15:04:05"}}
finished:  {{.Finished.Format "2006-01-02 15:04:05"}}

cases:     {{.Total}}
completed: {{.Completed}}
failed:    {{.Failed}}
not run:   {{.NotRun}}
{{if .FailedCases}}
failed cases:
{{range .FailedCases}}  {{.Name}}: {{.Status}}{{if .Detail}} ({{.Detail}}){{else}} (exit {{.ExitCode}}){{end}}{{if .LogPath}} log={{.LogPath}}{{end}}
{{end}}{{end}}{{if .NotRunCases}}
not-run cases:
{{range .NotRunCases}}  {{.}}
{{end}}{{end}}`))

// Render writes the human-readable summary.
func (r FinalReport) Render(w io.Writer) error {
	return summaryTemplate.Execute(w, r)
}

// WriteFile renders the summary into dir/summary.txt and returns the path.
func (r FinalReport) WriteFile(dir string) (string, error) {
	path := filepath.Join(dir, "summary.txt")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating summary file: %w", err)
	}
	defer f.Close()
	if err := r.Render(f); err != nil {
		return "", fmt.Errorf("rendering summary: %w", err)
	}
	return path, nil
}
