package wave

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"cfdbatch/internal/config"
	"cfdbatch/internal/trace"
)

// fakeRunner is a JobRunner double that tracks concurrency and run counts.
type fakeRunner struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	runs        map[string]int

	delay  func(name string) time.Duration
	fail   func(name string) bool
	onDone func(name string)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{runs: make(map[string]int)}
}

func (f *fakeRunner) Run(_ context.Context, item config.Case) Outcome {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.runs[item.Name]++
	f.mu.Unlock()

	if f.delay != nil {
		time.Sleep(f.delay(item.Name))
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if f.onDone != nil {
		f.onDone(item.Name)
	}

	out := Outcome{Case: item.Name, Status: StatusSucceeded}
	if f.fail != nil && f.fail(item.Name) {
		out.Status = StatusSolverFailed
		out.ExitCode = 1
	}
	return out
}

func makeItems(n int) []config.Case {
	items := make([]config.Case, n)
	for i := range items {
		items[i] = config.Case{Name: fmt.Sprintf("case-%03d", i), Path: "/scratch/" + fmt.Sprint(i)}
	}
	return items
}

func TestWaveCountAndSizes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		n := 1 + rng.Intn(40)
		w := 1 + rng.Intn(8)

		rec := trace.NewRecorder()
		sched := &Scheduler{Runner: newFakeRunner(), Width: w, Trace: rec}
		outcomes, err := sched.Run(context.Background(), makeItems(n))
		if err != nil {
			t.Fatalf("n=%d w=%d: %v", n, w, err)
		}
		if len(outcomes) != n {
			t.Fatalf("n=%d w=%d: got %d outcomes", n, w, len(outcomes))
		}

		var sizes []int
		for _, ev := range rec.Events() {
			if ev.Kind == trace.EventWaveStarted {
				sizes = append(sizes, ev.Size)
			}
		}
		wantWaves := (n + w - 1) / w
		if len(sizes) != wantWaves {
			t.Errorf("n=%d w=%d: %d waves, want %d", n, w, len(sizes), wantWaves)
		}
		sum := 0
		for _, sz := range sizes {
			if sz > w {
				t.Errorf("n=%d w=%d: wave size %d exceeds width", n, w, sz)
			}
			sum += sz
		}
		if sum != n {
			t.Errorf("n=%d w=%d: wave sizes sum to %d, want %d", n, w, sum, n)
		}
	}
}

func TestEveryItemRunsExactlyOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for trial := 0; trial < 10; trial++ {
		n := 1 + rng.Intn(30)
		w := 1 + rng.Intn(6)

		runner := newFakeRunner()
		sched := &Scheduler{Runner: runner, Width: w}
		items := makeItems(n)
		outcomes, err := sched.Run(context.Background(), items)
		if err != nil {
			t.Fatal(err)
		}

		for _, item := range items {
			if runner.runs[item.Name] != 1 {
				t.Errorf("item %s ran %d times", item.Name, runner.runs[item.Name])
			}
		}
		for i, out := range outcomes {
			if out.Case != items[i].Name {
				t.Errorf("outcome %d is %s, want %s", i, out.Case, items[i].Name)
			}
		}
	}
}

func TestInFlightNeverExceedsWidth(t *testing.T) {
	runner := newFakeRunner()
	runner.delay = func(string) time.Duration { return 5 * time.Millisecond }

	sched := &Scheduler{Runner: runner, Width: 3}
	if _, err := sched.Run(context.Background(), makeItems(11)); err != nil {
		t.Fatal(err)
	}
	if runner.maxInFlight > 3 {
		t.Errorf("max in-flight = %d, exceeds width 3", runner.maxInFlight)
	}
	if runner.maxInFlight < 2 {
		t.Errorf("max in-flight = %d, waves are not concurrent", runner.maxInFlight)
	}
}

func TestFailedItemDoesNotAffectSiblings(t *testing.T) {
	runner := newFakeRunner()
	runner.fail = func(name string) bool { return name == "case-002" }

	sched := &Scheduler{Runner: runner, Width: 5}
	outcomes, err := sched.Run(context.Background(), makeItems(5))
	if err != nil {
		t.Fatal(err)
	}

	succeeded, failed := 0, 0
	for _, out := range outcomes {
		switch out.Status {
		case StatusSucceeded:
			succeeded++
		case StatusSolverFailed:
			failed++
		}
	}
	if succeeded != 4 || failed != 1 {
		t.Errorf("got %d succeeded / %d failed, want 4/1", succeeded, failed)
	}
}

func TestOutcomeOrderIgnoresCompletionOrder(t *testing.T) {
	runner := newFakeRunner()
	// The first item of the wave finishes last.
	runner.delay = func(name string) time.Duration {
		if name == "case-000" {
			return 20 * time.Millisecond
		}
		return 0
	}

	items := makeItems(4)
	sched := &Scheduler{Runner: runner, Width: 4}
	outcomes, err := sched.Run(context.Background(), items)
	if err != nil {
		t.Fatal(err)
	}
	for i, out := range outcomes {
		if out.Case != items[i].Name {
			t.Errorf("outcome %d is %s, want %s", i, out.Case, items[i].Name)
		}
	}
}

func TestCancellationBetweenWavesMarksRemainingNotRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	runner := newFakeRunner()
	runner.onDone = func(string) { cancel() }

	sched := &Scheduler{Runner: runner, Width: 2}
	outcomes, err := sched.Run(ctx, makeItems(6))
	if err == nil {
		t.Fatal("expected context error")
	}
	if len(outcomes) != 6 {
		t.Fatalf("got %d outcomes, want 6 (every item accounted for)", len(outcomes))
	}

	// The first wave ran to completion; no later wave started.
	notRun := 0
	for _, out := range outcomes {
		if out.Status == StatusNotRun {
			notRun++
		}
	}
	if notRun != 4 {
		t.Errorf("got %d not-run items, want 4", notRun)
	}
	for _, out := range outcomes[:2] {
		if out.Status != StatusSucceeded {
			t.Errorf("first-wave item %s = %s, want succeeded", out.Case, out.Status)
		}
	}
}

func TestSchedulerRejectsBadSetup(t *testing.T) {
	if _, err := (&Scheduler{Runner: newFakeRunner(), Width: 0}).Run(context.Background(), makeItems(1)); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := (&Scheduler{Width: 2}).Run(context.Background(), makeItems(1)); err == nil {
		t.Error("expected error for nil runner")
	}
}
