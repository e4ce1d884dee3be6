package wave

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cfdbatch/internal/config"
	"cfdbatch/internal/trace"
)

// Scheduler partitions the ordered work-item list into sequential waves of
// at most Width jobs, launches each wave concurrently through the JobRunner,
// and barrier-waits for the whole wave before advancing.
//
// Invariants:
//   - at most Width jobs are in flight at any moment;
//   - every item is run exactly once, enforced by the item state machine;
//   - the returned outcomes are in original item order regardless of
//     completion order.
type Scheduler struct {
	Runner JobRunner
	Width  int

	Log   *zap.Logger
	Trace trace.Sink
}

// Run executes all items and returns one Outcome per item, in input order.
//
// Workers report through a single results channel; only the orchestrating
// goroutine touches the state map and tallies. Cancellation is checked at
// wave boundaries: remaining items are marked not-run, never started. There
// is no mid-wave cancellation — a slow job delays the next wave's start, an
// accepted trade-off of the full barrier.
func (s *Scheduler) Run(ctx context.Context, items []config.Case) ([]Outcome, error) {
	if s.Runner == nil {
		return nil, fmt.Errorf("nil job runner")
	}
	if s.Width <= 0 {
		return nil, fmt.Errorf("wave width must be positive (got %d)", s.Width)
	}

	state := NewState(caseNames(items))
	outcomes := make(map[string]Outcome, len(items))

	waveIndex := 0
	for start := 0; start < len(items); start += s.Width {
		if ctx.Err() != nil {
			break
		}

		end := start + s.Width
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		s.logger().Info("wave started",
			zap.Int("wave", waveIndex),
			zap.Int("size", len(batch)),
			zap.Int("remaining", len(items)-start))
		trace.SafeRecord(s.Trace, trace.Event{
			Kind: trace.EventWaveStarted, Time: time.Now(),
			Wave: waveIndex, Size: len(batch),
		})

		results := make(chan Outcome, len(batch))
		for _, item := range batch {
			if err := state.Transition(item.Name, ItemPending, ItemRunning); err != nil {
				return nil, err
			}
			trace.SafeRecord(s.Trace, trace.Event{
				Kind: trace.EventJobStarted, Time: time.Now(),
				Wave: waveIndex, Case: item.Name,
			})
			item := item
			go func() {
				results <- s.Runner.Run(ctx, item)
			}()
		}

		// Full barrier: drain exactly one outcome per launched job before
		// the next wave may start.
		for range batch {
			out := <-results
			to := ItemCompleted
			if out.Failed() {
				to = ItemFailed
			}
			if err := state.Transition(out.Case, ItemRunning, to); err != nil {
				return nil, err
			}
			outcomes[out.Case] = out
			trace.SafeRecord(s.Trace, trace.Event{
				Kind: trace.EventJobFinished, Time: time.Now(),
				Wave: waveIndex, Case: out.Case,
				Status: string(out.Status), ExitCode: out.ExitCode,
			})
		}

		waveIndex++
	}

	// Restore original item order; items whose wave never started are
	// reported as not-run so every item is accounted for.
	ordered := make([]Outcome, 0, len(items))
	for _, item := range items {
		if out, ok := outcomes[item.Name]; ok {
			ordered = append(ordered, out)
			continue
		}
		if err := state.Transition(item.Name, ItemPending, ItemNotRun); err != nil {
			return nil, err
		}
		ordered = append(ordered, Outcome{Case: item.Name, Status: StatusNotRun})
	}

	if err := ctx.Err(); err != nil {
		return ordered, err
	}
	return ordered, nil
}

func (s *Scheduler) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func caseNames(items []config.Case) []string {
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}
	return names
}
