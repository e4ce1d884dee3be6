package trace

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestRecorderCollectsInArrivalOrder(t *testing.T) {
	r := NewRecorder()
	r.Record(Event{Kind: EventRunStarted, RunID: "r1"})
	r.Record(Event{Kind: EventWaveStarted, Wave: 0, Size: 2})
	r.Record(Event{Kind: EventRunFinished, RunID: "r1"})

	got := r.Events()
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	if got[0].Kind != EventRunStarted || got[2].Kind != EventRunFinished {
		t.Errorf("unexpected order: %v", got)
	}
}

func TestRecorderIsConcurrencySafe(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Record(Event{Kind: EventJobFinished, Case: "c"})
			}
		}()
	}
	wg.Wait()
	if got := len(r.Events()); got != 800 {
		t.Errorf("got %d events, want 800", got)
	}
}

type panickySink struct{}

func (panickySink) Record(Event) { panic("broken sink") }

func TestSafeRecordSwallowsPanicsAndNil(t *testing.T) {
	SafeRecord(nil, Event{Kind: EventRunStarted})
	SafeRecord(panickySink{}, Event{Kind: EventRunStarted})
}

func TestFileSinkWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.trace.jsonl")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sink.Record(Event{Kind: EventRunStarted, Time: now, RunID: "r1"})
	sink.Record(Event{Kind: EventJobFinished, Time: now, Case: "airfoil", Status: "succeeded"})
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var kinds []EventKind
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		kinds = append(kinds, ev.Kind)
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	if len(kinds) != 2 || kinds[0] != EventRunStarted || kinds[1] != EventJobFinished {
		t.Errorf("unexpected kinds: %v", kinds)
	}
}
