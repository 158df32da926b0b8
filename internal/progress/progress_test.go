package progress_test

import (
	"sync"
	"testing"
	"time"

	"reeler/internal/progress"
)

func TestFanoutDeliversToEveryBus(t *testing.T) {
	var a, b progress.Recorder
	bus := progress.Fanout(&a, nil, &b)
	bus.Publish(progress.Event{ID: "e1", Stage: progress.StageEncode, Kind: progress.Completed})
	if a.Count(progress.StageEncode, progress.Completed) != 1 || b.Count("", progress.Completed) != 1 {
		t.Fatalf("expected both recorders to receive the event")
	}
	if progress.Fanout() != progress.Discard {
		t.Fatal("expected empty fanout to discard")
	}
}

func TestStampSetsTimestamp(t *testing.T) {
	var rec progress.Recorder
	progress.Stamp(&rec).Publish(progress.Event{ID: "x"})
	events := rec.Events()
	if len(events) != 1 || events[0].At.IsZero() {
		t.Fatalf("expected stamped event, got %+v", events)
	}
}

func TestEventFraction(t *testing.T) {
	cases := []struct {
		ev   progress.Event
		want float64
	}{
		{progress.Event{Value: 0.25}, 0.25},
		{progress.Event{Value: 30, Total: 120}, 0.25},
		{progress.Event{Value: 200, Total: 120}, 1},
		{progress.Event{Value: -1}, 0},
	}
	for _, tc := range cases {
		if got := tc.ev.Fraction(); got != tc.want {
			t.Fatalf("Fraction(%+v) = %v, want %v", tc.ev, got, tc.want)
		}
	}
}

func TestTrackerKeepsIndependentStatePerUnit(t *testing.T) {
	tr := progress.NewTracker()
	now := time.Now()
	tr.Publish(progress.Event{ID: "e1", Stage: progress.StageEncode, Kind: progress.Started, Total: 100, At: now})
	tr.Publish(progress.Event{ID: "e2", Stage: progress.StageEncode, Kind: progress.Started, Total: 10, At: now.Add(time.Second)})
	tr.Publish(progress.Event{ID: "e1", Stage: progress.StageEncode, Kind: progress.Progressed, Value: 50, Total: 100})
	tr.Publish(progress.Event{ID: "e1", Stage: progress.StageEncode, Kind: progress.Progressed, Value: 40, Total: 100})
	tr.Publish(progress.Event{ID: "e2", Stage: progress.StageEncode, Kind: progress.Completed})
	tr.Publish(progress.Event{ID: "e2", Stage: progress.StageEncode, Kind: progress.Progressed, Value: 1, Total: 10})

	snap := tr.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 units, got %d", len(snap))
	}
	if snap[0].ID != "e1" || snap[0].Fraction() != 0.5 {
		t.Fatalf("expected e1 at 50%%, got %+v", snap[0])
	}
	if snap[1].Kind != progress.Completed || snap[1].Fraction() != 1 {
		t.Fatalf("expected e2 completed, got %+v", snap[1])
	}
	active := tr.Active()
	if len(active) != 1 || active[0].ID != "e1" {
		t.Fatalf("unexpected active set %+v", active)
	}
	counts := tr.Counts()
	if counts[progress.StageEncode][progress.Completed] != 1 || counts[progress.StageEncode][progress.Progressed] != 1 {
		t.Fatalf("unexpected counts %+v", counts)
	}
}

func TestTrackerSeparatesStagesWithSameID(t *testing.T) {
	tr := progress.NewTracker()
	tr.Publish(progress.Event{ID: "e1", Stage: progress.StageDownload, Kind: progress.Completed})
	tr.Publish(progress.Event{ID: "e1", Stage: progress.StageEncode, Kind: progress.Started})
	if len(tr.Snapshot()) != 2 {
		t.Fatalf("expected stage-scoped units, got %+v", tr.Snapshot())
	}
}

func TestTrackerRestartResetsProgress(t *testing.T) {
	tr := progress.NewTracker()
	tr.Publish(progress.Event{ID: "s", Stage: progress.StageDownload, Kind: progress.Started})
	tr.Publish(progress.Event{ID: "s", Stage: progress.StageDownload, Kind: progress.Progressed, Value: 0.8})
	tr.Publish(progress.Event{ID: "s", Stage: progress.StageDownload, Kind: progress.Started})
	if got := tr.Snapshot()[0].Fraction(); got != 0 {
		t.Fatalf("expected reset after restart, got %v", got)
	}
}

func TestRecorderIsConcurrencySafe(t *testing.T) {
	var rec progress.Recorder
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rec.Publish(progress.Event{Kind: progress.Progressed})
			}
		}()
	}
	wg.Wait()
	if rec.Count("", progress.Progressed) != 800 {
		t.Fatalf("expected 800 events, got %d", rec.Count("", progress.Progressed))
	}
}
