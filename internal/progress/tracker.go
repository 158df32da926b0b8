package progress

import (
	"sort"
	"sync"
	"time"
)

// UnitState is the derived state of one unit of work.
type UnitState struct {
	ID        string
	Stage     Stage
	Kind      Kind
	Current   float64
	Max       float64
	Label     string
	StartedAt time.Time
	UpdatedAt time.Time
}

// Fraction returns Current relative to Max, clamped to [0,1].
func (s UnitState) Fraction() float64 {
	if s.Kind == Completed {
		return 1
	}
	if s.Max <= 0 {
		return 0
	}
	f := s.Current / s.Max
	if f > 1 {
		return 1
	}
	return f
}

// Tracker folds events into per-unit state. It implements Bus.
type Tracker struct {
	mu    sync.Mutex
	units map[string]*UnitState
	order []string
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{units: make(map[string]*UnitState)}
}

func key(stage Stage, id string) string {
	return string(stage) + "/" + id
}

// Publish records e. Progress values never move the unit backwards within one
// attempt; a new Started event resets the unit.
func (t *Tracker) Publish(e Event) {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key(e.Stage, e.ID)
	state, ok := t.units[k]
	if !ok {
		state = &UnitState{ID: e.ID, Stage: e.Stage}
		t.units[k] = state
		t.order = append(t.order, k)
	}
	if e.Label != "" {
		state.Label = e.Label
	}
	state.UpdatedAt = at
	switch e.Kind {
	case Started:
		state.Kind = Started
		state.Current = 0
		state.Max = e.Total
		if state.Max <= 0 {
			state.Max = 1
		}
		state.StartedAt = at
	case Progressed:
		if state.Kind == Completed || state.Kind == Failed {
			return
		}
		state.Kind = Progressed
		total := e.Total
		if total <= 0 {
			total = 1
		}
		if total > state.Max {
			state.Max = total
		}
		if e.Value > state.Current {
			state.Current = e.Value
		}
	case Completed:
		state.Kind = Completed
		if state.Max <= 0 {
			state.Max = 1
		}
		state.Current = state.Max
	case Failed:
		state.Kind = Failed
	}
}

// Snapshot returns the state of every unit seen so far in first-seen order.
func (t *Tracker) Snapshot() []UnitState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]UnitState, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, *t.units[k])
	}
	return out
}

// Active returns units that have started but not finished, ordered by start time.
func (t *Tracker) Active() []UnitState {
	all := t.Snapshot()
	active := all[:0]
	for _, s := range all {
		if s.Kind == Started || s.Kind == Progressed {
			active = append(active, s)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].StartedAt.Before(active[j].StartedAt) })
	return active
}

// Counts tallies units by stage and kind.
func (t *Tracker) Counts() map[Stage]map[Kind]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[Stage]map[Kind]int)
	for _, s := range t.units {
		if out[s.Stage] == nil {
			out[s.Stage] = make(map[Kind]int)
		}
		out[s.Stage][s.Kind]++
	}
	return out
}
