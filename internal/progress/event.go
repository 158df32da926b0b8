package progress

import (
	"sync"
	"time"
)

// Kind is the lifecycle step an event reports.
type Kind string

const (
	Started    Kind = "started"
	Progressed Kind = "progressed"
	Completed  Kind = "completed"
	Failed     Kind = "failed"
)

// Stage names the pipeline stage that produced an event.
type Stage string

const (
	StageDownload Stage = "download"
	StageEncode   Stage = "encode"
)

// Event reports the state of one unit of work. For Progressed events Value is
// a fraction in [0,1] when Total is zero; otherwise Value counts towards Total
// (for example elapsed seconds of a known duration).
type Event struct {
	ID    string
	Stage Stage
	Kind  Kind
	Value float64
	Total float64
	Label string
	At    time.Time
}

// Fraction normalizes the event value to [0,1].
func (e Event) Fraction() float64 {
	v := e.Value
	if e.Total > 0 {
		v = e.Value / e.Total
	}
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Bus receives events. Implementations must be safe for concurrent use and
// should not block the publisher for long.
type Bus interface {
	Publish(Event)
}

// Discard drops every event.
var Discard Bus = discard{}

type discard struct{}

func (discard) Publish(Event) {}

// Func adapts a function into a Bus.
type Func func(Event)

func (f Func) Publish(e Event) { f(e) }

// Fanout delivers each event to every non-nil bus in order.
func Fanout(buses ...Bus) Bus {
	filtered := make([]Bus, 0, len(buses))
	for _, b := range buses {
		if b != nil {
			filtered = append(filtered, b)
		}
	}
	switch len(filtered) {
	case 0:
		return Discard
	case 1:
		return filtered[0]
	}
	return fanout(filtered)
}

type fanout []Bus

func (f fanout) Publish(e Event) {
	for _, b := range f {
		b.Publish(e)
	}
}

// Stamp wraps a bus so events without a timestamp receive the current time.
func Stamp(bus Bus) Bus {
	if bus == nil {
		bus = Discard
	}
	return Func(func(e Event) {
		if e.At.IsZero() {
			e.At = time.Now()
		}
		bus.Publish(e)
	})
}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many recorded events match stage and kind. An empty stage
// matches every stage.
func (r *Recorder) Count(stage Stage, kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if (stage == "" || e.Stage == stage) && e.Kind == kind {
			n++
		}
	}
	return n
}
