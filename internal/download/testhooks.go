package download

import "reeler/internal/episode"

// submitTask hands one source download to the pool. Tests replace it to
// withhold sources from the result stream.
var submitTask = func(_ episode.WorkItem, _ episode.Source, add func() error) error {
	return add()
}

// SetSubmitForTests overrides task submission and returns a restore func.
func SetSubmitForTests(fn func(item episode.WorkItem, src episode.Source, add func() error) error) func() {
	prev := submitTask
	submitTask = fn
	return func() {
		submitTask = prev
	}
}
