package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"reeler/internal/progress"
)

const (
	defaultThrottle = 100 * time.Millisecond
	barResolution   = 1000
)

// barRenderer draws one bar for the whole run. The bar advances with the
// summed fraction of every unit; the description carries per-stage counts.
type barRenderer struct {
	mu        sync.Mutex
	tracker   *progress.Tracker
	bar       *progressbar.ProgressBar
	downloads int
	encodes   int
	closed    bool
}

func newBarRenderer(w io.Writer, throttle time.Duration) *barRenderer {
	bar := progressbar.NewOptions64(barResolution,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(throttle),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetDescription("Starting"),
	)
	return &barRenderer{tracker: progress.NewTracker(), bar: bar}
}

func (r *barRenderer) SetTotals(downloads, encodes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.downloads = downloads
	r.encodes = encodes
}

func (r *barRenderer) Publish(e progress.Event) {
	r.tracker.Publish(e)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.redraw()
}

func (r *barRenderer) redraw() {
	units := r.tracker.Snapshot()
	counts := r.tracker.Counts()
	total := r.downloads + r.encodes
	if total < len(units) {
		total = len(units)
	}
	if total == 0 {
		return
	}
	var sum float64
	for _, unit := range units {
		sum += unit.Fraction()
	}

	parts := []string{
		fmt.Sprintf("%s %d/%d", StageLabel(progress.StageDownload), counts[progress.StageDownload][progress.Completed], r.downloads),
		fmt.Sprintf("%s %d/%d", StageLabel(progress.StageEncode), counts[progress.StageEncode][progress.Completed], r.encodes),
	}
	failed := counts[progress.StageDownload][progress.Failed] + counts[progress.StageEncode][progress.Failed]
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("failed %d", failed))
	}
	r.bar.Describe(strings.Join(parts, " | "))
	_ = r.bar.Set64(int64(sum / float64(total) * barResolution))
}

func (r *barRenderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	_ = r.bar.Exit()
}
