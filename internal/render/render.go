// Package render shows pipeline progress to a person watching the run: a
// single progress bar on a terminal, or sampled log lines otherwise.
package render

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reeler/internal/progress"
)

// Renderer consumes progress events and presents them.
type Renderer interface {
	progress.Bus
	// SetTotals declares how many download and encode units the run expects.
	SetTotals(downloads, encodes int)
	// Close stops rendering and leaves the last state visible.
	Close()
}

// New picks a bar renderer when w is a terminal and a log renderer otherwise.
func New(w io.Writer, logger *slog.Logger) Renderer {
	if IsTerminal(w) {
		return newBarRenderer(w, defaultThrottle)
	}
	return newLogRenderer(logger, defaultBuckets)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var titleCaser = cases.Title(language.English)

// StageLabel renders a stage name for display.
func StageLabel(stage progress.Stage) string {
	return titleCaser.String(string(stage))
}
