package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"reeler/internal/render"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	statusLabelWidth = 22
	statusIndent     = "  "
)

var statusColors = map[statusKind]*color.Color{
	statusOK:    color.New(color.FgGreen),
	statusWarn:  color.New(color.FgYellow),
	statusError: color.New(color.FgRed),
	statusInfo:  color.New(color.FgBlue),
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if !colorize {
		return base
	}
	c := statusColors[kind]
	c.EnableColor()
	return c.Sprint(base)
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func shouldColorize(w io.Writer) bool {
	return !color.NoColor && render.IsTerminal(w)
}
