package render

import (
	"log/slog"

	"reeler/internal/logging"
	"reeler/internal/progress"
)

// defaultBuckets logs progress at most every quarter of a unit.
const defaultBuckets = 4

// logRenderer reports lifecycle events and sampled progress as log lines.
type logRenderer struct {
	logger  *slog.Logger
	sampler *sampler
}

func newLogRenderer(logger *slog.Logger, buckets int) *logRenderer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &logRenderer{
		logger:  logging.NewComponentLogger(logger, "progress"),
		sampler: newSampler(buckets),
	}
}

func (r *logRenderer) SetTotals(downloads, encodes int) {
	r.logger.Info("run totals", logging.Int("downloads", downloads), logging.Int("encodes", encodes))
}

func (r *logRenderer) Publish(e progress.Event) {
	key := string(e.Stage) + "/" + e.ID
	attrs := []logging.Attr{
		logging.String(logging.FieldStage, string(e.Stage)),
		logging.String("unit", e.ID),
	}
	if e.Label != "" {
		attrs = append(attrs, logging.String("detail", e.Label))
	}
	stage := StageLabel(e.Stage)

	switch e.Kind {
	case progress.Started:
		r.sampler.restart(key)
		r.logger.Info(stage+" started", logging.Args(attrs...)...)
	case progress.Progressed:
		fraction := e.Fraction()
		if !r.sampler.admit(key, fraction) {
			return
		}
		attrs = append(attrs, logging.Float64("percent", float64(int(fraction*100))))
		r.logger.Info(stage+" progress", logging.Args(attrs...)...)
	case progress.Completed:
		r.sampler.restart(key)
		r.logger.Info(stage+" completed", logging.Args(attrs...)...)
	case progress.Failed:
		r.sampler.restart(key)
		r.logger.Warn(stage+" failed", logging.Args(attrs...)...)
	}
}

func (r *logRenderer) Close() {}
