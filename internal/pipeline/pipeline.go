// Package pipeline connects the download and encode stages so encoding starts
// as soon as the first episode has all of its sources.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"reeler/internal/episode"
	"reeler/internal/logging"
	"reeler/internal/services"
)

// Downloader produces grouped episodes.
type Downloader interface {
	Run(ctx context.Context, items []episode.WorkItem, out chan<- episode.GroupedEpisode) error
}

// Encoder consumes grouped episodes.
type Encoder interface {
	Run(ctx context.Context, in <-chan episode.GroupedEpisode, out chan<- episode.Completion) error
}

// Options tunes buffering between the stages.
type Options struct {
	// GroupBuffer is how many grouped episodes may wait for an encode slot.
	GroupBuffer int
}

// Pipeline runs a batch through both stages.
type Pipeline struct {
	download Downloader
	encode   Encoder
	opts     Options
	logger   *slog.Logger
}

// New constructs a pipeline.
func New(download Downloader, encode Encoder, opts Options, logger *slog.Logger) *Pipeline {
	if opts.GroupBuffer < 0 {
		opts.GroupBuffer = 0
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		download: download,
		encode:   encode,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Run downloads and encodes items. onCompletion, when set, is called for each
// encoded episode as it finishes. The first stage failure cancels the other
// stage and is returned together with the completions gathered so far.
func (p *Pipeline) Run(ctx context.Context, items []episode.WorkItem, onCompletion func(episode.Completion)) ([]episode.Completion, error) {
	if p.download == nil || p.encode == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "run", "both stages are required", nil)
	}
	if err := episode.ValidateBatch(items); err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, p.logger)
	started := time.Now()
	logger.Info("pipeline starting", logging.Int("episodes", len(items)))

	g, gctx := errgroup.WithContext(ctx)
	groups := make(chan episode.GroupedEpisode, p.opts.GroupBuffer)
	completed := make(chan episode.Completion)

	g.Go(func() error {
		if err := p.download.Run(gctx, items, groups); err != nil {
			return fmt.Errorf("download stage: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := p.encode.Run(gctx, groups, completed); err != nil {
			return fmt.Errorf("encode stage: %w", err)
		}
		return nil
	})

	var results []episode.Completion
	g.Go(func() error {
		for c := range completed {
			results = append(results, c)
			if onCompletion != nil {
				onCompletion(c)
			}
		}
		return nil
	})

	err := g.Wait()
	if err != nil {
		logger.Error("pipeline failed",
			logging.Int("completed", len(results)),
			logging.String("error_class", string(services.Classify(err))),
			logging.Error(err),
		)
		return results, err
	}
	logger.Info("pipeline finished",
		logging.Int("completed", len(results)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return results, nil
}
