package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"reeler/internal/episode"
	"reeler/internal/fileutil"
	"reeler/internal/logging"
	"reeler/internal/pool"
	"reeler/internal/procexec"
	"reeler/internal/progress"
	"reeler/internal/services"
)

// Runner executes one downloader command with retries.
type Runner interface {
	Execute(ctx context.Context, cmd procexec.Command, policy procexec.Policy, onLine procexec.LineHandler) (procexec.Result, error)
}

// Config bounds the download stage.
type Config struct {
	Parallelism int
	Retry       procexec.Policy
	WorkDir     string
}

// Stage downloads every source of a batch and emits complete episodes.
type Stage struct {
	cfg          Config
	runner       Runner
	builder      CommandBuilder
	bus          progress.Bus
	logger       *slog.Logger
	poolObserver func(int)
}

// Option configures a Stage.
type Option func(*Stage)

// WithBus publishes per-source progress events to bus.
func WithBus(bus progress.Bus) Option {
	return func(s *Stage) {
		if bus != nil {
			s.bus = bus
		}
	}
}

// WithLogger sets the stage logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPoolObserver reports the number of downloads in flight.
func WithPoolObserver(fn func(inFlight int)) Option {
	return func(s *Stage) {
		s.poolObserver = fn
	}
}

// New constructs a download stage.
func New(cfg Config, runner Runner, builder CommandBuilder, opts ...Option) (*Stage, error) {
	if cfg.Parallelism <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "download", "init", fmt.Sprintf("parallelism must be positive, got %d", cfg.Parallelism), nil)
	}
	if runner == nil || builder == nil {
		return nil, services.Wrap(services.ErrConfiguration, "download", "init", "runner and command builder are required", nil)
	}
	s := &Stage{
		cfg:     cfg,
		runner:  runner,
		builder: builder,
		bus:     progress.Discard,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "download")
	return s, nil
}

// Run downloads every source of items and sends each episode to out exactly
// once, when all of its sources have been downloaded. out is closed when Run
// returns. The first failed download ends Run with that error; downloads
// still running are abandoned to ctx and their results discarded.
func (s *Stage) Run(ctx context.Context, items []episode.WorkItem, out chan<- episode.GroupedEpisode) error {
	defer close(out)
	if err := episode.ValidateBatch(items); err != nil {
		return err
	}
	total := 0
	for _, item := range items {
		total += len(item.Sources)
	}
	if total == 0 {
		return nil
	}

	p, err := pool.New[episode.DownloadedArtifact](ctx, s.cfg.Parallelism, pool.WithObserver(s.poolObserver))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "download", "pool", "", err)
	}
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("download stage starting",
		logging.Int("episodes", len(items)),
		logging.Int("sources", total),
		logging.Int("parallelism", s.cfg.Parallelism),
	)

	go func() {
		defer p.Close()
		for _, item := range items {
			for _, src := range item.Sources {
				task := s.task(item, src)
				if err := submitTask(item, src, func() error { return p.Add(task) }); err != nil {
					return
				}
			}
		}
	}()

	g := newGrouper(items)
	emitted := 0
	_, err = p.WaitUntilDrained(ctx, total, func(art episode.DownloadedArtifact) error {
		group, ready, err := g.add(art)
		if err != nil || !ready {
			return err
		}
		logger.Info("episode sources complete",
			logging.String(logging.FieldEpisodeID, group.Item.ID),
			logging.Int("artifacts", len(group.Artifacts)),
		)
		select {
		case out <- group:
			emitted++
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		var short *pool.ShortDrainError
		var fault *pool.FaultError
		switch {
		case errors.As(err, &short) && ctx.Err() != nil:
			err = ctx.Err()
		case errors.As(err, &short):
			err = &IncompleteGroupingError{Missing: g.missing()}
		case errors.As(err, &fault):
			err = fault.Err
		}
		logger.Error("download stage failed", logging.Int("emitted", emitted), logging.Error(err))
		return err
	}
	p.Wait()
	logger.Info("download stage finished", logging.Int("episodes", emitted), logging.Int("peak_parallelism", p.Peak()))
	return nil
}

func (s *Stage) task(item episode.WorkItem, src episode.Source) pool.Task[episode.DownloadedArtifact] {
	return func(ctx context.Context) (episode.DownloadedArtifact, error) {
		ctx = services.WithStage(services.WithSourceID(services.WithEpisodeID(ctx, item.ID), src.ID), "download")
		logger := logging.WithContext(ctx, s.logger)
		unit := UnitID(item.ID, src.ID)
		label := fmt.Sprintf("%s [%s]", item.Label(), src.ID)

		dir := filepath.Join(s.cfg.WorkDir, fileutil.SanitizeFileName(item.ID, "episode"))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.publish(unit, progress.Failed, 0, label)
			return episode.DownloadedArtifact{}, services.Wrap(services.ErrConfiguration, "download", "workdir", dir, err)
		}
		cmd := s.builder.Build(item, src, dir)
		if cmd.Dir != "" {
			dir = cmd.Dir
		}

		s.publish(unit, progress.Started, 0, label)
		parsers := make(map[int]*outputParser)
		onLine := func(line procexec.Line) {
			parser, ok := parsers[line.Attempt]
			if !ok {
				parser = newOutputParser(dir)
				parsers[line.Attempt] = parser
				if line.Attempt > 1 {
					s.publish(unit, progress.Started, 0, fmt.Sprintf("%s (attempt %d)", label, line.Attempt))
				}
			}
			if update, ok := parser.parse(line.Text); ok {
				s.bus.Publish(progress.Event{
					ID:    unit,
					Stage: progress.StageDownload,
					Kind:  progress.Progressed,
					Value: update.Percent / 100,
					Label: update.Label(),
				})
			}
		}

		started := time.Now()
		res, err := s.runner.Execute(ctx, cmd, s.cfg.Retry, onLine)
		if err != nil {
			s.publish(unit, progress.Failed, 0, label)
			if errors.Is(err, services.ErrCanceled) {
				return episode.DownloadedArtifact{}, err
			}
			return episode.DownloadedArtifact{}, services.Wrap(services.ErrExternalTool, "download", cmd.Name, fmt.Sprintf("episode %s source %s", item.ID, src.ID), err)
		}

		var files []episode.ArtifactFile
		if parser := parsers[res.Attempts]; parser != nil {
			files = parser.artifactFiles()
		}
		if len(files) == 0 {
			s.publish(unit, progress.Failed, 0, label)
			return episode.DownloadedArtifact{}, services.Wrap(services.ErrExternalTool, "download", cmd.Name,
				fmt.Sprintf("episode %s source %s reported no output files", item.ID, src.ID), nil)
		}

		s.publish(unit, progress.Completed, 1, label)
		logger.Info("source downloaded",
			logging.Int(logging.FieldAttempt, res.Attempts),
			logging.Int("files", len(files)),
			logging.Duration("elapsed", time.Since(started)),
		)
		return episode.DownloadedArtifact{
			EpisodeID: item.ID,
			SourceID:  src.ID,
			Kind:      src.Kind,
			Language:  src.Language,
			Files:     files,
			Attempts:  res.Attempts,
		}, nil
	}
}

func (s *Stage) publish(unit string, kind progress.Kind, value float64, label string) {
	s.bus.Publish(progress.Event{
		ID:    unit,
		Stage: progress.StageDownload,
		Kind:  kind,
		Value: value,
		Label: label,
	})
}

// UnitID names the progress unit of one source download.
func UnitID(episodeID, sourceID string) string {
	return episodeID + "/" + sourceID
}
