package encode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reeler/internal/episode"
	"reeler/internal/fileutil"
	"reeler/internal/logging"
	"reeler/internal/pool"
	"reeler/internal/procexec"
	"reeler/internal/progress"
	"reeler/internal/services"
)

// Runner executes one encoder command.
type Runner interface {
	Execute(ctx context.Context, cmd procexec.Command, policy procexec.Policy, onLine procexec.LineHandler) (procexec.Result, error)
}

// Prober reports the playable duration of a set of inputs.
type Prober interface {
	Duration(ctx context.Context, paths ...string) (time.Duration, error)
}

// Config bounds the encode stage.
type Config struct {
	Parallelism   int
	OutputDir     string
	Container     string
	DeleteSources bool
}

// Stage encodes grouped episodes.
type Stage struct {
	cfg          Config
	runner       Runner
	prober       Prober
	builder      CommandBuilder
	bus          progress.Bus
	logger       *slog.Logger
	poolObserver func(int)
}

// Option configures a Stage.
type Option func(*Stage)

// WithBus publishes per-episode progress events to bus.
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

// WithPoolObserver reports the number of encodes in flight.
func WithPoolObserver(fn func(inFlight int)) Option {
	return func(s *Stage) {
		s.poolObserver = fn
	}
}

// New constructs an encode stage.
func New(cfg Config, runner Runner, prober Prober, builder CommandBuilder, opts ...Option) (*Stage, error) {
	if cfg.Parallelism <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "encode", "init", fmt.Sprintf("parallelism must be positive, got %d", cfg.Parallelism), nil)
	}
	if runner == nil || prober == nil || builder == nil {
		return nil, services.Wrap(services.ErrConfiguration, "encode", "init", "runner, prober and command builder are required", nil)
	}
	cfg.Container = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(cfg.Container)), ".")
	if cfg.Container == "" {
		cfg.Container = "mkv"
	}
	s := &Stage{
		cfg:     cfg,
		runner:  runner,
		prober:  prober,
		builder: builder,
		bus:     progress.Discard,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "encode")
	return s, nil
}

// OutputPath returns the final file path for item.
func (s *Stage) OutputPath(item episode.WorkItem) string {
	return filepath.Join(s.cfg.OutputDir, item.OutputBase()+"."+s.cfg.Container)
}

// Run encodes each group received from in and sends a Completion to out.
// Groups are scheduled as soon as they arrive. out is closed when Run
// returns. The first failure ends Run with that error.
func (s *Stage) Run(ctx context.Context, in <-chan episode.GroupedEpisode, out chan<- episode.Completion) error {
	defer close(out)
	p, err := pool.New[episode.Completion](ctx, s.cfg.Parallelism, pool.WithObserver(s.poolObserver))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "encode", "pool", "", err)
	}
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("encode stage starting", logging.Int("parallelism", s.cfg.Parallelism))

	var feedErr error
	fed := make(chan struct{})
	go func() {
		defer close(fed)
		defer p.Close()
		for {
			select {
			case <-ctx.Done():
				feedErr = ctx.Err()
				return
			case group, ok := <-in:
				if !ok {
					return
				}
				if err := p.Add(s.task(group)); err != nil {
					feedErr = err
					return
				}
			}
		}
	}()

	encoded := 0
	for {
		completion, err := p.Next(ctx)
		if errors.Is(err, pool.ErrDrained) {
			break
		}
		if err != nil {
			var fault *pool.FaultError
			if errors.As(err, &fault) {
				err = fault.Err
			}
			logger.Error("encode stage failed", logging.Int("encoded", encoded), logging.Error(err))
			return err
		}
		select {
		case out <- completion:
			encoded++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-fed
	if feedErr != nil {
		return feedErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Info("encode stage finished", logging.Int("episodes", encoded), logging.Int("peak_parallelism", p.Peak()))
	return nil
}

func (s *Stage) task(group episode.GroupedEpisode) pool.Task[episode.Completion] {
	return func(ctx context.Context) (episode.Completion, error) {
		item := group.Item
		ctx = services.WithStage(services.WithEpisodeID(ctx, item.ID), "encode")
		logger := logging.WithContext(ctx, s.logger)
		started := time.Now()

		s.publish(item.ID, progress.Started, 0, item.Label())
		completion, err := s.encode(ctx, logger, group)
		if err != nil {
			s.publish(item.ID, progress.Failed, 0, item.Label())
			return episode.Completion{}, err
		}
		completion.Elapsed = time.Since(started)
		s.publish(item.ID, progress.Completed, 1, item.Label())
		logger.Info("episode encoded",
			logging.String("output", completion.OutputPath),
			logging.Duration("media_duration", completion.Duration),
			logging.Duration("elapsed", completion.Elapsed),
			logging.Int64("size_bytes", completion.SizeBytes),
		)
		return completion, nil
	}
}

func (s *Stage) encode(ctx context.Context, logger *slog.Logger, group episode.GroupedEpisode) (episode.Completion, error) {
	item := group.Item
	media, err := verifyFiles(group)
	if err != nil {
		return episode.Completion{}, err
	}

	total, err := s.prober.Duration(ctx, media...)
	if err != nil {
		if errors.Is(err, services.ErrCanceled) || ctx.Err() != nil {
			return episode.Completion{}, err
		}
		return episode.Completion{}, &EncodeError{EpisodeID: item.ID, Op: "probe", Err: err}
	}

	output := s.OutputPath(item)
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return episode.Completion{}, &EncodeError{EpisodeID: item.ID, Op: "prepare output", Err: err}
	}
	partial := partialPath(output)
	cmd := s.builder.Build(group, partial)

	onLine := func(line procexec.Line) {
		update, ok := parseStats(line.Text)
		if !ok {
			return
		}
		label := ""
		if update.Speed > 0 {
			label = fmt.Sprintf("speed %.2fx", update.Speed)
		}
		s.bus.Publish(progress.Event{
			ID:    item.ID,
			Stage: progress.StageEncode,
			Kind:  progress.Progressed,
			Value: clampElapsed(update.Elapsed, total).Seconds(),
			Total: total.Seconds(),
			Label: label,
		})
	}

	logger.Debug("encoder starting", logging.String("output", output), logging.Duration("media_duration", total))
	if _, err := s.runner.Execute(ctx, cmd, procexec.Once, onLine); err != nil {
		_ = fileutil.RemoveFiles(partial)
		if errors.Is(err, services.ErrCanceled) {
			return episode.Completion{}, err
		}
		return episode.Completion{}, &EncodeError{EpisodeID: item.ID, Op: cmd.Name, Err: err}
	}
	if err := os.Rename(partial, output); err != nil {
		return episode.Completion{}, &EncodeError{EpisodeID: item.ID, Op: "finalize output", Err: err}
	}

	if s.cfg.DeleteSources {
		paths := make([]string, 0, len(group.Files()))
		for _, f := range group.Files() {
			paths = append(paths, f.Path)
		}
		if err := fileutil.RemoveFiles(paths...); err != nil {
			logger.Warn("failed to remove downloaded sources", logging.Error(err))
		}
	}

	return episode.Completion{
		EpisodeID:  item.ID,
		Title:      item.Label(),
		OutputPath: output,
		Duration:   total,
		SizeBytes:  fileutil.FileSize(output),
		FinishedAt: time.Now(),
	}, nil
}

func (s *Stage) publish(id string, kind progress.Kind, value float64, label string) {
	s.bus.Publish(progress.Event{
		ID:    id,
		Stage: progress.StageEncode,
		Kind:  kind,
		Value: value,
		Label: label,
	})
}

// verifyFiles checks every artifact file is present and returns the audio and
// video paths used for the duration probe.
func verifyFiles(group episode.GroupedEpisode) ([]string, error) {
	var media []string
	for _, art := range group.Artifacts {
		if len(art.Files) == 0 {
			return nil, &FileIntegrityError{EpisodeID: group.Item.ID, SourceID: art.SourceID, Err: errors.New("no files recorded")}
		}
		for _, f := range art.Files {
			info, err := os.Stat(f.Path)
			if err != nil {
				return nil, &FileIntegrityError{EpisodeID: group.Item.ID, SourceID: art.SourceID, Path: f.Path, Err: err}
			}
			if info.IsDir() || info.Size() == 0 {
				return nil, &FileIntegrityError{EpisodeID: group.Item.ID, SourceID: art.SourceID, Path: f.Path, Err: errors.New("empty or not a regular file")}
			}
			if f.Kind != episode.FileSubtitle {
				media = append(media, f.Path)
			}
		}
	}
	if len(media) == 0 {
		return nil, &FileIntegrityError{EpisodeID: group.Item.ID, Err: errors.New("no audio or video files downloaded")}
	}
	return media, nil
}

func partialPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + ".partial" + ext
}
