package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"reeler/internal/config"
	"reeler/internal/deps"
	"reeler/internal/download"
	"reeler/internal/encode"
	"reeler/internal/episode"
	"reeler/internal/history"
	"reeler/internal/logging"
	"reeler/internal/manifest"
	"reeler/internal/media/ffprobe"
	"reeler/internal/metrics"
	"reeler/internal/pipeline"
	"reeler/internal/preflight"
	"reeler/internal/procexec"
	"reeler/internal/progress"
	"reeler/internal/render"
	"reeler/internal/services"
	"reeler/internal/statusserver"
)

type runOptions struct {
	manifestPath  string
	skipCompleted bool
	skipChecks    bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <manifest>",
		Short: "Download and encode every episode in a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.manifestPath = args[0]
			return runManifest(cmd, ctx, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.skipCompleted, "skip-completed", false, "Skip episodes the history already lists as encoded")
	cmd.Flags().BoolVar(&opts.skipChecks, "skip-checks", false, "Skip binary and directory checks before starting")
	return cmd
}

func runManifest(cmd *cobra.Command, ctx *commandContext, opts runOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return services.Wrap(services.ErrConfiguration, "run", "lock",
			fmt.Sprintf("another run is using %s", cfg.Paths.WorkDir), nil)
	}
	defer func() { _ = lock.Unlock() }()

	if !opts.skipChecks {
		if err := deps.Missing(deps.CheckBinaries(deps.ForConfig(cfg))); err != nil {
			return err
		}
		if err := preflight.Failures(preflight.RunAll(cfg)); err != nil {
			return err
		}
	}

	manifestPath, err := filepath.Abs(opts.manifestPath)
	if err != nil {
		return fmt.Errorf("resolve manifest path: %w", err)
	}
	items, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	store, err := ctx.openHistory()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	out := cmd.OutOrStdout()
	if opts.skipCompleted && store != nil {
		items, err = dropCompleted(signalCtx, store, items, out)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(out, "Nothing to do: every episode is already encoded")
			return nil
		}
	}

	runID := uuid.NewString()
	runCtx := services.WithRunID(signalCtx, runID)

	if store != nil {
		if err := store.StartRun(runCtx, runID, manifestPath, len(items)); err != nil {
			return err
		}
	}

	completions, runErr := executeRun(runCtx, cmd, cfg, logger, store, runID, items)

	if store != nil {
		if err := store.FinishRun(context.WithoutCancel(runCtx), runID, runStatus(runErr), runErr); err != nil {
			logger.Warn("record run outcome failed", logging.Error(err))
		}
	}

	printSummary(out, runID, len(items), completions)
	return runErr
}

func executeRun(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, store *history.Store, runID string, items []episode.WorkItem) ([]episode.Completion, error) {
	m := metrics.New()
	tracker := progress.NewTracker()
	renderer := render.New(cmd.ErrOrStderr(), logger)
	renderer.SetTotals(countSources(items), len(items))
	defer renderer.Close()

	bus := progress.Stamp(progress.Fanout(tracker, renderer, m))
	runner := procexec.NewRunner(procexec.WithLogger(logger), procexec.WithObserver(m))

	downloader, err := download.New(
		download.Config{
			Parallelism: cfg.Downloader.Parallelism,
			Retry:       procexec.Policy{MaxAttempts: cfg.Downloader.MaxAttempts, Delay: cfg.RetryDelay()},
			WorkDir:     cfg.Paths.WorkDir,
		},
		runner,
		download.YTDLPBuilder{
			Binary:            cfg.Downloader.Binary,
			CookieFile:        cfg.Downloader.CookieFile,
			SubtitleLanguages: cfg.Downloader.SubtitleLanguages,
			ExtraArgs:         cfg.Downloader.ExtraArgs,
		},
		download.WithBus(bus),
		download.WithLogger(logger),
		download.WithPoolObserver(m.PoolObserver(progress.StageDownload)),
	)
	if err != nil {
		return nil, err
	}

	encoder, err := encode.New(
		encode.Config{
			Parallelism:   cfg.Encoder.Parallelism,
			OutputDir:     cfg.Paths.OutputDir,
			Container:     cfg.Encoder.Container,
			DeleteSources: cfg.Encoder.DeleteSources,
		},
		runner,
		ffprobe.NewProber(cfg.Encoder.FFprobeBinary, runner),
		encode.FFmpegBuilder{
			Binary:    cfg.Encoder.Binary,
			Container: cfg.Encoder.Container,
			ExtraArgs: cfg.Encoder.ExtraArgs,
		},
		encode.WithBus(bus),
		encode.WithLogger(logger),
		encode.WithPoolObserver(m.PoolObserver(progress.StageEncode)),
	)
	if err != nil {
		return nil, err
	}

	if bind := cfg.Metrics.Bind; bind != "" {
		server := statusserver.New(m, tracker, runID, logger)
		if err := server.Start(ctx, bind); err != nil {
			return nil, err
		}
		defer func() { _ = server.Shutdown() }()
		logger.Info("status server listening", logging.String("addr", server.Addr()))
	}

	p := pipeline.New(downloader, encoder, pipeline.Options{GroupBuffer: cfg.Downloader.Parallelism}, logger)
	return p.Run(ctx, items, func(c episode.Completion) {
		if store == nil {
			return
		}
		if err := store.Record(context.WithoutCancel(ctx), runID, c); err != nil {
			logger.Warn("record completion failed",
				logging.String(logging.FieldEpisodeID, c.EpisodeID),
				logging.Error(err),
			)
		}
	})
}

func dropCompleted(ctx context.Context, store *history.Store, items []episode.WorkItem, out io.Writer) ([]episode.WorkItem, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	done, err := store.Completed(ctx, ids)
	if err != nil {
		return nil, err
	}
	pending := make([]episode.WorkItem, 0, len(items))
	for _, item := range items {
		if done[item.ID] {
			continue
		}
		pending = append(pending, item)
	}
	if skipped := len(items) - len(pending); skipped > 0 {
		fmt.Fprintf(out, "Skipping %d already encoded episode(s)\n", skipped)
	}
	return pending, nil
}

func runStatus(err error) string {
	switch services.Classify(err) {
	case services.ClassNone:
		return history.RunSucceeded
	case services.ClassCanceled:
		return history.RunCanceled
	default:
		return history.RunFailed
	}
}

func countSources(items []episode.WorkItem) int {
	total := 0
	for _, item := range items {
		total += len(item.Sources)
	}
	return total
}

func printSummary(out io.Writer, runID string, planned int, completions []episode.Completion) {
	fmt.Fprintf(out, "Run %s: %d/%d episodes encoded\n", runID, len(completions), planned)
	if len(completions) == 0 {
		return
	}
	rows := make([][]string, 0, len(completions))
	var totalSize int64
	var totalDuration time.Duration
	for _, c := range completions {
		totalSize += c.SizeBytes
		totalDuration += c.Duration
		rows = append(rows, []string{
			c.EpisodeID,
			c.OutputPath,
			formatDuration(c.Duration),
			humanize.Bytes(uint64(max(c.SizeBytes, 0))),
			formatDuration(c.Elapsed),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Episode", "Output", "Duration", "Size", "Took"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
		[]string{"Total", "", formatDuration(totalDuration), humanize.Bytes(uint64(max(totalSize, 0))), ""},
	))
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
