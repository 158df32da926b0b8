package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reeler/internal/download"
	"reeler/internal/encode"
	"reeler/internal/episode"
	"reeler/internal/pipeline"
	"reeler/internal/procexec"
	"reeler/internal/progress"
	"reeler/internal/services"
)

type fileBuilder struct{}

func (fileBuilder) Build(_ episode.WorkItem, src episode.Source, dir string) procexec.Command {
	name := src.ID + ".mp4"
	if src.Kind == episode.KindSubtitle {
		name = src.ID + ".en.vtt"
	}
	return procexec.Command{Name: "dl", Args: []string{name}, Dir: dir}
}

type encBuilder struct{}

func (encBuilder) Build(group episode.GroupedEpisode, output string) procexec.Command {
	return procexec.Command{Name: "enc", Args: []string{group.Item.ID, output}}
}

type fixedProber struct{}

func (fixedProber) Duration(context.Context, ...string) (time.Duration, error) {
	return 20 * time.Second, nil
}

type harness struct {
	downloads   atomic.Int32
	encodes     atomic.Int32
	encodeLive  atomic.Int32
	encodePeak  atomic.Int32
	failEncode  string
	recorder    progress.Recorder
	downloadDir string
	outputDir   string
}

func (h *harness) downloadExec(_ context.Context, cmd procexec.Command, onLine func(procexec.Stream, string)) error {
	h.downloads.Add(1)
	time.Sleep(2 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(cmd.Dir, cmd.Args[0]), []byte("media"), 0o644); err != nil {
		return err
	}
	onLine(procexec.Stdout, "[download] Destination: "+cmd.Args[0])
	return nil
}

func (h *harness) encodeExec(ctx context.Context, cmd procexec.Command, onLine func(procexec.Stream, string)) error {
	h.encodes.Add(1)
	n := h.encodeLive.Add(1)
	defer h.encodeLive.Add(-1)
	for {
		peak := h.encodePeak.Load()
		if n <= peak || h.encodePeak.CompareAndSwap(peak, n) {
			break
		}
	}
	if cmd.Args[0] == h.failEncode {
		return errors.New("exit status 1")
	}
	onLine(procexec.Stderr, "frame=1 time=00:00:10.00 speed=1.0x")
	select {
	case <-time.After(5 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	return os.WriteFile(cmd.Args[1], []byte("out"), 0o644)
}

func (h *harness) pipeline(t *testing.T, downloadSize, encodeSize int) *pipeline.Pipeline {
	t.Helper()
	h.downloadDir = t.TempDir()
	h.outputDir = t.TempDir()
	dl, err := download.New(
		download.Config{Parallelism: downloadSize, Retry: procexec.Once, WorkDir: h.downloadDir},
		procexec.NewRunner(procexec.WithExecutor(procexec.ExecutorFunc(h.downloadExec))),
		fileBuilder{},
		download.WithBus(&h.recorder),
	)
	if err != nil {
		t.Fatalf("download.New: %v", err)
	}
	enc, err := encode.New(
		encode.Config{Parallelism: encodeSize, OutputDir: h.outputDir, Container: "mkv"},
		procexec.NewRunner(procexec.WithExecutor(procexec.ExecutorFunc(h.encodeExec))),
		fixedProber{},
		encBuilder{},
		encode.WithBus(&h.recorder),
	)
	if err != nil {
		t.Fatalf("encode.New: %v", err)
	}
	return pipeline.New(dl, enc, pipeline.Options{GroupBuffer: downloadSize}, nil)
}

func items(n int) []episode.WorkItem {
	out := make([]episode.WorkItem, 0, n)
	for i := 1; i <= n; i++ {
		id := "s01e0" + string(rune('0'+i))
		out = append(out, episode.WorkItem{
			ID: id,
			Sources: []episode.Source{
				{ID: "video", Kind: episode.KindVideoWithAudio, Locator: "https://example.test/" + id},
				{ID: "subs", Kind: episode.KindSubtitle, Locator: "https://example.test/" + id + "/subs"},
			},
		})
	}
	return out
}

func TestRunEndToEnd(t *testing.T) {
	h := &harness{}
	p := h.pipeline(t, 2, 1)

	var mu sync.Mutex
	var streamed []string
	completions, err := p.Run(context.Background(), items(3), func(c episode.Completion) {
		mu.Lock()
		streamed = append(streamed, c.EpisodeID)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := h.downloads.Load(); got != 6 {
		t.Fatalf("expected 6 download invocations, got %d", got)
	}
	if got := h.encodes.Load(); got != 3 {
		t.Fatalf("expected 3 encode invocations, got %d", got)
	}
	if got := h.encodePeak.Load(); got != 1 {
		t.Fatalf("expected serial encodes, peak %d", got)
	}
	if len(completions) != 3 || len(streamed) != 3 {
		t.Fatalf("expected 3 completions, got %d (streamed %d)", len(completions), len(streamed))
	}
	if got := h.recorder.Count(progress.StageEncode, progress.Completed); got != 3 {
		t.Fatalf("expected 3 encode completed events, got %d", got)
	}
	for _, c := range completions {
		if _, err := os.Stat(c.OutputPath); err != nil {
			t.Fatalf("missing output %s: %v", c.OutputPath, err)
		}
	}
}

func TestRunStopsOnEncodeFailure(t *testing.T) {
	h := &harness{failEncode: "s01e01"}
	p := h.pipeline(t, 2, 1)

	_, err := p.Run(context.Background(), items(3), nil)
	if err == nil {
		t.Fatal("expected failure")
	}
	var encErr *encode.EncodeError
	if !errors.As(err, &encErr) || encErr.EpisodeID != "s01e01" {
		t.Fatalf("expected encode error for s01e01, got %v", err)
	}
	if services.Classify(err) != services.ClassExternalTool {
		t.Fatalf("unexpected classification %q", services.Classify(err))
	}
}

func TestRunRejectsInvalidBatch(t *testing.T) {
	h := &harness{}
	p := h.pipeline(t, 1, 1)
	_, err := p.Run(context.Background(), []episode.WorkItem{{ID: "e1"}}, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if h.downloads.Load() != 0 {
		t.Fatal("no downloads expected")
	}
}
