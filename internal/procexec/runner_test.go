package procexec_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"reeler/internal/procexec"
	"reeler/internal/services"
)

type scriptedExecutor struct {
	mu       sync.Mutex
	calls    int
	starts   []time.Time
	failures int
}

func (s *scriptedExecutor) Run(_ context.Context, _ procexec.Command, onLine func(procexec.Stream, string)) error {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.starts = append(s.starts, time.Now())
	s.mu.Unlock()

	onLine(procexec.Stdout, fmt.Sprintf("out %d", call))
	onLine(procexec.Stderr, fmt.Sprintf("err %d", call))
	if call <= s.failures {
		return errors.New("exit status 1")
	}
	return nil
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	exec := &scriptedExecutor{failures: 2}
	runner := procexec.NewRunner(procexec.WithExecutor(exec))

	var lines []procexec.Line
	start := time.Now()
	res, err := runner.Execute(context.Background(), procexec.Command{Name: "flaky"}, procexec.Policy{MaxAttempts: 3, Delay: 10 * time.Millisecond}, func(l procexec.Line) {
		lines = append(lines, l)
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if res.Attempts != 3 || exec.calls != 3 {
		t.Fatalf("expected 3 attempts, got result=%d calls=%d", res.Attempts, exec.calls)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("expected two retry delays, elapsed %s", elapsed)
	}
	for i := 1; i < len(exec.starts); i++ {
		if gap := exec.starts[i].Sub(exec.starts[i-1]); gap < 10*time.Millisecond {
			t.Fatalf("attempt %d started %s after previous, want >= 10ms", i+1, gap)
		}
	}
	if res.Stdout != "out 3\n" || res.Stderr != "err 3\n" {
		t.Fatalf("expected output of final attempt only, got %q / %q", res.Stdout, res.Stderr)
	}
	if len(lines) != 6 || lines[0].Attempt != 1 || lines[5].Attempt != 3 {
		t.Fatalf("unexpected streamed lines: %+v", lines)
	}
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	exec := &scriptedExecutor{failures: 100}
	runner := procexec.NewRunner(procexec.WithExecutor(exec))

	_, err := runner.Execute(context.Background(), procexec.Command{Name: "broken"}, procexec.Policy{MaxAttempts: 4}, nil)
	var exhausted *procexec.ProcessExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ProcessExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 4 || exec.calls != 4 {
		t.Fatalf("expected 4 attempts, got error=%d calls=%d", exhausted.Attempts, exec.calls)
	}
	if exhausted.Stderr != "err 4\n" || exhausted.Stdout != "out 4\n" {
		t.Fatalf("expected last attempt output, got %q / %q", exhausted.Stdout, exhausted.Stderr)
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool classification, got %v", err)
	}
	if !strings.Contains(err.Error(), "4 attempts") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestExecuteSuccessIsSingleAttempt(t *testing.T) {
	exec := &scriptedExecutor{}
	runner := procexec.NewRunner(procexec.WithExecutor(exec))
	res, err := runner.Execute(context.Background(), procexec.Command{Name: "ok"}, procexec.Policy{MaxAttempts: 5, Delay: time.Hour}, nil)
	if err != nil || res.Attempts != 1 || exec.calls != 1 {
		t.Fatalf("expected one attempt, got %+v calls=%d err=%v", res, exec.calls, err)
	}
}

func TestExecuteTreatsZeroAttemptsAsOne(t *testing.T) {
	exec := &scriptedExecutor{failures: 10}
	runner := procexec.NewRunner(procexec.WithExecutor(exec))
	_, err := runner.Execute(context.Background(), procexec.Command{Name: "x"}, procexec.Policy{}, nil)
	var exhausted *procexec.ProcessExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != 1 || exec.calls != 1 {
		t.Fatalf("expected single failed attempt, got %v calls=%d", err, exec.calls)
	}
}

func TestExecuteCancelDuringRetryDelay(t *testing.T) {
	exec := &scriptedExecutor{failures: 100}
	runner := procexec.NewRunner(procexec.WithExecutor(exec))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := runner.Execute(ctx, procexec.Command{Name: "slow"}, procexec.Policy{MaxAttempts: 5, Delay: time.Minute}, nil)
	var canceled *procexec.CanceledError
	if !errors.As(err, &canceled) {
		t.Fatalf("expected CanceledError, got %v", err)
	}
	if !errors.Is(err, context.Canceled) || !errors.Is(err, services.ErrCanceled) {
		t.Fatalf("expected cancellation markers, got %v", err)
	}
	if exec.calls != 1 {
		t.Fatalf("expected no retry after cancellation, got %d calls", exec.calls)
	}
}

func TestExecuteCancelledBeforeStart(t *testing.T) {
	exec := &scriptedExecutor{}
	runner := procexec.NewRunner(procexec.WithExecutor(exec))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := runner.Execute(ctx, procexec.Command{Name: "x"}, procexec.Once, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if exec.calls != 0 {
		t.Fatalf("expected no attempts, got %d", exec.calls)
	}
}

type attemptRecorder struct {
	mu       sync.Mutex
	attempts []int
	failed   int
}

func (r *attemptRecorder) ObserveAttempt(_ string, attempt int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
	if err != nil {
		r.failed++
	}
}

func TestExecuteNotifiesObserver(t *testing.T) {
	rec := &attemptRecorder{}
	runner := procexec.NewRunner(procexec.WithExecutor(&scriptedExecutor{failures: 1}), procexec.WithObserver(rec))
	if _, err := runner.Execute(context.Background(), procexec.Command{Name: "x"}, procexec.Policy{MaxAttempts: 2}, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rec.attempts) != 2 || rec.failed != 1 {
		t.Fatalf("unexpected observations: %+v", rec)
	}
}

func TestCommandString(t *testing.T) {
	cmd := procexec.Command{Name: "yt-dlp", Args: []string{"-o", "/tmp/a b/%(ext)s", "url"}}
	if got := cmd.String(); got != "yt-dlp -o '/tmp/a b/%(ext)s' url" {
		t.Fatalf("unexpected command string %q", got)
	}
}
