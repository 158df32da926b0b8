package procexec

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"reeler/internal/services"
)

func TestCommandExecutorStreamsBothPipes(t *testing.T) {
	runner := NewRunner()
	var got []Line
	res, err := runner.Execute(context.Background(), Command{
		Name: "/bin/sh",
		Args: []string{"-c", "echo one; echo two 1>&2; printf 'a\\rb\\n'"},
	}, Once, func(l Line) { got = append(got, l) })
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(res.Stdout, "one\n") || !strings.Contains(res.Stderr, "two\n") {
		t.Fatalf("unexpected capture %q / %q", res.Stdout, res.Stderr)
	}
	var sawCR bool
	for _, l := range got {
		if l.Stream == Stdout && l.Text == "a" {
			sawCR = true
		}
	}
	if !sawCR {
		t.Fatalf("expected carriage return to split lines, got %+v", got)
	}
}

func TestCommandExecutorReportsExitCode(t *testing.T) {
	runner := NewRunner()
	_, err := runner.Execute(context.Background(), Command{Name: "/bin/sh", Args: []string{"-c", "echo nope 1>&2; exit 3"}}, Policy{MaxAttempts: 2}, nil)
	var exhausted *ProcessExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ProcessExhaustedError, got %v", err)
	}
	if exhausted.ExitCode != 3 || exhausted.Attempts != 2 {
		t.Fatalf("unexpected exhaustion: %+v", exhausted)
	}
	if exhausted.Stderr != "nope\n" {
		t.Fatalf("expected single attempt stderr, got %q", exhausted.Stderr)
	}
}

func TestCommandExecutorKillsOnCancel(t *testing.T) {
	runner := NewRunner()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := runner.Execute(ctx, Command{Name: "/bin/sh", Args: []string{"-c", "sleep 30 & wait"}}, Policy{MaxAttempts: 3}, nil)
	var canceled *CanceledError
	if !errors.As(err, &canceled) {
		t.Fatalf("expected CanceledError, got %v", err)
	}
	if canceled.Attempt != 1 {
		t.Fatalf("expected cancellation on first attempt, got %d", canceled.Attempt)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("process group was not killed promptly (%s)", elapsed)
	}
}

func TestMissingBinaryIsNotRetried(t *testing.T) {
	runner := NewRunner()
	_, err := runner.Execute(context.Background(), Command{Name: "/nonexistent/reeler-tool"}, Policy{MaxAttempts: 5, Delay: time.Hour}, nil)
	if err == nil || !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	var exhausted *ProcessExhaustedError
	if errors.As(err, &exhausted) {
		t.Fatalf("start failure should not be reported as exhaustion: %v", err)
	}
}

func TestScanOutputLines(t *testing.T) {
	scanner := bufio.NewScanner(strings.NewReader("frame=1\rframe=2\r\nline\nlast"))
	scanner.Split(scanOutputLines)
	var got []string
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}
	want := []string{"frame=1", "frame=2", "line", "last"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestTailBufferKeepsNewestBytes(t *testing.T) {
	buf := newTailBuffer(8)
	buf.writeLine("abcdef")
	buf.writeLine("xyz")
	if got := buf.String(); got != "def\nxyz\n" {
		t.Fatalf("unexpected tail %q", got)
	}
	buf.reset()
	if buf.String() != "" {
		t.Fatal("expected empty buffer after reset")
	}
}
