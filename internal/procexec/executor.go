package procexec

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Executor runs a single attempt of a command, forwarding each output line.
// It returns nil only when the process exits with status zero.
type Executor interface {
	Run(ctx context.Context, cmd Command, onLine func(Stream, string)) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, cmd Command, onLine func(Stream, string)) error

func (f ExecutorFunc) Run(ctx context.Context, cmd Command, onLine func(Stream, string)) error {
	return f(ctx, cmd, onLine)
}

const waitDelay = 5 * time.Second

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, command Command, onLine func(Stream, string)) error {
	cmd := exec.CommandContext(ctx, command.Name, command.Args...) //nolint:gosec
	cmd.Dir = command.Dir
	if len(command.Env) > 0 {
		cmd.Env = append(os.Environ(), command.Env...)
	}
	configureProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return &startError{err: err}
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader, stream Stream) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
		scanner.Split(scanOutputLines)
		for scanner.Scan() {
			onLine(stream, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
			_, _ = io.Copy(io.Discard, r)
		}
	}

	wg.Add(2)
	go scan(stdout, Stdout)
	go scan(stderr, Stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	if scanErr != nil {
		return fmt.Errorf("scan output: %w", scanErr)
	}
	return nil
}

// scanOutputLines splits on newlines and on bare carriage returns so tools
// that redraw a status line (ffmpeg, yt-dlp without --newline) still stream.
func scanOutputLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance := i + 1
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			advance++
		} else if data[i] == '\r' && i+1 == len(data) && !atEOF {
			return 0, nil, nil
		}
		return advance, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
