package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const (
	defaultInterpreter = "python3"
	defaultTimeout     = 5 * time.Second

	// waitDelay bounds how long output is drained after the interpreter
	// exits and its process group is killed.
	waitDelay = time.Second
)

// ProcessConfig configures the process-based sandbox.
type ProcessConfig struct {
	Interpreter    string
	DefaultTimeout time.Duration
}

// ProcessSandbox runs the interpreter as a plain OS process on the host.
//
// It is not an isolation boundary. What it does guarantee:
//   - The process runs in its own process group (where supported)
//   - The whole group is killed when the interpreter exits or the
//     deadline passes, whichever comes first
//   - The environment is a minimal set, not the server's
//   - stdout/stderr are capped
type ProcessSandbox struct {
	interpreter    string
	defaultTimeout time.Duration
	logger         *slog.Logger
}

// NewProcessSandbox creates a process-based sandbox. It fails when the
// interpreter cannot be found on PATH.
func NewProcessSandbox(cfg ProcessConfig, logger *slog.Logger) (*ProcessSandbox, error) {
	interpreter := cfg.Interpreter
	if interpreter == "" {
		interpreter = defaultInterpreter
	}
	resolved, err := exec.LookPath(interpreter)
	if err != nil {
		return nil, fmt.Errorf("locating interpreter %q: %w", interpreter, err)
	}

	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &ProcessSandbox{
		interpreter:    resolved,
		defaultTimeout: timeout,
		logger:         logger,
	}, nil
}

// Interpreter returns the resolved interpreter path.
func (s *ProcessSandbox) Interpreter() string {
	return s.interpreter
}

// Exec runs the interpreter against opts.Path.
func (s *ProcessSandbox) Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error) {
	if opts.Path == "" {
		return nil, errors.New("empty source path")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dir := filepath.Dir(opts.Path)
	cmd := exec.CommandContext(ctx, s.interpreter, opts.Path)
	cmd.Dir = dir
	cmd.Env = buildEnv(dir)
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	s.logger.Debug("sandbox executing",
		slog.String("interpreter", s.interpreter),
		slog.String("path", opts.Path),
		slog.Duration("timeout", timeout),
	)

	var stdout, stderr bytes.Buffer
	start := time.Now()
	runErr := runCaptured(cmd, &stdout, &stderr)
	duration := time.Since(start)

	timedOut := runErr != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)
	res, err := interpret(runErr, timedOut, timeout, stdout.String(), stderr.String(), duration)
	if err != nil {
		return nil, err
	}

	if res.TimedOut {
		s.logger.Warn("sandbox execution timed out",
			slog.Duration("timeout", timeout),
			slog.Duration("duration", duration),
		)
	} else {
		s.logger.Info("sandbox execution completed",
			slog.Int("exit_code", res.ExitCode),
			slog.Duration("duration", duration),
			slog.Int("stdout_bytes", stdout.Len()),
			slog.Int("stderr_bytes", stderr.Len()),
		)
	}
	return res, nil
}

// runCaptured runs cmd with its output captured into stdout and stderr.
//
// The child gets the write ends of real pipes, so Wait returns as soon as the
// interpreter exits even when a descendant still holds them. The process
// group is then killed and the pipes drained for at most waitDelay.
func runCaptured(cmd *exec.Cmd, stdout, stderr *bytes.Buffer) error {
	outR, outW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return fmt.Errorf("creating stderr pipe: %w", err)
	}
	defer outR.Close()
	defer errR.Close()

	cmd.Stdout = outW
	cmd.Stderr = errW
	startErr := cmd.Start()
	// The child holds its own copies now.
	outW.Close()
	errW.Close()
	if startErr != nil {
		return startErr
	}

	outDone := drain(outR, stdout)
	errDone := drain(errR, stderr)

	waitErr := cmd.Wait()
	killProcessGroup(cmd)

	deadline := time.NewTimer(waitDelay)
	defer deadline.Stop()
	for _, done := range []<-chan struct{}{outDone, errDone} {
		select {
		case <-done:
		case <-deadline.C:
			// Something outside the group kept a pipe open.
			outR.Close()
			errR.Close()
			<-done
		}
	}
	return waitErr
}

// drain copies r into buf through the output cap until EOF or close.
func drain(r io.Reader, buf *bytes.Buffer) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		io.Copy(newLimitedWriter(buf), r)
	}()
	return done
}

// buildEnv constructs a minimal environment for the interpreter. Only PATH
// is taken from the server process.
func buildEnv(dir string) []string {
	return []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + dir,
		"TMPDIR=" + dir,
		"LANG=C.UTF-8",
		"PYTHONIOENCODING=utf-8",
		"PYTHONDONTWRITEBYTECODE=1",
		"TERM=dumb",
	}
}
