package sandbox

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// maxOutputBytes caps stdout/stderr to prevent OOM from chatty scripts.
const maxOutputBytes = 1 << 20 // 1 MB

// limitedWriter wraps a writer and stops writing after a byte limit.
// Excess data is silently discarded.
type limitedWriter struct {
	w         io.Writer
	remaining int
}

func newLimitedWriter(w io.Writer) *limitedWriter {
	return &limitedWriter{w: w, remaining: maxOutputBytes}
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.remaining <= 0 {
		return len(p), nil
	}
	n := len(p)
	if n > lw.remaining {
		p = p[:lw.remaining]
	}
	written, err := lw.w.Write(p)
	lw.remaining -= written
	if err != nil {
		return written, err
	}
	return n, nil
}

// interpret turns the error from cmd.Run into an ExecResult. It returns an
// error only when the process could not be run at all.
func interpret(runErr error, timedOut bool, timeout time.Duration, stdout, stderr string, duration time.Duration) (*ExecResult, error) {
	res := &ExecResult{
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: duration,
	}

	if timedOut {
		res.TimedOut = true
		res.ExitCode = -1
		res.Failure = fmt.Sprintf("execution timed out after %s", timeout)
		return res, nil
	}
	if runErr == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		res.Failure = runErr.Error()
		return res, nil
	}
	if errors.Is(runErr, exec.ErrWaitDelay) {
		// The interpreter exited but a descendant kept the output pipes open.
		res.Failure = runErr.Error()
		return res, nil
	}
	return nil, fmt.Errorf("running interpreter: %w", runErr)
}
