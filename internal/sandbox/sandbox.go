package sandbox

import (
	"context"
	"time"
)

// ExecOpts describes a single interpreter run against a source file.
type ExecOpts struct {
	Path    string        // Source file on the host
	Timeout time.Duration // Hard wall-clock limit; zero uses the sandbox default
}

// ExecResult is the outcome of a run that started. A non-zero exit or a
// timeout is reported here, not as an error.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	// Failure describes why the run did not succeed, e.g. "exit status 1".
	Failure  string
	Duration time.Duration
}

// Failed reports whether the run exited non-zero or was killed.
func (r *ExecResult) Failed() bool {
	return r.TimedOut || r.ExitCode != 0
}

// Sandbox runs a source file with an external interpreter.
type Sandbox interface {
	Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error)
}
