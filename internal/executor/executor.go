// Package executor runs submitted Python source and turns the outcome into
// the result document returned to callers.
//
// Every call materializes the code as a uniquely named file, runs it through
// a sandbox.Sandbox under a hard timeout and removes the file on every exit
// path. Script failures (non-zero exit, timeout) are results; only failures
// to run at all are errors.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/michaelbrown/pylearn/internal/sandbox"
)

// FailureMarker is the error field value for a run that did not succeed.
const FailureMarker = "Execution failed"

const (
	DefaultTimeout = 5 * time.Second
	fileExtension  = ".py"
)

var (
	// ErrEmptyCode is returned when there is nothing to execute.
	ErrEmptyCode = errors.New("code is required")

	// ErrBusy is returned when the concurrency limit is reached.
	ErrBusy = errors.New("execution capacity exhausted")
)

// Result is the outcome of one execution.
type Result struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// Failed reports whether the result carries the failure marker.
func (r Result) Failed() bool {
	return r.Error != ""
}

// Outcome classifies a finished execution for metrics.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeFailed   Outcome = "failed"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeRejected Outcome = "rejected"
	OutcomeError    Outcome = "error"
)

// Observer is notified about executions. Every ExecutionStarted is followed
// by exactly one ExecutionFinished.
type Observer interface {
	ExecutionStarted()
	ExecutionFinished(outcome Outcome, d time.Duration)
	ExecutionRejected()
}

// Config configures a Service.
type Config struct {
	Timeout time.Duration
	// ScratchDir holds the temporary source files. Empty means os.TempDir().
	ScratchDir string
	// MaxConcurrent caps simultaneous executions. Zero means unlimited.
	MaxConcurrent int
}

// Service executes code through a sandbox.
type Service struct {
	sandbox    sandbox.Sandbox
	timeout    time.Duration
	scratchDir string
	slots      *semaphore.Weighted
	observer   Observer
	logger     *slog.Logger
}

// New creates a Service. observer may be nil.
func New(sb sandbox.Sandbox, cfg Config, observer Observer, logger *slog.Logger) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	scratch := cfg.ScratchDir
	if scratch == "" {
		scratch = os.TempDir()
	}

	s := &Service{
		sandbox:    sb,
		timeout:    timeout,
		scratchDir: scratch,
		observer:   observer,
		logger:     logger,
	}
	if cfg.MaxConcurrent > 0 {
		s.slots = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return s
}

// Timeout returns the per-execution wall-clock limit.
func (s *Service) Timeout() time.Duration {
	return s.timeout
}

// Execute runs code and returns its result.
//
// A run is bounded only by the configured timeout: cancelling ctx does not
// stop a script that has already started.
func (s *Service) Execute(ctx context.Context, code string) (Result, error) {
	if code == "" {
		return Result{}, ErrEmptyCode
	}

	if s.slots != nil {
		if !s.slots.TryAcquire(1) {
			if s.observer != nil {
				s.observer.ExecutionRejected()
			}
			return Result{}, ErrBusy
		}
		defer s.slots.Release(1)
	}

	if s.observer != nil {
		s.observer.ExecutionStarted()
	}
	start := time.Now()

	res, outcome, err := s.run(context.WithoutCancel(ctx), code)
	s.finish(outcome, time.Since(start))
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (s *Service) run(ctx context.Context, code string) (Result, Outcome, error) {
	path, err := s.writeSource(code)
	if err != nil {
		return Result{}, OutcomeError, err
	}
	defer s.removeSource(path)

	execRes, err := s.sandbox.Exec(ctx, sandbox.ExecOpts{Path: path, Timeout: s.timeout})
	if err != nil {
		return Result{}, OutcomeError, fmt.Errorf("executing script: %w", err)
	}

	res := Decide(execRes)
	switch {
	case execRes.TimedOut:
		return res, OutcomeTimeout, nil
	case res.Failed():
		return res, OutcomeFailed, nil
	default:
		return res, OutcomeOK, nil
	}
}

// Decide applies the output policy to a finished run.
//
// A failed run reports stderr, or the failure description when stderr is
// empty, together with FailureMarker. A successful run reports stdout, or
// stderr when stdout is empty.
func Decide(r *sandbox.ExecResult) Result {
	if r.Failed() {
		out := r.Stderr
		if out == "" {
			out = r.Failure
		}
		return Result{Output: out, Error: FailureMarker}
	}
	out := r.Stdout
	if out == "" {
		out = r.Stderr
	}
	return Result{Output: out}
}

// writeSource creates script_<uuid>.py in the scratch dir. O_EXCL guarantees
// the file is new even if two tokens ever collided.
func (s *Service) writeSource(code string) (string, error) {
	path := filepath.Join(s.scratchDir, "script_"+uuid.NewString()+fileExtension)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating source file: %w", err)
	}
	if _, err := f.WriteString(code); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing source file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing source file: %w", err)
	}
	return path, nil
}

// removeSource deletes the source file. Failures are not reported to callers.
func (s *Service) removeSource(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("failed to remove source file",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) finish(outcome Outcome, d time.Duration) {
	if s.observer != nil {
		s.observer.ExecutionFinished(outcome, d)
	}
}
