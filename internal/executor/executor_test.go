package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/michaelbrown/pylearn/internal/sandbox"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSandbox records calls and returns a canned result.
type fakeSandbox struct {
	mu     sync.Mutex
	calls  []sandbox.ExecOpts
	source []string
	result *sandbox.ExecResult
	err    error
	block  chan struct{}
}

func (f *fakeSandbox) Exec(ctx context.Context, opts sandbox.ExecOpts) (*sandbox.ExecResult, error) {
	data, _ := os.ReadFile(opts.Path)
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.source = append(f.source, string(data))
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	started  int
	rejected int
	outcomes []Outcome
}

func (o *recordingObserver) ExecutionStarted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) ExecutionFinished(outcome Outcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) ExecutionRejected() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected++
}

func scratchEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading scratch dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		in   sandbox.ExecResult
		want Result
	}{
		{
			name: "stdout on success",
			in:   sandbox.ExecResult{Stdout: "hi\n", Stderr: "warn"},
			want: Result{Output: "hi\n"},
		},
		{
			name: "stderr when stdout empty",
			in:   sandbox.ExecResult{Stderr: "DeprecationWarning"},
			want: Result{Output: "DeprecationWarning"},
		},
		{
			name: "empty success",
			in:   sandbox.ExecResult{},
			want: Result{Output: ""},
		},
		{
			name: "stderr on failure",
			in:   sandbox.ExecResult{Stdout: "partial", Stderr: "Traceback", ExitCode: 1, Failure: "exit status 1"},
			want: Result{Output: "Traceback", Error: FailureMarker},
		},
		{
			name: "failure description when stderr empty",
			in:   sandbox.ExecResult{ExitCode: 3, Failure: "exit status 3"},
			want: Result{Output: "exit status 3", Error: FailureMarker},
		},
		{
			name: "timeout",
			in:   sandbox.ExecResult{TimedOut: true, ExitCode: -1, Failure: "execution timed out after 5s"},
			want: Result{Output: "execution timed out after 5s", Error: FailureMarker},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(&tt.in); got != tt.want {
				t.Errorf("Decide() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExecuteEmptyCode(t *testing.T) {
	dir := t.TempDir()
	sb := &fakeSandbox{result: &sandbox.ExecResult{}}
	svc := New(sb, Config{ScratchDir: dir}, nil, testLogger())

	_, err := svc.Execute(context.Background(), "")
	if !errors.Is(err, ErrEmptyCode) {
		t.Fatalf("err = %v, want ErrEmptyCode", err)
	}
	if len(sb.calls) != 0 {
		t.Errorf("sandbox called %d times, want 0", len(sb.calls))
	}
	if entries := scratchEntries(t, dir); len(entries) != 0 {
		t.Errorf("scratch dir not empty: %v", entries)
	}
}

func TestExecuteWritesVerbatimAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	sb := &fakeSandbox{result: &sandbox.ExecResult{Stdout: "ok\n"}}
	obs := &recordingObserver{}
	svc := New(sb, Config{ScratchDir: dir, Timeout: 2 * time.Second}, obs, testLogger())

	code := "print('ok')  \n\n# trailing\n"
	res, err := svc.Execute(context.Background(), code)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res != (Result{Output: "ok\n"}) {
		t.Errorf("result = %+v", res)
	}

	if len(sb.calls) != 1 {
		t.Fatalf("sandbox called %d times, want 1", len(sb.calls))
	}
	opts := sb.calls[0]
	if sb.source[0] != code {
		t.Errorf("source = %q, want verbatim %q", sb.source[0], code)
	}
	if filepath.Dir(opts.Path) != dir {
		t.Errorf("source written to %s, want %s", filepath.Dir(opts.Path), dir)
	}
	base := filepath.Base(opts.Path)
	if !strings.HasPrefix(base, "script_") || !strings.HasSuffix(base, ".py") {
		t.Errorf("unexpected file name %q", base)
	}
	if opts.Timeout != 2*time.Second {
		t.Errorf("timeout = %s, want 2s", opts.Timeout)
	}
	if entries := scratchEntries(t, dir); len(entries) != 0 {
		t.Errorf("source file left behind: %v", entries)
	}

	if obs.started != 1 || len(obs.outcomes) != 1 || obs.outcomes[0] != OutcomeOK {
		t.Errorf("observer = %+v", obs)
	}
}

func TestExecuteSandboxErrorCleansUp(t *testing.T) {
	dir := t.TempDir()
	sb := &fakeSandbox{err: errors.New("exec format error")}
	obs := &recordingObserver{}
	svc := New(sb, Config{ScratchDir: dir}, obs, testLogger())

	_, err := svc.Execute(context.Background(), "print(1)")
	if err == nil {
		t.Fatal("expected infrastructure error")
	}
	if errors.Is(err, ErrEmptyCode) || errors.Is(err, ErrBusy) {
		t.Errorf("err = %v, want a plain infrastructure error", err)
	}
	if entries := scratchEntries(t, dir); len(entries) != 0 {
		t.Errorf("source file left behind: %v", entries)
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != OutcomeError {
		t.Errorf("outcomes = %v, want [error]", obs.outcomes)
	}
}

func TestExecuteUnwritableScratchDir(t *testing.T) {
	sb := &fakeSandbox{result: &sandbox.ExecResult{}}
	svc := New(sb, Config{ScratchDir: filepath.Join(t.TempDir(), "missing")}, nil, testLogger())

	if _, err := svc.Execute(context.Background(), "print(1)"); err == nil {
		t.Fatal("expected error when scratch dir does not exist")
	}
	if len(sb.calls) != 0 {
		t.Error("sandbox should not run when the source cannot be written")
	}
}

func TestExecuteOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		result sandbox.ExecResult
		want   Outcome
	}{
		{"failed", sandbox.ExecResult{ExitCode: 1, Stderr: "boom"}, OutcomeFailed},
		{"timeout", sandbox.ExecResult{TimedOut: true, ExitCode: -1}, OutcomeTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			sb := &fakeSandbox{result: &tt.result}
			svc := New(sb, Config{ScratchDir: t.TempDir()}, obs, testLogger())

			res, err := svc.Execute(context.Background(), "x")
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if res.Error != FailureMarker {
				t.Errorf("error = %q, want %q", res.Error, FailureMarker)
			}
			if len(obs.outcomes) != 1 || obs.outcomes[0] != tt.want {
				t.Errorf("outcomes = %v, want [%s]", obs.outcomes, tt.want)
			}
		})
	}
}

func TestExecuteUniqueFilesUnderConcurrency(t *testing.T) {
	dir := t.TempDir()
	sb := &fakeSandbox{result: &sandbox.ExecResult{}}
	svc := New(sb, Config{ScratchDir: dir}, nil, testLogger())

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Execute(context.Background(), "pass"); err != nil {
				t.Errorf("Execute: %v", err)
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, c := range sb.calls {
		seen[c.Path] = true
	}
	if len(seen) != n {
		t.Errorf("got %d distinct source paths, want %d", len(seen), n)
	}
	if entries := scratchEntries(t, dir); len(entries) != 0 {
		t.Errorf("source files left behind: %v", entries)
	}
}

func TestExecuteAdmissionControl(t *testing.T) {
	block := make(chan struct{})
	sb := &fakeSandbox{result: &sandbox.ExecResult{}, block: block}
	obs := &recordingObserver{}
	svc := New(sb, Config{ScratchDir: t.TempDir(), MaxConcurrent: 1}, obs, testLogger())

	done := make(chan error, 1)
	go func() {
		_, err := svc.Execute(context.Background(), "pass")
		done <- err
	}()

	// Wait until the first execution holds the slot.
	deadline := time.Now().Add(2 * time.Second)
	for {
		sb.mu.Lock()
		n := len(sb.calls)
		sb.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first execution never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := svc.Execute(context.Background(), "pass"); !errors.Is(err, ErrBusy) {
		t.Errorf("second Execute err = %v, want ErrBusy", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first Execute: %v", err)
	}

	if _, err := svc.Execute(context.Background(), "pass"); err != nil {
		t.Errorf("Execute after release: %v", err)
	}
	if obs.rejected != 1 {
		t.Errorf("rejected = %d, want 1", obs.rejected)
	}
}

func TestExecuteIgnoresCallerCancellation(t *testing.T) {
	sb := &fakeSandbox{result: &sandbox.ExecResult{Stdout: "done"}}
	svc := New(sb, Config{ScratchDir: t.TempDir()}, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.Execute(ctx, "pass")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Output != "done" {
		t.Errorf("output = %q, want done", res.Output)
	}
}

func TestNewDefaults(t *testing.T) {
	svc := New(&fakeSandbox{}, Config{}, nil, testLogger())
	if svc.Timeout() != DefaultTimeout {
		t.Errorf("timeout = %s, want %s", svc.Timeout(), DefaultTimeout)
	}
	if svc.scratchDir != os.TempDir() {
		t.Errorf("scratch dir = %s, want %s", svc.scratchDir, os.TempDir())
	}
}

// --- real interpreter ---

func newPythonService(t *testing.T, timeout time.Duration) (*Service, string) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not found on PATH")
	}
	sb, err := sandbox.NewProcessSandbox(sandbox.ProcessConfig{}, testLogger())
	if err != nil {
		t.Fatalf("NewProcessSandbox: %v", err)
	}
	dir := t.TempDir()
	return New(sb, Config{ScratchDir: dir, Timeout: timeout}, nil, testLogger()), dir
}

func TestPythonPrint(t *testing.T) {
	svc, _ := newPythonService(t, 5*time.Second)

	res, err := svc.Execute(context.Background(), "print('hi')")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res != (Result{Output: "hi\n"}) {
		t.Errorf("result = %+v, want {Output: \"hi\\n\"}", res)
	}
}

func TestPythonUnhandledException(t *testing.T) {
	svc, _ := newPythonService(t, 5*time.Second)

	res, err := svc.Execute(context.Background(), "print('before')\n1/0\n")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Error != FailureMarker {
		t.Errorf("error = %q, want %q", res.Error, FailureMarker)
	}
	if !strings.Contains(res.Output, "Traceback") || !strings.Contains(res.Output, "ZeroDivisionError") {
		t.Errorf("output = %q, want traceback", res.Output)
	}
}

func TestPythonInfiniteLoop(t *testing.T) {
	timeout := 500 * time.Millisecond
	svc, dir := newPythonService(t, timeout)

	start := time.Now()
	res, err := svc.Execute(context.Background(), "while True:\n    pass\n")
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Error != FailureMarker {
		t.Errorf("error = %q, want %q", res.Error, FailureMarker)
	}
	if !strings.Contains(res.Output, "timed out") {
		t.Errorf("output = %q, want timeout description", res.Output)
	}
	if elapsed > timeout+2*time.Second {
		t.Errorf("response took %s, want close to %s", elapsed, timeout)
	}
	if entries := scratchEntries(t, dir); len(entries) != 0 {
		t.Errorf("source file left behind: %v", entries)
	}
}
