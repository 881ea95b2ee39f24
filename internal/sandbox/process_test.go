package sandbox

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func skipIfNoPython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not found on PATH")
	}
}

func writeScript(t *testing.T, code string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script_test.py")
	if err := os.WriteFile(path, []byte(code), 0o600); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func newTestSandbox(t *testing.T) *ProcessSandbox {
	t.Helper()
	skipIfNoPython(t)
	sb, err := NewProcessSandbox(ProcessConfig{DefaultTimeout: 2 * time.Second}, testLogger())
	if err != nil {
		t.Fatalf("NewProcessSandbox: %v", err)
	}
	return sb
}

func TestNewProcessSandboxMissingInterpreter(t *testing.T) {
	_, err := NewProcessSandbox(ProcessConfig{Interpreter: "definitely-not-a-python-9000"}, testLogger())
	if err == nil {
		t.Fatal("expected error for missing interpreter")
	}
}

func TestProcessSandboxStdout(t *testing.T) {
	sb := newTestSandbox(t)

	res, err := sb.Exec(context.Background(), ExecOpts{Path: writeScript(t, "print('hi')")})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.Stdout != "hi\n" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "hi\n")
	}
	if res.Failed() {
		t.Errorf("expected success, got exit %d (%s)", res.ExitCode, res.Failure)
	}
}

func TestProcessSandboxNonZeroExit(t *testing.T) {
	sb := newTestSandbox(t)

	res, err := sb.Exec(context.Background(), ExecOpts{Path: writeScript(t, "raise ValueError('boom')")})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "ValueError: boom") {
		t.Errorf("stderr = %q, want traceback", res.Stderr)
	}
	if res.Failure != "exit status 1" {
		t.Errorf("failure = %q, want %q", res.Failure, "exit status 1")
	}
}

func TestProcessSandboxTimeout(t *testing.T) {
	sb := newTestSandbox(t)

	start := time.Now()
	res, err := sb.Exec(context.Background(), ExecOpts{
		Path:    writeScript(t, "while True:\n    pass\n"),
		Timeout: 300 * time.Millisecond,
	})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("expected timeout")
	}
	if !res.Failed() {
		t.Error("timed out run should count as failed")
	}
	if !strings.Contains(res.Failure, "timed out") {
		t.Errorf("failure = %q, want timeout description", res.Failure)
	}
	if elapsed > 300*time.Millisecond+waitDelay+time.Second {
		t.Errorf("timeout took %s", elapsed)
	}
}

func TestProcessSandboxKillsChildren(t *testing.T) {
	sb := newTestSandbox(t)

	// The child inherits stdout; without a group kill Wait would block on it.
	code := "import subprocess, sys, time\n" +
		"subprocess.Popen([sys.executable, '-c', 'import time; time.sleep(30)'])\n" +
		"time.sleep(30)\n"

	start := time.Now()
	res, err := sb.Exec(context.Background(), ExecOpts{Path: writeScript(t, code), Timeout: 300 * time.Millisecond})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("expected timeout")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("exec took %s, children were not killed", elapsed)
	}
}

func TestProcessSandboxMinimalEnv(t *testing.T) {
	sb := newTestSandbox(t)
	t.Setenv("PYLEARN_SECRET", "hunter2")

	res, err := sb.Exec(context.Background(), ExecOpts{
		Path: writeScript(t, "import os\nprint(os.environ.get('PYLEARN_SECRET', 'absent'))"),
	})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "absent" {
		t.Errorf("server environment leaked into script: %q", res.Stdout)
	}
}

func TestProcessSandboxEmptyPath(t *testing.T) {
	sb := newTestSandbox(t)
	if _, err := sb.Exec(context.Background(), ExecOpts{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, remaining: 5}

	n, err := lw.Write([]byte("abc"))
	if err != nil || n != 3 {
		t.Fatalf("first write = %d, %v", n, err)
	}
	n, err = lw.Write([]byte("defgh"))
	if err != nil || n != 5 {
		t.Fatalf("second write = %d, %v; want full length reported", n, err)
	}
	n, err = lw.Write([]byte("ijk"))
	if err != nil || n != 3 {
		t.Fatalf("third write = %d, %v", n, err)
	}
	if buf.String() != "abcde" {
		t.Errorf("buffer = %q, want %q", buf.String(), "abcde")
	}
}
