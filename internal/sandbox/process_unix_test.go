//go:build unix

package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestProcessSandboxKillsDescendantsOnNormalExit(t *testing.T) {
	sb := newTestSandbox(t)

	marker := filepath.Join(t.TempDir(), "survived")
	// The descendant inherits stdout and would create marker if it outlived Exec.
	code := fmt.Sprintf("import subprocess, sys\n"+
		"subprocess.Popen([sys.executable, '-c', 'import time; time.sleep(0.5); open(%q, \"w\").close()'])\n"+
		"print('x')\n", marker)

	start := time.Now()
	res, err := sb.Exec(context.Background(), ExecOpts{Path: writeScript(t, code), Timeout: 5 * time.Second})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.Failed() {
		t.Errorf("expected success, got exit %d (%s)", res.ExitCode, res.Failure)
	}
	if res.Stdout != "x\n" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "x\n")
	}
	if elapsed >= waitDelay {
		t.Errorf("exec took %s, output drain waited on the descendant", elapsed)
	}

	time.Sleep(time.Second)
	if _, err := os.Stat(marker); err == nil {
		t.Error("descendant kept running after Exec returned")
	}
}
