package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DockerSandbox runs code in Docker containers.
type DockerSandbox struct {
	Policy Policy
	Image  string
	logger *slog.Logger
}

// NewDockerSandbox creates a sandbox with the given policy. The image must be
// on the policy allowlist.
func NewDockerSandbox(policy Policy, image string, logger *slog.Logger) (*DockerSandbox, error) {
	if !policy.IsImageAllowed(image) {
		return nil, fmt.Errorf("image %q not in allowlist", image)
	}
	return &DockerSandbox{Policy: policy, Image: image, logger: logger}, nil
}

// Exec mounts opts.Path read-only into the container and runs it with the
// image's python.
func (d *DockerSandbox) Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error) {
	if opts.Path == "" {
		return nil, errors.New("empty source path")
	}

	timeout := d.Policy.clamp(opts.Timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := "pylearn-" + uuid.NewString()
	args := d.runArgs(name, opts.Path)

	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.WaitDelay = waitDelay
	// Killing the docker CLI leaves the container running.
	cmd.Cancel = func() error {
		kill := exec.Command("docker", "kill", name)
		if err := kill.Run(); err != nil {
			d.logger.Debug("docker kill failed", slog.String("container", name), slog.String("error", err.Error()))
		}
		return cmd.Process.Kill()
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = newLimitedWriter(&stdout)
	cmd.Stderr = newLimitedWriter(&stderr)

	d.logger.Debug("docker sandbox executing",
		slog.String("image", d.Image),
		slog.String("container", name),
		slog.Duration("timeout", timeout),
	)

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	timedOut := runErr != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)
	res, err := interpret(runErr, timedOut, timeout, stdout.String(), stderr.String(), duration)
	if err != nil {
		return nil, fmt.Errorf("running docker: %w", err)
	}
	// docker run exits 125-127 when the container itself could not start.
	if !res.TimedOut && res.ExitCode >= 125 && res.ExitCode <= 127 {
		return nil, fmt.Errorf("starting container (exit %d): %s", res.ExitCode, res.Stderr)
	}

	d.logger.Info("docker sandbox execution completed",
		slog.Int("exit_code", res.ExitCode),
		slog.Bool("timed_out", res.TimedOut),
		slog.Duration("duration", duration),
	)
	return res, nil
}

func (d *DockerSandbox) runArgs(name, path string) []string {
	args := []string{
		"run", "--rm",
		"--name", name,
		"--memory", d.Policy.MaxMemory,
		"-v", path + ":/workspace/" + filepath.Base(path) + ":ro",
		"-w", "/workspace",
		"-e", "PYTHONDONTWRITEBYTECODE=1",
	}

	if !d.Policy.Network {
		args = append(args, "--network=none")
	}

	args = append(args, d.Image, "python", "/workspace/"+filepath.Base(path))
	return args
}
