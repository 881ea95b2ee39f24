package sandbox

import (
	"log/slog"

	"github.com/michaelbrown/pylearn/internal/config"
)

// FromConfig builds the runner selected by cfg.Runner. Anything other than
// docker gets the process sandbox.
func FromConfig(cfg config.ExecutorConfig, logger *slog.Logger) (Sandbox, error) {
	if cfg.Runner == config.RunnerDocker {
		policy := DefaultPolicy()
		policy.MaxTimeout = cfg.Timeout
		sb, err := NewDockerSandbox(policy, cfg.DockerImage, logger)
		if err != nil {
			return nil, err
		}
		return sb, nil
	}
	sb, err := NewProcessSandbox(ProcessConfig{
		Interpreter:    cfg.Interpreter,
		DefaultTimeout: cfg.Timeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	return sb, nil
}
