package shell

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

// Runner executes shell commands on the host. Hardware helpers (vcgencmd,
// iwconfig, uhubctl, rpicam-still) all go through this interface so they can
// be faked in tests.
type Runner interface {
	Run(ctx context.Context, cmd string) (string, error)
}

// CommandRunner runs commands through /bin/sh with a per-command timeout.
type CommandRunner struct {
	timeout time.Duration
	logger  zerolog.Logger
}

// NewCommandRunner creates a CommandRunner with the given timeout.
func NewCommandRunner(timeout time.Duration, logger zerolog.Logger) *CommandRunner {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &CommandRunner{timeout: timeout, logger: logger}
}

// Run executes the given shell command and returns its combined stdout.
func (r *CommandRunner) Run(ctx context.Context, cmd string) (string, error) {
	r.logger.Debug().Str("command", cmd).Msg("Executing shell command")

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "/bin/sh", "-c", cmd)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("command timed out: %s", cmd)
		}
		return "", fmt.Errorf("command failed: %w: %s", err, stderr.String())
	}

	return stdout.String(), nil
}
