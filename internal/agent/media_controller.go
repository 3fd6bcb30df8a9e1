package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldvision/fieldvision/internal/constants"
)

// MediaController starts and stops the on-device camera pipeline. The command
// core never touches media itself, it only drives this collaborator.
type MediaController interface {
	StartStream(ctx context.Context) error
	StopStream(ctx context.Context) error
}

// ExecMediaController drives the pipeline through configured shell commands,
// typically systemd unit control or a vendor CLI.
type ExecMediaController struct {
	startCommand string
	stopCommand  string
	timeout      time.Duration
	logger       zerolog.Logger
}

// NewExecMediaController initializes a controller around the two commands.
func NewExecMediaController(startCommand, stopCommand string, timeout time.Duration, logger zerolog.Logger) *ExecMediaController {
	if timeout <= 0 {
		timeout = constants.DefaultMediaExecTimeout
	}
	return &ExecMediaController{
		startCommand: startCommand,
		stopCommand:  stopCommand,
		timeout:      timeout,
		logger:       logger,
	}
}

// StartStream brings the camera pipeline up.
func (m *ExecMediaController) StartStream(ctx context.Context) error {
	if m.startCommand == "" {
		return errors.New("no start command configured")
	}
	return m.run(ctx, m.startCommand)
}

// StopStream tears the camera pipeline down.
func (m *ExecMediaController) StopStream(ctx context.Context) error {
	if m.stopCommand == "" {
		return errors.New("no stop command configured")
	}
	return m.run(ctx, m.stopCommand)
}

// run executes one pipeline command under the configured timeout.
func (m *ExecMediaController) run(ctx context.Context, cmdLine string) error {
	m.logger.Debug().Str("command", cmdLine).Msg("Executing pipeline command")

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "/bin/sh", "-c", cmdLine)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			m.logger.Error().Str("command", cmdLine).Msg("Pipeline command timed out")
			return ctx.Err()
		}
		m.logger.Error().
			Err(err).
			Str("command", cmdLine).
			Str("stderr", stderr.String()).
			Msg("Pipeline command failed")
		return fmt.Errorf("run %q: %w", cmdLine, err)
	}

	m.logger.Info().Str("command", cmdLine).Msg("Pipeline command succeeded")
	return nil
}
