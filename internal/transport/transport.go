// Package transport drives an external DAW transport from the device's
// recording state.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Transport is the external transport being kept in step with the device.
type Transport interface {
	// Toggle flips the transport between rolling and stopped.
	Toggle(ctx context.Context) error
	// Raise brings the DAW window to the foreground.
	Raise(ctx context.Context) error
}

// ShellTransport runs configured command strings through the shell.
type ShellTransport struct {
	ToggleCommand string
	RaiseCommand  string
	Shell         string // defaults to "sh"
}

// Toggle runs the toggle command.
func (t *ShellTransport) Toggle(ctx context.Context) error {
	if err := t.run(ctx, t.ToggleCommand); err != nil {
		return fmt.Errorf("failed to toggle transport: %w", err)
	}
	return nil
}

// Raise runs the raise command. An empty command is a no-op.
func (t *ShellTransport) Raise(ctx context.Context) error {
	if err := t.run(ctx, t.RaiseCommand); err != nil {
		return fmt.Errorf("failed to raise DAW window: %w", err)
	}
	return nil
}

func (t *ShellTransport) run(ctx context.Context, command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil
	}

	shell := t.Shell
	if shell == "" {
		shell = "sh"
	}

	slog.Debug("Running transport command", "command", command)

	cmd := exec.CommandContext(ctx, shell, "-c", command)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%q: %w: %s", command, err, msg)
		}
		return fmt.Errorf("%q: %w", command, err)
	}
	return nil
}
