// Package media runs the post-session steps on pulled videos: metadata
// info, preview, audio extraction and a user postprocess command.
package media

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Executor runs local commands.
type Executor interface {
	// Output runs the command and returns its combined output.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	// Run runs the command attached to the terminal.
	Run(ctx context.Context, name string, args ...string) error
}

// SystemExecutor runs commands with os/exec.
type SystemExecutor struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (e SystemExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	slog.Debug("Running command", "command", strings.Join(cmd.Args, " "))
	return cmd.CombinedOutput()
}

func (e SystemExecutor) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	slog.Debug("Running command", "command", strings.Join(cmd.Args, " "))
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if e.Stdout != nil {
		cmd.Stdout = e.Stdout
	}
	if e.Stderr != nil {
		cmd.Stderr = e.Stderr
	}
	return cmd.Run()
}
