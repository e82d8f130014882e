// Package monitor runs the screen mirroring session that brackets one
// recording attempt.
package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// TitleMacro in the monitor command is replaced by the window title.
const TitleMacro = "RDB%SCRCPY-TITLE"

// DefaultCommand mirrors the device screen in a small always-on-top window.
const DefaultCommand = "scrcpy --stay-awake --disable-screensaver --display-buffer=50" +
	" --window-y=440 --window-height=540 --window-title=" + TitleMacro +
	" --always-on-top --max-size=1200 --rotation=0 --lock-video-orientation=initial"

// Scrcpy runs the mirroring command in the foreground until the user closes it.
type Scrcpy struct {
	Command string
	Title   string
	Shell   string // defaults to "sh"

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Expand returns the command with the title macro substituted.
func (s *Scrcpy) Expand() string {
	command := s.Command
	if command == "" {
		command = DefaultCommand
	}
	return strings.ReplaceAll(command, TitleMacro, shellQuote(s.Title))
}

// Run blocks until the mirroring tool exits. A nonzero exit is returned
// as an error. Cancelling ctx kills the tool.
func (s *Scrcpy) Run(ctx context.Context) error {
	shell := s.Shell
	if shell == "" {
		shell = "sh"
	}
	command := s.Expand()

	slog.Info("Starting monitor", "command", command)
	started := time.Now()

	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if s.Stdin != nil {
		cmd.Stdin = s.Stdin
	}
	if s.Stdout != nil {
		cmd.Stdout = s.Stdout
	}
	if s.Stderr != nil {
		cmd.Stderr = s.Stderr
	}

	err := cmd.Run()
	slog.Debug("Monitor exited", "duration", time.Since(started).Round(time.Second))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("monitor command failed: %w", err)
	}
	return nil
}

// shellQuote single-quotes s for sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
