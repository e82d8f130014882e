package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FilenameMacro in the player command is replaced by the video's basename.
const FilenameMacro = "RDV%FILENAME"

// DefaultPlayerCommand loops the video in a window titled after the file.
var DefaultPlayerCommand = []string{
	"mpv", "--loop=inf",
	"--autofit=1080",
	"--geometry=50%:70%",
	"--autosync=30", "--cache=yes",
	"--osd-duration=200",
	"--osd-bar-h=0.5",
	"--title======== VIDEO PREVIEW: " + FilenameMacro + " =======",
}

// DefaultJackProcesses are searched for in `ps -ef` to detect a running JACK server.
var DefaultJackProcesses = []string{"qjackctl"}

// ErrNoPostprocessCommand is returned by the postprocess step when no command is set.
var ErrNoPostprocessCommand = errors.New("no postprocess command configured")

// Options configures a Processor.
type Options struct {
	PlayerCommand      []string
	JackProcesses      []string
	AudioExtension     string
	PostprocessCommand []string
}

// Processor runs post-session steps on local video files.
type Processor struct {
	exec Executor
	opts Options
	out  io.Writer
}

// NewProcessor creates a processor that writes step output to out.
func NewProcessor(exec Executor, opts Options, out io.Writer) *Processor {
	if exec == nil {
		exec = SystemExecutor{}
	}
	if len(opts.PlayerCommand) == 0 {
		opts.PlayerCommand = DefaultPlayerCommand
	}
	if len(opts.JackProcesses) == 0 {
		opts.JackProcesses = DefaultJackProcesses
	}
	if opts.AudioExtension == "" {
		opts.AudioExtension = ".wav"
	}
	if out == nil {
		out = os.Stdout
	}
	return &Processor{exec: exec, opts: opts, out: out}
}

// Run applies steps to video in order and stops at the first failure.
func (p *Processor) Run(ctx context.Context, video string, steps []Step) error {
	for _, step := range steps {
		slog.Debug("Running post step", "step", step.String(), "video", video)

		var err error
		switch step {
		case StepInfo:
			err = p.PrintInfo(ctx, video)
		case StepPreview:
			err = p.Preview(ctx, video)
		case StepAudio:
			_, err = p.ExtractAudio(ctx, video)
		case StepPostprocess:
			err = p.Postprocess(ctx, video)
		default:
			err = fmt.Errorf("unknown pipeline step: '%c'", rune(step))
		}
		if err != nil {
			return fmt.Errorf("%s step failed for %s: %w", step, video, err)
		}
	}
	return nil
}

// Info returns ffprobe's format and stream summary for video, without tags.
func (p *Processor) Info(ctx context.Context, video string) (string, error) {
	if err := requireFile(video); err != nil {
		return "", err
	}
	out, err := p.exec.Output(ctx, "ffprobe",
		"-pretty", "-show_format", "-v", "error",
		"-show_entries", "stream=codec_name,width,height,duration,size,bit_rate",
		"-of", "default=noprint_wrappers=1",
		video)
	if err != nil {
		return "", fmt.Errorf("ffprobe failed: %w\nOutput: %s", err, string(out))
	}

	var kept []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "TAG:") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), nil
}

// PrintInfo writes Info indented to the processor's output.
func (p *Processor) PrintInfo(ctx context.Context, video string) error {
	info, err := p.Info(ctx, video)
	if err != nil {
		return err
	}
	for _, line := range strings.Split(info, "\n") {
		if line == "" {
			continue
		}
		fmt.Fprintf(p.out, "    %s\n", line)
	}
	return nil
}

// JackRunning reports whether a JACK control process shows up in ps.
func (p *Processor) JackRunning(ctx context.Context) (bool, error) {
	out, err := p.exec.Output(ctx, "ps", "-ef")
	if err != nil {
		return false, fmt.Errorf("failed to list processes: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		for _, name := range p.opts.JackProcesses {
			if strings.Contains(line, name) {
				return true, nil
			}
		}
	}
	return false, nil
}

// PreviewCommand returns the player invocation for video.
func (p *Processor) PreviewCommand(video string, jack bool) []string {
	base := filepath.Base(video)
	cmd := make([]string, 0, len(p.opts.PlayerCommand)+2)
	for _, arg := range p.opts.PlayerCommand {
		cmd = append(cmd, strings.ReplaceAll(arg, FilenameMacro, base))
	}
	if jack {
		cmd = append(cmd, "--ao=jack")
	} else {
		cmd = append(cmd, "--ao=sdl")
	}
	return append(cmd, video)
}

// Preview plays video, routing audio to JACK when it is running.
func (p *Processor) Preview(ctx context.Context, video string) error {
	if err := requireFile(video); err != nil {
		return err
	}
	jack, err := p.JackRunning(ctx)
	if err != nil {
		slog.Warn("Could not detect JACK, using default audio output", "error", err)
	}
	slog.Info("Previewing video", "file", video, "jack", jack)

	cmd := p.PreviewCommand(video, jack)
	if err := p.exec.Run(ctx, cmd[0], cmd[1:]...); err != nil {
		return fmt.Errorf("preview with %s failed: %w", cmd[0], err)
	}
	return nil
}

// AudioPath returns where the extracted audio of video is written.
func (p *Processor) AudioPath(video string) string {
	return strings.TrimSuffix(video, filepath.Ext(video)) + p.opts.AudioExtension
}

// ExtractAudio writes the audio track of video next to it and returns its path.
func (p *Processor) ExtractAudio(ctx context.Context, video string) (string, error) {
	if err := requireFile(video); err != nil {
		return "", err
	}
	audio := p.AudioPath(video)

	out, err := p.exec.Output(ctx, "ffmpeg", "-y", "-i", video, "-map", "0:a", audio, "-loglevel", "quiet")
	if err != nil {
		return "", fmt.Errorf("FFmpeg audio extraction failed: %w\nOutput: %s", err, string(out))
	}

	slog.Info("Extracted audio saved to", "file", audio)
	return audio, nil
}

// Postprocess runs the configured command with video appended.
func (p *Processor) Postprocess(ctx context.Context, video string) error {
	if len(p.opts.PostprocessCommand) == 0 {
		return ErrNoPostprocessCommand
	}
	if err := requireFile(video); err != nil {
		return err
	}
	args := append(append([]string{}, p.opts.PostprocessCommand[1:]...), video)
	if err := p.exec.Run(ctx, p.opts.PostprocessCommand[0], args...); err != nil {
		return fmt.Errorf("postprocess command failed: %w", err)
	}
	return nil
}

func requireFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("video file not found: %s", path)
	}
	return nil
}
