package media

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeExecutor struct {
	outputs map[string]string
	fail    map[string]error
	calls   []string
}

func (f *fakeExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	return []byte(f.outputs[name]), f.fail[name]
}

func (f *fakeExecutor) Run(ctx context.Context, name string, args ...string) error {
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	return f.fail[name]
}

func createVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rdv_01_VID_20240101.mp4")
	if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
		t.Fatalf("Failed to create video: %v", err)
	}
	return path
}

func TestVideoName(t *testing.T) {
	stamp := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

	tests := []struct {
		name     string
		number   int
		withDate bool
		want     string
	}{
		{"plain", 1, false, "take_01_VID_1.mp4"},
		{"double digit", 12, false, "take_12_VID_1.mp4"},
		{"three digits", 123, false, "take_123_VID_1.mp4"},
		{"with date", 3, true, "take_03_2024-03-09_14.05.07_VID_1.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VideoName("take", tt.number, "/tmp/VID_1.mp4", stamp, tt.withDate)
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseSteps(t *testing.T) {
	steps, err := ParseSteps("IpAi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Step{StepInfo, StepPreview, StepAudio}
	if len(steps) != len(want) {
		t.Fatalf("Expected %v, got %v", want, steps)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("step %d: expected %s, got %s", i, want[i], steps[i])
		}
	}

	if steps, err := ParseSteps(""); err != nil || len(steps) != 0 {
		t.Errorf("Expected empty pipeline, got %v, %v", steps, err)
	}

	if _, err := ParseSteps("iz"); err == nil || !strings.Contains(err.Error(), "'z'") {
		t.Errorf("Expected invalid step error, got %v", err)
	}
}

func TestInfoDropsTags(t *testing.T) {
	video := createVideo(t)
	exec := &fakeExecutor{outputs: map[string]string{
		"ffprobe": "codec_name=h264\nwidth=1920\nTAG:encoder=Lavf\nduration=0:00:12.000000\n",
	}}
	var out bytes.Buffer
	p := NewProcessor(exec, Options{}, &out)

	if err := p.PrintInfo(context.Background(), video); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out.String(), "TAG:") {
		t.Errorf("Expected tags to be filtered, got %q", out.String())
	}
	if !strings.Contains(out.String(), "    width=1920\n") {
		t.Errorf("Expected indented info, got %q", out.String())
	}
}

func TestPreviewUsesJackWhenRunning(t *testing.T) {
	video := createVideo(t)

	tests := []struct {
		name string
		ps   string
		ao   string
	}{
		{"jack", "user 1234 1 0 10:00 ? 00:00:01 /usr/bin/qjackctl\n", "--ao=jack"},
		{"no jack", "user 1 0 0 10:00 ? 00:00:01 /sbin/init\n", "--ao=sdl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{outputs: map[string]string{"ps": tt.ps}}
			p := NewProcessor(exec, Options{PlayerCommand: []string{"mpv", "--title=" + FilenameMacro}}, nil)

			if err := p.Preview(context.Background(), video); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			last := exec.calls[len(exec.calls)-1]
			want := "mpv --title=" + filepath.Base(video) + " " + tt.ao + " " + video
			if last != want {
				t.Errorf("Expected %q, got %q", want, last)
			}
		})
	}
}

func TestPreviewFallsBackWhenPsFails(t *testing.T) {
	video := createVideo(t)
	exec := &fakeExecutor{fail: map[string]error{"ps": errors.New("no ps")}}
	p := NewProcessor(exec, Options{PlayerCommand: []string{"mpv"}}, nil)

	if err := p.Preview(context.Background(), video); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(exec.calls[len(exec.calls)-1], "--ao=sdl") {
		t.Errorf("Expected sdl output, got %q", exec.calls[len(exec.calls)-1])
	}
}

func TestExtractAudio(t *testing.T) {
	video := createVideo(t)
	exec := &fakeExecutor{}
	p := NewProcessor(exec, Options{}, nil)

	audio, err := p.ExtractAudio(context.Background(), video)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if audio != strings.TrimSuffix(video, ".mp4")+".wav" {
		t.Errorf("Unexpected audio path: %s", audio)
	}
	want := "ffmpeg -y -i " + video + " -map 0:a " + audio + " -loglevel quiet"
	if exec.calls[0] != want {
		t.Errorf("Expected %q, got %q", want, exec.calls[0])
	}
}

func TestExtractAudioMissingFile(t *testing.T) {
	p := NewProcessor(&fakeExecutor{}, Options{}, nil)
	if _, err := p.ExtractAudio(context.Background(), "/nonexistent/v.mp4"); err == nil {
		t.Error("Expected error for missing video")
	}
}

func TestPostprocess(t *testing.T) {
	video := createVideo(t)
	exec := &fakeExecutor{}
	p := NewProcessor(exec, Options{PostprocessCommand: []string{"stabilize", "--fast"}}, nil)

	if err := p.Postprocess(context.Background(), video); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.calls[0] != "stabilize --fast "+video {
		t.Errorf("Unexpected command: %q", exec.calls[0])
	}

	none := NewProcessor(exec, Options{}, nil)
	if err := none.Postprocess(context.Background(), video); !errors.Is(err, ErrNoPostprocessCommand) {
		t.Errorf("Expected ErrNoPostprocessCommand, got %v", err)
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	video := createVideo(t)
	exec := &fakeExecutor{fail: map[string]error{"ffprobe": errors.New("exit status 1")}}
	p := NewProcessor(exec, Options{}, &bytes.Buffer{})

	err := p.Run(context.Background(), video, []Step{StepInfo, StepAudio})
	if err == nil || !strings.Contains(err.Error(), "info step failed") {
		t.Fatalf("Expected info step failure, got %v", err)
	}
	for _, call := range exec.calls {
		if strings.HasPrefix(call, "ffmpeg") {
			t.Error("Audio step ran after info failed")
		}
	}
}
