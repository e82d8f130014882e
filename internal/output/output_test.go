package output

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{1500 * time.Millisecond, "2s"},
		{65 * time.Second, "1m05s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h02m03s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatterLines(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)

	f.SessionStart("take", 3)
	f.VideoSaved("/tmp/take_03_VID_1.mp4")
	f.DeviceListItem("R58M123", "unauthorized")
	f.Prompt("Record another video?")

	out := buf.String()
	for _, want := range []string{
		"Session take, next video #03",
		"Video saved: /tmp/take_03_VID_1.mp4",
		"R58M123",
		"unauthorized",
		"[ynq enter=y]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got %q", want, out)
		}
	}
}
