// Package output formats user-facing progress lines for the terminal.
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) SessionStart(prefix string, number int) {
	fmt.Fprintf(f.w, "%s\n", headerStyle.Render(fmt.Sprintf("🎬 Session %s, next video #%02d", prefix, number)))
}

func (f *Formatter) Monitoring() {
	fmt.Fprintf(f.w, "📱 Monitoring device, close the scrcpy window to finish\n")
}

func (f *Formatter) VideoSaved(path string) {
	fmt.Fprintf(f.w, "%s\n", successStyle.Render("✅ Video saved: "+path))
}

func (f *Formatter) StepHeader(step, video string) {
	fmt.Fprintf(f.w, "\n%s %s\n", headerStyle.Render("▶ "+step+":"), dimStyle.Render(video))
}

func (f *Formatter) NoNewVideos() {
	f.Warning("No new videos found on the device")
}

func (f *Formatter) CycleComplete(count int, elapsed time.Duration) {
	fmt.Fprintf(f.w, "\n📁 %d video(s) saved in %s\n", count, formatDuration(elapsed))
}

func (f *Formatter) Prompt(question string) {
	fmt.Fprintf(f.w, "\n%s [ynq enter=y] ", headerStyle.Render(question))
}

func (f *Formatter) DeviceListHeader() {
	fmt.Fprintf(f.w, "📱 Devices:\n\n")
}

func (f *Formatter) DeviceListItem(serial, state string) {
	if state == "device" {
		fmt.Fprintf(f.w, "  %s %s\n", serial, successStyle.Render(state))
	} else {
		fmt.Fprintf(f.w, "  %s %s\n", serial, warningStyle.Render(state))
	}
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "%s\n", errorStyle.Render("❌ "+msg))
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "%s\n", successStyle.Render("✅ "+msg))
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "%s\n", warningStyle.Render("⚠️  "+msg))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
