package adb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoDevice is returned when adb reports that no device is attached.
	ErrNoDevice = errors.New("no Android device found, is the phone plugged in via USB?")

	// ErrCommandFailed is returned when an adb invocation exits nonzero.
	ErrCommandFailed = errors.New("adb command failed")

	// ErrUnexpectedOutput is returned when adb output cannot be parsed.
	ErrUnexpectedOutput = errors.New("unexpected adb output")
)

// Runner executes an external command and returns its captured output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes the command and captures stdout and stderr separately.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// SettleDelays are the pauses taken after device state changes so the
// device UI can catch up before the next command.
type SettleDelays struct {
	Power  time.Duration
	Unlock time.Duration
	Camera time.Duration
}

// DefaultSettleDelays matches what a mid-range phone needs in practice.
var DefaultSettleDelays = SettleDelays{
	Power:  2 * time.Second,
	Unlock: 1 * time.Second,
	Camera: 1 * time.Second,
}

// Options configures a Client.
type Options struct {
	Binary string // adb executable, defaults to "adb"
	Serial string // optional device serial passed with -s
	Settle SettleDelays
	Runner Runner
}

// Client talks to one Android device through the adb command line tool.
type Client struct {
	binary string
	serial string
	settle SettleDelays
	runner Runner
}

// NewClient creates a new adb client
func NewClient(opts Options) *Client {
	if opts.Binary == "" {
		opts.Binary = "adb"
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	return &Client{
		binary: opts.Binary,
		serial: opts.Serial,
		settle: opts.Settle,
		runner: opts.Runner,
	}
}

// run invokes adb with the given arguments and classifies failures.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	full := make([]string, 0, len(args)+2)
	if c.serial != "" {
		full = append(full, "-s", c.serial)
	}
	full = append(full, args...)

	slog.Debug("Running adb", "args", strings.Join(full, " "))

	stdout, stderr, err := c.runner.Run(ctx, c.binary, full...)
	if isNoDevice(stderr) {
		return "", ErrNoDevice
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: adb %s: %v (stderr: %s)", ErrCommandFailed, strings.Join(full, " "), err, strings.TrimSpace(stderr))
	}
	return stdout, nil
}

func (c *Client) shell(ctx context.Context, args ...string) (string, error) {
	return c.run(ctx, append([]string{"shell"}, args...)...)
}

func isNoDevice(stderr string) bool {
	s := strings.TrimSpace(stderr)
	return strings.HasPrefix(s, "error: no devices") || strings.Contains(s, "no devices/emulators found")
}

// DirectoryByteSize returns the total size of a remote directory as
// reported by du.
func (c *Client) DirectoryByteSize(ctx context.Context, dir string) (int64, error) {
	out, err := c.shell(ctx, "du", dir)
	if err != nil {
		return 0, err
	}
	return parseDu(out)
}

// parseDu reads the total from du output. du prints subdirectories first
// and the requested directory last.
func parseDu(out string) (int64, error) {
	lines := splitLines(out)
	if len(lines) == 0 {
		return 0, fmt.Errorf("%w: empty du output", ErrUnexpectedOutput)
	}
	last := lines[len(lines)-1]
	field := strings.Fields(last)
	if len(field) == 0 {
		return 0, fmt.Errorf("%w: du line %q", ErrUnexpectedOutput, last)
	}
	size, err := strconv.ParseInt(field[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: du size %q: %v", ErrUnexpectedOutput, field[0], err)
	}
	return size, nil
}

// ListDirectory lists a remote directory ordered oldest to newest by
// change time. Hidden entries are included when includeHidden is set.
func (c *Client) ListDirectory(ctx context.Context, dir string, includeHidden bool) ([]string, error) {
	flags := "-ctr"
	if includeHidden {
		flags = "-ctra"
	}
	out, err := c.shell(ctx, "ls", flags, dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, line := range splitLines(out) {
		if line == "." || line == ".." {
			continue
		}
		names = append(names, line)
	}
	return names, nil
}

// PendingMarkerExists reports whether any entry in dir, hidden ones
// included, starts with prefix.
func (c *Client) PendingMarkerExists(ctx context.Context, dir, prefix string) (bool, error) {
	names, err := c.ListDirectory(ctx, dir, true)
	if err != nil {
		return false, err
	}
	return HasPrefixedEntry(names, prefix), nil
}

// HasPrefixedEntry reports whether any name starts with prefix.
func HasPrefixedEntry(names []string, prefix string) bool {
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// ListVideos lists dir and keeps only names with the given extension,
// preserving the oldest-to-newest order.
func (c *Client) ListVideos(ctx context.Context, dir, ext string) ([]string, error) {
	names, err := c.ListDirectory(ctx, dir, false)
	if err != nil {
		return nil, err
	}
	return FilterExtension(names, ext), nil
}

// FilterExtension keeps names ending in ext. An empty ext keeps everything.
func FilterExtension(names []string, ext string) []string {
	if ext == "" {
		return names
	}
	var kept []string
	for _, name := range names {
		if strings.HasSuffix(name, ext) {
			kept = append(kept, name)
		}
	}
	return kept
}

func (c *Client) keyevent(ctx context.Context, code string) error {
	_, err := c.shell(ctx, "input", "keyevent", code)
	return err
}

// Wakeup turns the screen on.
func (c *Client) Wakeup(ctx context.Context) error {
	if err := c.keyevent(ctx, "KEYCODE_WAKEUP"); err != nil {
		return fmt.Errorf("failed to wake device: %w", err)
	}
	return wait(ctx, c.settle.Power)
}

// Sleep turns the screen off.
func (c *Client) Sleep(ctx context.Context) error {
	if err := c.keyevent(ctx, "KEYCODE_SLEEP"); err != nil {
		return fmt.Errorf("failed to put device to sleep: %w", err)
	}
	return wait(ctx, c.settle.Power)
}

// Unlock dismisses the lock screen, assuming no passcode is set.
func (c *Client) Unlock(ctx context.Context) error {
	// 82 is KEYCODE_MENU, which dismisses a swipe-only lock screen.
	if err := c.keyevent(ctx, "82"); err != nil {
		return fmt.Errorf("failed to unlock device: %w", err)
	}
	return wait(ctx, c.settle.Unlock)
}

// OpenCamera launches the camera app's main activity with the rear
// camera selected and waits for the launch to complete.
func (c *Client) OpenCamera(ctx context.Context, pkg string) error {
	_, err := c.shell(ctx, "am", "start", "-W",
		"-n", pkg+"/.MainActivity",
		"--ei", "android.intent.extras.CAMERA_FACING", "0")
	if err != nil {
		return fmt.Errorf("failed to open camera app %s: %w", pkg, err)
	}
	return wait(ctx, c.settle.Camera)
}

// TapCameraButton sends the camera key, which starts or stops video
// recording in the foreground camera app.
func (c *Client) TapCameraButton(ctx context.Context) error {
	if err := c.keyevent(ctx, "27"); err != nil {
		return fmt.Errorf("failed to press camera button: %w", err)
	}
	return nil
}

// Pull copies a remote file into localDir and returns the local path.
func (c *Client) Pull(ctx context.Context, remote, localDir string) (string, error) {
	if localDir == "" {
		localDir = "."
	}
	if _, err := c.run(ctx, "pull", remote, localDir); err != nil {
		return "", fmt.Errorf("failed to pull %s: %w", remote, err)
	}
	return filepath.Join(localDir, path.Base(remote)), nil
}

// Remove deletes a remote file.
func (c *Client) Remove(ctx context.Context, remote string) error {
	if _, err := c.shell(ctx, "rm", remote); err != nil {
		return fmt.Errorf("failed to remove %s: %w", remote, err)
	}
	return nil
}

// ScanMedia asks the media scanner to forget or index a remote file so
// the gallery does not show stale entries.
func (c *Client) ScanMedia(ctx context.Context, remote string) error {
	_, err := c.shell(ctx, "am", "broadcast",
		"-a", "android.intent.action.MEDIA_SCANNER_SCAN_FILE",
		"-d", "file:"+remote)
	if err != nil {
		return fmt.Errorf("failed to rescan %s: %w", remote, err)
	}
	return nil
}

// Device is one line of `adb devices` output.
type Device struct {
	Serial string
	State  string
}

// Devices lists attached devices.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	out, err := c.run(ctx, "devices")
	if err != nil {
		return nil, err
	}
	return parseDevices(out), nil
}

func parseDevices(out string) []Device {
	var devices []Device
	for _, line := range splitLines(out) {
		if strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		devices = append(devices, Device{Serial: fields[0], State: fields[1]})
	}
	return devices
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
