package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/audiolibrelab/recdroidvid/internal/adb"
	"github.com/audiolibrelab/recdroidvid/internal/config"
	"github.com/audiolibrelab/recdroidvid/internal/detect"
	"github.com/audiolibrelab/recdroidvid/internal/media"
	"github.com/audiolibrelab/recdroidvid/internal/monitor"
	"github.com/audiolibrelab/recdroidvid/internal/transport"
)

// ErrStepsFailed wraps post-step failures. The videos were saved.
var ErrStepsFailed = errors.New("post steps failed")

// DeviceControl is everything a full cycle does to the device.
type DeviceControl interface {
	Device
	Wakeup(ctx context.Context) error
	Sleep(ctx context.Context) error
	Unlock(ctx context.Context) error
	OpenCamera(ctx context.Context, pkg string) error
	Pull(ctx context.Context, remote, localDir string) (string, error)
	Remove(ctx context.Context, remote string) error
	ScanMedia(ctx context.Context, remote string) error
}

// Recorder runs one recording attempt and returns the new remote videos.
type Recorder interface {
	Record(ctx context.Context) ([]string, error)
}

// PostProcessor runs post-session steps on a local video.
type PostProcessor interface {
	Run(ctx context.Context, video string, steps []media.Step) error
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	CameraPackage     string
	RaiseOnCameraOpen bool
	Prefix            string
	DateInName        bool
	OutputDir         string
	FinalizeDelay     time.Duration // wait after recording before pulling
	PullDelay         time.Duration // wait between pull and remote delete
	Steps             []media.Step
}

// CycleResult is the outcome of one RunCycle.
type CycleResult struct {
	Videos []string // local paths, renamed
	Next   int      // number to give the next video
}

// Service runs full device cycles: prepare, record, pull, rename, post steps.
type Service struct {
	device   DeviceControl
	recorder Recorder
	raiser   transport.Transport
	post     PostProcessor
	opts     ServiceOptions
	now      func() time.Time
}

// NewService creates a service from its parts. raiser and post may be nil.
func NewService(device DeviceControl, recorder Recorder, raiser transport.Transport, post PostProcessor, opts ServiceOptions) *Service {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &Service{
		device:   device,
		recorder: recorder,
		raiser:   raiser,
		post:     post,
		opts:     opts,
		now:      time.Now,
	}
}

// New wires a Service from configuration. onFatal is called if the
// background sync loop loses the device.
func New(cfg *config.Config, out io.Writer, onFatal func(error)) (*Service, error) {
	client := NewDevice(cfg)

	strategy, err := cfg.Strategy()
	if err != nil {
		return nil, err
	}
	detector, err := detect.New(client, strategy, cfg.Device.SaveDir)
	if err != nil {
		return nil, err
	}

	shell := &transport.ShellTransport{
		ToggleCommand: cfg.Sync.ToggleCommand,
		RaiseCommand:  cfg.Sync.RaiseCommand,
	}

	var sync *transport.SyncController
	if cfg.Sync.Enabled {
		sync = transport.NewSyncController(detector, shell, transport.Options{
			Interval:      config.Seconds(cfg.Sync.IntervalSec),
			RaiseOnToggle: cfg.Sync.RaiseOnToggle,
			OnFatal:       onFatal,
		})
	}

	mon := &monitor.Scrcpy{
		Command: cfg.Monitor.Command,
		Title:   "video file prefix: " + cfg.Session.Prefix,
	}

	orchestrator := NewOrchestrator(client, detector, mon, sync, Options{
		SaveDir:          cfg.Device.SaveDir,
		VideoExtension:   cfg.Device.VideoExtension,
		Autorecord:       cfg.Session.Autorecord,
		StopPollInterval: config.Seconds(cfg.Detection.StopPollIntervalSec),
	})

	steps, err := cfg.Steps()
	if err != nil {
		return nil, err
	}

	var raiser transport.Transport
	if cfg.Sync.RaiseOnCameraOpen {
		raiser = shell
	}

	return NewService(client, orchestrator, raiser, NewProcessor(cfg, out), ServiceOptions{
		CameraPackage:     cfg.Device.CameraPackage,
		RaiseOnCameraOpen: cfg.Sync.RaiseOnCameraOpen,
		Prefix:            cfg.Session.Prefix,
		DateInName:        cfg.Session.DateInName,
		OutputDir:         cfg.Session.OutputDir,
		FinalizeDelay:     config.Seconds(cfg.Session.FinalizeDelaySec),
		PullDelay:         config.Seconds(cfg.Session.PullDelaySec),
		Steps:             steps,
	}), nil
}

// NewDevice creates the adb client described by cfg.
func NewDevice(cfg *config.Config) *adb.Client {
	return adb.NewClient(adb.Options{
		Binary: cfg.Device.ADB,
		Serial: cfg.Device.Serial,
		Settle: adb.SettleDelays{
			Power:  config.Seconds(cfg.Device.PowerSettleSec),
			Unlock: config.Seconds(cfg.Device.UnlockSettleSec),
			Camera: config.Seconds(cfg.Device.CameraSettleSec),
		},
	})
}

// NewProcessor creates the post-session processor described by cfg.
func NewProcessor(cfg *config.Config, out io.Writer) *media.Processor {
	return media.NewProcessor(media.SystemExecutor{}, media.Options{
		PlayerCommand:      cfg.Media.PlayerCommand,
		JackProcesses:      cfg.Media.JackProcesses,
		AudioExtension:     cfg.Media.AudioExtension,
		PostprocessCommand: cfg.Media.PostprocessCommand,
	}, out)
}

// PrepareDevice brings the device to a known state with the camera app open.
func (s *Service) PrepareDevice(ctx context.Context) error {
	slog.Debug("Service.PrepareDevice called")

	// Sleeping first gives a consistent starting state.
	if err := s.device.Sleep(ctx); err != nil {
		return err
	}
	if err := s.device.Wakeup(ctx); err != nil {
		return err
	}
	if err := s.device.Unlock(ctx); err != nil {
		return err
	}
	if err := s.device.OpenCamera(ctx, s.opts.CameraPackage); err != nil {
		return err
	}

	if s.opts.RaiseOnCameraOpen && s.raiser != nil {
		if err := s.raiser.Raise(ctx); err != nil {
			slog.Warn("Raising DAW window failed", "error", err)
		}
	}
	return nil
}

// RunCycle prepares the device, records, pulls and renames the new
// videos starting at number start, then runs the post steps on each.
// ErrNoNewVideos is returned with a result whose Next equals start.
func (s *Service) RunCycle(ctx context.Context, start int) (CycleResult, error) {
	result := CycleResult{Next: start}

	if err := s.PrepareDevice(ctx); err != nil {
		return result, fmt.Errorf("failed to prepare device: %w", err)
	}

	remote, err := s.recorder.Record(ctx)
	if err != nil {
		if errors.Is(err, ErrNoNewVideos) {
			s.sleepDevice(ctx)
		}
		return result, err
	}

	if err := wait(ctx, s.opts.FinalizeDelay); err != nil {
		return result, err
	}

	for i, r := range remote {
		local, err := s.pullVideo(ctx, r, start+i)
		if err != nil {
			return result, err
		}
		result.Videos = append(result.Videos, local)
		result.Next = start + i + 1
	}

	s.sleepDevice(ctx)

	var stepErrs []error
	for _, video := range result.Videos {
		if len(s.opts.Steps) == 0 || s.post == nil {
			break
		}
		if err := s.post.Run(ctx, video, s.opts.Steps); err != nil {
			slog.Error("Post step failed", "video", video, "error", err)
			stepErrs = append(stepErrs, err)
		}
	}
	if len(stepErrs) > 0 {
		return result, fmt.Errorf("%w: %w", ErrStepsFailed, errors.Join(stepErrs...))
	}
	return result, nil
}

// pullVideo copies one remote video, deletes it from the device and
// renames the local copy.
func (s *Service) pullVideo(ctx context.Context, remote string, number int) (string, error) {
	if err := os.MkdirAll(s.opts.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	pulled, err := s.device.Pull(ctx, remote, s.opts.OutputDir)
	if err != nil {
		return "", err
	}

	if err := wait(ctx, s.opts.PullDelay); err != nil {
		return "", err
	}
	if err := s.device.Remove(ctx, remote); err != nil {
		return "", err
	}
	if err := s.device.ScanMedia(ctx, remote); err != nil {
		slog.Warn("Media rescan failed", "file", remote, "error", err)
	}

	name := media.VideoName(s.opts.Prefix, number, pulled, s.now(), s.opts.DateInName)
	local := filepath.Join(s.opts.OutputDir, name)
	if err := os.Rename(pulled, local); err != nil {
		return "", fmt.Errorf("failed to rename %s: %w", pulled, err)
	}

	slog.Info("Saved video", "file", local)
	return local, nil
}

func (s *Service) sleepDevice(ctx context.Context) {
	if err := s.device.Sleep(ctx); err != nil {
		slog.Warn("Failed to put device to sleep", "error", err)
	}
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
