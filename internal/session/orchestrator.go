// Package session sequences one record-monitor-pull cycle against the device.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/audiolibrelab/recdroidvid/internal/transport"
)

// ErrNoNewVideos is returned when a session ends without any new video on
// the device. It usually means nothing was recorded.
var ErrNoNewVideos = errors.New("no new video files found")

// DefaultStopPollInterval is how often recording is rechecked while
// waiting for the device to finish writing.
const DefaultStopPollInterval = 1 * time.Second

// Device is the part of the device the orchestrator needs.
type Device interface {
	ListVideos(ctx context.Context, dir, ext string) ([]string, error)
	TapCameraButton(ctx context.Context) error
}

// Detector reports whether the device is recording.
type Detector interface {
	IsRecording(ctx context.Context) (bool, error)
}

// Monitor is the blocking foreground session, normally scrcpy.
type Monitor interface {
	Run(ctx context.Context) error
}

// Options configures an Orchestrator.
type Options struct {
	SaveDir          string
	VideoExtension   string
	Autorecord       bool
	StopPollInterval time.Duration
}

// Orchestrator runs one recording attempt end to end.
type Orchestrator struct {
	device   Device
	detector Detector
	monitor  Monitor
	sync     *transport.SyncController
	opts     Options
}

// NewOrchestrator creates an orchestrator. sync may be nil to disable
// transport synchronization.
func NewOrchestrator(device Device, detector Detector, monitor Monitor, sync *transport.SyncController, opts Options) *Orchestrator {
	if opts.StopPollInterval <= 0 {
		opts.StopPollInterval = DefaultStopPollInterval
	}
	return &Orchestrator{
		device:   device,
		detector: detector,
		monitor:  monitor,
		sync:     sync,
		opts:     opts,
	}
}

// Record runs the monitor and returns the remote paths of the videos
// created meanwhile, oldest first. The sync controller, when enabled, runs
// for the whole monitor session and is joined before the final listing.
func (o *Orchestrator) Record(ctx context.Context) ([]string, error) {
	baseline, err := o.device.ListVideos(ctx, o.opts.SaveDir, o.opts.VideoExtension)
	if err != nil {
		return nil, fmt.Errorf("failed to list save directory: %w", err)
	}
	slog.Debug("Baseline listing", "dir", o.opts.SaveDir, "videos", len(baseline))

	if o.opts.Autorecord {
		slog.Info("Starting recording automatically")
		if err := o.device.TapCameraButton(ctx); err != nil {
			return nil, err
		}
	}

	var handle *transport.Handle
	if o.sync != nil {
		handle, err = o.sync.Start(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to start transport sync: %w", err)
		}
	}

	monitorErr := o.monitor.Run(ctx)

	var stopErr error
	if ctx.Err() == nil {
		stopErr = o.ensureStopped(ctx)
	}

	var syncErr error
	if handle != nil {
		if err := handle.Stop(); err != nil {
			syncErr = fmt.Errorf("transport sync failed: %w", err)
		}
	}

	if err := errors.Join(monitorErr, stopErr, syncErr); err != nil {
		return nil, err
	}

	after, err := o.device.ListVideos(ctx, o.opts.SaveDir, o.opts.VideoExtension)
	if err != nil {
		return nil, fmt.Errorf("failed to list save directory: %w", err)
	}

	added := NewEntries(baseline, after)
	if len(added) == 0 {
		return nil, ErrNoNewVideos
	}

	paths := make([]string, len(added))
	for i, name := range added {
		paths[i] = path.Join(o.opts.SaveDir, name)
	}
	slog.Info("New videos on device", "count", len(paths))
	return paths, nil
}

// ensureStopped stops a recording left running when the monitor closed and
// waits until the device has finished writing it.
func (o *Orchestrator) ensureStopped(ctx context.Context) error {
	recording, err := o.detector.IsRecording(ctx)
	if err != nil {
		return fmt.Errorf("failed to check recording state: %w", err)
	}
	if !recording {
		return nil
	}

	slog.Info("Still recording after monitor closed, stopping")
	if err := o.device.TapCameraButton(ctx); err != nil {
		return err
	}

	for {
		timer := time.NewTimer(o.opts.StopPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		recording, err := o.detector.IsRecording(ctx)
		if err != nil {
			return fmt.Errorf("failed to check recording state: %w", err)
		}
		if !recording {
			return nil
		}
		slog.Info("Waiting for the recording to finish")
	}
}

// NewEntries returns the names in after that are not in before, keeping
// the order of after.
func NewEntries(before, after []string) []string {
	seen := make(map[string]bool, len(before))
	for _, name := range before {
		seen[name] = true
	}
	var added []string
	for _, name := range after {
		if !seen[name] {
			added = append(added, name)
		}
	}
	return added
}
