// Package detect derives a single "is the device recording" signal from
// raw device queries.
package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrUnknownStrategy is returned when a detection method name is not recognized.
var ErrUnknownStrategy = errors.New("unknown recording detection method")

const (
	// DefaultGrowthInterval is the wait between the two size measurements.
	DefaultGrowthInterval = 1 * time.Second

	// DefaultPendingPrefix is the marker OpenCamera uses for files still being written.
	DefaultPendingPrefix = ".pending"
)

// Kind names a detection strategy.
type Kind string

const (
	KindSizeGrowth    Kind = "size-growth"
	KindPendingMarker Kind = "pending-marker"
)

// Strategy is the detection strategy variant. It is either SizeGrowth or
// PendingMarker.
type Strategy interface {
	Kind() Kind
	isStrategy()
}

// SizeGrowth reports recording when the directory grows between two
// measurements taken Interval apart.
type SizeGrowth struct {
	Interval time.Duration
}

func (SizeGrowth) Kind() Kind { return KindSizeGrowth }
func (SizeGrowth) isStrategy() {}

// PendingMarker reports recording when an entry in the directory starts
// with Prefix.
type PendingMarker struct {
	Prefix string
}

func (PendingMarker) Kind() Kind { return KindPendingMarker }
func (PendingMarker) isStrategy() {}

// ParseStrategy turns a configured method name into a Strategy. The long
// descriptive names accepted by older configs are kept as aliases.
func ParseStrategy(method, prefix string, interval time.Duration) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case string(KindSizeGrowth), "directory size increasing":
		if interval <= 0 {
			interval = DefaultGrowthInterval
		}
		return SizeGrowth{Interval: interval}, nil
	case string(KindPendingMarker), ".pending filename prefix":
		if prefix == "" {
			prefix = DefaultPendingPrefix
		}
		return PendingMarker{Prefix: prefix}, nil
	default:
		return nil, fmt.Errorf("%w: %q (valid: %s, %s)", ErrUnknownStrategy, method, KindSizeGrowth, KindPendingMarker)
	}
}

// DeviceQuery is the subset of the device interface the detector polls.
type DeviceQuery interface {
	DirectoryByteSize(ctx context.Context, dir string) (int64, error)
	PendingMarkerExists(ctx context.Context, dir, prefix string) (bool, error)
}

// Detector answers IsRecording for one directory using one strategy.
type Detector struct {
	query    DeviceQuery
	strategy Strategy
	dir      string
}

// New creates a detector. The strategy is fixed for the detector's lifetime.
func New(query DeviceQuery, strategy Strategy, dir string) (*Detector, error) {
	if query == nil {
		return nil, errors.New("detector needs a device query")
	}
	switch strategy.(type) {
	case SizeGrowth, PendingMarker:
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownStrategy, strategy)
	}
	return &Detector{query: query, strategy: strategy, dir: dir}, nil
}

// Strategy returns the configured strategy.
func (d *Detector) Strategy() Strategy {
	return d.strategy
}

// IsRecording polls the device once and reports whether a video is being
// recorded. Device query failures are returned unchanged.
func (d *Detector) IsRecording(ctx context.Context) (bool, error) {
	switch s := d.strategy.(type) {
	case SizeGrowth:
		return d.sizeGrowing(ctx, s.Interval)
	case PendingMarker:
		return d.query.PendingMarkerExists(ctx, d.dir, s.Prefix)
	default:
		return false, fmt.Errorf("%w: %T", ErrUnknownStrategy, d.strategy)
	}
}

func (d *Detector) sizeGrowing(ctx context.Context, interval time.Duration) (bool, error) {
	before, err := d.query.DirectoryByteSize(ctx, d.dir)
	if err != nil {
		return false, err
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-timer.C:
	}

	after, err := d.query.DirectoryByteSize(ctx, d.dir)
	if err != nil {
		return false, err
	}

	slog.Debug("Directory size", "dir", d.dir, "before", before, "after", after)
	return after > before, nil
}
