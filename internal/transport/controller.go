package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrAlreadyRunning is returned by Start while a previous loop is still live.
var ErrAlreadyRunning = errors.New("transport sync controller already running")

// DefaultInterval is the pause between two recording-state polls.
const DefaultInterval = 4 * time.Second

// Detector reports whether the device is recording.
type Detector interface {
	IsRecording(ctx context.Context) (bool, error)
}

// State is what the controller believes the transport is doing. There is
// no read-back from the DAW, so it is only as accurate as the last toggle.
type State int32

const (
	Idle State = iota
	Rolling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Rolling:
		return "ROLLING"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// StopToken is a one-shot cooperative stop request. Each Start gets a
// fresh token, so a request made for one loop never reaches the next.
type StopToken struct {
	requested atomic.Bool
	ch        chan struct{}
	once      sync.Once
}

func newStopToken() *StopToken {
	return &StopToken{ch: make(chan struct{})}
}

// Request marks the token as stopped. Safe to call more than once.
func (t *StopToken) Request() {
	t.once.Do(func() {
		t.requested.Store(true)
		close(t.ch)
	})
}

// Requested reports whether Request has been called.
func (t *StopToken) Requested() bool {
	return t.requested.Load()
}

// Done is closed once Request has been called.
func (t *StopToken) Done() <-chan struct{} {
	return t.ch
}

// Handle is one running controller loop.
type Handle struct {
	token *StopToken
	done  chan struct{}
	err   error
}

// RequestStop asks the loop to exit after its current poll. It does not wait.
func (h *Handle) RequestStop() {
	h.token.Request()
}

// Join blocks until the loop goroutine has exited and returns the error
// that ended it, if any. No transport command is in flight once Join returns.
func (h *Handle) Join() error {
	<-h.done
	return h.err
}

// Stop requests a stop and joins.
func (h *Handle) Stop() error {
	h.RequestStop()
	return h.Join()
}

// Done is closed when the loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Options configures a SyncController.
type Options struct {
	Interval      time.Duration
	RaiseOnToggle bool
	// OnFatal is called from the loop goroutine when a device query fails.
	OnFatal func(error)
}

// SyncController polls a Detector and toggles a Transport on every edge
// of the recording state.
type SyncController struct {
	detector      Detector
	transport     Transport
	interval      time.Duration
	raiseOnToggle bool
	onFatal       func(error)

	mu     sync.Mutex
	active *Handle
	state  atomic.Int32
}

// NewSyncController creates a controller. It does nothing until Start.
func NewSyncController(detector Detector, transport Transport, opts Options) *SyncController {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &SyncController{
		detector:      detector,
		transport:     transport,
		interval:      opts.Interval,
		raiseOnToggle: opts.RaiseOnToggle,
		onFatal:       opts.OnFatal,
	}
}

// State returns the controller's current belief about the transport.
func (c *SyncController) State() State {
	return State(c.state.Load())
}

// Start launches the polling loop and returns immediately.
func (c *SyncController) Start(ctx context.Context) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, ErrAlreadyRunning
	}

	h := &Handle{
		token: newStopToken(),
		done:  make(chan struct{}),
	}
	c.active = h
	c.state.Store(int32(Idle))

	go func() {
		err := c.loop(ctx, h.token)
		if err != nil && ctx.Err() == nil && c.onFatal != nil {
			c.onFatal(err)
		}

		c.mu.Lock()
		h.err = err
		if c.active == h {
			c.active = nil
		}
		c.mu.Unlock()
		close(h.done)
	}()

	slog.Debug("Transport sync started", "interval", c.interval, "raise_on_toggle", c.raiseOnToggle)
	return h, nil
}

func (c *SyncController) loop(ctx context.Context, token *StopToken) error {
	state := Idle

	for {
		recording, err := c.detector.IsRecording(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("recording detection failed: %w", err)
		}

		// A stop requested during the poll wins over its result. The
		// transport is left as is, even when rolling.
		if token.Requested() {
			slog.Debug("Transport sync stopped", "state", state)
			return nil
		}

		state = c.apply(ctx, state, recording)

		if !c.sleep(ctx, token) {
			slog.Debug("Transport sync stopped", "state", state)
			return ctx.Err()
		}
	}
}

// sleep waits one interval. It returns false if the loop should exit.
func (c *SyncController) sleep(ctx context.Context, token *StopToken) bool {
	timer := time.NewTimer(c.interval)
	defer timer.Stop()
	select {
	case <-token.Done():
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// apply issues the side effects of one poll and returns the new state.
// A failed toggle still advances the state.
func (c *SyncController) apply(ctx context.Context, state State, recording bool) State {
	switch {
	case state == Idle && recording:
		slog.Info("Recording started, toggling transport")
		if err := c.transport.Toggle(ctx); err != nil {
			slog.Warn("Transport toggle failed", "error", err)
		}
		if c.raiseOnToggle {
			if err := c.transport.Raise(ctx); err != nil {
				slog.Warn("Raising DAW window failed", "error", err)
			}
		}
		state = Rolling
	case state == Rolling && !recording:
		slog.Info("Recording stopped, toggling transport")
		if err := c.transport.Toggle(ctx); err != nil {
			slog.Warn("Transport toggle failed", "error", err)
		}
		state = Idle
	}
	c.state.Store(int32(state))
	return state
}
