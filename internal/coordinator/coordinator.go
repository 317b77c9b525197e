// Package coordinator schedules snapshot refreshes and holds the latest result.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"propertyfees/internal/core"
	"propertyfees/internal/log"
)

const DefaultInterval = 24 * time.Hour

var ErrAlreadyRunning = errors.New("coordinator is already running")

// Builder produces one snapshot per call. *snapshot.Builder implements it.
type Builder interface {
	Build(ctx context.Context) (core.Snapshot, error)
	Year() int
}

// Listener is told about every successfully built snapshot. Each listener
// receives its own copy, so changes it makes are not seen by readers of State.
type Listener interface {
	SnapshotUpdated(ctx context.Context, snap core.Snapshot) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, snap core.Snapshot) error

func (f ListenerFunc) SnapshotUpdated(ctx context.Context, snap core.Snapshot) error {
	return f(ctx, snap)
}

// Recorder observes refresh outcomes, typically for metrics.
type Recorder interface {
	ObserveRefresh(snap *core.Snapshot, d time.Duration, err error)
}

// State is an immutable view of the coordinator. Snapshot keeps the last
// good value even after a failed refresh.
type State struct {
	Snapshot          *core.Snapshot
	LastUpdateSuccess bool
	LastAttempt       time.Time
	Err               error
}

// Available reports whether consumers should trust the snapshot.
func (s State) Available() bool {
	return s.LastUpdateSuccess && s.Snapshot != nil
}

type Config struct {
	Interval time.Duration
	Clock    func() time.Time
	Logger   *log.Logger
	Recorder Recorder
}

type Coordinator struct {
	builder   Builder
	interval  time.Duration
	now       func() time.Time
	logger    *log.Logger
	recorder  Recorder
	listeners []Listener

	state     atomic.Pointer[State]
	refreshMu sync.Mutex

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeStop func() // closes stopCh at most once per run
}

func New(b Builder, cfg Config, listeners ...Listener) *Coordinator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	c := &Coordinator{
		builder:   b,
		interval:  cfg.Interval,
		now:       cfg.Clock,
		logger:    cfg.Logger.WithComponent(log.ComponentCoordinator),
		recorder:  cfg.Recorder,
		listeners: listeners,
	}
	c.state.Store(&State{})
	return c
}

// State returns the current state. Never nil.
func (c *Coordinator) State() *State {
	return c.state.Load()
}

func (c *Coordinator) Interval() time.Duration { return c.interval }

func (c *Coordinator) Year() int { return c.builder.Year() }

// NextUpdate is the time of the next scheduled refresh, or zero before the
// first attempt.
func (c *Coordinator) NextUpdate() time.Time {
	st := c.State()
	if st.LastAttempt.IsZero() {
		return time.Time{}
	}
	return st.LastAttempt.Add(c.interval)
}

// Seed installs a previously stored snapshot as last known good. It has no
// effect once a refresh has been attempted.
func (c *Coordinator) Seed(snap core.Snapshot) bool {
	cur := c.State()
	if cur.Snapshot != nil || !cur.LastAttempt.IsZero() {
		return false
	}
	return c.state.CompareAndSwap(cur, &State{
		Snapshot:          &snap,
		LastUpdateSuccess: true,
	})
}

// Refresh builds a new snapshot and publishes it. Concurrent calls run one at
// a time. On failure the previous snapshot stays but is marked unavailable.
// A cancelled refresh leaves the state untouched.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	attempt := c.now()
	start := time.Now()
	snap, err := c.builder.Build(ctx)
	elapsed := time.Since(start)
	prev := c.State()

	if err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled)) {
		c.logger.WarnContext(ctx, "Snapshot refresh cancelled",
			log.FieldError, err,
			log.FieldDuration, elapsed.Milliseconds())
		return err
	}
	if err != nil {
		c.state.Store(&State{
			Snapshot:          prev.Snapshot,
			LastUpdateSuccess: false,
			LastAttempt:       attempt,
			Err:               err,
		})
		c.observe(nil, elapsed, err)
		c.logger.ErrorContext(ctx, "Snapshot refresh failed",
			log.FieldError, err,
			log.FieldDuration, elapsed.Milliseconds())
		return err
	}

	c.state.Store(&State{
		Snapshot:          &snap,
		LastUpdateSuccess: true,
		LastAttempt:       attempt,
	})
	c.observe(&snap, elapsed, nil)
	c.logger.InfoContext(ctx, "Snapshot refreshed",
		log.FieldYear, snap.Year,
		log.FieldDuration, elapsed.Milliseconds(),
		log.FieldNextUpdate, attempt.Add(c.interval))

	for _, l := range c.listeners {
		if lerr := l.SnapshotUpdated(ctx, snap.Clone()); lerr != nil {
			c.logger.WarnContext(ctx, "Snapshot listener failed", log.FieldError, lerr)
		}
	}
	return nil
}

func (c *Coordinator) observe(snap *core.Snapshot, d time.Duration, err error) {
	if c.recorder != nil {
		c.recorder.ObserveRefresh(snap, d, err)
	}
}

// Start refreshes once and then every interval until Stop or ctx is done.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	c.stopCh, c.doneCh = stopCh, doneCh
	c.closeStop = sync.OnceFunc(func() { close(stopCh) })
	c.mu.Unlock()

	go c.runLoop(ctx, stopCh, doneCh)

	c.logger.InfoContext(ctx, "Coordinator started",
		log.FieldInterval, c.interval.String(),
		log.FieldYear, c.Year())
	return nil
}

// Stop signals the loop and waits for an in-flight refresh to finish. After a
// timeout it may be called again to keep waiting.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	closeStop, doneCh := c.closeStop, c.doneCh
	c.mu.Unlock()

	closeStop()

	select {
	case <-doneCh:
		c.logger.InfoContext(ctx, "Coordinator stopped gracefully")
	case <-ctx.Done():
		c.logger.WarnContext(ctx, "Coordinator stop timed out")
		return ctx.Err()
	}

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Coordinator) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	// Cancel an in-flight build when Stop is called.
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-loopCtx.Done():
		}
	}()

	_ = c.Refresh(loopCtx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-loopCtx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(loopCtx)
		}
	}
}
