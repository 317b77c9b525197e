package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"propertyfees/internal/core"
)

type fakeBuilder struct {
	mu       sync.Mutex
	results  []error
	calls    int
	inFlight atomic.Int32
	overlap  atomic.Bool
	delay    time.Duration
}

func (b *fakeBuilder) Year() int { return 2025 }

func (b *fakeBuilder) Build(ctx context.Context) (core.Snapshot, error) {
	if b.inFlight.Add(1) > 1 {
		b.overlap.Store(true)
	}
	defer b.inFlight.Add(-1)

	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return core.Snapshot{}, ctx.Err()
		}
	}

	b.mu.Lock()
	i := b.calls
	b.calls++
	var err error
	if i < len(b.results) {
		err = b.results[i]
	}
	b.mu.Unlock()

	if err != nil {
		return core.Snapshot{}, err
	}
	snap := core.EmptySnapshot(2025)
	snap.Total.PendingTotal = decimal.NewFromInt(int64(i + 1))
	return snap, nil
}

func (b *fakeBuilder) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type recordingListener struct {
	mu    sync.Mutex
	snaps []core.Snapshot
	err   error
}

func (l *recordingListener) SnapshotUpdated(_ context.Context, snap core.Snapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snaps = append(l.snaps, snap)
	return l.err
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestRefreshPublishesSnapshot(t *testing.T) {
	now := time.Date(2025, 10, 18, 8, 0, 0, 0, time.UTC)
	listener := &recordingListener{err: errors.New("sink down")}
	c := New(&fakeBuilder{}, Config{Interval: time.Hour, Clock: fixedClock(now)}, listener)

	if c.State().Available() {
		t.Fatal("state should be unavailable before first refresh")
	}
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	st := c.State()
	if !st.Available() || st.Err != nil || !st.LastAttempt.Equal(now) {
		t.Fatalf("unexpected state %+v", st)
	}
	if len(listener.snaps) != 1 {
		t.Fatalf("listener should be called once, got %d", len(listener.snaps))
	}
	if want := now.Add(time.Hour); !c.NextUpdate().Equal(want) {
		t.Fatalf("NextUpdate = %v, want %v", c.NextUpdate(), want)
	}
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	boom := errors.New("boom")
	b := &fakeBuilder{results: []error{nil, boom}}
	listener := &recordingListener{}
	c := New(b, Config{}, listener)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	first := c.State().Snapshot

	if err := c.Refresh(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	st := c.State()
	if st.Available() || st.LastUpdateSuccess {
		t.Fatal("state should be unavailable after a failed refresh")
	}
	if st.Snapshot != first {
		t.Fatal("previous snapshot should be kept for inspection")
	}
	if !errors.Is(st.Err, boom) {
		t.Fatalf("state error = %v", st.Err)
	}
	if len(listener.snaps) != 1 {
		t.Fatalf("listeners must not see failed refreshes, got %d calls", len(listener.snaps))
	}
}

func TestRefreshSerializesCalls(t *testing.T) {
	b := &fakeBuilder{delay: 20 * time.Millisecond}
	c := New(b, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Refresh(context.Background())
		}()
	}
	wg.Wait()

	if b.overlap.Load() {
		t.Fatal("refreshes overlapped")
	}
	if b.callCount() != 4 {
		t.Fatalf("expected 4 builds, got %d", b.callCount())
	}
}

func TestSeed(t *testing.T) {
	c := New(&fakeBuilder{}, Config{})
	stored := core.EmptySnapshot(2024)
	stored.Total.PrepaidTotal = decimal.NewFromInt(9)

	if !c.Seed(stored) {
		t.Fatal("seed should succeed on a fresh coordinator")
	}
	if !c.State().Available() || !c.State().Snapshot.Total.PrepaidTotal.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("unexpected seeded state %+v", c.State())
	}
	if c.Seed(stored) {
		t.Fatal("second seed should be ignored")
	}

	_ = c.Refresh(context.Background())
	if c.State().Snapshot.Total.PrepaidTotal.Equal(decimal.NewFromInt(9)) {
		t.Fatal("refresh should replace the seeded snapshot")
	}
}

func TestStartStop(t *testing.T) {
	b := &fakeBuilder{}
	c := New(b, Config{Interval: 10 * time.Millisecond})
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if !c.IsRunning() {
		t.Fatal("expected running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for b.callCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if b.callCount() < 3 {
		t.Fatalf("expected initial refresh plus ticks, got %d builds", b.callCount())
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := c.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if c.IsRunning() {
		t.Fatal("expected stopped")
	}
	if err := c.Stop(stopCtx); err != nil {
		t.Fatalf("second Stop should be a no-op: %v", err)
	}
}

func TestStopCancelsInFlightRefresh(t *testing.T) {
	b := &fakeBuilder{delay: time.Hour}
	c := New(b, Config{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if c.State().Available() {
		t.Fatal("cancelled refresh must not publish a snapshot")
	}
}

type countingRecorder struct {
	ok, failed atomic.Int32
}

func (r *countingRecorder) ObserveRefresh(snap *core.Snapshot, _ time.Duration, err error) {
	if err != nil {
		r.failed.Add(1)
		return
	}
	r.ok.Add(1)
}

func TestRecorderObservesOutcomes(t *testing.T) {
	rec := &countingRecorder{}
	c := New(&fakeBuilder{results: []error{nil, errors.New("x")}}, Config{Recorder: rec})
	_ = c.Refresh(context.Background())
	_ = c.Refresh(context.Background())
	if rec.ok.Load() != 1 || rec.failed.Load() != 1 {
		t.Fatalf("recorder saw ok=%d failed=%d", rec.ok.Load(), rec.failed.Load())
	}
}

func TestListenerFunc(t *testing.T) {
	var got int
	c := New(&fakeBuilder{}, Config{}, ListenerFunc(func(_ context.Context, snap core.Snapshot) error {
		got = snap.Year
		return nil
	}))
	_ = c.Refresh(context.Background())
	if got != 2025 {
		t.Fatalf("listener func saw year %d", got)
	}
}

func TestCancelledRefreshKeepsState(t *testing.T) {
	b := &fakeBuilder{}
	listener := &recordingListener{}
	c := New(b, Config{}, listener)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	before := c.State()

	b.delay = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := c.Refresh(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	after := c.State()
	if after != before {
		t.Fatalf("cancelled refresh replaced state: %+v", after)
	}
	if !after.Available() {
		t.Fatal("cancelled refresh must not mark the snapshot unavailable")
	}
	if len(listener.snaps) != 1 {
		t.Fatalf("cancelled refresh reached listeners: %d calls", len(listener.snaps))
	}
}

// stuckBuilder ignores cancellation until released.
type stuckBuilder struct {
	started chan struct{}
	release chan struct{}
}

func (b *stuckBuilder) Year() int { return 2025 }

func (b *stuckBuilder) Build(ctx context.Context) (core.Snapshot, error) {
	close(b.started)
	<-b.release
	return core.Snapshot{}, ctx.Err()
}

func TestStopAfterTimeoutCanBeRetried(t *testing.T) {
	b := &stuckBuilder{started: make(chan struct{}), release: make(chan struct{})}
	c := New(b, Config{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-b.started

	expired, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := c.Stop(expired); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if !c.IsRunning() {
		t.Fatal("coordinator should still be running after a timed-out stop")
	}

	close(b.release)
	stopCtx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := c.Stop(stopCtx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if c.IsRunning() {
		t.Fatal("expected stopped")
	}
}

func TestListenerChangesDoNotLeakIntoState(t *testing.T) {
	c := New(&fakeBuilder{}, Config{}, ListenerFunc(func(_ context.Context, snap core.Snapshot) error {
		snap.Paid.Set(core.WaterFee, core.PaidItem{Status: "tampered"})
		snap.Fallbacks = append(snap.Fallbacks, core.Paid)
		return nil
	}))
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	st := c.State()
	if item, _ := st.Snapshot.Paid.Get(core.WaterFee); item.Status == "tampered" {
		t.Fatal("listener mutated the published snapshot")
	}
	if len(st.Snapshot.Fallbacks) != 0 {
		t.Fatalf("unexpected fallbacks %v", st.Snapshot.Fallbacks)
	}
}
