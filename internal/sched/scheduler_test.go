package sched

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/guardtone/internal/dsp"
	"github.com/danmuck/guardtone/internal/wire"
)

// fakeClock jumps forward on every wait, so scheduler runs finish in
// microseconds of real time while keeping their simulated timeline.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	t := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- t
	return ch
}

type idleSense struct{}

func (idleSense) Snapshot() dsp.ChannelState {
	return dsp.ChannelState{Busy: false, NoiseFloor: 1e-6}
}

// scriptedSense replays a fixed busy/idle sequence, one entry per
// Snapshot call, then stays idle.
type scriptedSense struct {
	seq  []bool
	i    int
	busy bool
}

func (s *scriptedSense) Snapshot() dsp.ChannelState {
	s.busy = false
	if s.i < len(s.seq) {
		s.busy = s.seq[s.i]
		s.i++
	}
	return dsp.ChannelState{Busy: s.busy, NoiseFloor: 1e-6}
}

type captureTx struct {
	clock *fakeClock
	sense *scriptedSense

	mu        sync.Mutex
	frames    []wire.Frame
	times     []time.Time
	busyAtTx  int
	delivered chan struct{}
}

func newCaptureTx(clock *fakeClock, sense *scriptedSense) *captureTx {
	return &captureTx{clock: clock, sense: sense, delivered: make(chan struct{}, 64)}
}

func (t *captureTx) Transmit(f wire.Frame) error {
	t.mu.Lock()
	t.frames = append(t.frames, f)
	t.times = append(t.times, t.clock.Now())
	if t.sense != nil && t.sense.busy {
		t.busyAtTx++
	}
	t.mu.Unlock()
	t.delivered <- struct{}{}
	return nil
}

func (t *captureTx) Duration() time.Duration { return 1360 * time.Millisecond }

func (t *captureTx) snapshot() ([]wire.Frame, []time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]wire.Frame(nil), t.frames...), append([]time.Time(nil), t.times...)
}

func testConfig() Config {
	return Config{
		SensePoll:            5 * time.Millisecond,
		CarrierSenseInterval: 15 * time.Millisecond,
		BackoffWindows: [wire.PriorityMax + 1]time.Duration{
			2000 * time.Millisecond,
			1200 * time.Millisecond,
			600 * time.Millisecond,
			200 * time.Millisecond,
		},
		RetryDelayMax: 50 * time.Millisecond,
	}
}

func schedFrame(priority, seq uint8) wire.Frame {
	return wire.Frame{
		Version:  wire.Version,
		MsgType:  wire.MsgInhibit,
		Priority: priority,
		DeviceID: 0x112233,
		Reason:   wire.ReasonPolicy,
		TTL:      12,
		Seq:      seq,
	}
}

func awaitDelivery(t *testing.T, tx *captureTx) {
	t.Helper()
	select {
	case <-tx.delivered:
	case <-time.After(5 * time.Second):
		t.Fatalf("no transmission within deadline")
	}
}

func TestSchedulerSendsOnIdleChannel(t *testing.T) {
	clock := newFakeClock()
	tx := newCaptureTx(clock, nil)
	s, err := NewScheduler(testConfig(), clock, idleSense{}, tx, rand.New(rand.NewSource(1)), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	want := schedFrame(2, 1)
	s.Submit(want)
	awaitDelivery(t, tx)
	cancel()

	frames, times := tx.snapshot()
	if len(frames) != 1 || frames[0] != want {
		t.Fatalf("transmitted %v, want exactly %+v", frames, want)
	}
	if elapsed := times[0].Sub(time.Unix(0, 0)); elapsed < testConfig().CarrierSenseInterval {
		t.Fatalf("handed off after %v, before carrier sense interval elapsed", elapsed)
	}
}

func TestSchedulerNeverHandsOffWhileBusy(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	// A noisy stretch, then quiet. The scheduler must ride out the
	// noise and only hand off once its view of the channel is idle.
	script := make([]bool, 400)
	for i := range script {
		script[i] = rng.Intn(2) == 0
	}
	sense := &scriptedSense{seq: script}

	clock := newFakeClock()
	tx := newCaptureTx(clock, sense)
	s, err := NewScheduler(testConfig(), clock, sense, tx, rand.New(rand.NewSource(2)), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Submit(schedFrame(1, 1))
	awaitDelivery(t, tx)
	cancel()

	tx.mu.Lock()
	defer tx.mu.Unlock()
	if len(tx.frames) != 1 {
		t.Fatalf("transmitted %d frames, want 1", len(tx.frames))
	}
	if tx.busyAtTx != 0 {
		t.Fatalf("%d handoffs while channel busy", tx.busyAtTx)
	}
}

// Priority 3 against priority 0 on an idle channel: the smaller
// backoff window must win the overwhelming majority of trials.
func TestSchedulerPriorityPrecedence(t *testing.T) {
	const trials = 400
	wins := 0
	for trial := 0; trial < trials; trial++ {
		finish := func(priority uint8, seed int64) time.Duration {
			clock := newFakeClock()
			tx := newCaptureTx(clock, nil)
			s, err := NewScheduler(testConfig(), clock, idleSense{}, tx, rand.New(rand.NewSource(seed)), zerolog.Nop())
			if err != nil {
				t.Fatalf("NewScheduler: %v", err)
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go s.Run(ctx)
			s.Submit(schedFrame(priority, 0))
			awaitDelivery(t, tx)
			_, times := tx.snapshot()
			return times[0].Sub(time.Unix(0, 0))
		}
		high := finish(3, int64(trial)*2+1)
		low := finish(0, int64(trial)*2+2)
		if high < low {
			wins++
		}
	}
	if wins < trials*90/100 {
		t.Fatalf("priority 3 won %d/%d trials, want >= 90%%", wins, trials)
	}
}

func TestSchedulerDropsDuplicateSubmission(t *testing.T) {
	clock := newFakeClock()
	tx := newCaptureTx(clock, nil)
	s, err := NewScheduler(testConfig(), clock, idleSense{}, tx, rand.New(rand.NewSource(3)), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	first := schedFrame(2, 1)
	s.Submit(first)
	s.Submit(schedFrame(2, 2)) // equal priority, dropped
	s.Submit(schedFrame(1, 3)) // lower priority, dropped

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	awaitDelivery(t, tx)
	cancel()

	frames, _ := tx.snapshot()
	if len(frames) != 1 || frames[0] != first {
		t.Fatalf("transmitted %v, want only the first submission", frames)
	}
}

func TestSchedulerSupersedesWithHigherPriority(t *testing.T) {
	clock := newFakeClock()
	tx := newCaptureTx(clock, nil)
	s, err := NewScheduler(testConfig(), clock, idleSense{}, tx, rand.New(rand.NewSource(4)), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	s.Submit(schedFrame(0, 1))
	urgent := schedFrame(3, 2)
	s.Submit(urgent)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	awaitDelivery(t, tx)
	cancel()

	frames, _ := tx.snapshot()
	if len(frames) != 1 || frames[0] != urgent {
		t.Fatalf("transmitted %v, want the superseding frame %+v", frames, urgent)
	}
}

func TestSchedulerConfigValidation(t *testing.T) {
	base := testConfig()

	noPoll := base
	noPoll.SensePoll = 0

	noRetry := base
	noRetry.RetryDelayMax = 0

	inverted := base
	inverted.BackoffWindows[3] = 3 * time.Second // larger than priority 0's

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero sense poll", noPoll},
		{"zero retry delay", noRetry},
		{"inverted backoff windows", inverted},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewScheduler(tc.cfg, newFakeClock(), idleSense{}, nil, rand.New(rand.NewSource(0)), zerolog.Nop()); err == nil {
				t.Fatalf("NewScheduler accepted %+v", tc.cfg)
			}
		})
	}
}
