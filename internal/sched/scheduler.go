package sched

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/guardtone/internal/dsp"
	"github.com/danmuck/guardtone/internal/observability"
	"github.com/danmuck/guardtone/internal/wire"
)

var (
	ErrBackoffWindows = errors.New("sched: backoff windows must be positive and non-increasing with priority")
	ErrSenseTiming    = errors.New("sched: sense poll and carrier sense interval must be positive")
	ErrRetryDelay     = errors.New("sched: retry delay bound must be positive")
)

// ChannelSense reports the channel classification. The activity
// monitor's snapshot satisfies this with a single atomic load.
type ChannelSense interface {
	Snapshot() dsp.ChannelState
}

// Transmitter serializes one frame onto the medium, blocking until the
// burst completes.
type Transmitter interface {
	Transmit(f wire.Frame) error
	Duration() time.Duration
}

// Config tunes the arbitration timing. BackoffWindows is indexed by
// frame priority, so the window for priority 3 comes last and must be
// the smallest.
type Config struct {
	SensePoll            time.Duration
	CarrierSenseInterval time.Duration
	BackoffWindows       [wire.PriorityMax + 1]time.Duration
	RetryDelayMax        time.Duration
}

func (c Config) validate() error {
	if c.SensePoll <= 0 || c.CarrierSenseInterval <= 0 {
		return ErrSenseTiming
	}
	if c.RetryDelayMax <= 0 {
		return ErrRetryDelay
	}
	prev := time.Duration(0)
	for p := int(wire.PriorityMax); p >= 0; p-- {
		w := c.BackoffWindows[p]
		if w <= 0 || w < prev {
			return ErrBackoffWindows
		}
		prev = w
	}
	return nil
}

// Scheduler holds at most one pending frame and works it until the
// frame is on the air or a more urgent one replaces it. Submissions of
// equal or lower priority while one is pending are dropped; a higher
// priority submission supersedes, abandoning any attempt in flight.
type Scheduler struct {
	cfg   Config
	clock Clock
	sense ChannelSense
	tx    Transmitter
	log   zerolog.Logger
	rng   *rand.Rand

	mu      sync.Mutex
	pending *wire.Frame
	gen     uint64

	wake chan struct{}
}

func NewScheduler(cfg Config, clock Clock, sense ChannelSense, tx Transmitter, rng *rand.Rand, log zerolog.Logger) (*Scheduler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		cfg:   cfg,
		clock: clock,
		sense: sense,
		tx:    tx,
		log:   log,
		rng:   rng,
		wake:  make(chan struct{}, 1),
	}, nil
}

// Submit enqueues a frame for transmission. Fire and forget: the
// scheduler retries indefinitely until the frame is sent or superseded.
func (s *Scheduler) Submit(f wire.Frame) {
	s.mu.Lock()
	if s.pending != nil {
		if f.Priority <= s.pending.Priority {
			s.mu.Unlock()
			s.log.Debug().Uint8("priority", f.Priority).Msg("submit dropped, request already pending")
			return
		}
		observability.RecordTxAttempt(observability.TxSuperseded)
		s.log.Debug().
			Uint8("old", s.pending.Priority).
			Uint8("new", f.Priority).
			Msg("pending request superseded")
	}
	frame := f
	s.pending = &frame
	s.gen++
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run works pending requests until the context ends.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		frame, gen, ok := s.current()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.wake:
			}
			continue
		}
		s.attempt(ctx, frame, gen)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (s *Scheduler) current() (wire.Frame, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return wire.Frame{}, 0, false
	}
	return *s.pending, s.gen, true
}

func (s *Scheduler) superseded(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != gen
}

// clearPending retires the request unless a newer one replaced it
// while the burst was in the air.
func (s *Scheduler) clearPending(gen uint64) {
	s.mu.Lock()
	if s.gen == gen {
		s.pending = nil
	}
	s.mu.Unlock()
}

// attempt runs the full carrier-sense sequence for one request,
// looping on busy aborts. It returns once the frame is sent, the
// request is superseded, or the context ends.
func (s *Scheduler) attempt(ctx context.Context, frame wire.Frame, gen uint64) {
	for {
		if !s.waitContinuousIdle(ctx, gen) {
			return
		}

		backoff := time.Duration(s.rng.Int63n(int64(s.cfg.BackoffWindows[frame.Priority]) + 1))
		idle := s.senseThrough(ctx, gen, backoff)
		if ctx.Err() != nil || s.superseded(gen) {
			return
		}

		// Final check right before handoff. The burst itself is
		// deaf, so this is the last moment a collision can be
		// avoided.
		if idle && s.sense.Snapshot().Busy {
			idle = false
		}
		if !idle {
			observability.RecordTxAttempt(observability.TxBusyAbort)
			s.log.Debug().Uint8("priority", frame.Priority).Msg("attempt aborted, channel busy")
			if !s.sleep(ctx, gen, s.retryDelay()) {
				return
			}
			continue
		}

		if err := s.tx.Transmit(frame); err != nil {
			s.log.Error().Err(err).Msg("transmit failed")
			if !s.sleep(ctx, gen, s.retryDelay()) {
				return
			}
			continue
		}
		observability.RecordTxAttempt(observability.TxSent)
		s.clearPending(gen)
		return
	}
}

// waitContinuousIdle blocks until the channel has been idle for the
// full carrier-sense interval without interruption. A busy observation
// restarts the count.
func (s *Scheduler) waitContinuousIdle(ctx context.Context, gen uint64) bool {
	var idle time.Duration
	for idle < s.cfg.CarrierSenseInterval {
		if !s.sleep(ctx, gen, s.cfg.SensePoll) {
			return false
		}
		if s.sense.Snapshot().Busy {
			idle = 0
		} else {
			idle += s.cfg.SensePoll
		}
	}
	return true
}

// senseThrough waits out the backoff while polling the channel.
// Returns false if a busy observation occurred.
func (s *Scheduler) senseThrough(ctx context.Context, gen uint64, backoff time.Duration) bool {
	remaining := backoff
	for remaining > 0 {
		step := s.cfg.SensePoll
		if step > remaining {
			step = remaining
		}
		if !s.sleep(ctx, gen, step) {
			return false
		}
		if s.sense.Snapshot().Busy {
			return false
		}
		remaining -= step
	}
	return true
}

func (s *Scheduler) retryDelay() time.Duration {
	return s.cfg.SensePoll + time.Duration(s.rng.Int63n(int64(s.cfg.RetryDelayMax)+1))
}

// sleep waits d, returning false if the context ended or the request
// was superseded in the meantime.
func (s *Scheduler) sleep(ctx context.Context, gen uint64, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(d):
	}
	return !s.superseded(gen)
}
