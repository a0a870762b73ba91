package sched

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/guardtone/internal/wire"
)

var (
	ErrRefresh   = errors.New("sched: refresh interval must exceed its jitter")
	ErrFastStart = errors.New("sched: fast start offsets must be non-decreasing")
	ErrNilSource = errors.New("sched: beacon needs a frame source")
)

// FrameSource builds the next frame to announce. Called once per
// beacon, so each frame carries a fresh sequence number.
type FrameSource func() wire.Frame

// Submitter accepts transmit requests. *Scheduler satisfies it.
type Submitter interface {
	Submit(f wire.Frame)
}

// BeaconConfig tunes the repetition cadence.
type BeaconConfig struct {
	// RefreshInterval is the steady-state period between beacons.
	// Jitter is added uniformly from [-RefreshJitter, +RefreshJitter]
	// each cycle, desynchronizing devices that share a duty cycle.
	RefreshInterval time.Duration
	RefreshJitter   time.Duration
	// FastStartOffsets are the delays, measured from activation, of
	// the initial burst of submissions that shortens time to first
	// inhibit.
	FastStartOffsets []time.Duration
}

func (c BeaconConfig) validate() error {
	if c.RefreshInterval <= c.RefreshJitter || c.RefreshJitter < 0 {
		return ErrRefresh
	}
	prev := time.Duration(-1)
	for _, off := range c.FastStartOffsets {
		if off < prev {
			return ErrFastStart
		}
		prev = off
	}
	return nil
}

// Beacon drives the scheduler while the guard is asserting: a fast
// start burst on activation, then periodic refresh until deactivated.
type Beacon struct {
	cfg    BeaconConfig
	sched  Submitter
	clock  Clock
	source FrameSource
	log    zerolog.Logger
	rng    *rand.Rand

	active atomic.Bool
	kick   chan struct{}
}

func NewBeacon(cfg BeaconConfig, sched Submitter, clock Clock, source FrameSource, rng *rand.Rand, log zerolog.Logger) (*Beacon, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, ErrNilSource
	}
	return &Beacon{
		cfg:    cfg,
		sched:  sched,
		clock:  clock,
		source: source,
		log:    log,
		rng:    rng,
		kick:   make(chan struct{}, 1),
	}, nil
}

// SetActive switches assertion on or off. Turning it on restarts the
// fast start sequence.
func (b *Beacon) SetActive(on bool) {
	was := b.active.Swap(on)
	if on && !was {
		b.log.Info().Msg("assertion activated")
		select {
		case b.kick <- struct{}{}:
		default:
		}
	}
	if !on && was {
		b.log.Info().Msg("assertion deactivated")
	}
}

// Active reports whether the beacon is asserting.
func (b *Beacon) Active() bool { return b.active.Load() }

// Run submits frames per the cadence until the context ends.
func (b *Beacon) Run(ctx context.Context) error {
	for {
		if !b.active.Load() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-b.kick:
			}
			continue
		}

		elapsed := time.Duration(0)
		for _, off := range b.cfg.FastStartOffsets {
			if err := b.sleep(ctx, off-elapsed); err != nil {
				return err
			}
			elapsed = off
			if !b.active.Load() {
				break
			}
			b.sched.Submit(b.source())
		}

		for b.active.Load() {
			jitter := time.Duration(b.rng.Int63n(int64(2*b.cfg.RefreshJitter)+1)) - b.cfg.RefreshJitter
			kicked, err := b.sleepOrKick(ctx, b.cfg.RefreshInterval+jitter)
			if err != nil {
				return err
			}
			if kicked {
				// Reactivated since the last submit; restart the
				// fast start sequence instead of waiting out the
				// refresh period.
				break
			}
			if b.active.Load() {
				b.sched.Submit(b.source())
			}
		}
	}
}

// sleepOrKick waits d unless an activation kick arrives first. A kick
// already pending wins without starting the wait.
func (b *Beacon) sleepOrKick(ctx context.Context, d time.Duration) (bool, error) {
	select {
	case <-b.kick:
		return true, nil
	default:
	}
	if d <= 0 {
		return false, ctx.Err()
	}
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-b.kick:
		return true, nil
	case <-b.clock.After(d):
		return false, nil
	}
}

func (b *Beacon) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.clock.After(d):
		return nil
	}
}
