package guard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/guardtone/internal/audio"
	"github.com/danmuck/guardtone/internal/config"
	"github.com/danmuck/guardtone/internal/dsp"
	"github.com/danmuck/guardtone/internal/ledger"
	"github.com/danmuck/guardtone/internal/modem"
	"github.com/danmuck/guardtone/internal/observability"
	"github.com/danmuck/guardtone/internal/sched"
	"github.com/danmuck/guardtone/internal/wire"
)

// frameQueueDepth bounds the decode-to-ledger channel. Frames arrive
// at most one per 1.36s burst, so depth is about backlog tolerance,
// not throughput.
const frameQueueDepth = 16

// Engine owns the full pipeline for one guard device: decode incoming
// beacons into the ledger, and when asserting, contend for the channel
// and emit our own.
type Engine struct {
	cfg config.Config
	log zerolog.Logger

	analyzer *dsp.Analyzer
	floor    *dsp.NoiseFloor
	decider  *dsp.Decider
	monitor  *dsp.Monitor
	receiver *modem.Receiver

	source    *audio.WindowSource
	mic       io.Reader
	scheduler *sched.Scheduler
	beacon    *sched.Beacon
	ledger    *ledger.Ledger

	frames chan wire.Frame
	seq    atomic.Uint32
}

// New wires an engine. mic supplies s16le PCM at the configured sample
// rate; speaker receives the same format and is expected to block at
// the device rate.
func New(cfg config.Config, mic io.Reader, speaker io.Writer, log zerolog.Logger) (*Engine, error) {
	analyzer, err := dsp.NewAnalyzer(cfg.Audio.SampleRate, cfg.WindowSize(), cfg.Audio.Tones)
	if err != nil {
		return nil, fmt.Errorf("guard: analyzer: %w", err)
	}
	floor := dsp.NewNoiseFloor(cfg.Detect.NoiseFloorAlpha)
	monitor := dsp.NewMonitor(cfg.MonitorConfig(), floor)

	e := &Engine{
		cfg:      cfg,
		log:      log,
		analyzer: analyzer,
		floor:    floor,
		decider:  dsp.NewDecider(cfg.DeciderConfig(), floor),
		monitor:  monitor,
		source:   audio.NewWindowSource(cfg.WindowSize()),
		mic:      mic,
		ledger:   ledger.New(time.Now, log.With().Str("component", "ledger").Logger()),
		frames:   make(chan wire.Frame, frameQueueDepth),
	}

	e.receiver, err = modem.NewReceiver(cfg.ReceiverConfig(), e.handleFrame,
		log.With().Str("component", "receiver").Logger())
	if err != nil {
		return nil, fmt.Errorf("guard: receiver: %w", err)
	}

	synth, err := audio.NewSynth(cfg.Audio.SampleRate, cfg.Audio.Tones, cfg.Audio.TxAmplitude)
	if err != nil {
		return nil, fmt.Errorf("guard: synth: %w", err)
	}
	tx := modem.NewTransmitter(audio.NewPlayer(synth, speaker), cfg.SymbolPeriod(),
		log.With().Str("component", "transmitter").Logger())

	// Seed with the device id so guards booted at the same instant
	// still draw different backoffs. The scheduler and beacon run on
	// separate goroutines, so each gets its own source.
	seed := time.Now().UnixNano() ^ int64(cfg.DeviceID)<<32
	e.scheduler, err = sched.NewScheduler(cfg.SchedulerConfig(), sched.SystemClock(), monitor, tx,
		rand.New(rand.NewSource(seed)),
		log.With().Str("component", "scheduler").Logger())
	if err != nil {
		return nil, fmt.Errorf("guard: scheduler: %w", err)
	}
	e.beacon, err = sched.NewBeacon(cfg.BeaconConfig(), e.scheduler, sched.SystemClock(), e.nextFrame,
		rand.New(rand.NewSource(seed+1)),
		log.With().Str("component", "beacon").Logger())
	if err != nil {
		return nil, fmt.Errorf("guard: beacon: %w", err)
	}
	return e, nil
}

// Ledger exposes the inhibition state for the recording controller.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// SetAsserting switches this guard's own inhibit broadcast on or off.
func (e *Engine) SetAsserting(on bool) { e.beacon.SetActive(on) }

// Asserting reports whether the beacon is active.
func (e *Engine) Asserting() bool { return e.beacon.Active() }

// Run drives the pipeline until the context ends or the mic stream
// finishes.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 4)
	go func() { errc <- e.pump(ctx) }()
	go func() { errc <- e.windowLoop() }()
	go func() { errc <- e.scheduler.Run(ctx) }()
	go func() { errc <- e.beacon.Run(ctx) }()
	go e.applyLoop(ctx)

	err := <-errc
	cancel()
	e.source.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// pump moves mic windows into the double buffer. The mic read paces
// the loop; a slow consumer loses windows in the source, never here.
func (e *Engine) pump(ctx context.Context) error {
	r := audio.NewPCMReader(e.mic, e.cfg.WindowSize())
	buf := make([]float32, e.cfg.WindowSize())
	for {
		if err := r.ReadWindow(buf); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("guard: mic: %w", err)
		}
		e.source.Deposit(buf)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (e *Engine) windowLoop() error {
	for {
		window, missed, err := e.source.Next()
		if err != nil {
			return nil
		}
		for i := uint64(0); i < missed; i++ {
			e.receiver.Push(dsp.Invalid())
		}
		if err := e.processWindow(window, missed); err != nil {
			return err
		}
	}
}

// processWindow runs one window through analysis, decision, activity
// classification, and the receiver. Must finish within a symbol period
// or the source starts dropping.
func (e *Engine) processWindow(window []float32, missed uint64) error {
	energies, err := e.analyzer.Energies(window)
	if err != nil {
		return fmt.Errorf("guard: analyze: %w", err)
	}
	total := energies.Total()
	state := e.monitor.Observe(total)
	sym := e.decider.Decide(energies)

	e.receiver.Push(sym)

	// The floor must never learn from someone's transmission: skip
	// busy windows and anything inside a frame we are decoding.
	if !state.Busy && !e.receiver.MidDecode() {
		e.floor.Update(total)
	}

	observability.RecordWindow(missed, sym.Valid)
	observability.RecordChannelState(state.Busy, state.NoiseFloor)
	return nil
}

// handleFrame runs on the window loop and must not block: the ledger
// hop goes through a buffered channel, dropping the oldest backlog
// entry when full.
func (e *Engine) handleFrame(f wire.Frame) {
	if f.DeviceID == e.cfg.DeviceID {
		e.log.Debug().Uint8("seq", f.Seq).Msg("own beacon echo ignored")
		return
	}
	for {
		select {
		case e.frames <- f:
			return
		default:
		}
		select {
		case <-e.frames:
		default:
		}
	}
}

func (e *Engine) applyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-e.frames:
			e.ledger.Apply(f)
		}
	}
}

// nextFrame builds this guard's next beacon with a fresh sequence
// number.
func (e *Engine) nextFrame() wire.Frame {
	return wire.Frame{
		Version:  wire.Version,
		MsgType:  wire.MsgInhibit,
		Priority: e.cfg.Assert.Priority,
		DeviceID: e.cfg.DeviceID,
		Reason:   e.cfg.Assert.Reason,
		TTL:      e.cfg.Assert.TTL,
		Seq:      uint8(e.seq.Add(1)),
	}
}
