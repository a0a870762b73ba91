package modem

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/danmuck/guardtone/internal/dsp"
	"github.com/danmuck/guardtone/internal/observability"
	"github.com/danmuck/guardtone/internal/wire"
)

// State is the receiver's decode phase.
type State uint8

const (
	StateIdle State = iota
	StateSync
	StatePayload
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSync:
		return "sync"
	case StatePayload:
		return "payload"
	case StateCooldown:
		return "cooldown"
	}
	return "unknown"
}

var (
	ErrMatchMin = errors.New("modem: preamble match minimum out of range")
	ErrCooldown = errors.New("modem: cooldown must be non-negative")
)

// ReceiverConfig tunes the decode state machine.
type ReceiverConfig struct {
	// PreambleMatchMin is how many of the last PreambleSymbols
	// decisions must match the cyclic preamble pattern to lock.
	PreambleMatchMin int
	// CooldownSymbols is the guard interval after a decoded frame
	// during which preamble matching is suppressed, absorbing the
	// frame's own multipath echoes.
	CooldownSymbols int
}

// FrameFunc receives each CRC-valid frame, at most once per physically
// received frame. It runs on the window-processing path and must not
// block.
type FrameFunc func(wire.Frame)

// Receiver is the frame decode state machine. It consumes exactly one
// symbol decision per window and is not safe for concurrent use; the
// window loop is its only caller.
type Receiver struct {
	cfg     ReceiverConfig
	log     zerolog.Logger
	onFrame FrameFunc

	state State

	// Rolling preamble history, a ring of the last PreambleSymbols
	// decisions. Index math stands in for an unbounded pattern match.
	hist    [wire.PreambleSymbols]histEntry
	histPos int
	histLen int

	// Sync search: a sliding window compared against the sync tones.
	// The preamble score can cross the lock threshold up to one
	// pattern cycle before the preamble actually ends, so the sync
	// word is allowed that much slack to appear.
	syncReg  []wire.Tone
	syncSeen int

	payload      []wire.Tone
	cooldownLeft int
}

type histEntry struct {
	tone  wire.Tone
	valid bool
}

// syncSearchBudget is the number of symbols the sync word may take to
// appear after preamble lock: the word itself plus one preamble cycle
// of early-lock slack.
const syncSearchBudget = wire.SyncSymbols + wire.ToneCount

func NewReceiver(cfg ReceiverConfig, onFrame FrameFunc, log zerolog.Logger) (*Receiver, error) {
	if cfg.PreambleMatchMin <= 0 || cfg.PreambleMatchMin > wire.PreambleSymbols {
		return nil, ErrMatchMin
	}
	if cfg.CooldownSymbols < 0 {
		return nil, ErrCooldown
	}
	return &Receiver{
		cfg:     cfg,
		log:     log,
		onFrame: onFrame,
		syncReg: make([]wire.Tone, 0, wire.SyncSymbols),
		payload: make([]wire.Tone, 0, wire.PayloadSymbols),
	}, nil
}

// State returns the current decode phase.
func (r *Receiver) State() State { return r.state }

// MidDecode reports whether a frame is being accumulated. The noise
// floor must not update while this is true.
func (r *Receiver) MidDecode() bool {
	return r.state == StateSync || r.state == StatePayload
}

// Push advances the state machine by one symbol decision.
func (r *Receiver) Push(sym dsp.Symbol) {
	switch r.state {
	case StateCooldown:
		r.cooldownLeft--
		if r.cooldownLeft <= 0 {
			r.reset()
		}

	case StateIdle:
		r.pushHistory(sym)
		if score := r.preambleScore(); score >= r.cfg.PreambleMatchMin {
			observability.RecordReceiverEvent(observability.RxLock)
			r.log.Debug().Int("score", score).Msg("preamble lock")
			r.state = StateSync
			r.syncReg = r.syncReg[:0]
			r.syncSeen = 0
		}

	case StateSync:
		if !sym.Valid {
			r.abort(observability.RxSyncAbort, "invalid symbol during sync")
			return
		}
		if len(r.syncReg) == wire.SyncSymbols {
			copy(r.syncReg, r.syncReg[1:])
			r.syncReg = r.syncReg[:wire.SyncSymbols-1]
		}
		r.syncReg = append(r.syncReg, sym.Tone)
		r.syncSeen++
		if r.syncMatches() {
			r.state = StatePayload
			r.payload = r.payload[:0]
			return
		}
		if r.syncSeen >= syncSearchBudget {
			r.abort(observability.RxSyncAbort, "sync word mismatch")
		}

	case StatePayload:
		if !sym.Valid {
			r.abort(observability.RxPayloadAbort, "invalid symbol during payload")
			return
		}
		r.payload = append(r.payload, sym.Tone)
		if len(r.payload) < wire.PayloadSymbols {
			return
		}
		r.finish()
	}
}

// finish validates the accumulated frame and either emits it and
// enters cooldown or discards it silently.
func (r *Receiver) finish() {
	full := make([]wire.Tone, 0, wire.FrameSymbols)
	full = append(full, wire.SyncTones()...)
	full = append(full, r.payload...)
	frame, err := wire.FromSymbols(full)
	if err != nil {
		// Corrupted payload, likely a collision. Not an error to
		// surface; repetition will carry the message.
		observability.RecordReceiverEvent(observability.RxCRCFail)
		r.log.Debug().Err(err).Msg("frame discarded")
		r.reset()
		return
	}
	observability.RecordReceiverEvent(observability.RxFrame)
	r.log.Debug().
		Uint32("device", frame.DeviceID).
		Uint8("reason", frame.Reason).
		Uint8("ttl", frame.TTL).
		Uint8("seq", frame.Seq).
		Msg("frame decoded")
	if r.onFrame != nil {
		r.onFrame(frame)
	}
	if r.cfg.CooldownSymbols > 0 {
		r.state = StateCooldown
		r.cooldownLeft = r.cfg.CooldownSymbols
		return
	}
	r.reset()
}

func (r *Receiver) abort(event, why string) {
	observability.RecordReceiverEvent(event)
	r.log.Debug().Str("state", r.state.String()).Msg(why)
	r.reset()
}

// reset returns to Idle with an empty preamble history, so a stale
// window cannot retrigger a lock.
func (r *Receiver) reset() {
	r.state = StateIdle
	r.histLen = 0
	r.histPos = 0
	r.cooldownLeft = 0
}

func (r *Receiver) pushHistory(sym dsp.Symbol) {
	r.hist[r.histPos] = histEntry{tone: sym.Tone, valid: sym.Valid}
	r.histPos = (r.histPos + 1) % wire.PreambleSymbols
	if r.histLen < wire.PreambleSymbols {
		r.histLen++
	}
}

// preambleScore counts history entries matching the cyclic preamble
// pattern, anchored so the newest entry sits at the end of a pattern
// cycle. Invalid symbols score as non-matches. A short history never
// locks.
func (r *Receiver) preambleScore() int {
	if r.histLen < wire.PreambleSymbols {
		return 0
	}
	score := 0
	for back := 0; back < wire.PreambleSymbols; back++ {
		idx := (r.histPos - 1 - back + wire.PreambleSymbols) % wire.PreambleSymbols
		expected := wire.PreambleTone(wire.PreambleSymbols - 1 - back)
		if e := r.hist[idx]; e.valid && e.tone == expected {
			score++
		}
	}
	return score
}

func (r *Receiver) syncMatches() bool {
	if len(r.syncReg) != wire.SyncSymbols {
		return false
	}
	for i, want := range wire.SyncTones() {
		if r.syncReg[i] != want {
			return false
		}
	}
	return true
}
