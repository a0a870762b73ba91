package ledger

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/guardtone/internal/wire"
)

// Provenance identifies the most recent guard whose frame touched the
// ledger, whether or not it advanced the deadline.
type Provenance struct {
	DeviceID uint32
	Reason   uint8
	Since    time.Time
}

// Ledger is the queryable inhibition record. One writer (the decode
// path) and any number of readers; a mutex is plenty at frame rates.
type Ledger struct {
	now func() time.Time
	log zerolog.Logger

	mu           sync.RWMutex
	inhibitUntil time.Time
	prov         Provenance
	seen         bool
}

// New builds a ledger on the given clock. now must not be nil; pass
// time.Now outside tests.
func New(now func() time.Time, log zerolog.Logger) *Ledger {
	return &Ledger{now: now, log: log}
}

// Apply folds one decoded frame in. The deadline moves by max-merge:
// a frame can extend inhibition but never shorten what another guard
// already asserted. Provenance overwrites unconditionally.
func (l *Ledger) Apply(f wire.Frame) {
	t := l.now()
	until := t.Add(time.Duration(f.TTL) * time.Second)

	l.mu.Lock()
	if until.After(l.inhibitUntil) {
		l.inhibitUntil = until
	}
	l.prov = Provenance{DeviceID: f.DeviceID, Reason: f.Reason, Since: t}
	l.seen = true
	extendedTo := l.inhibitUntil
	l.mu.Unlock()

	l.log.Info().
		Uint32("device", f.DeviceID).
		Uint8("reason", f.Reason).
		Uint8("ttl", f.TTL).
		Time("until", extendedTo).
		Msg("inhibition applied")
}

// IsInhibited reports whether capture must currently stay stopped.
func (l *Ledger) IsInhibited() bool {
	l.mu.RLock()
	until := l.inhibitUntil
	l.mu.RUnlock()
	return l.now().Before(until)
}

// LastInhibitor returns the provenance of the latest applied frame.
// ok is false before any frame has ever been applied.
func (l *Ledger) LastInhibitor() (Provenance, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.prov, l.seen
}

// InhibitedUntil exposes the current deadline, zero before any frame.
func (l *Ledger) InhibitedUntil() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.inhibitUntil
}
