package dsp

import (
	"sync/atomic"
)

// ChannelState is the busy/idle classification plus the floor estimate
// backing it, published once per window.
type ChannelState struct {
	Busy       bool
	NoiseFloor float64
}

// MonitorConfig tunes the activity classifier.
type MonitorConfig struct {
	// BusyMultiple scales the noise floor into the busy threshold.
	BusyMultiple float64
	// DebounceWindows is the number of consecutive windows on the
	// other side of the threshold required to flip state. Symmetric
	// hysteresis, so brief spikes and brief fades are both ignored.
	DebounceWindows int
}

// Monitor classifies the channel busy or idle from aggregate window
// energy. Observe has exactly one caller, the window loop; Snapshot is
// safe from any goroutine.
type Monitor struct {
	cfg   MonitorConfig
	floor *NoiseFloor

	busy    bool
	above   int
	below   int
	current atomic.Pointer[ChannelState]
}

func NewMonitor(cfg MonitorConfig, floor *NoiseFloor) *Monitor {
	m := &Monitor{cfg: cfg, floor: floor}
	m.current.Store(&ChannelState{})
	return m
}

// Observe folds one window's total energy into the busy/idle state and
// publishes a fresh snapshot. Until the noise floor seeds, the channel
// reads idle so the floor can bootstrap from ambient windows.
func (m *Monitor) Observe(total float64) ChannelState {
	floor, seeded := m.floor.Value()
	if seeded {
		threshold := floor * m.cfg.BusyMultiple
		if total > threshold {
			m.above++
			m.below = 0
			if !m.busy && m.above >= m.cfg.DebounceWindows {
				m.busy = true
			}
		} else {
			m.below++
			m.above = 0
			if m.busy && m.below >= m.cfg.DebounceWindows {
				m.busy = false
			}
		}
	}

	state := ChannelState{Busy: m.busy, NoiseFloor: floor}
	m.current.Store(&state)
	return state
}

// Snapshot returns the most recently published channel state.
func (m *Monitor) Snapshot() ChannelState {
	return *m.current.Load()
}
