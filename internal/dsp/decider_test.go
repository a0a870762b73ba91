package dsp

import (
	"math"
	"testing"

	"github.com/danmuck/guardtone/internal/wire"
)

func seededFloor(t *testing.T, alpha, value float64) *NoiseFloor {
	t.Helper()
	nf := NewNoiseFloor(alpha)
	nf.Update(value)
	return nf
}

func TestDeciderPicksDominantTone(t *testing.T) {
	d := NewDecider(DeciderConfig{Gate: 4, MinConfidence: 2}, seededFloor(t, 0.05, 0.001))
	cases := []struct {
		name  string
		e     Energies
		tone  wire.Tone
		valid bool
	}{
		{"clear winner tone 0", Energies{1.0, 0.01, 0.02, 0.01}, 0, true},
		{"clear winner tone 3", Energies{0.02, 0.01, 0.03, 0.9}, 3, true},
		{"ambiguous pair", Energies{0.5, 0.45, 0.01, 0.01}, 0, false},
		{"below noise gate", Energies{0.003, 0.0001, 0.0001, 0.0001}, 0, false},
		{"all quiet", Energies{0.0001, 0.0001, 0.0001, 0.0001}, 0, false},
	}
	for _, tc := range cases {
		sym := d.Decide(tc.e)
		if sym.Tone != tc.tone {
			t.Fatalf("%s: tone %d, want %d", tc.name, sym.Tone, tc.tone)
		}
		if sym.Valid != tc.valid {
			t.Fatalf("%s: valid=%v, want %v (confidence %.2f energy %.4f)", tc.name, sym.Valid, tc.valid, sym.Confidence, sym.Energy)
		}
	}
}

func TestDeciderConfidenceRatio(t *testing.T) {
	d := NewDecider(DeciderConfig{Gate: 1, MinConfidence: 1}, seededFloor(t, 0.05, 0.001))
	sym := d.Decide(Energies{0.8, 0.2, 0.01, 0.01})
	if math.Abs(sym.Confidence-4.0) > 1e-6 {
		t.Fatalf("confidence %.6f, want 4.0", sym.Confidence)
	}
}

func TestDeciderSkipsEnergyGateUntilFloorSeeds(t *testing.T) {
	d := NewDecider(DeciderConfig{Gate: 4, MinConfidence: 2}, NewNoiseFloor(0.05))
	sym := d.Decide(Energies{0.001, 0.00001, 0.00001, 0.00001})
	if !sym.Valid {
		t.Fatalf("pre-seed decision should pass on confidence alone, got invalid")
	}
}

func TestInvalidDecision(t *testing.T) {
	if Invalid().Valid {
		t.Fatalf("Invalid() must produce an invalid symbol")
	}
}

func TestNoiseFloorSeedsAndConverges(t *testing.T) {
	nf := NewNoiseFloor(0.5)
	if _, seeded := nf.Value(); seeded {
		t.Fatalf("fresh floor must be unseeded")
	}
	nf.Update(1.0)
	if v, seeded := nf.Value(); !seeded || v != 1.0 {
		t.Fatalf("first update should seed directly: got %v seeded=%v", v, seeded)
	}
	nf.Update(3.0) // EMA: 1 + 0.5*(3-1) = 2
	if v, _ := nf.Value(); math.Abs(v-2.0) > 1e-12 {
		t.Fatalf("EMA value %v, want 2.0", v)
	}
}

func TestMonitorDebounceSymmetric(t *testing.T) {
	floor := seededFloor(t, 0.05, 1.0)
	m := NewMonitor(MonitorConfig{BusyMultiple: 3, DebounceWindows: 3}, floor)

	// Two above-threshold windows are a spike, not traffic.
	m.Observe(10)
	m.Observe(10)
	if m.Snapshot().Busy {
		t.Fatalf("busy after %d windows, debounce is 3", 2)
	}
	m.Observe(0.5) // spike ends, counter resets
	for i := 0; i < 3; i++ {
		m.Observe(10)
	}
	if !m.Snapshot().Busy {
		t.Fatalf("still idle after 3 consecutive busy windows")
	}

	// Symmetric on the way down.
	m.Observe(0.5)
	m.Observe(0.5)
	if !m.Snapshot().Busy {
		t.Fatalf("dropped busy before debounce expired")
	}
	m.Observe(0.5)
	if m.Snapshot().Busy {
		t.Fatalf("still busy after 3 consecutive idle windows")
	}
}

func TestMonitorIdleUntilFloorSeeds(t *testing.T) {
	m := NewMonitor(MonitorConfig{BusyMultiple: 3, DebounceWindows: 1}, NewNoiseFloor(0.05))
	for i := 0; i < 10; i++ {
		m.Observe(100)
	}
	if m.Snapshot().Busy {
		t.Fatalf("monitor must stay idle before the noise floor seeds")
	}
}

func TestMonitorSnapshotCarriesFloor(t *testing.T) {
	floor := seededFloor(t, 0.05, 0.7)
	m := NewMonitor(MonitorConfig{BusyMultiple: 3, DebounceWindows: 1}, floor)
	state := m.Observe(0.1)
	if state.NoiseFloor != 0.7 {
		t.Fatalf("snapshot floor %v, want 0.7", state.NoiseFloor)
	}
}
