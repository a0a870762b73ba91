package dsp

import (
	"math"
	"sync/atomic"
)

// NoiseFloor tracks an exponential moving average of total band
// energy. It has exactly one writer, the window-processing loop, which
// must call Update only while the channel is idle and no frame is
// mid-decode; otherwise in-progress signal energy biases the estimate.
// Readers take lock-free snapshots.
type NoiseFloor struct {
	alpha float64
	// bits holds the float64 EMA; NaN means unseeded.
	bits atomic.Uint64
}

func NewNoiseFloor(alpha float64) *NoiseFloor {
	nf := &NoiseFloor{alpha: alpha}
	nf.bits.Store(math.Float64bits(math.NaN()))
	return nf
}

// Update folds one idle-channel total energy into the estimate. The
// first observation seeds the floor directly.
func (nf *NoiseFloor) Update(total float64) {
	cur := math.Float64frombits(nf.bits.Load())
	next := total
	if !math.IsNaN(cur) {
		next = cur + nf.alpha*(total-cur)
	}
	nf.bits.Store(math.Float64bits(next))
}

// Value returns the current estimate and whether it has seeded.
func (nf *NoiseFloor) Value() (float64, bool) {
	v := math.Float64frombits(nf.bits.Load())
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
