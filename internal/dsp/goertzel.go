package dsp

import (
	"errors"
	"fmt"
	"math"

	"github.com/danmuck/guardtone/internal/wire"
)

var (
	ErrToneCount    = errors.New("dsp: need exactly one frequency per tone")
	ErrWindowSize   = errors.New("dsp: window size must be positive")
	ErrToneBin      = errors.New("dsp: tone frequency out of analyzable range")
	ErrWindowLength = errors.New("dsp: window length mismatch")
)

// Analyzer extracts per-tone energy from one fixed-size sample window
// using the Goertzel two-pole recurrence, O(N) per tone. Tone
// frequencies are snapped to the nearest DFT bin of the window, so a
// window spanning an integer number of cycles per tone sees no edge
// leakage and no tapering is needed.
type Analyzer struct {
	n     int
	coeff [wire.ToneCount]float64
	bins  [wire.ToneCount]int
}

// NewAnalyzer builds an analyzer for a window of n samples at the given
// sample rate. freqs carries the four candidate tone frequencies in Hz.
func NewAnalyzer(sampleRate float64, n int, freqs []float64) (*Analyzer, error) {
	if len(freqs) != wire.ToneCount {
		return nil, ErrToneCount
	}
	if n <= 0 {
		return nil, ErrWindowSize
	}
	a := &Analyzer{n: n}
	for i, f := range freqs {
		k := int(math.Round(float64(n) * f / sampleRate))
		if k <= 0 || k >= n/2 {
			return nil, fmt.Errorf("%w: %g Hz (bin %d of %d)", ErrToneBin, f, k, n)
		}
		a.bins[i] = k
		a.coeff[i] = 2 * math.Cos(2*math.Pi*float64(k)/float64(n))
	}
	return a, nil
}

// WindowSize returns the expected number of samples per window.
func (a *Analyzer) WindowSize() int { return a.n }

// BinFrequency returns the exact analysis frequency for a tone after
// bin snapping, for the given sample rate.
func (a *Analyzer) BinFrequency(tone wire.Tone, sampleRate float64) float64 {
	return float64(a.bins[tone]) * sampleRate / float64(a.n)
}

// Energies computes the 4-element tone energy vector for one window.
// Energies are normalized so a full-scale sine at a tone frequency
// yields approximately its squared amplitude.
func (a *Analyzer) Energies(window []float32) (Energies, error) {
	if len(window) != a.n {
		return Energies{}, fmt.Errorf("%w: got %d samples, want %d", ErrWindowLength, len(window), a.n)
	}
	var e Energies
	norm := float64(a.n) * float64(a.n) / 4
	for t := 0; t < wire.ToneCount; t++ {
		c := a.coeff[t]
		var s1, s2 float64
		for _, x := range window {
			s0 := float64(x) + c*s1 - s2
			s2, s1 = s1, s0
		}
		e[t] = (s1*s1 + s2*s2 - c*s1*s2) / norm
	}
	return e, nil
}

// Energies is the per-tone energy vector of one window.
type Energies [wire.ToneCount]float64

// Total returns the aggregate band energy, the input to channel
// activity sensing and the noise-floor estimate.
func (e Energies) Total() float64 {
	var sum float64
	for _, v := range e {
		sum += v
	}
	return sum
}
