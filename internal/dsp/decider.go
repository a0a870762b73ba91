package dsp

import (
	"github.com/danmuck/guardtone/internal/wire"
)

// confidenceEpsilon keeps the dominance ratio finite when the
// runner-up energy is zero.
const confidenceEpsilon = 1e-12

// Symbol is one symbol decision. Invalid symbols carry the best-guess
// tone for diagnostics but must never contribute to a frame.
type Symbol struct {
	Tone       wire.Tone
	Valid      bool
	Confidence float64 // best energy over runner-up energy
	Energy     float64 // energy of the decided tone
}

// DeciderConfig tunes symbol validation.
type DeciderConfig struct {
	// Gate is the multiple of the noise floor the winning tone energy
	// must reach.
	Gate float64
	// MinConfidence is the minimum dominance ratio over the runner-up.
	MinConfidence float64
}

// Decider turns a tone-energy vector into a symbol decision. A symbol
// is valid only when the winning tone clears the noise gate and
// dominates the runner-up.
type Decider struct {
	cfg   DeciderConfig
	floor *NoiseFloor
}

func NewDecider(cfg DeciderConfig, floor *NoiseFloor) *Decider {
	return &Decider{cfg: cfg, floor: floor}
}

// Decide picks argmax(E) and scores it. Decisions taken before the
// noise floor has seeded skip the energy gate; the confidence gate
// still applies.
func (d *Decider) Decide(e Energies) Symbol {
	best, second := 0, 1
	if e[second] > e[best] {
		best, second = second, best
	}
	for t := 2; t < wire.ToneCount; t++ {
		switch {
		case e[t] > e[best]:
			second = best
			best = t
		case e[t] > e[second]:
			second = t
		}
	}

	sym := Symbol{
		Tone:       wire.Tone(best),
		Confidence: e[best] / (e[second] + confidenceEpsilon),
		Energy:     e[best],
	}

	if sym.Confidence < d.cfg.MinConfidence {
		return sym
	}
	if floor, seeded := d.floor.Value(); seeded && sym.Energy < floor*d.cfg.Gate {
		return sym
	}
	sym.Valid = true
	return sym
}

// Invalid returns the decision used for a missed window deadline: no
// energy was analyzed, so the symbol is invalid by construction.
func Invalid() Symbol {
	return Symbol{}
}
