package audio

import (
	"errors"
	"io"
	"math"
	"time"

	"github.com/danmuck/guardtone/internal/wire"
)

var (
	ErrToneSet   = errors.New("audio: tone set must have one frequency per tone")
	ErrAmplitude = errors.New("audio: amplitude out of (0, 1]")
)

// Synth renders tones as sine samples. Phase carries across calls so
// consecutive symbols join without a discontinuity click.
type Synth struct {
	rate  float64
	freqs [wire.ToneCount]float64
	amp   float64
	phase float64
}

func NewSynth(sampleRate float64, freqs []float64, amplitude float64) (*Synth, error) {
	if len(freqs) != wire.ToneCount {
		return nil, ErrToneSet
	}
	if amplitude <= 0 || amplitude > 1 {
		return nil, ErrAmplitude
	}
	s := &Synth{rate: sampleRate, amp: amplitude}
	copy(s.freqs[:], freqs)
	return s, nil
}

// Render fills dst with len(dst) samples of the tone.
func (s *Synth) Render(tone wire.Tone, dst []float32) error {
	if tone >= wire.ToneCount {
		return wire.ErrInvalidSymbol
	}
	step := 2 * math.Pi * s.freqs[tone] / s.rate
	for i := range dst {
		dst[i] = float32(s.amp * math.Sin(s.phase))
		s.phase += step
	}
	s.phase = math.Mod(s.phase, 2*math.Pi)
	return nil
}

// Player emits tones as s16le PCM on a writer. When the writer is an
// audio pipe it blocks at the device rate, which is what paces the
// transmitter; Player itself never sleeps.
type Player struct {
	synth   *Synth
	w       io.Writer
	rate    float64
	samples []float32
	scratch []byte
}

func NewPlayer(synth *Synth, w io.Writer) *Player {
	return &Player{synth: synth, w: w, rate: synth.rate}
}

// EmitTone renders one symbol period of the tone and writes it out.
func (p *Player) EmitTone(tone wire.Tone, d time.Duration) error {
	n := int(math.Round(d.Seconds() * p.rate))
	if cap(p.samples) < n {
		p.samples = make([]float32, n)
		p.scratch = make([]byte, n*2)
	}
	p.samples = p.samples[:n]
	if err := p.synth.Render(tone, p.samples); err != nil {
		return err
	}
	return writePCM(p.w, p.samples, p.scratch)
}
