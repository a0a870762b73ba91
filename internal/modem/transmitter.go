package modem

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/guardtone/internal/wire"
)

// ToneDriver renders one tone for one symbol period. Implementations
// block for the duration of the emission.
type ToneDriver interface {
	EmitTone(tone wire.Tone, d time.Duration) error
}

// Transmitter serializes frames onto the air. One frame is one
// uninterruptible unit: once the preamble starts, the whole burst runs
// to completion so receivers never see a torn frame.
type Transmitter struct {
	driver       ToneDriver
	symbolPeriod time.Duration
	log          zerolog.Logger
}

func NewTransmitter(driver ToneDriver, symbolPeriod time.Duration, log zerolog.Logger) *Transmitter {
	return &Transmitter{driver: driver, symbolPeriod: symbolPeriod, log: log}
}

// Duration is the on-air time of one complete burst.
func (t *Transmitter) Duration() time.Duration {
	return time.Duration(wire.PreambleSymbols+wire.FrameSymbols) * t.symbolPeriod
}

// Transmit emits the preamble followed by the frame's symbols,
// back to back with no gaps. Driver errors abort the burst.
func (t *Transmitter) Transmit(f wire.Frame) error {
	symbols, err := f.Symbols()
	if err != nil {
		return fmt.Errorf("modem: encode frame: %w", err)
	}
	t.log.Debug().
		Uint32("device", f.DeviceID).
		Uint8("seq", f.Seq).
		Dur("duration", t.Duration()).
		Msg("transmitting frame")
	for i := 0; i < wire.PreambleSymbols; i++ {
		if err := t.driver.EmitTone(wire.PreambleTone(i), t.symbolPeriod); err != nil {
			return fmt.Errorf("modem: emit preamble: %w", err)
		}
	}
	for _, tone := range symbols {
		if err := t.driver.EmitTone(tone, t.symbolPeriod); err != nil {
			return fmt.Errorf("modem: emit symbol: %w", err)
		}
	}
	return nil
}
