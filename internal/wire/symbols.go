package wire

// Tone indexes one of the four candidate frequencies. The actual
// frequencies are deployment configuration; the index is protocol.
type Tone uint8

// ToneCount is the size of the tone alphabet.
const ToneCount = 4

// PreambleSymbols is the length of the synchronization preamble that
// precedes every frame, cycling through all four tones.
const PreambleSymbols = 20

// Gray mapping between dibits and tones: 00→0, 01→1, 11→2, 10→3.
// Adjacent tones differ in exactly one bit, so a one-off tone decision
// corrupts a single bit.
var (
	toneForDibit = [4]Tone{0, 1, 3, 2} // indexed by dibit value
	dibitForTone = [4]byte{0b00, 0b01, 0b11, 0b10}
)

// PreambleTone returns the expected preamble tone at offset i of the
// repeating pattern. i may exceed PreambleSymbols; the pattern cycles.
func PreambleTone(i int) Tone {
	return Tone(i % ToneCount)
}

// Symbols encodes the frame into its 48-symbol on-air sequence, sync
// included, preamble excluded.
func (f Frame) Symbols() ([]Tone, error) {
	b, err := f.Encode()
	if err != nil {
		return nil, err
	}
	return bytesToSymbols(b), nil
}

// FromSymbols rebuilds a frame from its 48-symbol sequence and runs the
// sync and CRC checks.
func FromSymbols(sym []Tone) (Frame, error) {
	if len(sym) != FrameSymbols {
		return Frame{}, ErrSymbolCount
	}
	b, err := symbolsToBytes(sym)
	if err != nil {
		return Frame{}, err
	}
	return Decode(b)
}

// bytesToSymbols expands bytes into tones, high dibit first.
func bytesToSymbols(b []byte) []Tone {
	sym := make([]Tone, 0, len(b)*4)
	for _, v := range b {
		for shift := 6; shift >= 0; shift -= 2 {
			sym = append(sym, toneForDibit[(v>>shift)&0b11])
		}
	}
	return sym
}

// symbolsToBytes packs tones back into bytes, four symbols per byte.
func symbolsToBytes(sym []Tone) ([]byte, error) {
	if len(sym)%4 != 0 {
		return nil, ErrSymbolCount
	}
	b := make([]byte, len(sym)/4)
	for i, t := range sym {
		if t >= ToneCount {
			return nil, ErrInvalidSymbol
		}
		b[i/4] |= dibitForTone[t] << (6 - 2*(i%4))
	}
	return b, nil
}

// SyncTones is the expected 8-symbol sequence of the sync word.
func SyncTones() []Tone {
	return bytesToSymbols([]byte{byte(SyncWord >> 8), byte(SyncWord & 0xFF)})
}
