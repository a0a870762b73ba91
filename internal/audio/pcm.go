package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// PCMReader turns a byte stream of signed 16-bit little-endian mono
// samples into float32 windows in [-1, 1).
type PCMReader struct {
	r   io.Reader
	buf []byte
}

func NewPCMReader(r io.Reader, windowSize int) *PCMReader {
	return &PCMReader{r: r, buf: make([]byte, windowSize*2)}
}

// ReadWindow fills dst with the next window. A clean end of stream on a
// window boundary returns io.EOF; a truncated window is an error.
func (p *PCMReader) ReadWindow(dst []float32) error {
	if _, err := io.ReadFull(p.r, p.buf); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("audio: read window: %w", err)
	}
	for i := range dst[:len(p.buf)/2] {
		v := int16(binary.LittleEndian.Uint16(p.buf[i*2:]))
		dst[i] = float32(v) / 32768
	}
	return nil
}

// writePCM converts samples to s16le and writes them out, clipping
// anything beyond full scale. The scale matches ReadWindow so a
// round trip only loses quantization.
func writePCM(w io.Writer, samples []float32, scratch []byte) error {
	for i, v := range samples {
		s := int32(math.Round(float64(v) * 32768))
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		binary.LittleEndian.PutUint16(scratch[i*2:], uint16(int16(s)))
	}
	if _, err := w.Write(scratch[:len(samples)*2]); err != nil {
		return fmt.Errorf("audio: write pcm: %w", err)
	}
	return nil
}
