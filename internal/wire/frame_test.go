package wire

import (
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Frame{
		{Version: Version, MsgType: MsgInhibit, Priority: 0, Flags: 0, DeviceID: 0, Reason: ReasonUnspecified, TTL: 0, Seq: 0},
		{Version: Version, MsgType: MsgInhibit, Priority: 3, Flags: 0x3F, DeviceID: 0xFFFFFF, Reason: 0xFF, TTL: 0xFF, Seq: 0xFF},
		{Version: 0xF, MsgType: 0xF, Priority: 2, Flags: 0x2A, DeviceID: 0xA5C3E1, Reason: ReasonUserButton, TTL: 12, Seq: 7},
		{Version: Version, MsgType: MsgInhibit, Priority: 1, Flags: 1, DeviceID: 1, Reason: ReasonPolicy, TTL: 30, Seq: 128},
	}
	for i, in := range cases {
		b, err := in.Encode()
		if err != nil {
			t.Fatalf("case %d: encode: %v", i, err)
		}
		if len(b) != FrameBytes {
			t.Fatalf("case %d: encoded %d bytes, want %d", i, len(b), FrameBytes)
		}
		out, err := Decode(b)
		if err != nil {
			t.Fatalf("case %d: decode: %v", i, err)
		}
		if out != in {
			t.Fatalf("case %d: round trip mismatch: got=%+v want=%+v", i, out, in)
		}
	}
}

func TestEncodeRejectsOutOfRangeFields(t *testing.T) {
	cases := []Frame{
		{Version: 0x10},
		{MsgType: 0x10},
		{Priority: 4},
		{Flags: 0x40},
		{DeviceID: 0x1000000},
	}
	for i, f := range cases {
		if _, err := f.Encode(); !errors.Is(err, ErrFieldRange) {
			t.Fatalf("case %d: expected ErrFieldRange, got %v", i, err)
		}
	}
}

func TestDecodeRejectsBadSync(t *testing.T) {
	f := Frame{Version: Version, MsgType: MsgInhibit, DeviceID: 0x123456, TTL: 10}
	b, err := f.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b[0] ^= 0x01
	if _, err := Decode(b); !errors.Is(err, ErrBadSync) {
		t.Fatalf("expected ErrBadSync, got %v", err)
	}
}

func TestDecodeRejectsShortInput(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); !errors.Is(err, ErrFrameLength) {
		t.Fatalf("expected ErrFrameLength, got %v", err)
	}
}

// Every single-bit flip anywhere in the CRC-covered span or the CRC
// itself must be rejected, deterministically.
func TestCRCDetectsEverySingleBitFlip(t *testing.T) {
	f := Frame{Version: Version, MsgType: MsgInhibit, Priority: 3, Flags: 0x15, DeviceID: 0x00F0F0, Reason: ReasonUserButton, TTL: 60, Seq: 42}
	b, err := f.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for byteIdx := 2; byteIdx < FrameBytes; byteIdx++ {
		for bit := 0; bit < 8; bit++ {
			corrupted := make([]byte, FrameBytes)
			copy(corrupted, b)
			corrupted[byteIdx] ^= 1 << bit
			if _, err := Decode(corrupted); !errors.Is(err, ErrBadCRC) {
				t.Fatalf("flip byte %d bit %d: expected ErrBadCRC, got %v", byteIdx, bit, err)
			}
		}
	}
}

func TestCRC16KnownVector(t *testing.T) {
	// CCITT-FALSE check value for "123456789".
	if got := CRC16([]byte("123456789")); got != 0x29B1 {
		t.Fatalf("CRC16(123456789) = %#04x, want 0x29b1", got)
	}
}
