package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame layout, most significant bit first:
//
//	sync(16) | version(4) msgType(4) | priority(2) flags(6) |
//	deviceId(24) | reason(8) | ttl(8) | seq(8) | crc16(16)
//
// 96 bits total, 12 bytes, 48 symbols at 2 bits per symbol. The CRC
// covers version through seq (bytes 2..9).
const (
	// SyncWord marks the start of every frame. The value alternates
	// bit pairs so no symbol repeats more than twice in a row.
	SyncWord uint16 = 0x2DD4

	FrameBytes     = 12
	FrameSymbols   = FrameBytes * 4 // 48, including sync
	SyncSymbols    = 8              // 16 bits, 2 bits per symbol
	PayloadSymbols = FrameSymbols - SyncSymbols

	crcOffset = FrameBytes - 2
)

// Protocol version carried in every frame.
const Version uint8 = 1

// Message types.
const (
	MsgInhibit uint8 = 0x1
)

// Reason codes carried in inhibit frames.
const (
	ReasonUnspecified uint8 = 0
	ReasonUserButton  uint8 = 1
	ReasonPolicy      uint8 = 2
	ReasonTest        uint8 = 3
)

// PriorityMax is the highest (most urgent) frame priority.
const PriorityMax uint8 = 3

var (
	ErrFrameLength   = errors.New("wire: frame must be exactly 12 bytes")
	ErrBadSync       = errors.New("wire: sync word mismatch")
	ErrBadCRC        = errors.New("wire: crc mismatch")
	ErrFieldRange    = errors.New("wire: field out of range")
	ErrSymbolCount   = errors.New("wire: wrong symbol count")
	ErrInvalidSymbol = errors.New("wire: symbol out of range")
)

// Frame is one complete on-air message, sync and CRC excluded. Both
// are reconstructed on encode and verified on decode.
type Frame struct {
	Version  uint8  // 4 bits
	MsgType  uint8  // 4 bits
	Priority uint8  // 2 bits, 0 lowest .. 3 highest
	Flags    uint8  // 6 bits
	DeviceID uint32 // 24 bits
	Reason   uint8
	TTL      uint8 // seconds
	Seq      uint8
}

// Validate reports whether every field fits its wire width.
func (f Frame) Validate() error {
	switch {
	case f.Version > 0xF:
		return fmt.Errorf("%w: version %d", ErrFieldRange, f.Version)
	case f.MsgType > 0xF:
		return fmt.Errorf("%w: msgType %d", ErrFieldRange, f.MsgType)
	case f.Priority > PriorityMax:
		return fmt.Errorf("%w: priority %d", ErrFieldRange, f.Priority)
	case f.Flags > 0x3F:
		return fmt.Errorf("%w: flags %#x", ErrFieldRange, f.Flags)
	case f.DeviceID > 0xFFFFFF:
		return fmt.Errorf("%w: deviceId %#x", ErrFieldRange, f.DeviceID)
	}
	return nil
}

// Encode packs the frame into its 12-byte wire form, computing the CRC.
func (f Frame) Encode() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	b := make([]byte, FrameBytes)
	binary.BigEndian.PutUint16(b[0:2], SyncWord)
	b[2] = f.Version<<4 | f.MsgType
	b[3] = f.Priority<<6 | f.Flags
	b[4] = byte(f.DeviceID >> 16)
	b[5] = byte(f.DeviceID >> 8)
	b[6] = byte(f.DeviceID)
	b[7] = f.Reason
	b[8] = f.TTL
	b[9] = f.Seq
	binary.BigEndian.PutUint16(b[crcOffset:], CRC16(b[2:crcOffset]))
	return b, nil
}

// Decode unpacks a 12-byte wire frame, verifying sync and CRC. A frame
// that fails either check must be discarded by the caller; no fields
// of the returned Frame are meaningful on error.
func Decode(b []byte) (Frame, error) {
	if len(b) != FrameBytes {
		return Frame{}, ErrFrameLength
	}
	if binary.BigEndian.Uint16(b[0:2]) != SyncWord {
		return Frame{}, ErrBadSync
	}
	if binary.BigEndian.Uint16(b[crcOffset:]) != CRC16(b[2:crcOffset]) {
		return Frame{}, ErrBadCRC
	}
	return Frame{
		Version:  b[2] >> 4,
		MsgType:  b[2] & 0xF,
		Priority: b[3] >> 6,
		Flags:    b[3] & 0x3F,
		DeviceID: uint32(b[4])<<16 | uint32(b[5])<<8 | uint32(b[6]),
		Reason:   b[7],
		TTL:      b[8],
		Seq:      b[9],
	}, nil
}
