// Package modem owns frame transfer over the symbol stream.
//
// Ownership boundary:
// - receive state machine: preamble lock -> sync -> payload -> cooldown
// - transmit: frame to timed tone sequence, run to completion
//
// The receiver consumes one symbol decision per window and never
// blocks. Reliability comes from the CRC gate plus upper-layer
// repetition; a torn frame is discarded outright.
package modem
