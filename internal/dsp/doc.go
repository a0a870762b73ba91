// Package dsp owns per-window signal analysis.
//
// Ownership boundary:
// - narrowband tone-energy extraction (Goertzel recurrence)
// - symbol decisioning with confidence and noise gating
// - adaptive noise-floor estimate
// - debounced busy/idle channel classification
//
// Everything here runs synchronously inside the window-processing
// step and must complete within one symbol period. The only shared
// output is the single-writer ChannelState snapshot.
package dsp
