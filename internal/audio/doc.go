// Package audio owns sample I/O at the window boundary.
//
// Samples enter as signed 16-bit little-endian PCM and leave the same
// way. The window source is the contract with the analysis loop: exactly
// N samples per window, double buffered, and a consumer that falls two
// windows behind loses the older one. Losses are counted, not fatal.
package audio
