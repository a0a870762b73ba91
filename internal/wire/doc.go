// Package wire owns the on-air frame contract.
//
// Ownership boundary:
// - fixed frame layout and field widths
// - CRC16-CCITT integrity check
// - dibit/tone mapping and preamble pattern
//
// The layout is interop-critical: every device sharing the acoustic
// channel packs and unpacks exactly these bits. wire does not know
// about sample windows, energies, or scheduling.
package wire
