// Package sched owns access to the shared acoustic medium.
//
// There is no side channel between emitters, so arbitration is
// listen-before-talk: wait for sustained quiet, back off a random
// interval scaled by priority, keep listening through the backoff, and
// yield the moment someone else starts first. An emitter cannot hear
// itself transmit, so rare collisions still happen; the CRC gate and
// periodic repetition clean those up.
package sched
