// Package guard assembles the signaling pipeline and is the only API
// surface the daemon and the recording controller touch. Samples flow
// analyzer -> decider -> {receiver, activity monitor}; decoded frames
// cross to the ledger over a single-producer channel; the scheduler and
// beacon share the monitor's channel snapshots.
package guard
