// Package ledger turns decoded frames into the inhibition state the
// recording controller queries. The deadline only ever advances;
// provenance always reflects the most recent valid frame; expiry is a
// clock comparison, never a callback.
package ledger
