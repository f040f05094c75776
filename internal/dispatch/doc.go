// Package dispatch routes replayed messages to the estimator and the
// output tables.
//
// Routing is by source-topic identity against the configured inertial,
// image, events and ground-truth topic names; anything else is silently
// ignored. Successful inertial/image/events dispatches carry a
// process-type label used downstream to correlate rows. Ground-truth
// records go straight to their own table, one row per embedded transform,
// and never produce a process-type or timing row. Recoverable per-message
// problems (dimension mismatches, malformed payloads) are logged, counted
// and skipped without stopping the replay.
package dispatch
