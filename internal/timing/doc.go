// Package timing keeps the replay loop's clocks.
//
// Two independent cadences are tracked. Maintenance flushes are keyed to
// archive time: once the current message timestamp runs more than the
// flush interval past the last flush baseline, the controller enters the
// flush_due state until the caller reports the flush done. Resource
// sampling is keyed to accumulated measured processing time, so sampling
// frequency follows estimator cost rather than message rate or replay
// speed. The two thresholds are deliberately separate tunables.
package timing
