// Package replay drives the benchmark: it pulls messages from the archive
// reader in chronological order and, strictly single-threaded, runs each
// through conversion, dispatch and the estimator before touching the next.
//
// Around every dispatch the runner measures wall-clock processing time,
// lets the timing controller trigger archive-time maintenance flushes and
// processing-time resource probes, and appends output rows once the
// estimator has reported initialized. Resource probes run inline between
// dispatches, so their cost lands in the surrounding timing measurement;
// that bias is accepted and documented here rather than hidden behind a
// background timer.
package replay
