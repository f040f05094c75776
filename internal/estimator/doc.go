// Package estimator defines the pluggable state-estimation interface the
// harness benchmarks, the State snapshot it returns, and the closed set of
// selectable frontends.
//
// The harness treats an Estimator as an opaque external capability: it
// calls SetUp once, anchors InitAtTime to the first replayed timestamp,
// then feeds measurements strictly sequentially. State snapshots are only
// read, never mutated, and are valid until the next processing call.
//
// The bundled implementations are reference frontends: a gravity-aligned
// inertial dead-reckoning core shared by all four variants, with the
// event-based variants additionally consuming event batches. They exist to
// exercise the harness, not to be accurate.
package estimator
