// Package diagnostics collects debug artifacts produced during replay.
//
// The Collector is explicitly owned and passed by handle into the harness
// and the estimator adapter; there is no process-wide singleton. Frames are
// buffered in memory with their bytes accounted, and drained to disk by
// explicit Flush calls — the maintenance flush during replay and a final
// flush at shutdown. The accounted byte total feeds the resource table's
// diagnostic memory column.
package diagnostics
