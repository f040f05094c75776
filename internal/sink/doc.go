// Package sink owns the harness's structured output directory.
//
// Each logical concern gets its own append-only, semicolon-separated CSV
// table with a fixed column order and exactly one header: pose estimates
// (tagged by process type), IMU biases, optional ground truth, the
// per-message timing trace, and periodic resource usage. Every append is
// flushed through to the file immediately, so an aborted run leaves a
// valid, merely truncated, output set. The sink also persists a verbatim
// copy of the parameter file for provenance.
package sink
