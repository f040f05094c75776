// Package resource probes the replaying process's own CPU and memory use.
//
// Utilization is derived from deltas between consecutive probes:
// 100 * (Δuser + Δkernel cpu time) / Δwall time, split into user and
// kernel shares, plus resident memory. Probes are best-effort: a failed
// platform query or a degenerate wall-time delta yields no sample and
// never interrupts the replay.
package resource
