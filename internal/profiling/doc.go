// Package profiling records labeled per-message spans and dumps them once
// at shutdown as a compact binary trace.
//
// The file layout is a magic header, a format version, a span count, then
// length-prefixed records of (label, start µs, duration µs), all
// little-endian. ReadTrace decodes it back for tooling and tests.
package profiling
