package resource

import (
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// minWallDelta guards the utilization denominator. The trigger policy
// should never fire twice within this window, but a degenerate delta must
// not produce Inf/NaN rows.
const minWallDelta = 1e-6

// Sample is one resource probe.
type Sample struct {
	// TS is the probe wall-clock timestamp in microseconds.
	TS int64
	// CPU, CPUUser, CPUSys are utilization percentages since the
	// previous probe.
	CPU     float64
	CPUUser float64
	CPUSys  float64
	// RSS is resident memory in bytes.
	RSS uint64
}

// Sampler probes the current process and derives utilization deltas
// between consecutive probes.
type Sampler struct {
	proc     *process.Process
	lastWall time.Time
	lastUser float64
	lastSys  float64
}

// NewSampler attaches to the current process and primes the delta
// baseline.
func NewSampler() (*Sampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("attach to own process: %w", err)
	}
	s := &Sampler{proc: proc}
	times, err := proc.Times()
	if err != nil {
		return nil, fmt.Errorf("prime cpu baseline: %w", err)
	}
	s.lastWall = time.Now()
	s.lastUser = times.User
	s.lastSys = times.System
	return s, nil
}

// Sample probes once. A (nil, nil) return means the sample was omitted:
// either the platform query failed or the wall-time delta was degenerate.
func (s *Sampler) Sample() (*Sample, error) {
	now := time.Now()
	times, err := s.proc.Times()
	if err != nil {
		return nil, fmt.Errorf("cpu times: %w", err)
	}

	cpu, usr, sys, ok := utilization(
		now.Sub(s.lastWall).Seconds(),
		times.User-s.lastUser,
		times.System-s.lastSys,
	)
	if !ok {
		return nil, nil
	}

	mem, err := s.proc.MemoryInfo()
	if err != nil {
		return nil, fmt.Errorf("memory info: %w", err)
	}

	s.lastWall = now
	s.lastUser = times.User
	s.lastSys = times.System

	return &Sample{
		TS:      now.UnixMicro(),
		CPU:     cpu,
		CPUUser: usr,
		CPUSys:  sys,
		RSS:     mem.RSS,
	}, nil
}

// utilization converts time deltas (seconds) into percentages. ok is false
// when the wall delta cannot serve as a denominator.
func utilization(wall, dUser, dSys float64) (cpu, usr, sys float64, ok bool) {
	if wall < minWallDelta {
		return 0, 0, 0, false
	}
	usr = 100 * dUser / wall
	sys = 100 * dSys / wall
	return usr + sys, usr, sys, true
}
