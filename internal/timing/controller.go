package timing

import (
	"context"
	"time"

	"github.com/looplab/fsm"
)

// Default thresholds. Archive-time flushing and processing-time sampling
// are unrelated cadences; keep them independently tunable.
const (
	DefaultFlushInterval = 5.0     // seconds of archive time
	DefaultSampleBudget  = 1000000 // microseconds of processing time
)

// Controller states.
const (
	StateReplaying = "replaying"
	StateFlushDue  = "flush_due"
)

const (
	eventFlushDue = "maintenance_due"
	eventResume   = "resume"
)

// Controller tracks the maintenance-flush baseline in archive time and the
// resource-sampling budget in accumulated processing time.
type Controller struct {
	machine *fsm.FSM

	flushInterval float64
	haveBaseline  bool
	lastFlush     float64

	sampleBudget   int64
	accumulated    int64
	lastSampleMark int64
}

// NewController builds a controller in the replaying state.
func NewController(flushInterval float64, sampleBudget int64) *Controller {
	return &Controller{
		machine: fsm.NewFSM(
			StateReplaying,
			fsm.Events{
				{Name: eventFlushDue, Src: []string{StateReplaying}, Dst: StateFlushDue},
				{Name: eventResume, Src: []string{StateFlushDue}, Dst: StateReplaying},
			},
			fsm.Callbacks{},
		),
		flushInterval: flushInterval,
		sampleBudget:  sampleBudget,
	}
}

// State exposes the machine state, mainly for tests.
func (c *Controller) State() string { return c.machine.Current() }

// ObserveMessageTime advances the archive clock. The first observation
// only establishes the baseline. Returns true when a maintenance flush is
// due; the controller then stays in flush_due until FlushCompleted.
func (c *Controller) ObserveMessageTime(t float64) bool {
	if !c.haveBaseline || t < c.lastFlush {
		c.lastFlush = t
		c.haveBaseline = true
		return false
	}
	if c.machine.Current() == StateFlushDue {
		return true
	}
	if t-c.lastFlush > c.flushInterval {
		_ = c.machine.Event(context.Background(), eventFlushDue)
		return true
	}
	return false
}

// FlushCompleted rebases the maintenance baseline to t and resumes.
func (c *Controller) FlushCompleted(t float64) {
	c.lastFlush = t
	_ = c.machine.Event(context.Background(), eventResume)
}

// AddProcessing credits measured per-message processing time.
func (c *Controller) AddProcessing(micros int64) {
	c.accumulated += micros
}

// Accumulated is the total credited processing time in microseconds.
func (c *Controller) Accumulated() int64 { return c.accumulated }

// AccumulatedSeconds is the total credited processing time in seconds.
func (c *Controller) AccumulatedSeconds() float64 {
	return float64(c.accumulated) * 1e-6
}

// SampleDue reports whether the accumulated processing time has crossed
// the sampling budget since the last trigger, rebasing the trigger mark
// when it has.
func (c *Controller) SampleDue() bool {
	if c.accumulated-c.lastSampleMark >= c.sampleBudget {
		c.lastSampleMark = c.accumulated
		return true
	}
	return false
}

// Stopwatch measures one dispatch+estimator call.
type Stopwatch struct {
	start time.Time
}

// StartStopwatch begins a per-message measurement.
func StartStopwatch() Stopwatch {
	return Stopwatch{start: time.Now()}
}

// ElapsedMicros is the wall-clock duration since the stopwatch started.
func (s Stopwatch) ElapsedMicros() int64 {
	return time.Since(s.start).Microseconds()
}

// StartMicros is the stopwatch's start as a wall-clock microsecond stamp.
func (s Stopwatch) StartMicros() int64 {
	return s.start.UnixMicro()
}
