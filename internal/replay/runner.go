package replay

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/mfkiwl/x-evaluate/internal/archive"
	"github.com/mfkiwl/x-evaluate/internal/diagnostics"
	"github.com/mfkiwl/x-evaluate/internal/dispatch"
	"github.com/mfkiwl/x-evaluate/internal/estimator"
	"github.com/mfkiwl/x-evaluate/internal/profiling"
	"github.com/mfkiwl/x-evaluate/internal/progress"
	"github.com/mfkiwl/x-evaluate/internal/resource"
	"github.com/mfkiwl/x-evaluate/internal/sink"
	"github.com/mfkiwl/x-evaluate/internal/timing"
)

// Sampler is the resource-probe dependency; satisfied by
// *resource.Sampler. A (nil, nil) sample means the probe was omitted.
type Sampler interface {
	Sample() (*resource.Sample, error)
}

// Config wires a Runner.
type Config struct {
	Reader      *archive.Reader
	Dispatcher  *dispatch.Dispatcher
	Controller  *timing.Controller
	Sampler     Sampler
	Sink        *sink.Sink
	Diagnostics *diagnostics.Collector
	Profiler    *profiling.Recorder
	Progress    *progress.Reporter
	Estimator   estimator.Estimator
	Log         *zap.Logger
}

// Runner replays the filtered view through the estimator.
type Runner struct {
	cfg Config
}

// NewRunner builds a runner from its wired collaborators.
func NewRunner(cfg Config) *Runner {
	return &Runner{cfg: cfg}
}

// Run performs the whole replay and returns the per-route counters.
// Messages are handled strictly sequentially; message N fully completes
// before message N+1 is read.
func (r *Runner) Run() (dispatch.Counters, error) {
	c := r.cfg

	c.Log.Info("initializing estimator", zap.Float64("t0", c.Reader.Begin()))
	c.Estimator.InitAtTime(c.Reader.Begin())
	c.Log.Info("processing log",
		zap.Float64("begin", c.Reader.Begin()),
		zap.Float64("end", c.Reader.End()),
		zap.Int("messages", c.Reader.Len()))

	initialized := false
	for {
		m, err := c.Reader.Next()
		if errors.Is(err, archive.ErrDone) {
			break
		}
		if err != nil {
			return c.Dispatcher.Counters(), err
		}

		sw := timing.StartStopwatch()
		res, err := c.Dispatcher.Dispatch(m)
		if err != nil {
			return c.Dispatcher.Counters(), fmt.Errorf("dispatch at t=%f: %w", m.Time, err)
		}
		elapsed := sw.ElapsedMicros()

		if c.Controller.ObserveMessageTime(m.Time) {
			if err := c.Diagnostics.Flush(); err != nil {
				c.Log.Warn("maintenance flush failed", zap.Error(err))
			}
			c.Controller.FlushCompleted(m.Time)
		}

		// Budget check runs against processing time accumulated before
		// this message, mirroring the trigger it is calibrated for.
		if c.Controller.SampleDue() && c.Sampler != nil {
			if err := r.appendSample(); err != nil {
				return c.Dispatcher.Counters(), err
			}
		}

		if !initialized && c.Estimator.IsInitialized() {
			initialized = true
			c.Log.Info("estimator initialized", zap.Float64("t", m.Time))
		}

		if res.Processed && initialized {
			c.Controller.AddProcessing(elapsed)
			c.Profiler.Record(res.Label, sw.StartMicros(), elapsed)
			if err := c.Sink.AppendPose(res.Label, res.State); err != nil {
				return c.Dispatcher.Counters(), err
			}
			if err := c.Sink.AppendBias(res.State); err != nil {
				return c.Dispatcher.Counters(), err
			}
			if err := c.Sink.AppendTiming(m.Time, c.Controller.AccumulatedSeconds(),
				time.Now().UnixMicro(), res.Label, elapsed); err != nil {
				return c.Dispatcher.Counters(), err
			}
		}

		if c.Progress != nil {
			c.Progress.Add(1)
		}
	}

	if c.Progress != nil {
		c.Progress.Finish()
	}
	if err := c.Diagnostics.Flush(); err != nil {
		c.Log.Warn("final diagnostics flush failed", zap.Error(err))
	}
	if err := c.Profiler.DumpFile(filepath.Join(c.Sink.Dir(), sink.ProfilingFile)); err != nil {
		return c.Dispatcher.Counters(), err
	}

	counters := c.Dispatcher.Counters()
	c.Log.Info("replay finished",
		zap.Uint64("imu", counters.Imu),
		zap.Uint64("image", counters.Image),
		zap.Uint64("events", counters.Events),
		zap.Uint64("pose", counters.Pose),
		zap.Uint64("skipped", counters.Skipped))
	return counters, nil
}

// appendSample probes resources and appends a row; a failed or omitted
// probe only logs.
func (r *Runner) appendSample() error {
	c := r.cfg
	s, err := c.Sampler.Sample()
	if err != nil {
		c.Log.Warn("resource probe failed, sample omitted", zap.Error(err))
		return nil
	}
	if s == nil {
		return nil
	}
	return c.Sink.AppendResource(s.TS, s.CPU, s.CPUUser, s.CPUSys, s.RSS, c.Diagnostics.MemoryUsage())
}
