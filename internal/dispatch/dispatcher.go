package dispatch

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mfkiwl/x-evaluate/internal/archive"
	"github.com/mfkiwl/x-evaluate/internal/config"
	"github.com/mfkiwl/x-evaluate/internal/diagnostics"
	"github.com/mfkiwl/x-evaluate/internal/estimator"
	"github.com/mfkiwl/x-evaluate/internal/sink"
)

// Process-type labels for row correlation.
const (
	LabelImu    = "IMU"
	LabelImage  = "Image"
	LabelEvents = "Events"
)

// Topics are the configured topic names; empty means unconfigured.
type Topics struct {
	Imu    string
	Image  string
	Events string
	Pose   string
}

// Counters tallies successfully dispatched messages per route.
type Counters struct {
	Imu     uint64
	Image   uint64
	Events  uint64
	Pose    uint64
	Skipped uint64
}

// Result describes one dispatch. Processed is true only when the
// estimator was called, in which case Label and State are set.
type Result struct {
	Label     string
	State     estimator.State
	Processed bool
}

// Dispatcher routes messages by topic to a conversion step and an
// estimator call, and writes ground truth straight through to the sink.
type Dispatcher struct {
	topics Topics
	est    estimator.Estimator
	out    *sink.Sink
	diag   *diagnostics.Collector
	params *config.Params
	log    *zap.Logger

	dumpInput bool
	dumpDebug bool

	counters Counters
}

// New builds a dispatcher. The events route is only taken when the
// estimator consumes events and an events topic is configured.
func New(topics Topics, est estimator.Estimator, out *sink.Sink, diag *diagnostics.Collector,
	params *config.Params, log *zap.Logger, dumpInput, dumpDebug bool) *Dispatcher {
	return &Dispatcher{
		topics:    topics,
		est:       est,
		out:       out,
		diag:      diag,
		params:    params,
		log:       log,
		dumpInput: dumpInput,
		dumpDebug: dumpDebug,
	}
}

// Counters returns the per-route tallies.
func (d *Dispatcher) Counters() Counters { return d.counters }

// Dispatch routes one message. Recoverable problems are logged and
// yield an empty Result; a non-nil error means output I/O failed or the
// estimator itself errored, both of which stop the replay.
func (d *Dispatcher) Dispatch(m *archive.Message) (Result, error) {
	switch {
	case m.Topic == d.topics.Imu:
		return d.dispatchImu(m)
	case m.Topic == d.topics.Image:
		return d.dispatchImage(m)
	case d.est.DoesProcessEvents() && d.topics.Events != "" && m.Topic == d.topics.Events:
		return d.dispatchEvents(m)
	case d.topics.Pose != "" && m.Topic == d.topics.Pose:
		return Result{}, d.dispatchGroundTruth(m)
	default:
		return Result{}, nil
	}
}

func (d *Dispatcher) dispatchImu(m *archive.Message) (Result, error) {
	s, ok := m.Body.(*archive.InertialSample)
	if !ok {
		d.skip(m, "inertial topic carried a non-inertial payload")
		return Result{}, nil
	}

	w := r3.Vec{X: s.AngularVelocity[0], Y: s.AngularVelocity[1], Z: s.AngularVelocity[2]}
	a := r3.Vec{X: s.SpecificForce[0], Y: s.SpecificForce[1], Z: s.SpecificForce[2]}
	st, err := d.est.ProcessImu(s.Time, s.Seq, w, a)
	if err != nil {
		return Result{}, fmt.Errorf("process imu seq %d: %w", s.Seq, err)
	}
	d.counters.Imu++
	return Result{Label: LabelImu, State: st, Processed: true}, nil
}

func (d *Dispatcher) dispatchImage(m *archive.Message) (Result, error) {
	f, ok := m.Body.(*archive.ImageFrame)
	if !ok {
		d.skip(m, "image topic carried a non-image payload")
		return Result{}, nil
	}
	if f.Width != d.params.ImgWidth || f.Height != d.params.ImgHeight {
		d.counters.Skipped++
		d.log.Error("image with unexpected dimensions encountered, skipping",
			zap.Int("width", f.Width), zap.Int("height", f.Height),
			zap.Int("expected_width", d.params.ImgWidth),
			zap.Int("expected_height", d.params.ImgHeight),
			zap.Uint64("seq", f.Seq))
		return Result{}, nil
	}
	if len(f.Pixels) < f.Width*f.Height {
		d.skip(m, "image payload shorter than its declared dimensions")
		return Result{}, nil
	}

	img := estimator.Image{
		Time:   f.Time,
		Seq:    f.Seq,
		Width:  f.Width,
		Height: f.Height,
		Pixels: f.Pixels,
	}
	if d.dumpInput {
		d.diag.AddFrame(fmt.Sprintf("input_%07d.pgm", f.Seq),
			diagnostics.EncodePGM(f.Width, f.Height, f.Pixels))
	}

	st, err := d.est.ProcessImage(img)
	if err != nil {
		return Result{}, fmt.Errorf("process image seq %d: %w", f.Seq, err)
	}
	if d.dumpDebug {
		if dbg := d.est.DebugFrame(); dbg != nil {
			d.diag.AddFrame(fmt.Sprintf("debug_%07d.pgm", dbg.Seq),
				diagnostics.EncodePGM(dbg.Width, dbg.Height, dbg.Pixels))
		}
	}
	d.counters.Image++
	return Result{Label: LabelImage, State: st, Processed: true}, nil
}

func (d *Dispatcher) dispatchEvents(m *archive.Message) (Result, error) {
	b, ok := m.Body.(*archive.EventBatch)
	if !ok {
		d.skip(m, "events topic carried a non-event payload")
		return Result{}, nil
	}

	batch := estimator.Events{
		Seq:    b.Seq,
		Begin:  b.Begin,
		End:    b.End,
		Width:  b.Width,
		Height: b.Height,
		Events: make([]estimator.Event, len(b.Events)),
	}
	for i, e := range b.Events {
		batch.Events[i] = estimator.Event{X: e.X, Y: e.Y, Time: e.Time, Polarity: e.Polarity}
	}

	st, err := d.est.ProcessEvents(batch)
	if err != nil {
		return Result{}, fmt.Errorf("process events seq %d: %w", b.Seq, err)
	}
	d.counters.Events++
	return Result{Label: LabelEvents, State: st, Processed: true}, nil
}

func (d *Dispatcher) dispatchGroundTruth(m *archive.Message) error {
	gt, ok := m.Body.(*archive.GroundTruthPose)
	if !ok {
		d.skip(m, "ground-truth topic carried an unrecognized payload")
		return nil
	}
	for _, p := range gt.Poses {
		if err := d.out.AppendGroundTruth(p); err != nil {
			return fmt.Errorf("append ground truth: %w", err)
		}
		d.counters.Pose++
	}
	return nil
}

func (d *Dispatcher) skip(m *archive.Message, reason string) {
	d.counters.Skipped++
	d.log.Warn("skipping message", zap.String("topic", m.Topic),
		zap.Float64("t", m.Time), zap.String("reason", reason))
}
