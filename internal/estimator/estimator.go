package estimator

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mfkiwl/x-evaluate/internal/config"
)

// State is the estimator's current belief. It is a value snapshot: valid
// until the next processing call, never mutated by the harness.
type State struct {
	Time        float64
	Position    r3.Vec
	Orientation quat.Number
	AccelBias   r3.Vec
	GyroBias    r3.Vec
}

// Image is a single-channel frame in the estimator's expected
// representation.
type Image struct {
	Time   float64
	Seq    uint64
	Width  int
	Height int
	Pixels []byte
}

// Event is one event-camera event.
type Event struct {
	X        int
	Y        int
	Time     float64
	Polarity bool
}

// Events is an ordered batch of events over a time window.
type Events struct {
	Seq    uint64
	Begin  float64
	End    float64
	Width  int
	Height int
	Events []Event
}

// Estimator is the processing interface consumed by the replay harness.
// Calls are strictly sequential; implementations need no locking.
type Estimator interface {
	// SetUp configures the estimator once before replay.
	SetUp(p *config.Params) error
	// InitAtTime anchors the filter to the first replayed timestamp.
	InitAtTime(t float64)
	// ProcessImu feeds one inertial sample.
	ProcessImu(t float64, seq uint64, angVel, specForce r3.Vec) (State, error)
	// ProcessImage feeds one dimension-checked frame.
	ProcessImage(img Image) (State, error)
	// ProcessEvents feeds one event batch. Only called when
	// DoesProcessEvents reports true.
	ProcessEvents(batch Events) (State, error)
	// IsInitialized reports whether the filter has converged enough for
	// its states to be meaningful. Polled once per dispatched message.
	IsInitialized() bool
	// DoesProcessEvents reports whether this frontend consumes events.
	DoesProcessEvents() bool
	// DebugFrame returns the latest feature/debug frame, or nil if the
	// frontend has not produced one since the last call.
	DebugFrame() *Image
}
