package archive

// Body is the closed union of message payloads a log can contain.
// Concrete types: *InertialSample, *ImageFrame, *EventBatch,
// *GroundTruthPose.
type Body interface {
	body()
}

// Message is one record of the filtered view. Ordering key is Time;
// Index (position in the original log) breaks ties.
type Message struct {
	Topic string
	Time  float64
	Index int
	Body  Body
}

// InertialSample is a single IMU reading.
type InertialSample struct {
	Time            float64
	Seq             uint64
	AngularVelocity [3]float64
	SpecificForce   [3]float64
}

// ImageFrame is a single-channel intensity image.
type ImageFrame struct {
	Time   float64
	Seq    uint64
	Width  int
	Height int
	Pixels []byte
}

// Event is one DVS event inside a batch.
type Event struct {
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Time     float64 `json:"t"`
	Polarity bool    `json:"p"`
}

// EventBatch is an ordered window of events from an event camera.
type EventBatch struct {
	Seq    uint64
	Begin  float64
	End    float64
	Width  int
	Height int
	Events []Event
}

// Pose is a timestamped position + unit-quaternion orientation.
// Quaternion component order is x, y, z, w.
type Pose struct {
	Time     float64
	Position [3]float64
	Rotation [4]float64
}

// GroundTruthPose is a reference pose record. A plain pose record carries
// exactly one entry; a transform-stream record carries one entry per
// embedded transform, each with its own timestamp.
type GroundTruthPose struct {
	Time  float64
	Poses []Pose
}

func (*InertialSample) body()  {}
func (*ImageFrame) body()      {}
func (*EventBatch) body()      {}
func (*GroundTruthPose) body() {}
