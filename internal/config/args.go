package config

import (
	"flag"
	"fmt"
	"io"
	"math"

	"github.com/mfkiwl/x-evaluate/internal/archive"
)

// StartupError marks a configuration problem that must abort the run
// before any output is produced.
type StartupError struct {
	Reason string
}

func (e *StartupError) Error() string { return e.Reason }

func startupErrorf(format string, args ...any) *StartupError {
	return &StartupError{Reason: fmt.Sprintf(format, args...)}
}

// Args holds the parsed command-line configuration.
type Args struct {
	// InputLog is the path of the recorded archive to replay.
	InputLog string
	// EventsTopic is the event-camera topic, empty if none.
	EventsTopic string
	// ImageTopic is the frame-camera topic.
	ImageTopic string
	// PoseTopic is the optional ground-truth pose/transform topic.
	PoseTopic string
	// ImuTopic is the inertial topic.
	ImuTopic string
	// ParamsFile is the estimator parameter YAML.
	ParamsFile string
	// OutputFolder receives all tables, traces and the params copy.
	OutputFolder string
	// From/To bound the replay window in archive seconds.
	From float64
	To   float64
	// Frontend selects the estimator variant.
	Frontend string
	// DumpInputFrames and DumpDebugFrames enable frame dumping.
	DumpInputFrames bool
	DumpDebugFrames bool
}

// ParseArgs parses command-line arguments and validates the parts that can
// fail without touching the filesystem. Expected argv[0] is the program
// name.
func ParseArgs(argv []string, errOut io.Writer) (*Args, error) {
	if len(argv) == 0 {
		return nil, startupErrorf("no arguments provided")
	}

	a := &Args{}
	fs := flag.NewFlagSet(argv[0], flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&a.InputLog, "input_log", "", "filename of the recorded log to replay")
	fs.StringVar(&a.EventsTopic, "events_topic", "", "topic carrying event batches")
	fs.StringVar(&a.ImageTopic, "image_topic", "/cam0/image_raw", "topic carrying image frames")
	fs.StringVar(&a.PoseTopic, "pose_topic", "", "(optional) topic carrying ground-truth poses/transforms")
	fs.StringVar(&a.ImuTopic, "imu_topic", "/imu", "topic carrying inertial samples")
	fs.StringVar(&a.ParamsFile, "params_file", "", "filename of the params.yaml to use")
	fs.StringVar(&a.OutputFolder, "output_folder", "", "folder where to write output files, created if absent")
	fs.Float64Var(&a.From, "from", math.Inf(-1), "skip messages with timestamp lower than --from")
	fs.Float64Var(&a.To, "to", math.Inf(1), "skip messages with timestamp bigger than --to")
	fs.StringVar(&a.Frontend, "frontend", "XVIO", "which estimator frontend to use")
	fs.BoolVar(&a.DumpInputFrames, "dump_input_frames", false, "whether to log input frames to disk")
	fs.BoolVar(&a.DumpDebugFrames, "dump_debug_frames", false, "whether to log debug frames to disk")

	if err := fs.Parse(argv[1:]); err != nil {
		return nil, &StartupError{Reason: err.Error()}
	}

	if a.OutputFolder == "" {
		return nil, startupErrorf("no output folder specified, provide --output_folder")
	}
	if a.InputLog == "" {
		return nil, startupErrorf("no input log specified, provide --input_log")
	}
	if a.ParamsFile == "" {
		return nil, startupErrorf("no params file specified, provide --params_file")
	}

	return a, nil
}

// Topics returns the configured topic names, skipping the optional ones
// that were left empty.
func (a *Args) Topics() []string {
	topics := []string{a.ImuTopic, a.ImageTopic}
	if a.EventsTopic != "" {
		topics = append(topics, a.EventsTopic)
	}
	if a.PoseTopic != "" {
		topics = append(topics, a.PoseTopic)
	}
	return topics
}

// Range converts the from/to flags into an archive time range.
func (a *Args) Range() archive.TimeRange {
	return archive.TimeRange{From: a.From, To: a.To}
}
