// x-evaluate replays a recorded multi-sensor log through a pluggable
// pose/state estimator and writes reproducible timing and resource
// measurements alongside the estimates.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/mfkiwl/x-evaluate/internal/archive"
	"github.com/mfkiwl/x-evaluate/internal/config"
	"github.com/mfkiwl/x-evaluate/internal/diagnostics"
	"github.com/mfkiwl/x-evaluate/internal/dispatch"
	"github.com/mfkiwl/x-evaluate/internal/estimator"
	"github.com/mfkiwl/x-evaluate/internal/profiling"
	"github.com/mfkiwl/x-evaluate/internal/progress"
	"github.com/mfkiwl/x-evaluate/internal/replay"
	"github.com/mfkiwl/x-evaluate/internal/resource"
	"github.com/mfkiwl/x-evaluate/internal/sink"
	"github.com/mfkiwl/x-evaluate/internal/timing"
)

func main() {
	fmt.Fprintf(os.Stderr, "Running %s %s\n", os.Args[0], utcNow())
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func utcNow() string {
	return time.Now().UTC().Format(time.ANSIC)
}

// newLogger builds the runtime logger writing to stderr, keeping stdout
// clean for anything piping the binary.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func run(argv []string) error {
	// Everything that can fail without side effects is checked before
	// the output directory is touched.
	args, err := config.ParseArgs(argv, os.Stderr)
	if err != nil {
		return err
	}
	front, err := estimator.ParseFrontend(args.Frontend)
	if err != nil {
		return err
	}
	params, err := config.LoadParams(args.ParamsFile)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(args.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("create output folder %s: %w", args.OutputFolder, err)
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck // stderr sync failure is uninteresting at exit

	out, err := sink.New(args.OutputFolder, args.PoseTopic != "")
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			log.Warn("closing output tables", zap.Error(err))
		}
	}()
	if err := out.CopyParams(args.ParamsFile); err != nil {
		return err
	}

	log.Info("reading log", zap.String("path", args.InputLog),
		zap.String("frontend", front.String()))
	reader, err := archive.Open(args.InputLog, args.Topics(), args.Range(), log)
	if err != nil {
		return err
	}

	est := estimator.New(front, params)
	if err := est.SetUp(params); err != nil {
		return fmt.Errorf("set up %s frontend: %w", front, err)
	}

	// A failed sampler attach only costs the resource table.
	var sampler replay.Sampler
	if s, err := resource.NewSampler(); err != nil {
		log.Warn("resource sampler unavailable, resource table will stay empty", zap.Error(err))
	} else {
		sampler = s
	}

	diag := diagnostics.New(filepath.Join(args.OutputFolder, "frames"))
	runner := replay.NewRunner(replay.Config{
		Reader: reader,
		Dispatcher: dispatch.New(
			dispatch.Topics{
				Imu:    args.ImuTopic,
				Image:  args.ImageTopic,
				Events: args.EventsTopic,
				Pose:   args.PoseTopic,
			},
			est, out, diag, params, log,
			args.DumpInputFrames, args.DumpDebugFrames,
		),
		Controller:  timing.NewController(timing.DefaultFlushInterval, timing.DefaultSampleBudget),
		Sampler:     sampler,
		Sink:        out,
		Diagnostics: diag,
		Profiler:    profiling.NewRecorder(),
		Progress:    progress.New(reader.Len(), os.Stderr),
		Estimator:   est,
		Log:         log,
	})

	counters, err := runner.Run()
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Processed %d IMU, %d image, %d event and %d pose messages\n",
		counters.Imu, counters.Image, counters.Events, counters.Pose)
	fmt.Fprintf(os.Stderr, "Writing outputs to folder %s\n", args.OutputFolder)
	fmt.Fprintf(os.Stderr, "Evaluation completed %s\n", utcNow())
	return nil
}
