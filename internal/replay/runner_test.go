package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mfkiwl/x-evaluate/internal/archive"
	"github.com/mfkiwl/x-evaluate/internal/config"
	"github.com/mfkiwl/x-evaluate/internal/diagnostics"
	"github.com/mfkiwl/x-evaluate/internal/dispatch"
	"github.com/mfkiwl/x-evaluate/internal/estimator"
	"github.com/mfkiwl/x-evaluate/internal/profiling"
	"github.com/mfkiwl/x-evaluate/internal/resource"
	"github.com/mfkiwl/x-evaluate/internal/sink"
	"github.com/mfkiwl/x-evaluate/internal/timing"
)

type fakeSampler struct {
	calls int
}

func (f *fakeSampler) Sample() (*resource.Sample, error) {
	f.calls++
	return &resource.Sample{TS: int64(f.calls), CPU: 50, CPUUser: 30, CPUSys: 20, RSS: 4096}, nil
}

func testParams() *config.Params {
	return &config.Params{
		ImgWidth: 4, ImgHeight: 3,
		CamFx: 400, CamFy: 400, CamCx: 2, CamCy: 1.5,
		Q0:      [4]float64{0, 0, 0, 1},
		Gravity: 9.81,
		NTilesH: 1, NTilesW: 1,
	}
}

func writeLog(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seq.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func countRows(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	return len(lines) - 1 // minus header
}

// buildRunner wires a full harness over the given log with a fake sampler
// and a caller-chosen sampling budget.
func buildRunner(t *testing.T, logPath string, topics dispatch.Topics, front estimator.Frontend, sampleBudget int64) (*Runner, *sink.Sink, *fakeSampler) {
	t.Helper()
	outDir := t.TempDir()

	p := testParams()
	est := estimator.New(front, p)
	require.NoError(t, est.SetUp(p))

	out, err := sink.New(outDir, topics.Pose != "")
	require.NoError(t, err)
	t.Cleanup(func() { out.Close() })

	var names []string
	for _, n := range []string{topics.Imu, topics.Image, topics.Events, topics.Pose} {
		if n != "" {
			names = append(names, n)
		}
	}
	reader, err := archive.Open(logPath, names, archive.FullRange(), zap.NewNop())
	require.NoError(t, err)

	diag := diagnostics.New(filepath.Join(outDir, "frames"))
	sampler := &fakeSampler{}
	runner := NewRunner(Config{
		Reader:      reader,
		Dispatcher:  dispatch.New(topics, est, out, diag, p, zap.NewNop(), false, false),
		Controller:  timing.NewController(timing.DefaultFlushInterval, sampleBudget),
		Sampler:     sampler,
		Sink:        out,
		Diagnostics: diag,
		Profiler:    profiling.NewRecorder(),
		Estimator:   est,
		Log:         zap.NewNop(),
	})
	return runner, out, sampler
}

func TestRun_ImuAndImageScenario(t *testing.T) {
	var lines []string
	for i := 0; i < 100; i++ {
		lines = append(lines, fmt.Sprintf(
			`{"topic":"/imu","type":"imu","t":%f,"seq":%d,"a":[0,0,9.81]}`, float64(i)*0.01, i))
	}
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf(
			`{"topic":"/cam","type":"image","t":%f,"seq":%d,"width":4,"height":3,"pixels":"AAAAAAAAAAAAAAAA"}`,
			0.005+float64(i)*0.1, i))
	}

	logPath := writeLog(t, lines)
	topics := dispatch.Topics{Imu: "/imu", Image: "/cam"}
	runner, out, sampler := buildRunner(t, logPath, topics, estimator.XVIO, 0)

	counters, err := runner.Run()
	require.NoError(t, err)
	assert.Equal(t, uint64(100), counters.Imu)
	assert.Equal(t, uint64(10), counters.Image)

	poseRows := countRows(t, filepath.Join(out.Dir(), sink.PoseFile))
	assert.LessOrEqual(t, poseRows, 110)
	assert.Equal(t, poseRows, countRows(t, filepath.Join(out.Dir(), sink.BiasFile)))
	assert.Equal(t, poseRows, countRows(t, filepath.Join(out.Dir(), sink.TimingFile)))

	// No ground-truth topic configured: no gt table at all.
	_, statErr := os.Stat(filepath.Join(out.Dir(), sink.GroundFile))
	assert.True(t, os.IsNotExist(statErr))

	// The budget was crossed, so resource rows exist.
	assert.Positive(t, sampler.calls)
	assert.Positive(t, countRows(t, filepath.Join(out.Dir(), sink.ResourceFile)))

	// Binary profiling trace decodes and covers the post-init rows.
	f, err := os.Open(filepath.Join(out.Dir(), sink.ProfilingFile))
	require.NoError(t, err)
	defer f.Close()
	spans, err := profiling.ReadTrace(f)
	require.NoError(t, err)
	assert.Len(t, spans, poseRows)
}

func TestRun_NoRowsBeforeInitialization(t *testing.T) {
	lines := []string{
		`{"topic":"/cam","type":"image","t":0.1,"seq":1,"width":4,"height":3,"pixels":"AAAAAAAAAAAAAAAA"}`,
		`{"topic":"/cam","type":"image","t":0.2,"seq":2,"width":4,"height":3,"pixels":"AAAAAAAAAAAAAAAA"}`,
		`{"topic":"/imu","type":"imu","t":0.3,"seq":1,"a":[0,0,9.81]}`,
		`{"topic":"/cam","type":"image","t":0.4,"seq":3,"width":4,"height":3,"pixels":"AAAAAAAAAAAAAAAA"}`,
	}

	logPath := writeLog(t, lines)
	topics := dispatch.Topics{Imu: "/imu", Image: "/cam"}
	runner, out, _ := buildRunner(t, logPath, topics, estimator.XVIO, timing.DefaultSampleBudget)

	_, err := runner.Run()
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out.Dir(), sink.PoseFile))
	require.NoError(t, err)
	rows := strings.Split(strings.TrimRight(string(data), "\n"), "\n")[1:]

	// The two pre-init images are dropped for good; the flipping IMU
	// message and the following image each get exactly one row.
	require.Len(t, rows, 2)
	assert.True(t, strings.HasPrefix(rows[0], "IMU;0.3;"))
	assert.True(t, strings.HasPrefix(rows[1], "Image;0.4;"))
}

func TestRun_GroundTruthRowsNotGatedByInit(t *testing.T) {
	lines := []string{
		`{"topic":"/gt","type":"pose","t":0.05,"p":[1,2,3],"q":[0,0,0,1]}`,
		`{"topic":"/imu","type":"imu","t":0.1,"seq":1,"a":[0,0,9.81]}`,
	}

	logPath := writeLog(t, lines)
	topics := dispatch.Topics{Imu: "/imu", Image: "/cam", Pose: "/gt"}
	runner, out, _ := buildRunner(t, logPath, topics, estimator.XVIO, timing.DefaultSampleBudget)

	counters, err := runner.Run()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), counters.Pose)

	// The ground-truth row lands even though it precedes initialization.
	assert.Equal(t, 1, countRows(t, filepath.Join(out.Dir(), sink.GroundFile)))
}

func TestRun_ResourceCadenceFollowsProcessingTime(t *testing.T) {
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, fmt.Sprintf(
			`{"topic":"/imu","type":"imu","t":%f,"seq":%d,"a":[0,0,9.81]}`, float64(i)*0.01, i))
	}

	logPath := writeLog(t, lines)
	topics := dispatch.Topics{Imu: "/imu", Image: "/cam"}

	// A budget far above what 50 cheap messages can accumulate: no
	// resource rows at all, regardless of message count.
	runner, out, sampler := buildRunner(t, logPath, topics, estimator.XVIO, timing.DefaultSampleBudget)
	_, err := runner.Run()
	require.NoError(t, err)
	assert.Zero(t, sampler.calls)
	assert.Zero(t, countRows(t, filepath.Join(out.Dir(), sink.ResourceFile)))
}
