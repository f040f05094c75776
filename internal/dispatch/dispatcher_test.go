package dispatch

import (
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
	"github.com/mfkiwl/x-evaluate/internal/estimator"
	"github.com/mfkiwl/x-evaluate/internal/sink"
)

func testParams() *config.Params {
	return &config.Params{
		ImgWidth: 4, ImgHeight: 3,
		CamFx: 400, CamFy: 400, CamCx: 2, CamCy: 1.5,
		Q0:      [4]float64{0, 0, 0, 1},
		Gravity: 9.81,
		NTilesH: 1, NTilesW: 1,
	}
}

func testTopics() Topics {
	return Topics{Imu: "/imu", Image: "/cam", Events: "/dvs", Pose: "/gt"}
}

func newTestDispatcher(t *testing.T, front estimator.Frontend, topics Topics, dumpInput bool) (*Dispatcher, *sink.Sink, *diagnostics.Collector) {
	t.Helper()
	dir := t.TempDir()
	out, err := sink.New(dir, topics.Pose != "")
	require.NoError(t, err)
	t.Cleanup(func() { out.Close() })

	p := testParams()
	est := estimator.New(front, p)
	est.InitAtTime(0)
	diag := diagnostics.New(filepath.Join(dir, "frames"))
	return New(topics, est, out, diag, p, zap.NewNop(), dumpInput, false), out, diag
}

func imuMsg(t float64, seq uint64) *archive.Message {
	return &archive.Message{Topic: "/imu", Time: t, Body: &archive.InertialSample{
		Time: t, Seq: seq, SpecificForce: [3]float64{0, 0, 9.81},
	}}
}

func imageMsg(t float64, seq uint64, w, h int) *archive.Message {
	return &archive.Message{Topic: "/cam", Time: t, Body: &archive.ImageFrame{
		Time: t, Seq: seq, Width: w, Height: h, Pixels: make([]byte, w*h),
	}}
}

func TestDispatch_LabelsByRoute(t *testing.T) {
	d, _, _ := newTestDispatcher(t, estimator.EKLT, testTopics(), false)

	res, err := d.Dispatch(imuMsg(0.01, 1))
	require.NoError(t, err)
	assert.True(t, res.Processed)
	assert.Equal(t, LabelImu, res.Label)

	res, err = d.Dispatch(imageMsg(0.02, 1, 4, 3))
	require.NoError(t, err)
	assert.True(t, res.Processed)
	assert.Equal(t, LabelImage, res.Label)

	res, err = d.Dispatch(&archive.Message{Topic: "/dvs", Time: 0.03, Body: &archive.EventBatch{
		Seq: 1, Begin: 0.02, End: 0.03, Width: 4, Height: 3,
		Events: []archive.Event{{X: 1, Y: 1, Time: 0.025, Polarity: true}},
	}})
	require.NoError(t, err)
	assert.True(t, res.Processed)
	assert.Equal(t, LabelEvents, res.Label)

	c := d.Counters()
	assert.Equal(t, uint64(1), c.Imu)
	assert.Equal(t, uint64(1), c.Image)
	assert.Equal(t, uint64(1), c.Events)
}

func TestDispatch_UnmatchedTopicIgnored(t *testing.T) {
	d, _, _ := newTestDispatcher(t, estimator.XVIO, testTopics(), false)

	res, err := d.Dispatch(&archive.Message{Topic: "/some/other", Time: 1.0, Body: &archive.InertialSample{}})
	require.NoError(t, err)
	assert.False(t, res.Processed)
	assert.Equal(t, Counters{}, d.Counters())
}

func TestDispatch_DimensionMismatchSkipsRecoverably(t *testing.T) {
	d, _, _ := newTestDispatcher(t, estimator.XVIO, testTopics(), false)

	res, err := d.Dispatch(imageMsg(0.02, 7, 8, 6))
	require.NoError(t, err, "a mismatched frame is recoverable, never fatal")
	assert.False(t, res.Processed)

	c := d.Counters()
	assert.Equal(t, uint64(0), c.Image)
	assert.Equal(t, uint64(1), c.Skipped)

	// The replay continues: the next good frame processes normally.
	res, err = d.Dispatch(imageMsg(0.03, 8, 4, 3))
	require.NoError(t, err)
	assert.True(t, res.Processed)
}

func TestDispatch_EventsIgnoredByFrameBasedFrontend(t *testing.T) {
	d, _, _ := newTestDispatcher(t, estimator.XVIO, testTopics(), false)

	res, err := d.Dispatch(&archive.Message{Topic: "/dvs", Time: 0.03, Body: &archive.EventBatch{
		Begin: 0.02, End: 0.03,
	}})
	require.NoError(t, err)
	assert.False(t, res.Processed, "XVIO does not consume events even when present")
	assert.Equal(t, uint64(0), d.Counters().Events)
}

func TestDispatch_EventsIgnoredWithoutConfiguredTopic(t *testing.T) {
	topics := testTopics()
	topics.Events = ""
	d, _, _ := newTestDispatcher(t, estimator.EKLT, topics, false)

	res, err := d.Dispatch(&archive.Message{Topic: "/dvs", Time: 0.03, Body: &archive.EventBatch{}})
	require.NoError(t, err)
	assert.False(t, res.Processed)
}

func TestDispatch_GroundTruthExpandsPerTransform(t *testing.T) {
	d, out, _ := newTestDispatcher(t, estimator.XVIO, testTopics(), false)

	res, err := d.Dispatch(&archive.Message{Topic: "/gt", Time: 5.0, Body: &archive.GroundTruthPose{
		Time: 5.0,
		Poses: []archive.Pose{
			{Time: 4.8, Position: [3]float64{1, 0, 0}, Rotation: [4]float64{0, 0, 0, 1}},
			{Time: 4.9, Position: [3]float64{2, 0, 0}, Rotation: [4]float64{0, 0, 0, 1}},
			{Time: 5.1, Position: [3]float64{3, 0, 0}, Rotation: [4]float64{0, 0, 0, 1}},
		},
	}})
	require.NoError(t, err)
	assert.False(t, res.Processed, "ground truth carries no process-type row")
	assert.Equal(t, uint64(3), d.Counters().Pose)

	data, err := os.ReadFile(filepath.Join(out.Dir(), sink.GroundFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 4, "header plus one row per embedded transform")
	assert.True(t, strings.HasPrefix(lines[1], "4.8;"))
	assert.True(t, strings.HasPrefix(lines[2], "4.9;"))
	assert.True(t, strings.HasPrefix(lines[3], "5.1;"))
}

func TestDispatch_InputFrameDumping(t *testing.T) {
	d, _, diag := newTestDispatcher(t, estimator.XVIO, testTopics(), true)

	_, err := d.Dispatch(imageMsg(0.02, 1, 4, 3))
	require.NoError(t, err)
	_, err = d.Dispatch(imageMsg(0.04, 2, 4, 3))
	require.NoError(t, err)

	assert.Positive(t, diag.MemoryUsage())
	require.NoError(t, diag.Flush())
	assert.Equal(t, 2, diag.Written())
}
