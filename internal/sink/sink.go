package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mfkiwl/x-evaluate/internal/archive"
	"github.com/mfkiwl/x-evaluate/internal/estimator"
)

// Output file names inside the output directory.
const (
	PoseFile      = "pose.csv"
	BiasFile      = "imu_bias.csv"
	GroundFile    = "gt.csv"
	TimingFile    = "realtime.csv"
	ResourceFile  = "resource.csv"
	ProfilingFile = "profiling.prof"
	ParamsCopy    = "params.yaml"
)

// Sink holds the open output tables. The ground-truth table exists only
// when a ground-truth topic was configured.
type Sink struct {
	dir      string
	pose     *Table
	bias     *Table
	ground   *Table
	timing   *Table
	resource *Table
}

// New opens all tables inside dir, which must already exist.
func New(dir string, withGroundTruth bool) (*Sink, error) {
	s := &Sink{dir: dir}

	var err error
	s.pose, err = NewTable(filepath.Join(dir, PoseFile), []string{
		"update_modality", "t",
		"estimated_p_x", "estimated_p_y", "estimated_p_z",
		"estimated_q_x", "estimated_q_y", "estimated_q_z", "estimated_q_w",
	})
	if err != nil {
		return nil, err
	}
	s.bias, err = NewTable(filepath.Join(dir, BiasFile), []string{
		"t", "b_a_x", "b_a_y", "b_a_z", "b_w_x", "b_w_y", "b_w_z",
		"sigma_b_a_x", "sigma_b_a_y", "sigma_b_a_z",
		"sigma_b_w_x", "sigma_b_w_y", "sigma_b_w_z",
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	if withGroundTruth {
		s.ground, err = NewTable(filepath.Join(dir, GroundFile), []string{
			"t", "p_x", "p_y", "p_z", "q_x", "q_y", "q_z", "q_w",
		})
		if err != nil {
			s.Close()
			return nil, err
		}
	}
	s.timing, err = NewTable(filepath.Join(dir, TimingFile), []string{
		"t_sim", "t_real", "ts_real", "processing_type", "process_time_in_us",
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.resource, err = NewTable(filepath.Join(dir, ResourceFile), []string{
		"ts", "cpu_usage", "cpu_user_mode_usage", "cpu_kernel_mode_usage",
		"memory_usage_in_bytes", "debug_memory_in_bytes",
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// Dir is the output directory this sink writes into.
func (s *Sink) Dir() string { return s.dir }

// HasGroundTruth reports whether the ground-truth table is open.
func (s *Sink) HasGroundTruth() bool { return s.ground != nil }

// PoseRows is the number of pose rows written so far.
func (s *Sink) PoseRows() uint64 { return s.pose.Rows() }

// AppendPose writes one estimate row tagged with its process type.
func (s *Sink) AppendPose(modality string, st estimator.State) error {
	return s.pose.Append([]string{
		modality, ftoa(st.Time),
		ftoa(st.Position.X), ftoa(st.Position.Y), ftoa(st.Position.Z),
		ftoa(st.Orientation.Imag), ftoa(st.Orientation.Jmag),
		ftoa(st.Orientation.Kmag), ftoa(st.Orientation.Real),
	})
}

// AppendBias writes one IMU-bias row. The sigma columns are zero: the
// original pipeline disabled the bias covariance export and downstream
// tooling still expects the columns.
func (s *Sink) AppendBias(st estimator.State) error {
	return s.bias.Append([]string{
		ftoa(st.Time),
		ftoa(st.AccelBias.X), ftoa(st.AccelBias.Y), ftoa(st.AccelBias.Z),
		ftoa(st.GyroBias.X), ftoa(st.GyroBias.Y), ftoa(st.GyroBias.Z),
		"0", "0", "0", "0", "0", "0",
	})
}

// AppendGroundTruth writes one reference-pose row.
func (s *Sink) AppendGroundTruth(p archive.Pose) error {
	if s.ground == nil {
		return fmt.Errorf("no ground-truth table configured")
	}
	return s.ground.Append([]string{
		ftoa(p.Time),
		ftoa(p.Position[0]), ftoa(p.Position[1]), ftoa(p.Position[2]),
		ftoa(p.Rotation[0]), ftoa(p.Rotation[1]), ftoa(p.Rotation[2]), ftoa(p.Rotation[3]),
	})
}

// AppendTiming writes one timing-trace row.
func (s *Sink) AppendTiming(tSim, tReal float64, tsReal int64, modality string, micros int64) error {
	return s.timing.Append([]string{
		ftoa(tSim), ftoa(tReal),
		strconv.FormatInt(tsReal, 10),
		modality,
		strconv.FormatInt(micros, 10),
	})
}

// AppendResource writes one resource-usage row.
func (s *Sink) AppendResource(ts int64, cpu, cpuUser, cpuSys float64, rss uint64, debugBytes int64) error {
	return s.resource.Append([]string{
		strconv.FormatInt(ts, 10),
		ftoa(cpu), ftoa(cpuUser), ftoa(cpuSys),
		strconv.FormatUint(rss, 10),
		strconv.FormatInt(debugBytes, 10),
	})
}

// CopyParams persists a byte-for-byte copy of the parameter file into the
// output directory, overwriting any previous copy.
func (s *Sink) CopyParams(src string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read params %s: %w", src, err)
	}
	dst := filepath.Join(s.dir, ParamsCopy)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("copy params to %s: %w", dst, err)
	}
	return nil
}

// Close closes every open table, returning the first error.
func (s *Sink) Close() error {
	var first error
	for _, t := range []*Table{s.pose, s.bias, s.ground, s.timing, s.resource} {
		if t == nil {
			continue
		}
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
