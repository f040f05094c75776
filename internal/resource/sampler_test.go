package resource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUtilization(t *testing.T) {
	tests := []struct {
		name            string
		wall, usr, sys  float64
		wantCPU         float64
		wantOK          bool
	}{
		{name: "half user load", wall: 2.0, usr: 1.0, sys: 0, wantCPU: 50, wantOK: true},
		{name: "mixed load", wall: 1.0, usr: 0.6, sys: 0.2, wantCPU: 80, wantOK: true},
		{name: "zero wall delta", wall: 0, usr: 0.1, sys: 0.1, wantOK: false},
		{name: "near-zero wall delta", wall: 1e-9, usr: 0.1, sys: 0.1, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu, usr, sys, ok := utilization(tt.wall, tt.usr, tt.sys)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.InDelta(t, tt.wantCPU, cpu, 1e-9)
				assert.InDelta(t, cpu, usr+sys, 1e-9)
			}
		})
	}
}

func TestSampler_ProbesOwnProcess(t *testing.T) {
	s, err := NewSampler()
	require.NoError(t, err)

	// Give the wall clock something to measure.
	time.Sleep(20 * time.Millisecond)

	sample, err := s.Sample()
	require.NoError(t, err)
	require.NotNil(t, sample)
	assert.Positive(t, sample.RSS)
	assert.GreaterOrEqual(t, sample.CPU, 0.0)
	assert.Positive(t, sample.TS)
}

func TestSampler_BackToBackProbeOmitted(t *testing.T) {
	s, err := NewSampler()
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	first, err := s.Sample()
	require.NoError(t, err)
	require.NotNil(t, first)

	// An immediate second probe may fall under the wall-delta guard; it
	// must come back omitted rather than Inf/NaN, and must not error.
	second, err := s.Sample()
	require.NoError(t, err)
	if second != nil {
		assert.False(t, second.CPU < 0)
	}
}
