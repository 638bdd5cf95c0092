package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mixing-extruder/pkg/mixing"
)

func TestMixingMetricsSample(t *testing.T) {
	m, err := mixing.New(mixing.Config{Steppers: 2, Tools: 2})
	require.NoError(t, err)
	require.True(t, m.CommitWeights(1, []float64{1, 3}))
	m.Select(1)
	for i := 0; i < 8; i++ {
		m.NextStepper()
	}

	mm := NewMixingMetrics(m)
	mm.Sample()

	assert.Equal(t, uint64(1), mm.Commits.Get(nil))
	assert.Equal(t, 1.0, mm.ActiveTool.Get(nil))
	assert.Equal(t, 0.25, mm.Ratio.Get(Labels{"tool": "1", "stepper": "A"}))
	assert.Equal(t, 0.75, mm.Ratio.Get(Labels{"tool": "1", "stepper": "B"}))
	assert.Equal(t, 0.5, mm.Ratio.Get(Labels{"tool": "0", "stepper": "A"}))
	assert.Equal(t, 2.0, mm.StepperSteps.Get(Labels{"stepper": "A"}))
	assert.Equal(t, 6.0, mm.StepperSteps.Get(Labels{"stepper": "B"}))

	// Sampling again does not double count.
	require.True(t, m.CommitWeights(0, []float64{1, 0}))
	mm.Sample()
	mm.Sample()
	assert.Equal(t, uint64(2), mm.Commits.Get(nil))
}

func TestMixingMetricsObserveGCode(t *testing.T) {
	mm := NewMixingMetrics(nil)
	mm.ObserveGCode("M163", time.Millisecond, nil)
	mm.ObserveGCode("M163", time.Millisecond, errors.New("bad"))

	assert.Equal(t, uint64(2), mm.GCodeCommandsTotal.Get(Labels{"cmd": "M163"}))
	assert.Equal(t, uint64(1), mm.GCodeErrorsTotal.Get(Labels{"cmd": "M163"}))
	assert.Equal(t, uint64(2), mm.GCodeDuration.GetSnapshot(Labels{"cmd": "M163"}).Count)
}

func TestMixingMetricsGather(t *testing.T) {
	m, err := mixing.New(mixing.DefaultConfig())
	require.NoError(t, err)
	out := NewMixingMetrics(m).Gather()

	for _, want := range []string{
		"# TYPE mixer_commits_total counter",
		"mixer_active_tool 0",
		`mixer_ratio{stepper="A",tool="0"} 0.5`,
		`mixer_stepper_steps{stepper="B"} 0`,
		"# TYPE mixer_gcode_duration_seconds histogram",
		"mixer_go_goroutines ",
	} {
		assert.True(t, strings.Contains(out, want), "missing %q", want)
	}
}

func TestMixingMetricsProcess(t *testing.T) {
	mm := NewMixingMetrics(nil)
	if mm.proc == nil {
		t.Skip("process stats unavailable on this platform")
	}
	mm.Sample()
	assert.Greater(t, mm.ProcessRSS.Get(nil), 0.0)
	assert.GreaterOrEqual(t, mm.ProcessCPU.Get(nil), 0.0)
}
