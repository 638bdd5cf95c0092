package motion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mixing-extruder/pkg/config"
	"mixing-extruder/pkg/mixing"
)

func newExtruder(t *testing.T, steppers int, stepsPerMM float64, weights ...float64) (*Extruder, *CountingSink) {
	t.Helper()
	m, err := mixing.New(mixing.Config{Steppers: steppers, Tools: 1})
	require.NoError(t, err)
	if len(weights) > 0 {
		require.True(t, m.CommitWeights(0, weights))
	}
	sink := &CountingSink{}
	return &Extruder{Mixer: m, Sink: sink, StepsPerMM: stepsPerMM}, sink
}

func TestMoveDistributesSteps(t *testing.T) {
	e, sink := newExtruder(t, 2, 100, 1, 3)

	assert.Equal(t, 1000, e.Move(10))
	assert.Equal(t, int64(250), sink.Forward(0))
	assert.Equal(t, int64(750), sink.Forward(1))
	assert.Equal(t, int64(1000), e.Position())
}

func TestMoveCarriesFraction(t *testing.T) {
	e, sink := newExtruder(t, 2, 2)

	total := 0
	for i := 0; i < 10; i++ {
		total += e.Move(0.25)
	}
	// Ten half-steps make five whole ones.
	assert.Equal(t, 5, total)
	assert.Equal(t, int64(5), sink.Forward(0)+sink.Forward(1))
}

func TestRetract(t *testing.T) {
	e, sink := newExtruder(t, 3, 10, 1, 0, 1)

	assert.Equal(t, 20, e.Move(2))
	assert.Equal(t, -10, e.Move(-1))

	assert.Equal(t, int64(0), sink.Forward(1)+sink.Reverse(1))
	assert.Equal(t, int64(10), sink.Reverse(0)+sink.Reverse(2))
	assert.Equal(t, int64(10), sink.Net(0)+sink.Net(2))
	assert.Equal(t, int64(10), e.Position())
}

func TestStepsPerMM(t *testing.T) {
	assert.InDelta(t, 100.0, StepsPerMM(32, 200, 16), 1e-9)
}

func TestStepsPerMMFromSection(t *testing.T) {
	c, err := config.LoadString(`
[mixing_extruder]
rotation_distance: 8
microsteps: 32
full_steps_per_rotation: 400

[bad]
rotation_distance: 0

[defaults]
`)
	require.NoError(t, err)

	sec, _ := c.GetSection("mixing_extruder")
	spm, err := StepsPerMMFromSection(sec)
	require.NoError(t, err)
	assert.InDelta(t, 1600.0, spm, 1e-9)

	sec, _ = c.GetSection("defaults")
	spm, err = StepsPerMMFromSection(sec)
	require.NoError(t, err)
	assert.InDelta(t, 3200/33.5, spm, 1e-9)

	sec, _ = c.GetSection("bad")
	_, err = StepsPerMMFromSection(sec)
	assert.Error(t, err)
}
