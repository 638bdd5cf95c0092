package presets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mixing-extruder/pkg/errors"
	"mixing-extruder/pkg/mixing"
)

func newMixer(t *testing.T, steppers, tools int) *mixing.Mixer {
	t.Helper()
	m, err := mixing.New(mixing.Config{Steppers: steppers, Tools: tools})
	require.NoError(t, err)
	return m
}

func TestSnapshotApplyRoundTrip(t *testing.T) {
	src := newMixer(t, 3, 2)
	src.CommitWeights(1, []float64{1, 0, 3})
	src.Select(1)

	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, Save(path, Snapshot(src)))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Steppers)
	assert.Equal(t, 1, f.ActiveTool)
	require.Len(t, f.Tools, 2)
	assert.InDeltaSlice(t, []float64{25, 0, 75}, f.Tools[1].Weights, 1e-9)

	dst := newMixer(t, 3, 2)
	require.NoError(t, Apply(dst, f))
	assert.Equal(t, 1, dst.ActiveTool())
	for tool := 0; tool < 2; tool++ {
		want, _ := src.Row(tool)
		got, _ := dst.Row(tool)
		assert.InDeltaSlice(t, want, got, 1e-9, "tool %d", tool)
	}
}

func TestLoadHandWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	data := `
steppers: 2
active_tool: 0
tools:
  - tool: 0
    weights: [1, 3]
  - tool: 4
    weights: [1, 1]
  - tool: 1
    weights: [0, 0]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	m := newMixer(t, 2, 2)
	require.True(t, m.CommitWeights(1, []float64{1, 0}))
	require.NoError(t, LoadInto(path, m))

	row, _ := m.Row(0)
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, row, 1e-9)
	// Zero-sum weights leave tool 1 alone; tool 4 does not exist.
	row, _ = m.Row(1)
	assert.InDeltaSlice(t, []float64{1, 0}, row, 1e-9)
}

func TestApplyStepperMismatch(t *testing.T) {
	m := newMixer(t, 2, 1)
	err := Apply(m, &File{Steppers: 3, Tools: []Tool{{Tool: 0, Weights: []float64{1, 0, 0}}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPresetIO))

	row, _ := m.Row(0)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, row, 1e-9)
}

func TestApplySkipsShortRows(t *testing.T) {
	m := newMixer(t, 2, 2)
	require.NoError(t, Apply(m, &File{
		Steppers:   2,
		ActiveTool: 7,
		Tools:      []Tool{{Tool: 0, Weights: []float64{1}}},
	}))
	row, _ := m.Row(0)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, row, 1e-9)
	assert.Equal(t, 0, m.ActiveTool())
}

func TestLoadIntoMissingFile(t *testing.T) {
	m := newMixer(t, 2, 1)
	assert.NoError(t, LoadInto(filepath.Join(t.TempDir(), "nope.yaml"), m))
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPresetIO))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("steppers: [oops\n"), 0o644))
	_, err = Load(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPresetIO))

	m := newMixer(t, 2, 1)
	err = LoadInto(bad, m)
	assert.True(t, errors.Is(err, errors.ErrPresetIO))
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.yaml")
	require.NoError(t, Save(path, Snapshot(newMixer(t, 2, 1))))
	require.NoError(t, Save(path, Snapshot(newMixer(t, 2, 1))))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "presets.yaml", entries[0].Name())
}
