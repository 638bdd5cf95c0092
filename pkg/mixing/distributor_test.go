package mixing

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setMix(t *testing.T, m *Mixer, tool int, weights ...float64) {
	t.Helper()
	require.True(t, m.CommitWeights(tool, weights))
}

func TestDistributorEvenQuarter(t *testing.T) {
	m := newMixer(t, 4, 1)
	var counts [4]int
	for k := 0; k < 10000; k++ {
		counts[m.NextStepper()]++
	}
	for i, c := range counts {
		assert.GreaterOrEqual(t, c, 2499, "stepper %d", i)
		assert.LessOrEqual(t, c, 2501, "stepper %d", i)
	}
}

func TestDistributorThirtySeventy(t *testing.T) {
	m := newMixer(t, 2, 1)
	setMix(t, m, 0, 0.3, 0.7)

	var counts [2]int
	for k := 0; k < 10000; k++ {
		counts[m.NextStepper()]++
	}
	assert.InDelta(t, 3000, counts[0], 1)
	assert.InDelta(t, 7000, counts[1], 1)
}

func TestDistributorPrefixBound(t *testing.T) {
	mixes := [][]float64{
		{1, 1},
		{0.3, 0.7},
		{1, 1, 1},
		{1, 2, 3, 4},
		{5, 0, 3, 0, 1},
		{1, 1, 1, 1, 1, 1, 1, 1},
		{0.01, 0.99},
		{2, 3, 5, 7, 11, 13, 17, 19},
	}
	for _, mix := range mixes {
		m := newMixer(t, len(mix), 1)
		setMix(t, m, 0, mix...)
		row, _ := m.Row(0)

		counts := make([]int, len(mix))
		for k := 1; k <= 5000; k++ {
			counts[m.NextStepper()]++
			for i, r := range row {
				want := math.Round(r * float64(k))
				if math.Abs(float64(counts[i])-want) > 1 {
					t.Fatalf("mix %v: after %d steps stepper %d has %d, want %v +/- 1", mix, k, i, counts[i], want)
				}
			}
		}
	}
}

func TestDistributorNeverPicksZeroRatio(t *testing.T) {
	m := newMixer(t, 3, 2)
	setMix(t, m, 0, 1, 0, 1)
	setMix(t, m, 1, 0, 1, 0)

	for k := 0; k < 1000; k++ {
		assert.NotEqual(t, 1, m.NextStepper())
	}

	// Residuals carried over from tool 0 must not leak into tool 1's
	// zero-ratio steppers, and vice versa.
	m.Select(1)
	for k := 0; k < 1000; k++ {
		require.Equal(t, 1, m.NextStepper())
	}
	m.Select(0)
	for k := 0; k < 1000; k++ {
		require.NotEqual(t, 1, m.NextStepper())
	}
}

func TestDistributorSingleStepper(t *testing.T) {
	m := newMixer(t, 4, 1)
	setMix(t, m, 0, 0, 0, 2, 0)
	for k := 0; k < 100; k++ {
		require.Equal(t, 2, m.NextStepper())
	}
	assert.Equal(t, []uint64{0, 0, 100, 0}, m.Delivered())
}

func TestDistributorTiesGoToLowestIndex(t *testing.T) {
	m := newMixer(t, 2, 1)
	assert.Equal(t, 0, m.NextStepper())
	assert.Equal(t, 1, m.NextStepper())
	assert.Equal(t, 0, m.NextStepper())
}

// tool 0 and tool 1 share the same even mix; after one step on tool 0 the
// residuals favour stepper 1, unless they are cleared on the switch.
func switchScenario(t *testing.T, reset bool) int {
	m, err := New(Config{Steppers: 2, Tools: 2, ResetOnToolChange: reset})
	require.NoError(t, err)

	require.Equal(t, 0, m.NextStepper())
	m.Select(1)
	return m.NextStepper()
}

func TestToolSwitchCarriesResiduals(t *testing.T) {
	assert.Equal(t, 1, switchScenario(t, false))
}

func TestToolSwitchResetsResiduals(t *testing.T) {
	assert.Equal(t, 0, switchScenario(t, true))
}

// switchStream steps pre times on tool 0, switches to tool 1 and returns
// the largest gap between a stepper's count and its target over every
// prefix of the following steps. The target is r*K when carrying and
// round(r*K) when residuals are reset.
func switchStream(t *testing.T, reset bool, from, to []float64, pre, steps int) float64 {
	t.Helper()
	m, err := New(Config{Steppers: len(from), Tools: 2, ResetOnToolChange: reset})
	require.NoError(t, err)
	setMix(t, m, 0, from...)
	setMix(t, m, 1, to...)

	for k := 0; k < pre; k++ {
		m.NextStepper()
	}
	m.Select(1)
	row, _ := m.Row(1)

	counts := make([]int, len(to))
	var worst float64
	for k := 1; k <= steps; k++ {
		counts[m.NextStepper()]++
		for i, r := range row {
			want := r * float64(k)
			if reset {
				want = math.Round(want)
			}
			worst = math.Max(worst, math.Abs(float64(counts[i])-want))
		}
	}
	return worst
}

var switchMixes = []struct{ from, to []float64 }{
	{[]float64{0.3, 0.7}, []float64{0.9, 0.1}},
	{[]float64{0.01, 0.99}, []float64{0.99, 0.01}},
	{[]float64{1, 0, 0}, []float64{0, 1, 1}},
	{[]float64{1, 2, 3, 4}, []float64{4, 0, 1, 0}},
	{[]float64{2, 3, 5, 7, 11, 13, 17, 19}, []float64{1, 1, 1, 1, 1, 1, 1, 1}},
}

// With carried residuals every prefix after a switch stays within two
// steps of the new mix.
func TestToolSwitchCarryStaysBounded(t *testing.T) {
	for _, mix := range switchMixes {
		for pre := 0; pre < 64; pre++ {
			worst := switchStream(t, false, mix.from, mix.to, pre, 2000)
			require.LessOrEqual(t, worst, 2.0, "%v -> %v after %d steps", mix.from, mix.to, pre)
		}
	}
}

func TestToolSwitchResetKeepsRoundingBound(t *testing.T) {
	for _, mix := range switchMixes {
		for pre := 0; pre < 64; pre++ {
			worst := switchStream(t, true, mix.from, mix.to, pre, 2000)
			require.LessOrEqual(t, worst, 1.0, "%v -> %v after %d steps", mix.from, mix.to, pre)
		}
	}
}

func TestReselectSameToolKeepsResiduals(t *testing.T) {
	m, err := New(Config{Steppers: 2, Tools: 2, ResetOnToolChange: true})
	require.NoError(t, err)
	require.Equal(t, 0, m.NextStepper())
	m.Select(0)
	assert.Equal(t, 1, m.NextStepper())
}

func TestResetDistributor(t *testing.T) {
	m := newMixer(t, 2, 1)
	require.Equal(t, 0, m.NextStepper())
	m.ResetDistributor()
	assert.Equal(t, 0, m.NextStepper())
}

func TestNextStepperDoesNotAllocate(t *testing.T) {
	m := newMixer(t, 8, 2)
	setMix(t, m, 1, 1, 2, 3, 4, 5, 6, 7, 8)
	m.Select(1)
	allocs := testing.AllocsPerRun(10000, func() {
		m.NextStepper()
	})
	assert.Zero(t, allocs)
}

func TestConcurrentCommitsDuringStepping(t *testing.T) {
	m := newMixer(t, 3, 2)
	setMix(t, m, 0, 1, 0, 0)
	setMix(t, m, 1, 0, 1, 0)

	const steps = 200000
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			m.Select(i % 2)
			m.CommitWeights(i%2, []float64{float64(i % 3), float64((i + 1) % 3), 0})
			m.SetWeight(i%3, float64(i))
		}
	}()

	for k := 0; k < steps; k++ {
		s := m.NextStepper()
		// Stepper 2 is zero in every row ever committed.
		if s < 0 || s > 1 {
			close(done)
			wg.Wait()
			t.Fatalf("step %d went to stepper %d", k, s)
		}
	}
	close(done)
	wg.Wait()

	var total uint64
	for _, d := range m.Delivered() {
		total += d
	}
	assert.Equal(t, uint64(steps), total)
}
