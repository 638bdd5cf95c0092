package mixing

import (
	"math"

	"mixing-extruder/pkg/log"
)

// fixedOne is the fixed-point value of a full step. Ratios are quantized to
// integers summing to exactly fixedOne so the distributor's residuals never
// drift, however many steps are taken.
const fixedOne int64 = 1 << 30

// row is one committed virtual tool. Rows are immutable once published.
type row struct {
	ratio  [MaxSteppers]float64
	weight [MaxSteppers]int64
}

func uniformRow(n int) *row {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	r, _ := normalize(w)
	return r
}

// normalize converts raw weights into a row. Negative weights count as
// zero. It reports false when the weights total no more than sumEpsilon
// or any weight is infinite.
func normalize(weights []float64) (*row, bool) {
	// Scaling by the largest weight keeps the sum finite even when the raw
	// weights would overflow float64.
	var peak float64
	for _, w := range weights {
		if w > peak {
			peak = w
		}
	}
	if !(peak > 0) || math.IsInf(peak, 0) {
		return nil, false
	}
	var sum float64
	for _, w := range weights {
		if w > 0 {
			sum += w / peak
		}
	}
	if !(sum*peak > sumEpsilon) {
		return nil, false
	}

	r := &row{}
	for i, w := range weights {
		if w > 0 {
			r.ratio[i] = w / peak / sum
		}
	}
	r.quantize(len(weights))
	return r, true
}

// quantize fills weight from ratio using largest remainders, so the integer
// weights sum to exactly fixedOne and zero ratios stay zero.
func (r *row) quantize(n int) {
	var total int64
	var frac [MaxSteppers]float64
	for i := 0; i < n; i++ {
		exact := r.ratio[i] * float64(fixedOne)
		whole := math.Floor(exact)
		r.weight[i] = int64(whole)
		frac[i] = exact - whole
		total += r.weight[i]
	}

	for total < fixedOne {
		best := -1
		for i := 0; i < n; i++ {
			if r.ratio[i] > 0 && (best < 0 || frac[i] > frac[best]) {
				best = i
			}
		}
		r.weight[best]++
		frac[best] = -1
		total++
	}
	for total > fixedOne {
		best := 0
		for i := 1; i < n; i++ {
			if r.weight[i] > r.weight[best] {
				best = i
			}
		}
		r.weight[best]--
		total--
	}
}

// Commit normalizes the collector into the given tool. It reports whether
// the tool changed: out-of-range tools and weights summing to (near) zero
// leave the table untouched.
func (m *Mixer) Commit(tool int) bool {
	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()
	return m.commitLocked(tool, m.collector[:m.steppers])
}

// CommitActive normalizes the collector into the active tool.
func (m *Mixer) CommitActive() bool {
	return m.Commit(m.ActiveTool())
}

// CommitWeights normalizes weights straight into a tool without touching
// the collector. Weights beyond the stepper count are ignored and missing
// ones count as zero.
func (m *Mixer) CommitWeights(tool int, weights []float64) bool {
	var w [MaxSteppers]float64
	copy(w[:m.steppers], weights)
	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()
	return m.commitLocked(tool, w[:m.steppers])
}

func (m *Mixer) commitLocked(tool int, weights []float64) bool {
	if !m.validTool(tool) {
		m.logger.WithField("tool", tool).Debug("commit tool out of range, ignored")
		return false
	}
	r, ok := normalize(weights)
	if !ok {
		m.logger.WithField("tool", tool).Debug("weights sum to zero, mix preserved")
		return false
	}
	// Publishing the pointer is the only write the step path can observe.
	m.rows[tool].Store(r)
	m.commits.Add(1)
	if m.logger.Enabled(log.DEBUG) {
		m.logger.WithFields(log.Fields{"tool": tool, "ratio": r.ratio[:m.steppers]}).Debug("mix committed")
	}
	return true
}

// Commits returns how many commits have changed a tool's mix.
func (m *Mixer) Commits() uint64 {
	return m.commits.Load()
}

// Row returns a copy of a tool's ratios, or false for an unknown tool.
func (m *Mixer) Row(tool int) ([]float64, bool) {
	if !m.validTool(tool) {
		return nil, false
	}
	r := m.rows[tool].Load()
	out := make([]float64, m.steppers)
	copy(out, r.ratio[:m.steppers])
	return out, true
}

// ActiveTool returns the index of the live tool.
func (m *Mixer) ActiveTool() int {
	return int(m.active.Load())
}

// Select makes tool the live tool. Out-of-range tools are ignored.
func (m *Mixer) Select(tool int) {
	if !m.validTool(tool) {
		m.logger.WithField("tool", tool).Debug("select tool out of range, ignored")
		return
	}
	prev := m.active.Swap(int32(tool))
	if int(prev) != tool && m.resetOnSwitch {
		m.resetSeq.Add(1)
	}
	m.logger.WithFields(log.Fields{"tool": tool, "previous": prev}).Debug("tool selected")
}
