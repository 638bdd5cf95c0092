package mixing

// SetWeight stores a raw weight for one stepper in the collector.
// Indices outside [0, Steppers) are ignored. Negative weights are kept as
// given and count as zero when committed.
func (m *Mixer) SetWeight(index int, value float64) {
	if index < 0 || index >= m.steppers {
		m.logger.WithField("index", index).Debug("weight index out of range, ignored")
		return
	}
	m.cfgMu.Lock()
	m.collector[index] = value
	m.cfgMu.Unlock()
}

// Collector returns a copy of the uncommitted weights.
func (m *Mixer) Collector() []float64 {
	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()
	out := make([]float64, m.steppers)
	copy(out, m.collector[:m.steppers])
	return out
}

// ClearCollector zeroes every uncommitted weight.
func (m *Mixer) ClearCollector() {
	m.cfgMu.Lock()
	m.collector = [MaxSteppers]float64{}
	m.cfgMu.Unlock()
}
