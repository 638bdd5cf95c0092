package mixing

// distributor holds the per-stepper residuals of the error-diffusion
// algorithm. It is owned by the goroutine calling NextStepper.
type distributor struct {
	acc      [MaxSteppers]int64
	resetSeq uint64
}

// NextStepper returns the stepper that should receive the next logical
// extrusion step.
//
// Every call adds each stepper's ratio to its residual, picks the largest
// residual (lowest index on ties) and charges it one full step. Over any
// run of K calls stepper i receives round(ratio[i]*K) +/- 1 steps, and a
// stepper whose ratio is zero is never picked.
//
// NextStepper must only be called from one goroutine at a time. It does not
// lock, block or allocate, and it sees committed rows and tool switches
// without tearing.
func (m *Mixer) NextStepper() int {
	d := &m.dist
	if seq := m.resetSeq.Load(); seq != d.resetSeq {
		d.resetSeq = seq
		d.acc = [MaxSteppers]int64{}
	}

	r := m.rows[m.active.Load()].Load()
	best := -1
	var bestAcc int64
	for i := 0; i < m.steppers; i++ {
		w := r.weight[i]
		if w == 0 {
			continue
		}
		d.acc[i] += w
		if best < 0 || d.acc[i] > bestAcc {
			best, bestAcc = i, d.acc[i]
		}
	}
	d.acc[best] -= fixedOne
	m.delivered[best].Add(1)
	return best
}

// ResetDistributor asks the step path to clear its residuals before the
// next step. It does not touch the residuals itself.
func (m *Mixer) ResetDistributor() {
	m.resetSeq.Add(1)
}

// Delivered returns how many steps each stepper has received since the
// mixer was created.
func (m *Mixer) Delivered() []uint64 {
	out := make([]uint64, m.steppers)
	for i := range out {
		out[i] = m.delivered[i].Load()
	}
	return out
}
