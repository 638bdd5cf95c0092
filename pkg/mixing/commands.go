package mixing

import (
	"mixing-extruder/pkg/gcode"
)

// RegisterCommands binds the mixing G-code commands to m:
//
//	M163 S<index> P<weight>       set one collector weight
//	M164 [S<tool>]                 normalize the collector into a tool
//	M165 [A..K<weight>] [R]        set every weight at once, commit the
//	                               active tool, optionally report
func RegisterCommands(d *gcode.Dispatcher, m *Mixer) {
	d.Register("M163", "Set a mix weight for one stepper", m.cmdM163)
	d.Register("M164", "Store the collected weights as a virtual tool", m.cmdM164)
	d.Register("M165", "Set and commit a full mix, R to report", m.cmdM165)
}

func (m *Mixer) cmdM163(cmd *gcode.Command, _ gcode.Responder) error {
	index, err := cmd.Int("S", 0)
	if err != nil {
		return err
	}
	weight, err := cmd.Float("P", 0)
	if err != nil {
		return err
	}
	m.SetWeight(index, weight)
	return nil
}

func (m *Mixer) cmdM164(cmd *gcode.Command, _ gcode.Responder) error {
	tool := m.ActiveTool()
	// A single-tool mixer always stores into tool 0.
	if m.Tools() > 1 {
		var err error
		if tool, err = cmd.Int("S", tool); err != nil {
			return err
		}
	} else {
		tool = 0
	}
	m.Commit(tool)
	return nil
}

func (m *Mixer) cmdM165(cmd *gcode.Command, r gcode.Responder) error {
	var weights [MaxSteppers]float64
	present := false
	for i := 0; i < m.steppers; i++ {
		key := StepperLetters[i : i+1]
		if !cmd.HasValue(key) {
			continue
		}
		w, err := cmd.Float(key, 0)
		if err != nil {
			return err
		}
		weights[i] = w
		present = true
	}

	if present {
		m.cfgMu.Lock()
		m.collector = weights
		m.commitLocked(m.ActiveTool(), m.collector[:m.steppers])
		m.cfgMu.Unlock()
	}

	if cmd.Has("R") {
		for _, line := range m.ReportLines() {
			r.Respond(line)
		}
	}
	return nil
}
