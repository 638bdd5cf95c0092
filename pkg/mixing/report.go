package mixing

import (
	"io"
	"math"

	"mixing-extruder/pkg/pool"
)

// StepperLetters names the mixing steppers in G-code and reports.
const StepperLetters = "ABCDHIJK"

// Letter returns the G-code letter of a stepper.
func Letter(stepper int) byte {
	return StepperLetters[stepper]
}

// Percentages returns a tool's ratios as percentages rounded to one
// decimal place. It reads the table without changing anything.
func (m *Mixer) Percentages(tool int) ([]float64, bool) {
	ratio, ok := m.Row(tool)
	if !ok {
		return nil, false
	}
	for i, r := range ratio {
		ratio[i] = math.Round(r*1000) / 10
	}
	return ratio, true
}

// ReportLine formats one tool as "V<tool>:  A<pct>  B<pct> ...".
func (m *Mixer) ReportLine(tool int) (string, bool) {
	pct, ok := m.Percentages(tool)
	if !ok {
		return "", false
	}
	b := pool.GetByteBuffer()
	defer pool.PutByteBuffer(b)

	b.WriteByte('V')
	b.AppendInt(tool)
	b.WriteByte(':')
	for i, p := range pct {
		b.WriteString("  ")
		b.WriteByte(Letter(i))
		b.AppendFloat(p, 1)
	}
	return b.String(), true
}

// ReportLines formats every tool, in tool order.
func (m *Mixer) ReportLines() []string {
	lines := make([]string, 0, m.Tools())
	for tool := 0; tool < m.Tools(); tool++ {
		line, _ := m.ReportLine(tool)
		lines = append(lines, line)
	}
	return lines
}

// WriteReport writes every tool's line to w.
func (m *Mixer) WriteReport(w io.Writer) error {
	for _, line := range m.ReportLines() {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}
