// Package motion turns filament moves into logical extrusion steps and
// hands each one to the stepper chosen by a mixer.
package motion

import (
	"math"
	"sync/atomic"

	"mixing-extruder/pkg/config"
	"mixing-extruder/pkg/mixing"
)

// StepSink receives individual stepper steps.
type StepSink interface {
	Step(stepper int, forward bool)
}

// CountingSink counts steps per stepper and direction. It is safe to read
// while another goroutine is stepping.
type CountingSink struct {
	forward [mixing.MaxSteppers]atomic.Int64
	reverse [mixing.MaxSteppers]atomic.Int64
}

// Step implements StepSink.
func (c *CountingSink) Step(stepper int, forward bool) {
	if forward {
		c.forward[stepper].Add(1)
	} else {
		c.reverse[stepper].Add(1)
	}
}

// Forward returns the forward step count of a stepper.
func (c *CountingSink) Forward(stepper int) int64 {
	return c.forward[stepper].Load()
}

// Reverse returns the reverse step count of a stepper.
func (c *CountingSink) Reverse(stepper int) int64 {
	return c.reverse[stepper].Load()
}

// Net returns forward minus reverse steps of a stepper.
func (c *CountingSink) Net(stepper int) int64 {
	return c.Forward(stepper) - c.Reverse(stepper)
}

// Extruder drives a mixer's steppers from filament moves. It is the single
// caller of Mixer.NextStepper and must not be shared between goroutines.
type Extruder struct {
	Mixer      *mixing.Mixer
	Sink       StepSink
	StepsPerMM float64

	// remainder is the fraction of a step not yet issued.
	remainder float64
	position  int64
}

// Move extrudes mm of filament (negative retracts) and returns the number
// of logical steps issued, negative for a retract. Fractional steps carry
// over to the next move.
func (e *Extruder) Move(mm float64) int {
	exact := mm*e.StepsPerMM + e.remainder
	whole := math.Trunc(exact)
	e.remainder = exact - whole

	steps := int(whole)
	forward := steps > 0
	n := steps
	if n < 0 {
		n = -n
	}
	for i := 0; i < n; i++ {
		e.Sink.Step(e.Mixer.NextStepper(), forward)
	}
	e.position += int64(steps)
	return steps
}

// Position returns the net logical steps issued so far.
func (e *Extruder) Position() int64 {
	return e.position
}

// Stepper geometry defaults used when a section leaves them out.
const (
	DefaultRotationDistance = 33.5
	DefaultMicrosteps       = 16
	DefaultFullSteps        = 200
)

// StepsPerMM returns microsteps per millimetre of filament for a drive
// with the given geometry.
func StepsPerMM(rotationDistance float64, fullSteps, microsteps int) float64 {
	return float64(fullSteps*microsteps) / rotationDistance
}

// StepsPerMMFromSection reads rotation_distance, microsteps and
// full_steps_per_rotation from a config section.
func StepsPerMMFromSection(sec *config.Section) (float64, error) {
	rotation, err := sec.GetFloat("rotation_distance", DefaultRotationDistance)
	if err != nil {
		return 0, err
	}
	if !(rotation > 0) {
		return 0, config.ErrOutOfRange(sec.GetName(), "rotation_distance", rotation, "must be above 0")
	}
	one := 1
	microsteps, err := sec.GetIntWithBounds("microsteps", &one, nil, DefaultMicrosteps)
	if err != nil {
		return 0, err
	}
	fullSteps, err := sec.GetIntWithBounds("full_steps_per_rotation", &one, nil, DefaultFullSteps)
	if err != nil {
		return 0, err
	}
	return StepsPerMM(rotation, fullSteps, microsteps), nil
}
