// Mixing extruder engine
//
// Blends the output of several extruder steppers into one nozzle. Raw
// weights are collected, normalized into per-tool ratio vectors, and a
// step distributor hands each logical extrusion step to exactly one
// stepper so that every stepper's share tracks its ratio.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package mixing

import (
	"sync"
	"sync/atomic"

	"mixing-extruder/pkg/errors"
	"mixing-extruder/pkg/log"
)

const (
	// MinSteppers and MaxSteppers bound the number of mixing steppers.
	MinSteppers = 2
	MaxSteppers = 8

	// sumEpsilon is the smallest weight total a commit will normalize.
	sumEpsilon = 1e-6
)

// Config holds the fixed dimensions of a mixing extruder.
type Config struct {
	// Steppers is the number of drive steppers feeding the nozzle.
	Steppers int

	// Tools is the number of virtual tools (rows of ratios).
	Tools int

	// ResetOnToolChange clears the distributor residuals whenever the
	// active tool changes. When false, residuals carry over.
	ResetOnToolChange bool

	// Mixes holds optional start-up weights per tool. Tools without an
	// entry, or whose weights sum to zero, start as an even mix.
	Mixes map[int][]float64
}

// DefaultConfig returns a two-stepper, single-tool configuration.
func DefaultConfig() Config {
	return Config{
		Steppers: 2,
		Tools:    1,
	}
}

// Validate checks the stepper and tool counts.
func (c Config) Validate() error {
	if c.Steppers < MinSteppers || c.Steppers > MaxSteppers {
		return errors.MixingConfigError("steppers", c.Steppers, "must be between 2 and 8")
	}
	if c.Tools < 1 {
		return errors.MixingConfigError("virtual_tools", c.Tools, "must be at least 1")
	}
	for tool := range c.Mixes {
		if tool < 0 || tool >= c.Tools {
			return errors.MixingConfigError("tool_weights", tool, "names a tool beyond virtual_tools")
		}
	}
	return nil
}

// Mixer is one mixing extruder.
//
// Configuration methods (SetWeight, Commit, Select, ...) may be called from
// any goroutine. NextStepper belongs to a single step-request goroutine and
// never blocks or allocates.
type Mixer struct {
	steppers      int
	resetOnSwitch bool

	// cfgMu serializes the configuration context. The step path never takes it.
	cfgMu     sync.Mutex
	collector [MaxSteppers]float64

	rows   []atomic.Pointer[row]
	active atomic.Int32

	// resetSeq is bumped to ask the step path to clear its residuals.
	resetSeq atomic.Uint64

	dist      distributor
	delivered [MaxSteppers]atomic.Uint64
	commits   atomic.Uint64

	logger *log.Logger
}

// New creates a mixer with every tool set to an even mix.
func New(cfg Config) (*Mixer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Mixer{
		steppers:      cfg.Steppers,
		resetOnSwitch: cfg.ResetOnToolChange,
		rows:          make([]atomic.Pointer[row], cfg.Tools),
		logger:        log.GetLogger("mixing"),
	}
	uniform := uniformRow(cfg.Steppers)
	for i := range m.rows {
		m.rows[i].Store(uniform)
	}
	for tool, weights := range cfg.Mixes {
		m.CommitWeights(tool, weights)
	}
	return m, nil
}

// Steppers returns the number of mixing steppers.
func (m *Mixer) Steppers() int {
	return m.steppers
}

// Tools returns the number of virtual tools.
func (m *Mixer) Tools() int {
	return len(m.rows)
}

// ResetOnToolChange reports the configured tool-switch policy.
func (m *Mixer) ResetOnToolChange() bool {
	return m.resetOnSwitch
}

func (m *Mixer) validTool(tool int) bool {
	return tool >= 0 && tool < len(m.rows)
}
