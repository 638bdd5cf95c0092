// Package presets persists a mixer's tool table as YAML so that mixes
// survive a restart.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package presets

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mixing-extruder/pkg/errors"
	"mixing-extruder/pkg/log"
	"mixing-extruder/pkg/mixing"
)

// File is the on-disk preset layout:
//
//	steppers: 2
//	active_tool: 0
//	tools:
//	  - tool: 0
//	    weights: [25, 75]
type File struct {
	Steppers   int    `yaml:"steppers"`
	ActiveTool int    `yaml:"active_tool"`
	Tools      []Tool `yaml:"tools"`
}

// Tool is one stored mix. Weights are relative and need not sum to 100.
type Tool struct {
	Tool    int       `yaml:"tool"`
	Weights []float64 `yaml:"weights,flow"`
}

// Load reads a preset file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.PresetError(path, err)
	}
	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, errors.PresetError(path, err)
	}
	return f, nil
}

// Save writes f to path, replacing any existing file atomically.
func Save(path string, f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return errors.PresetError(path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".presets-*.tmp")
	if err != nil {
		return errors.PresetError(path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.PresetError(path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.PresetError(path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.PresetError(path, err)
	}

	log.GetLogger("presets").WithFields(log.Fields{"path": path, "tools": len(f.Tools)}).Info("presets saved")
	return nil
}

// Snapshot captures every tool of m as percentages.
func Snapshot(m *mixing.Mixer) *File {
	f := &File{
		Steppers:   m.Steppers(),
		ActiveTool: m.ActiveTool(),
		Tools:      make([]Tool, 0, m.Tools()),
	}
	for tool := 0; tool < m.Tools(); tool++ {
		row, _ := m.Row(tool)
		for i := range row {
			row[i] *= 100
		}
		f.Tools = append(f.Tools, Tool{Tool: tool, Weights: row})
	}
	return f
}

// Apply commits the stored mixes into m and selects the stored active
// tool. A file written for a different stepper count is rejected before
// anything changes. Tools m does not have are skipped, and zero-sum
// weights leave that tool's mix alone.
func Apply(m *mixing.Mixer, f *File) error {
	if f.Steppers != m.Steppers() {
		return errors.New(errors.ErrPresetIO,
			fmt.Sprintf("preset is for %d steppers, mixer has %d", f.Steppers, m.Steppers())).
			SetContext("steppers", f.Steppers)
	}

	logger := log.GetLogger("presets")
	applied := 0
	for _, t := range f.Tools {
		if len(t.Weights) != f.Steppers {
			logger.WithFields(log.Fields{"tool": t.Tool, "weights": len(t.Weights)}).Warn("preset weight count mismatch, tool skipped")
			continue
		}
		if m.CommitWeights(t.Tool, t.Weights) {
			applied++
		}
	}
	m.Select(f.ActiveTool)
	logger.WithFields(log.Fields{"applied": applied, "active_tool": m.ActiveTool()}).Debug("presets applied")
	return nil
}

// LoadInto reads path and applies it to m. A missing file is not an error.
func LoadInto(path string, m *mixing.Mixer) error {
	f, err := Load(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := Apply(m, f); err != nil {
		return errors.PresetError(path, err)
	}
	return nil
}
