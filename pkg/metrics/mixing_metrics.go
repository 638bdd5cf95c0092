// Mixing extruder metrics definitions
//
// Engine state (ratios, active tool, delivered steps, commit count) is
// copied into gauges and counters when scraped, so the step path never
// touches a metric. G-code timings are recorded as commands complete.
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"os"
	goruntime "runtime"
	"strconv"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"

	"mixing-extruder/pkg/mixing"
)

// MixingMetrics holds the metrics of one mixing extruder.
type MixingMetrics struct {
	Commits      *Counter
	ActiveTool   *Gauge
	Ratio        *Gauge
	StepperSteps *Gauge

	GCodeCommandsTotal *Counter
	GCodeErrorsTotal   *Counter
	GCodeDuration      *Histogram

	HostUptime   *Gauge
	GoGoroutines *Gauge
	GoMemoryHeap *Gauge
	ProcessCPU   *Gauge
	ProcessRSS   *Gauge

	// proc is nil when the platform cannot report on this process.
	proc      *process.Process
	mixer     *mixing.Mixer
	startTime time.Time
	registry  *Registry

	// sampleMu serializes Sample so counter deltas are applied once.
	sampleMu sync.Mutex
}

// NewMixingMetrics creates and registers the metrics for m. A nil mixer is
// allowed; Sample then only refreshes host metrics.
func NewMixingMetrics(m *mixing.Mixer) *MixingMetrics {
	mm := &MixingMetrics{
		mixer:     m,
		startTime: time.Now(),
		registry:  NewRegistry(),
	}

	mm.Commits = NewCounter("mixer_commits_total",
		"Commits that changed a virtual tool's mix")
	mm.ActiveTool = NewGauge("mixer_active_tool",
		"Index of the virtual tool feeding the distributor")
	mm.Ratio = NewGauge("mixer_ratio",
		"Committed mix ratio per virtual tool and stepper")
	mm.StepperSteps = NewGauge("mixer_stepper_steps",
		"Logical extrusion steps delivered to each stepper")

	mm.GCodeCommandsTotal = NewCounter("mixer_gcode_commands_total",
		"G-code commands executed")
	mm.GCodeErrorsTotal = NewCounter("mixer_gcode_errors_total",
		"G-code commands that returned an error")
	mm.GCodeDuration = NewHistogram("mixer_gcode_duration_seconds",
		"G-code command execution time", DefaultBuckets())

	mm.HostUptime = NewGauge("mixer_host_uptime_seconds",
		"Seconds since the host started")
	mm.GoGoroutines = NewGauge("mixer_go_goroutines",
		"Number of goroutines")
	mm.GoMemoryHeap = NewGauge("mixer_go_memory_heap_bytes",
		"Heap bytes allocated and in use")
	mm.ProcessCPU = NewGauge("mixer_process_cpu_percent",
		"CPU use of the host process since it started")
	mm.ProcessRSS = NewGauge("mixer_process_resident_bytes",
		"Resident memory of the host process")

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		mm.proc = p
	}

	for _, metric := range []Metric{
		mm.Commits, mm.ActiveTool, mm.Ratio, mm.StepperSteps,
		mm.GCodeCommandsTotal, mm.GCodeErrorsTotal, mm.GCodeDuration,
		mm.HostUptime, mm.GoGoroutines, mm.GoMemoryHeap,
		mm.ProcessCPU, mm.ProcessRSS,
	} {
		mm.registry.MustRegister(metric)
	}
	return mm
}

// Sample copies the mixer's current state into the metrics.
func (mm *MixingMetrics) Sample() {
	mm.sampleMu.Lock()
	defer mm.sampleMu.Unlock()

	var ms goruntime.MemStats
	goruntime.ReadMemStats(&ms)
	mm.GoGoroutines.Set(nil, float64(goruntime.NumGoroutine()))
	mm.GoMemoryHeap.Set(nil, float64(ms.HeapAlloc))
	mm.HostUptime.Set(nil, time.Since(mm.startTime).Seconds())
	if mm.proc != nil {
		if cpu, err := mm.proc.CPUPercent(); err == nil {
			mm.ProcessCPU.Set(nil, cpu)
		}
		if mem, err := mm.proc.MemoryInfo(); err == nil {
			mm.ProcessRSS.Set(nil, float64(mem.RSS))
		}
	}

	m := mm.mixer
	if m == nil {
		return
	}
	if n := m.Commits(); n > mm.Commits.Get(nil) {
		mm.Commits.Add(nil, n-mm.Commits.Get(nil))
	}
	mm.ActiveTool.Set(nil, float64(m.ActiveTool()))

	for i, steps := range m.Delivered() {
		mm.StepperSteps.Set(stepperLabels(i), float64(steps))
	}
	for tool := 0; tool < m.Tools(); tool++ {
		row, _ := m.Row(tool)
		for i, r := range row {
			l := stepperLabels(i)
			l["tool"] = strconv.Itoa(tool)
			mm.Ratio.Set(l, r)
		}
	}
}

func stepperLabels(i int) Labels {
	return Labels{"stepper": string(mixing.Letter(i))}
}

// ObserveGCode records one finished command. Its signature matches
// gcode.Observer.
func (mm *MixingMetrics) ObserveGCode(name string, elapsed time.Duration, err error) {
	l := Labels{"cmd": name}
	mm.GCodeCommandsTotal.Inc(l)
	if err != nil {
		mm.GCodeErrorsTotal.Inc(l)
	}
	mm.GCodeDuration.Observe(l, elapsed.Seconds())
}

// Gather samples the mixer and returns all metrics in Prometheus text
// format.
func (mm *MixingMetrics) Gather() string {
	mm.Sample()
	return mm.registry.Gather()
}

// Registry returns the internal registry
func (mm *MixingMetrics) Registry() *Registry {
	return mm.registry
}
