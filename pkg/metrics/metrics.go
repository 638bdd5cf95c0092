// Metrics collection in the Prometheus text exposition format.
//
// Counters, gauges and histograms keep one series per label set. Gather
// renders every registered metric with series sorted by label key so the
// output is stable between scrapes.
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MetricType represents the type of metric
type MetricType int

const (
	TypeCounter MetricType = iota
	TypeGauge
	TypeHistogram
)

func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	case TypeHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// Labels represents metric labels as key-value pairs
type Labels map[string]string

func (l Labels) sortedKeys() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Key returns a canonical identity for the label set.
func (l Labels) Key() string {
	var sb strings.Builder
	for i, k := range l.sortedKeys() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(l[k])
	}
	return sb.String()
}

// String renders the labels as {k="v",...}, or "" when empty.
func (l Labels) String() string {
	return l.with("", "")
}

// with renders the labels plus one extra pair (used for "le").
func (l Labels) with(extraKey, extraValue string) string {
	if len(l) == 0 && extraKey == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte('{')
	n := 0
	for _, k := range l.sortedKeys() {
		if n > 0 {
			sb.WriteByte(',')
		}
		writePair(&sb, k, l[k])
		n++
	}
	if extraKey != "" {
		if n > 0 {
			sb.WriteByte(',')
		}
		writePair(&sb, extraKey, extraValue)
	}
	sb.WriteByte('}')
	return sb.String()
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func writePair(sb *strings.Builder, k, v string) {
	sb.WriteString(k)
	sb.WriteString(`="`)
	sb.WriteString(labelEscaper.Replace(v))
	sb.WriteByte('"')
}

func (l Labels) clone() Labels {
	out := make(Labels, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Metric is the interface for all metric types
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	Write(sb *strings.Builder)
}

// family is the shared part of every metric: a name, help text and one
// series per label set.
type family[V any] struct {
	name string
	help string

	mu     sync.RWMutex
	series map[string]*series[V]
}

type series[V any] struct {
	labels Labels
	value  V
}

func (f *family[V]) init(name, help string) {
	f.name, f.help = name, help
	f.series = make(map[string]*series[V])
}

// get returns the series for labels, creating it with init when missing.
func (f *family[V]) get(labels Labels, init func() V) *series[V] {
	key := labels.Key()
	f.mu.RLock()
	s, ok := f.series[key]
	f.mu.RUnlock()
	if ok {
		return s
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok = f.series[key]; !ok {
		s = &series[V]{labels: labels.clone(), value: init()}
		f.series[key] = s
	}
	return s
}

func (f *family[V]) lookup(labels Labels) (*series[V], bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.series[labels.Key()]
	return s, ok
}

// sorted returns the series ordered by label key.
func (f *family[V]) sorted() []*series[V] {
	f.mu.RLock()
	keys := make([]string, 0, len(f.series))
	for k := range f.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*series[V], len(keys))
	for i, k := range keys {
		out[i] = f.series[k]
	}
	f.mu.RUnlock()
	return out
}

func (f *family[V]) writeHeader(sb *strings.Builder, t MetricType) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, t)
}

func (f *family[V]) Name() string { return f.name }
func (f *family[V]) Help() string { return f.help }

// Counter is a monotonically increasing metric
type Counter struct {
	family[*atomic.Uint64]
}

// NewCounter creates a new counter metric
func NewCounter(name, help string) *Counter {
	c := &Counter{}
	c.init(name, help)
	return c
}

func newUint64() *atomic.Uint64 { return new(atomic.Uint64) }

func (c *Counter) Type() MetricType { return TypeCounter }

// Inc increments the counter by 1
func (c *Counter) Inc(labels Labels) {
	c.Add(labels, 1)
}

// Add increments the counter by delta.
func (c *Counter) Add(labels Labels, delta uint64) {
	c.get(labels, newUint64).value.Add(delta)
}

// Get returns the current counter value for labels
func (c *Counter) Get(labels Labels) uint64 {
	if s, ok := c.lookup(labels); ok {
		return s.value.Load()
	}
	return 0
}

func (c *Counter) Write(sb *strings.Builder) {
	c.writeHeader(sb, TypeCounter)
	for _, s := range c.sorted() {
		fmt.Fprintf(sb, "%s%s %d\n", c.name, s.labels, s.value.Load())
	}
}

// Gauge is a metric that can go up and down
type Gauge struct {
	family[*atomic.Uint64] // float64 bits
}

// NewGauge creates a new gauge metric
func NewGauge(name, help string) *Gauge {
	g := &Gauge{}
	g.init(name, help)
	return g
}

func (g *Gauge) Type() MetricType { return TypeGauge }

// Set sets the gauge to the given value
func (g *Gauge) Set(labels Labels, value float64) {
	g.get(labels, newUint64).value.Store(math.Float64bits(value))
}

// Add adds delta to the gauge.
func (g *Gauge) Add(labels Labels, delta float64) {
	v := g.get(labels, newUint64).value
	for {
		old := v.Load()
		if v.CompareAndSwap(old, math.Float64bits(math.Float64frombits(old)+delta)) {
			return
		}
	}
}

// Get returns the current gauge value for labels
func (g *Gauge) Get(labels Labels) float64 {
	if s, ok := g.lookup(labels); ok {
		return math.Float64frombits(s.value.Load())
	}
	return 0
}

func (g *Gauge) Write(sb *strings.Builder) {
	g.writeHeader(sb, TypeGauge)
	for _, s := range g.sorted() {
		fmt.Fprintf(sb, "%s%s %s\n", g.name, s.labels, formatFloat(math.Float64frombits(s.value.Load())))
	}
}

// Histogram tracks the distribution of observations
type Histogram struct {
	family[*histogramValue]
	buckets []float64
}

type histogramValue struct {
	mu     sync.Mutex
	count  uint64
	sum    float64
	counts []uint64 // per bucket, not cumulative
}

// NewHistogram creates a new histogram metric with the given upper bounds.
func NewHistogram(name, help string, buckets []float64) *Histogram {
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	h := &Histogram{buckets: sorted}
	h.init(name, help)
	return h
}

// DefaultBuckets returns default histogram buckets for latency metrics
func DefaultBuckets() []float64 {
	return []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1}
}

func (h *Histogram) Type() MetricType { return TypeHistogram }

func (h *Histogram) newValue() *histogramValue {
	return &histogramValue{counts: make([]uint64, len(h.buckets))}
}

// Observe records a value in the histogram
func (h *Histogram) Observe(labels Labels, value float64) {
	hv := h.get(labels, h.newValue).value
	idx := sort.SearchFloat64s(h.buckets, value)
	hv.mu.Lock()
	hv.count++
	hv.sum += value
	if idx < len(hv.counts) {
		hv.counts[idx]++
	}
	hv.mu.Unlock()
}

// Timer returns a function that records the elapsed time when called
func (h *Histogram) Timer(labels Labels) func() {
	start := time.Now()
	return func() {
		h.Observe(labels, time.Since(start).Seconds())
	}
}

// HistogramSnapshot is a point-in-time copy of one series. Buckets are
// cumulative, keyed by upper bound.
type HistogramSnapshot struct {
	Count   uint64
	Sum     float64
	Buckets map[float64]uint64
}

// GetSnapshot returns a snapshot of histogram values for the given labels
func (h *Histogram) GetSnapshot(labels Labels) HistogramSnapshot {
	snap := HistogramSnapshot{Buckets: make(map[float64]uint64, len(h.buckets))}
	s, ok := h.lookup(labels)
	if !ok {
		return snap
	}
	hv := s.value
	hv.mu.Lock()
	defer hv.mu.Unlock()
	snap.Count, snap.Sum = hv.count, hv.sum
	var cumulative uint64
	for i, bound := range h.buckets {
		cumulative += hv.counts[i]
		snap.Buckets[bound] = cumulative
	}
	return snap
}

func (h *Histogram) Write(sb *strings.Builder) {
	h.writeHeader(sb, TypeHistogram)
	for _, s := range h.sorted() {
		snap := h.GetSnapshot(s.labels)
		for _, bound := range h.buckets {
			fmt.Fprintf(sb, "%s_bucket%s %d\n", h.name, s.labels.with("le", formatFloat(bound)), snap.Buckets[bound])
		}
		fmt.Fprintf(sb, "%s_bucket%s %d\n", h.name, s.labels.with("le", "+Inf"), snap.Count)
		fmt.Fprintf(sb, "%s_sum%s %s\n", h.name, s.labels, formatFloat(snap.Sum))
		fmt.Fprintf(sb, "%s_count%s %d\n", h.name, s.labels, snap.Count)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Registry holds metrics in registration order.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
	order   []string
}

// NewRegistry creates a new metrics registry
func NewRegistry() *Registry {
	return &Registry{
		metrics: make(map[string]Metric),
	}
}

// Register adds a metric to the registry
func (r *Registry) Register(metric Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := metric.Name()
	if _, exists := r.metrics[name]; exists {
		return fmt.Errorf("metric %q already registered", name)
	}
	r.metrics[name] = metric
	r.order = append(r.order, name)
	return nil
}

// MustRegister adds a metric and panics on error
func (r *Registry) MustRegister(metric Metric) {
	if err := r.Register(metric); err != nil {
		panic(err)
	}
}

// Get returns a metric by name
func (r *Registry) Get(name string) Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics[name]
}

// Gather collects all metrics in Prometheus text format
func (r *Registry) Gather() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sb strings.Builder
	for _, name := range r.order {
		r.metrics[name].Write(&sb)
	}
	return sb.String()
}
