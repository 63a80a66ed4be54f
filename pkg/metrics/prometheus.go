package metrics

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// handshakeBuckets cover loopback runs in microseconds up to retried
// handshakes over a slow medium.
var handshakeBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15}

// PrometheusRecorder is a Recorder backed by its own Prometheus registry.
type PrometheusRecorder struct {
	mu         sync.RWMutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	registry   *prometheus.Registry
}

// NewPrometheusRecorder creates a new Prometheus recorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		registry:   prometheus.NewRegistry(),
	}
}

// labelKeys returns the sorted label names and a key identifying the vector.
func labelKeys(name string, labels Labels) ([]string, string) {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, name + ";" + strings.Join(keys, ",")
}

// vec finds or registers the vector for name and the label names of labels.
func vec[V prometheus.Collector](r *PrometheusRecorder, vecs map[string]V, name string, labels Labels, create func([]string) V) V {
	names, key := labelKeys(name, labels)
	r.mu.RLock()
	v, ok := vecs[key]
	r.mu.RUnlock()
	if ok {
		return v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := vecs[key]; ok {
		return v
	}
	v = create(names)
	r.registry.MustRegister(v)
	vecs[key] = v
	return v
}

func (r *PrometheusRecorder) IncCounter(name string, labels Labels) {
	c := vec(r, r.counters, name, labels, func(names []string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help[name]}, names)
	})
	c.With(prometheus.Labels(labels)).Inc()
}

func (r *PrometheusRecorder) SetGauge(name string, labels Labels, value float64) {
	g := vec(r, r.gauges, name, labels, func(names []string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help[name]}, names)
	})
	g.With(prometheus.Labels(labels)).Set(value)
}

func (r *PrometheusRecorder) ObserveHistogram(name string, labels Labels, value float64) {
	h := vec(r, r.histograms, name, labels, func(names []string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help[name], Buckets: handshakeBuckets}, names)
	})
	h.With(prometheus.Labels(labels)).Observe(value)
}

// Handler returns an http.Handler that can be used to expose the metrics.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}
