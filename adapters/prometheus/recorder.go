package prometheus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goliatone/go-oauth-client/core"
)

// DefaultLabels are the tag keys emitted by the handshake service and the
// purge worker. Tags outside the label set are dropped.
var DefaultLabels = []string{
	"operation",
	"status",
	"provider_type",
	"provider_kind",
	"error_kind",
	"job_id",
	"stage",
}

// DefaultBuckets cover operation latencies in milliseconds.
var DefaultBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Recorder implements core.MetricsRecorder on top of Prometheus vectors.
// Vectors are registered lazily, one per sanitized metric name.
type Recorder struct {
	factory    promauto.Factory
	namespace  string
	labels     []string
	buckets    []float64
	mu         sync.Mutex
	counters   map[string]*prom.CounterVec
	histograms map[string]*prom.HistogramVec
}

type Option func(*Recorder)

func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		r.namespace = sanitizeName(namespace)
	}
}

func WithLabels(labels ...string) Option {
	return func(r *Recorder) {
		if len(labels) > 0 {
			r.labels = append([]string(nil), labels...)
		}
	}
}

func WithBuckets(buckets ...float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

// NewRecorder registers vectors against registerer. A nil registerer uses
// the Prometheus default registry.
func NewRecorder(registerer prom.Registerer, opts ...Option) *Recorder {
	if registerer == nil {
		registerer = prom.DefaultRegisterer
	}
	r := &Recorder{
		factory:    promauto.With(registerer),
		labels:     append([]string(nil), DefaultLabels...),
		buckets:    append([]float64(nil), DefaultBuckets...),
		counters:   map[string]*prom.CounterVec{},
		histograms: map[string]*prom.HistogramVec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	vec := r.counterVec(name)
	if vec == nil {
		return
	}
	vec.WithLabelValues(r.labelValues(tags)...).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	vec := r.histogramVec(name)
	if vec == nil {
		return
	}
	vec.WithLabelValues(r.labelValues(tags)...).Observe(value)
}

func (r *Recorder) counterVec(name string) *prom.CounterVec {
	metric := sanitizeName(name)
	if metric == "" {
		return nil
	}
	if !strings.HasSuffix(metric, "_total") {
		metric += "_total"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.counters[metric]; ok {
		return vec
	}
	vec := r.factory.NewCounterVec(prom.CounterOpts{
		Namespace: r.namespace,
		Name:      metric,
		Help:      fmt.Sprintf("Count of %s events.", strings.TrimSpace(name)),
	}, r.labels)
	r.counters[metric] = vec
	return vec
}

func (r *Recorder) histogramVec(name string) *prom.HistogramVec {
	metric := sanitizeName(name)
	if metric == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.histograms[metric]; ok {
		return vec
	}
	vec := r.factory.NewHistogramVec(prom.HistogramOpts{
		Namespace: r.namespace,
		Name:      metric,
		Help:      fmt.Sprintf("Distribution of %s.", strings.TrimSpace(name)),
		Buckets:   r.buckets,
	}, r.labels)
	r.histograms[metric] = vec
	return vec
}

func (r *Recorder) labelValues(tags map[string]string) []string {
	values := make([]string, len(r.labels))
	for i, label := range r.labels {
		values[i] = strings.TrimSpace(tags[label])
	}
	return values
}

// sanitizeName maps a dotted metric name such as oauth.initiate.total to
// oauth_initiate_total.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	b.Grow(len(name))
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

var _ core.MetricsRecorder = (*Recorder)(nil)
