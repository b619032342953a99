// Package metrics exposes Prometheus counters for undo traffic.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/matheus3301/zpw/internal/message"
	"github.com/matheus3301/zpw/internal/recall"
	"github.com/matheus3301/zpw/internal/zpw"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultOK           = "ok"
	ResultPrecondition = "precondition"
	ResultEncryption   = "encryption"
	ResultAPI          = "api"
	ResultTransport    = "transport"
)

// Metrics owns a private registry so tests and multiple daemons never collide.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates the collectors and registers them together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zpw",
			Name:      "undo_requests_total",
			Help:      "Undo calls by message kind and result.",
		}, []string{"kind", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "zpw",
			Name:      "undo_duration_seconds",
			Help:      "Latency of undo calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Observe records one undo call.
func (m *Metrics) Observe(kind string, err error, elapsed time.Duration) {
	m.requests.WithLabelValues(kind, Classify(err)).Inc()
	m.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// Instrument wraps u so every call is counted.
func (m *Metrics) Instrument(u recall.Undoer) recall.Undoer {
	return &instrumented{next: u, metrics: m}
}

// Classify maps an undo error to its result label.
func Classify(err error) string {
	var (
		pre *zpw.PreconditionError
		enc *zpw.EncryptionError
		api *zpw.APIError
	)
	switch {
	case err == nil:
		return ResultOK
	case errors.As(err, &pre):
		return ResultPrecondition
	case errors.As(err, &enc):
		return ResultEncryption
	case errors.As(err, &api):
		return ResultAPI
	default:
		return ResultTransport
	}
}

type instrumented struct {
	next    recall.Undoer
	metrics *Metrics
}

func (i *instrumented) Undo(ctx context.Context, msg message.Message) (*zpw.UndoResponse, error) {
	kind := "unknown"
	if msg != nil {
		kind = msg.Kind().String()
	}
	start := time.Now()
	resp, err := i.next.Undo(ctx, msg)
	i.metrics.Observe(kind, err, time.Since(start))
	return resp, err
}
