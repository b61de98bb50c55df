// Package monitoring exposes the service's Prometheus metrics.
package monitoring

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"droughtdash/predict"
	"droughtdash/store"
)

const namespace = "droughtdash"

// Prediction outcomes used as the status label.
const (
	StatusOK              = "ok"
	StatusUnknownLocation = "unknown_location"
	StatusNoDataForYear   = "no_data_for_year"
	StatusNotLoaded       = "not_loaded"
	StatusFailed          = "inference_failure"
)

// Metrics holds every collector on a private registry.
type Metrics struct {
	Predictions        *prometheus.CounterVec
	PredictionDuration prometheus.Histogram
	CacheLookups       *prometheus.CounterVec
	Reloads            *prometheus.CounterVec
	DatasetRows        prometheus.Gauge
	SnapshotGeneration prometheus.Gauge
	Sessions           prometheus.Gauge
	Requests           *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers the collectors, plus the Go runtime and
// process collectors.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.Predictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_total",
		Help:      "Prediction requests by outcome",
	}, []string{"status"})

	m.PredictionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "prediction_duration_seconds",
		Help:      "Time spent answering a prediction request, cache included",
		Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
	})

	m.CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prediction_cache_lookups_total",
		Help:      "Prediction cache lookups by result",
	}, []string{"result"})

	m.Reloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_reloads_total",
		Help:      "Dataset and model reloads by outcome",
	}, []string{"status"})

	m.DatasetRows = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dataset_rows",
		Help:      "Rows in the dataset currently served",
	})

	m.SnapshotGeneration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "snapshot_generation",
		Help:      "Generation of the snapshot currently served",
	})

	m.Sessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_sessions",
		Help:      "Open dashboard websocket sessions",
	})

	m.Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method and status code",
	}, []string{"method", "code"})

	for _, c := range []prometheus.Collector{
		m.Predictions, m.PredictionDuration, m.CacheLookups, m.Reloads,
		m.DatasetRows, m.SnapshotGeneration, m.Sessions, m.Requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePrediction records one prediction request.
func (m *Metrics) ObservePrediction(err error, took time.Duration) {
	m.Predictions.WithLabelValues(PredictionStatus(err)).Inc()
	m.PredictionDuration.Observe(took.Seconds())
}

// ObserveCache records a cache lookup. It matches predict.NewCache's
// observer signature.
func (m *Metrics) ObserveCache(hit bool) {
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

// ObserveReload records a reload attempt. It matches store.New's observer
// signature.
func (m *Metrics) ObserveReload(snap *store.Snapshot, err error) {
	if err != nil {
		m.Reloads.WithLabelValues("error").Inc()
		return
	}
	m.Reloads.WithLabelValues("ok").Inc()
	m.DatasetRows.Set(float64(snap.Table.Len()))
	m.SnapshotGeneration.Set(float64(snap.Generation))
}

// ObserveRequest records a served HTTP request.
func (m *Metrics) ObserveRequest(method string, code int) {
	m.Requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// SessionOpened and SessionClosed track websocket sessions.
func (m *Metrics) SessionOpened() { m.Sessions.Inc() }

func (m *Metrics) SessionClosed() { m.Sessions.Dec() }

// PredictionStatus maps a pipeline error to its status label.
func PredictionStatus(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, predict.ErrUnknownLocation):
		return StatusUnknownLocation
	case errors.Is(err, predict.ErrNoDataForYear):
		return StatusNoDataForYear
	case errors.Is(err, store.ErrNotLoaded):
		return StatusNotLoaded
	default:
		return StatusFailed
	}
}
