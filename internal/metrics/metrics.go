// Package metrics records validation outcomes in a Prometheus registry and
// writes them to a node-exporter textfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "biomtype"

// Recorder owns a private registry so textfile dumps contain only biomtype
// series.
type Recorder struct {
	registry         *prometheus.Registry
	validations      *prometheus.CounterVec
	verdicts         *prometheus.CounterVec
	crossValidations *prometheus.CounterVec
	duration         prometheus.Histogram
	lastRun          prometheus.Gauge
}

// New creates a Recorder with every collector registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Validation runs by result (success, failure, error).",
		}, []string{"result"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_verdicts_total",
			Help:      "Sample id reconciliation verdicts.",
		}, []string{"verdict"}),
		crossValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cross_validations_total",
			Help:      "Representative set cross-validations by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_duration_seconds",
			Help:      "Wall time of validation runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_validation_timestamp_seconds",
			Help:      "Unix time of the most recent validation run.",
		}),
	}
	r.registry.MustRegister(r.validations, r.verdicts, r.crossValidations, r.duration, r.lastRun)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveValidation records the end of a run. result is one of "success",
// "failure" (the table was rejected) or "error" (the run could not finish).
func (r *Recorder) ObserveValidation(result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.validations.WithLabelValues(result).Inc()
	r.duration.Observe(elapsed.Seconds())
	r.lastRun.SetToCurrentTime()
}

// ObserveVerdict counts a reconciliation verdict.
func (r *Recorder) ObserveVerdict(verdict string) {
	if r == nil {
		return
	}
	r.verdicts.WithLabelValues(verdict).Inc()
}

// ObserveCrossValidation counts a representative set check.
func (r *Recorder) ObserveCrossValidation(ok bool) {
	if r == nil {
		return
	}
	result := "mismatch"
	if ok {
		result = "match"
	}
	r.crossValidations.WithLabelValues(result).Inc()
}

// WriteTextfile dumps the registry to path in the text exposition format.
// The write goes through a temporary file so the collector never reads a
// partial file.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
