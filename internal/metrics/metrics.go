// Package metrics records export pipeline outcomes as Prometheus collectors
// and keeps the in-process counters behind the health endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Recorder owns the pipeline collectors. A nil *Recorder records nothing.
type Recorder struct {
	exports       *prometheus.CounterVec
	failures      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	artifactBytes *prometheus.HistogramVec
	frames        prometheus.Counter
	inFlight      prometheus.Gauge

	monitor *Monitor
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsnap",
			Name:      "exports_total",
			Help:      "Export invocations by format and outcome.",
		}, []string{"format", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsnap",
			Name:      "export_failures_total",
			Help:      "Failed exports by pipeline stage.",
		}, []string{"stage"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatsnap",
			Name:      "export_duration_seconds",
			Help:      "Wall time from capture start to terminal state.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"format"}),
		artifactBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatsnap",
			Name:      "artifact_bytes",
			Help:      "Encoded artifact size.",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 2, 10),
		}, []string{"format"}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatsnap",
			Name:      "captured_frames_total",
			Help:      "Bitmaps captured across all exports.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatsnap",
			Name:      "exports_in_flight",
			Help:      "Exports currently between Capturing and a terminal state.",
		}),
		monitor: NewMonitor(),
	}

	if reg != nil {
		reg.MustRegister(r.exports, r.failures, r.duration, r.artifactBytes, r.frames, r.inFlight)
	}
	return r
}

// Monitor returns the health counters fed by this recorder.
func (r *Recorder) Monitor() *Monitor {
	if r == nil {
		return nil
	}
	return r.monitor
}

// Started marks an export as in flight.
func (r *Recorder) Started() {
	if r == nil {
		return
	}
	r.inFlight.Inc()
	r.monitor.started()
}

// Finished records a terminal outcome. stage is empty unless outcome is
// OutcomeFailed.
func (r *Recorder) Finished(format, outcome, stage string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.inFlight.Dec()
	r.exports.WithLabelValues(format, outcome).Inc()
	r.duration.WithLabelValues(format).Observe(elapsed.Seconds())
	if outcome == OutcomeFailed {
		r.failures.WithLabelValues(stage).Inc()
	}
	r.monitor.finished(outcome, elapsed)
}

// Skipped records an export rejected by the reentrancy guard.
func (r *Recorder) Skipped(format string) {
	if r == nil {
		return
	}
	r.exports.WithLabelValues(format, OutcomeSkipped).Inc()
	r.monitor.skipped()
}

// Frames adds n captured bitmaps.
func (r *Recorder) Frames(n int) {
	if r == nil {
		return
	}
	r.frames.Add(float64(n))
}

// Artifact records the encoded size.
func (r *Recorder) Artifact(format string, size int) {
	if r == nil {
		return
	}
	r.artifactBytes.WithLabelValues(format).Observe(float64(size))
}
