package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Started()
	assert.Equal(t, float64(1), testutil.ToFloat64(r.inFlight))
	r.Frames(5)
	r.Artifact("gif", 40_000)
	r.Finished("gif", OutcomeSucceeded, "", 2*time.Second)

	r.Started()
	r.Finished("png", OutcomeFailed, "delivery", time.Second)
	r.Skipped("png")

	assert.Equal(t, float64(0), testutil.ToFloat64(r.inFlight))
	assert.Equal(t, float64(5), testutil.ToFloat64(r.frames))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.exports.WithLabelValues("gif", OutcomeSucceeded)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.exports.WithLabelValues("png", OutcomeSkipped)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.failures.WithLabelValues("delivery")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Started()
		r.Frames(1)
		r.Artifact("png", 1)
		r.Finished("png", OutcomeSucceeded, "", time.Second)
		r.Skipped("png")
	})
	assert.Nil(t, r.Monitor())
}

func TestMonitorHealth(t *testing.T) {
	r := NewRecorder(nil)
	health := r.Monitor().GetHealthStatus()
	assert.Equal(t, "healthy", health.Status)
	assert.Nil(t, health.Performance.AverageProcessingTime)

	r.Started()
	r.Finished("png", OutcomeSucceeded, "", time.Second)
	r.Started()
	r.Finished("png", OutcomeFailed, "capture", 3*time.Second)

	health = r.Monitor().GetHealthStatus()
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, int64(2), health.Performance.TotalExports)
	assert.InDelta(t, 50.0, health.Performance.SuccessRate, 0.01)
	require.NotNil(t, health.Performance.AverageProcessingTime)
	assert.InDelta(t, 2.0, *health.Performance.AverageProcessingTime, 0.01)
	assert.NotEmpty(t, health.Recommendations)
}
