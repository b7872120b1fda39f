package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/rmitchellscott/chatsnap/internal/logging"
)

// HealthStatus represents the health status of the export pipeline
type HealthStatus struct {
	Status          string             `json:"status"` // "healthy", "degraded"
	InFlight        int64              `json:"in_flight"`
	Performance     PerformanceMetrics `json:"performance"`
	LastUpdated     time.Time          `json:"last_updated"`
	Recommendations []string           `json:"recommendations,omitempty"`
}

// PerformanceMetrics represents performance statistics
type PerformanceMetrics struct {
	TotalExports          int64    `json:"total_exports"`
	FailedExports         int64    `json:"failed_exports"`
	SkippedExports        int64    `json:"skipped_exports"`
	SuccessRate           float64  `json:"success_rate"`
	ExportsPerMinute      float64  `json:"exports_per_minute"`
	AverageProcessingTime *float64 `json:"average_processing_time_seconds,omitempty"`
}

// Monitor keeps running totals for the health endpoint.
type Monitor struct {
	mu               sync.Mutex
	inFlight         int64
	total            int64
	succeeded        int64
	failed           int64
	skippedCount     int64
	totalElapsed     time.Duration
	lastMetricsReset time.Time
	lastJobCount     int64
}

func NewMonitor() *Monitor {
	return &Monitor{lastMetricsReset: time.Now()}
}

func (m *Monitor) started() {
	m.mu.Lock()
	m.inFlight++
	m.mu.Unlock()
}

func (m *Monitor) finished(outcome string, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
	m.total++
	m.totalElapsed += elapsed
	switch outcome {
	case OutcomeSucceeded:
		m.succeeded++
	case OutcomeFailed:
		m.failed++
	}
}

func (m *Monitor) skipped() {
	m.mu.Lock()
	m.skippedCount++
	m.mu.Unlock()
}

// GetHealthStatus returns the current health status
func (m *Monitor) GetHealthStatus() HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	successRate := float64(0)
	if m.total > 0 {
		successRate = float64(m.succeeded) / float64(m.total) * 100
	}

	elapsed := time.Since(m.lastMetricsReset).Minutes()
	perMinute := float64(0)
	if elapsed > 0 {
		perMinute = float64(m.total-m.lastJobCount) / elapsed
	}

	perf := PerformanceMetrics{
		TotalExports:     m.total,
		FailedExports:    m.failed,
		SkippedExports:   m.skippedCount,
		SuccessRate:      successRate,
		ExportsPerMinute: perMinute,
	}
	if m.total > 0 {
		avg := m.totalElapsed.Seconds() / float64(m.total)
		perf.AverageProcessingTime = &avg
	}

	status, recommendations := determineHealthStatus(perf)
	return HealthStatus{
		Status:          status,
		InFlight:        m.inFlight,
		Performance:     perf,
		LastUpdated:     time.Now(),
		Recommendations: recommendations,
	}
}

// determineHealthStatus analyzes metrics and determines overall health
func determineHealthStatus(perf PerformanceMetrics) (string, []string) {
	var recommendations []string

	if perf.FailedExports > 0 && perf.SuccessRate < 90 {
		recommendations = append(recommendations,
			fmt.Sprintf("High failure rate: %.1f%% success rate", perf.SuccessRate))
	}
	if perf.AverageProcessingTime != nil && *perf.AverageProcessingTime > 30 {
		recommendations = append(recommendations,
			fmt.Sprintf("Slow exports: %.1f seconds average; check the renderer", *perf.AverageProcessingTime))
	}

	if len(recommendations) > 0 {
		return "degraded", recommendations
	}
	return "healthy", nil
}

// ResetMetrics restarts the per-minute window.
func (m *Monitor) ResetMetrics() {
	m.mu.Lock()
	m.lastMetricsReset = time.Now()
	m.lastJobCount = m.total
	m.mu.Unlock()
	logging.InfoWithComponent(logging.ComponentOrchestrator, "Reset export rate window")
}

// LogHealthSummary logs a summary of the current health status
func (m *Monitor) LogHealthSummary() {
	health := m.GetHealthStatus()
	logging.InfoWithComponent(logging.ComponentOrchestrator, "Health summary",
		"status", health.Status,
		"in_flight", health.InFlight,
		"total", health.Performance.TotalExports,
		"success_rate", fmt.Sprintf("%.1f%%", health.Performance.SuccessRate),
		"exports_per_minute", fmt.Sprintf("%.1f", health.Performance.ExportsPerMinute))

	for _, rec := range health.Recommendations {
		logging.WarnWithComponent(logging.ComponentOrchestrator, "Recommendation", "message", rec)
	}
}
