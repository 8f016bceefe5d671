package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Export pipeline metrics
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_exports_total",
			Help: "Total number of chart exports by format and result",
		},
		[]string{"format", "result"},
	)

	ExportDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hermes_export_duration_seconds",
			Help:    "Time spent producing an export artifact",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}, // 50ms to 30s
		},
		[]string{"format"},
	)

	// Theme metrics
	ThemeMergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_theme_merges_total",
			Help: "Total number of theme merges by theme",
		},
		[]string{"theme"},
	)

	// View metrics
	ViewClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hermes_view_clients",
			Help: "Number of connected live view clients",
		},
	)
)

// Result labels for ExportsTotal.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// RecordExport records the outcome and duration of a single export
func RecordExport(format string, err error, elapsed time.Duration) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	ExportsTotal.WithLabelValues(format, result).Inc()
	ExportDurationSeconds.WithLabelValues(format).Observe(elapsed.Seconds())
}

// RecordThemeMerge records a theme merge
func RecordThemeMerge(isDark bool) {
	ThemeMergesTotal.WithLabelValues(ThemeLabel(isDark)).Inc()
}

// ThemeLabel returns the label value used for a theme.
func ThemeLabel(isDark bool) string {
	if isDark {
		return "dark"
	}
	return "light"
}

// SetViewClients updates the connected client gauge
func SetViewClients(n int) {
	ViewClients.Set(float64(n))
}
