// Package metrics provides Prometheus metrics for bulk graph writes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesTotal tracks executed statements by container kind, write mode and status
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "writer",
			Name:      "batches_total",
			Help:      "Total number of statements sent to the graph store",
		},
		[]string{"kind", "mode", "status"},
	)

	// RowsWritten tracks rows handed to the graph store in successful statements
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "writer",
			Name:      "rows_total",
			Help:      "Total number of rows written in successful statements",
		},
		[]string{"kind", "mode"},
	)

	// BatchDuration tracks how long a single statement takes in the store
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "writer",
			Name:      "batch_duration_seconds",
			Help:      "Duration of statement execution in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind", "mode"},
	)

	// ContainersInFlight tracks containers currently being written
	ContainersInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fern",
			Subsystem: "writer",
			Name:      "containers_in_flight",
			Help:      "Number of containers currently being written",
		},
	)
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WriteTextfile dumps every registered metric to path in the text exposition format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
