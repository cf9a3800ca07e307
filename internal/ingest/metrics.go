package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Signal label values for ingestion metrics.
const (
	SignalLogs    = "logs"
	SignalSpans   = "spans"
	SignalMetrics = "metrics"
)

var (
	// RecordsTotal counts individual telemetry records.
	// Labels: signal (logs, spans, metrics), outcome (accepted, rejected)
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "otelvault",
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Total number of telemetry records by signal and outcome",
		},
		[]string{"signal", "outcome"},
	)

	// BatchesTotal counts export batches.
	// Labels: signal (logs, spans, metrics), outcome (accepted, rejected)
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "otelvault",
			Subsystem: "ingest",
			Name:      "batches_total",
			Help:      "Total number of export batches by signal and outcome",
		},
		[]string{"signal", "outcome"},
	)
)

// RecordBatch records the outcome of one stored batch. Batches are accepted
// or rejected whole, so size lands entirely under a single outcome.
func RecordBatch(signal string, size int, err error) {
	outcome := "accepted"
	if err != nil {
		outcome = "rejected"
	}
	RecordsTotal.WithLabelValues(signal, outcome).Add(float64(size))
	BatchesTotal.WithLabelValues(signal, outcome).Inc()
}
