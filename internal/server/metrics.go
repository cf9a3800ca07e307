package server

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/otelvault/otelvault/internal/ingest"
)

const serverInstrumentationName = "github.com/otelvault/otelvault/internal/server"

// rpcMetrics holds per-RPC instruments for the export handlers.
type rpcMetrics struct {
	meter    metric.Meter
	logger   *zap.Logger
	requests metric.Int64Counter
	rejected metric.Int64Counter
	duration metric.Float64Histogram
}

func newRPCMetrics(logger *zap.Logger) *rpcMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &rpcMetrics{
		meter:  otel.Meter(serverInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *rpcMetrics) init() {
	var err error

	m.requests, err = m.meter.Int64Counter(
		"otelvault.grpc.requests_total",
		metric.WithDescription("Total OTLP export RPCs labeled by signal (logs, spans, metrics) and outcome."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create requests counter", zap.Error(err))
	}

	m.rejected, err = m.meter.Int64Counter(
		"otelvault.grpc.rejected_records_total",
		metric.WithDescription("Telemetry records reported back to senders through partial-success responses."),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		m.logger.Warn("failed to create rejected counter", zap.Error(err))
	}

	m.duration, err = m.meter.Float64Histogram(
		"otelvault.grpc.request_duration_seconds",
		metric.WithDescription("OTLP export RPC duration in seconds, labeled by signal and outcome. Use histogram_quantile for P50/P95/P99 latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}
}

// record captures one export RPC. Instruments that failed to initialize
// are skipped rather than blocking ingestion.
func (m *rpcMetrics) record(ctx context.Context, signal string, res ingest.Result, dur time.Duration) {
	outcome := "accepted"
	if res.Rejected > 0 {
		outcome = "rejected"
	}
	attrs := []attribute.KeyValue{
		attribute.String("signal", signal),
		attribute.String("outcome", outcome),
	}

	if m.requests != nil {
		m.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if m.duration != nil {
		m.duration.Record(ctx, dur.Seconds(), metric.WithAttributes(attrs...))
	}
	if res.Rejected > 0 && m.rejected != nil {
		m.rejected.Add(ctx, res.Rejected, metric.WithAttributes(attribute.String("signal", signal)))
	}
}
