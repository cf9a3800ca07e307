// Package ingest persists decoded telemetry batches and reports rejections
// in the terms OTLP partial-success responses expect.
package ingest

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/otelvault/otelvault/internal/model"
	"github.com/otelvault/otelvault/internal/storage"
)

var ingestTracer = otel.Tracer("otelvault.ingest")

// Result reports how a batch fared. Batches are accepted or rejected as a
// whole: Rejected is zero or the full batch size, and ErrorMessage carries
// the storage error verbatim when records were rejected.
type Result struct {
	Rejected     int64
	ErrorMessage string
}

func rejected(recs int, err error) Result {
	return Result{Rejected: int64(recs), ErrorMessage: err.Error()}
}

// Service writes decoded telemetry to a storage backend. Handlers never
// return an error; storage failures surface through the Result so callers
// can answer with a partial-success response instead of failing the RPC.
type Service struct {
	store  storage.Store
	logger *zap.Logger
}

// NewService creates an ingestion service backed by store.
func NewService(store storage.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Logs stores one decoded log batch.
func (s *Service) Logs(ctx context.Context, recs []model.LogRecord) Result {
	ctx, span := ingestTracer.Start(ctx, "Service.Logs")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(recs)))

	if err := s.store.InsertLogs(ctx, recs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("log batch rejected", zap.Int("count", len(recs)), zap.Error(err))
		RecordBatch(SignalLogs, len(recs), err)
		return rejected(len(recs), err)
	}

	s.logger.Info("log batch stored", zap.Int("count", len(recs)))
	RecordBatch(SignalLogs, len(recs), nil)
	return Result{}
}

// Spans stores one decoded span batch.
func (s *Service) Spans(ctx context.Context, recs []model.SpanRecord) Result {
	ctx, span := ingestTracer.Start(ctx, "Service.Spans")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(recs)))

	if err := s.store.InsertSpans(ctx, recs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("span batch rejected", zap.Int("count", len(recs)), zap.Error(err))
		RecordBatch(SignalSpans, len(recs), err)
		return rejected(len(recs), err)
	}

	s.logger.Info("span batch stored", zap.Int("count", len(recs)))
	RecordBatch(SignalSpans, len(recs), nil)
	return Result{}
}

// Metrics stores one decoded metric batch.
func (s *Service) Metrics(ctx context.Context, recs []model.MetricRecord) Result {
	ctx, span := ingestTracer.Start(ctx, "Service.Metrics")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(recs)))

	if err := s.store.InsertMetrics(ctx, recs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("metric batch rejected", zap.Int("count", len(recs)), zap.Error(err))
		RecordBatch(SignalMetrics, len(recs), err)
		return rejected(len(recs), err)
	}

	s.logger.Info("metric batch stored", zap.Int("count", len(recs)))
	RecordBatch(SignalMetrics, len(recs), nil)
	return Result{}
}
