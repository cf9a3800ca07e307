package server

import (
	"context"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"

	"github.com/otelvault/otelvault/internal/ingest"
	"github.com/otelvault/otelvault/internal/otlp"
)

// The export handlers always answer with a response message. Storage
// failures are reported through the OTLP partial-success field, not as
// RPC errors, so senders do not retry batches the backend has rejected.

type logsService struct {
	collogspb.UnimplementedLogsServiceServer
	ingest  *ingest.Service
	metrics *rpcMetrics
}

func (s *logsService) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	start := time.Now()
	res := s.ingest.Logs(ctx, otlp.DecodeLogs(req))
	s.metrics.record(ctx, ingest.SignalLogs, res, time.Since(start))

	resp := &collogspb.ExportLogsServiceResponse{}
	if res.Rejected > 0 {
		resp.PartialSuccess = &collogspb.ExportLogsPartialSuccess{
			RejectedLogRecords: res.Rejected,
			ErrorMessage:       res.ErrorMessage,
		}
	}
	return resp, nil
}

type traceService struct {
	coltracepb.UnimplementedTraceServiceServer
	ingest  *ingest.Service
	metrics *rpcMetrics
}

func (s *traceService) Export(ctx context.Context, req *coltracepb.ExportTraceServiceRequest) (*coltracepb.ExportTraceServiceResponse, error) {
	start := time.Now()
	res := s.ingest.Spans(ctx, otlp.DecodeSpans(req))
	s.metrics.record(ctx, ingest.SignalSpans, res, time.Since(start))

	resp := &coltracepb.ExportTraceServiceResponse{}
	if res.Rejected > 0 {
		resp.PartialSuccess = &coltracepb.ExportTracePartialSuccess{
			RejectedSpans: res.Rejected,
			ErrorMessage:  res.ErrorMessage,
		}
	}
	return resp, nil
}

type metricsService struct {
	colmetricspb.UnimplementedMetricsServiceServer
	ingest  *ingest.Service
	metrics *rpcMetrics
}

func (s *metricsService) Export(ctx context.Context, req *colmetricspb.ExportMetricsServiceRequest) (*colmetricspb.ExportMetricsServiceResponse, error) {
	start := time.Now()
	res := s.ingest.Metrics(ctx, otlp.DecodeMetrics(req))
	s.metrics.record(ctx, ingest.SignalMetrics, res, time.Since(start))

	resp := &colmetricspb.ExportMetricsServiceResponse{}
	if res.Rejected > 0 {
		resp.PartialSuccess = &colmetricspb.ExportMetricsPartialSuccess{
			RejectedDataPoints: res.Rejected,
			ErrorMessage:       res.ErrorMessage,
		}
	}
	return resp, nil
}
