// Package server hosts the OTLP gRPC ingestion endpoint.
package server

import (
	"context"
	"fmt"
	"net"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/otelvault/otelvault/internal/config"
	"github.com/otelvault/otelvault/internal/ingest"
)

const defaultMaxRecvBytes = 16 * 1024 * 1024

// Server accepts OTLP export RPCs for logs, traces, and metrics and hands
// decoded batches to the ingestion service.
type Server struct {
	grpc   *grpc.Server
	addr   string
	logger *zap.Logger
}

// New builds a gRPC server with the three OTLP collector services
// registered. The receive limit guards against oversized export batches.
func New(cfg config.ServerConfig, svc *ingest.Service, logger *zap.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("ingest service cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	maxBytes := cfg.MaxRecvBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxRecvBytes
	}

	gs := grpc.NewServer(grpc.MaxRecvMsgSize(maxBytes))
	metrics := newRPCMetrics(logger)
	collogspb.RegisterLogsServiceServer(gs, &logsService{ingest: svc, metrics: metrics})
	coltracepb.RegisterTraceServiceServer(gs, &traceService{ingest: svc, metrics: metrics})
	colmetricspb.RegisterMetricsServiceServer(gs, &metricsService{ingest: svc, metrics: metrics})

	return &Server{grpc: gs, addr: cfg.GRPCAddr, logger: logger}, nil
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.logger.Info("starting grpc server", zap.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// Shutdown drains in-flight RPCs. When the context expires first, the
// server is stopped hard so shutdown never hangs on a stuck stream.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down grpc server")

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.grpc.Stop()
		return ctx.Err()
	}
}
