// Package telemetry provides OpenTelemetry instrumentation for the store
// itself.
//
// # Overview
//
// This package exports the service's own traces and metrics over OTLP so an
// otelvault deployment can be observed by another collector (or by itself in
// development). Storage backends and the ingest path create spans through
// the global tracer; when self-telemetry is disabled those calls fall
// through to no-op providers.
//
// # Usage
//
//	tel := telemetry.New(ctx, cfg.Telemetry, logger)
//	defer tel.Shutdown(ctx)
//
//	tracer := tel.Tracer("otelvault.storage.postgres")
//	ctx, span := tracer.Start(ctx, "PostgresStore.InsertLogs")
//	defer span.End()
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: "grpc"       # or "http/protobuf"
//	  service_name: "otelvault"
//	  sample_rate: 1.0       # 100% in dev, lower in prod
//	  metric_interval: "15s"
//
// # Error Handling
//
// Telemetry failures do not crash the service. If an exporter cannot be
// built, the instance degrades gracefully and the global providers stay
// no-op.
package telemetry
