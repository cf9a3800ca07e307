// Package storage provides the pluggable persistence layer for telemetry
// records: an in-process memory store, a PostgreSQL row store, and a
// PostgreSQL bulk store layered on the binary COPY protocol.
package storage

import (
	"context"
	"errors"

	"github.com/otelvault/otelvault/internal/model"
)

// Sentinel errors for storage construction.
var (
	// ErrUnknownBackend is returned by Open for an unrecognized backend name.
	ErrUnknownBackend = errors.New("unknown storage backend")

	// ErrMissingDSN is returned by Open when a PostgreSQL backend is
	// selected without a connection string.
	ErrMissingDSN = errors.New("storage backend requires a dsn")
)

// Store is the contract every backend implements for the three record
// kinds.
//
// Shared semantics:
//   - An empty insert batch is a no-op: no connection is opened, no lock
//     is taken, no error is returned.
//   - Inserted records become visible to reads only after the insert
//     returns successfully. Inserts are all-or-nothing per batch; the
//     bulk backend guarantees this only per attempted path (see BulkStore).
//   - Pages are ordered by descending time field (Timestamp for logs and
//     metrics, StartTime for spans). A non-positive limit, a negative
//     offset, or an offset past the end yields an empty result, never an
//     error.
//   - Search is a case-insensitive substring match against the record's
//     primary text field (log Body, span Name, metric Name) or its
//     serialized attribute set, with page semantics.
//   - SpansByTraceID returns all spans sharing a trace id, ascending by
//     StartTime.
type Store interface {
	InsertLogs(ctx context.Context, records []model.LogRecord) error
	LogPage(ctx context.Context, limit, offset int) ([]model.LogRecord, error)
	SearchLogs(ctx context.Context, term string, limit, offset int) ([]model.LogRecord, error)

	InsertSpans(ctx context.Context, records []model.SpanRecord) error
	SpanPage(ctx context.Context, limit, offset int) ([]model.SpanRecord, error)
	SearchSpans(ctx context.Context, term string, limit, offset int) ([]model.SpanRecord, error)
	SpansByTraceID(ctx context.Context, traceID string) ([]model.SpanRecord, error)

	InsertMetrics(ctx context.Context, records []model.MetricRecord) error
	MetricPage(ctx context.Context, limit, offset int) ([]model.MetricRecord, error)
	SearchMetrics(ctx context.Context, term string, limit, offset int) ([]model.MetricRecord, error)

	// Close releases backend resources. The store must not be used after.
	Close() error
}
