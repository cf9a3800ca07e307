package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/otelvault/otelvault/internal/model"
)

var bulkTracer = otel.Tracer("otelvault.storage.bulk")

// BulkStore streams insert batches through the PostgreSQL binary COPY
// protocol. When a COPY fails for any reason, the same batch is retried
// once through the row store's INSERT path; the error propagates only if
// that retry also fails, so a successful insert means "stored by some
// path". Reads delegate to the row store.
type BulkStore struct {
	db     querier
	row    *PostgresStore
	logger *zap.Logger
}

// NewBulkStore connects to PostgreSQL, applies the schema, and returns a
// bulk store.
func NewBulkStore(ctx context.Context, dsn string, logger *zap.Logger) (*BulkStore, error) {
	pool, err := openPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return newBulkStore(pool, logger), nil
}

func newBulkStore(db querier, logger *zap.Logger) *BulkStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BulkStore{db: db, row: newPostgresStore(db, logger), logger: logger}
}

// InsertLogs streams the batch via COPY, falling back to row inserts.
func (s *BulkStore) InsertLogs(ctx context.Context, records []model.LogRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, span := bulkTracer.Start(ctx, "BulkStore.InsertLogs")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(records)))

	copyErr := s.copyLogs(ctx, records)
	if copyErr == nil {
		return nil
	}
	s.warnFallback("logs", len(records), copyErr)
	span.AddEvent("copy failed, retrying via row inserts")

	if err := s.row.InsertLogs(ctx, records); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("bulk insert logs failed on both paths: %w (copy error: %v)", err, copyErr)
	}
	return nil
}

// InsertSpans streams the batch via COPY, falling back to row inserts.
func (s *BulkStore) InsertSpans(ctx context.Context, records []model.SpanRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, span := bulkTracer.Start(ctx, "BulkStore.InsertSpans")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(records)))

	copyErr := s.copySpans(ctx, records)
	if copyErr == nil {
		return nil
	}
	s.warnFallback("spans", len(records), copyErr)
	span.AddEvent("copy failed, retrying via row inserts")

	if err := s.row.InsertSpans(ctx, records); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("bulk insert spans failed on both paths: %w (copy error: %v)", err, copyErr)
	}
	return nil
}

// InsertMetrics streams the batch via COPY, falling back to row inserts.
func (s *BulkStore) InsertMetrics(ctx context.Context, records []model.MetricRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, span := bulkTracer.Start(ctx, "BulkStore.InsertMetrics")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(records)))

	copyErr := s.copyMetrics(ctx, records)
	if copyErr == nil {
		return nil
	}
	s.warnFallback("metrics", len(records), copyErr)
	span.AddEvent("copy failed, retrying via row inserts")

	if err := s.row.InsertMetrics(ctx, records); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("bulk insert metrics failed on both paths: %w (copy error: %v)", err, copyErr)
	}
	return nil
}

// LogPage delegates to the row store.
func (s *BulkStore) LogPage(ctx context.Context, limit, offset int) ([]model.LogRecord, error) {
	return s.row.LogPage(ctx, limit, offset)
}

// SearchLogs delegates to the row store.
func (s *BulkStore) SearchLogs(ctx context.Context, term string, limit, offset int) ([]model.LogRecord, error) {
	return s.row.SearchLogs(ctx, term, limit, offset)
}

// SpanPage delegates to the row store.
func (s *BulkStore) SpanPage(ctx context.Context, limit, offset int) ([]model.SpanRecord, error) {
	return s.row.SpanPage(ctx, limit, offset)
}

// SearchSpans delegates to the row store.
func (s *BulkStore) SearchSpans(ctx context.Context, term string, limit, offset int) ([]model.SpanRecord, error) {
	return s.row.SearchSpans(ctx, term, limit, offset)
}

// SpansByTraceID delegates to the row store.
func (s *BulkStore) SpansByTraceID(ctx context.Context, traceID string) ([]model.SpanRecord, error) {
	return s.row.SpansByTraceID(ctx, traceID)
}

// MetricPage delegates to the row store.
func (s *BulkStore) MetricPage(ctx context.Context, limit, offset int) ([]model.MetricRecord, error) {
	return s.row.MetricPage(ctx, limit, offset)
}

// SearchMetrics delegates to the row store.
func (s *BulkStore) SearchMetrics(ctx context.Context, term string, limit, offset int) ([]model.MetricRecord, error) {
	return s.row.SearchMetrics(ctx, term, limit, offset)
}

// Close releases the shared connection pool.
func (s *BulkStore) Close() error {
	return s.row.Close()
}

func (s *BulkStore) copyLogs(ctx context.Context, records []model.LogRecord) error {
	_, err := s.db.CopyFrom(ctx, pgx.Identifier{"logs"}, logColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			attrs, err := json.Marshal(r.Attributes)
			if err != nil {
				return nil, fmt.Errorf("encode attributes for log %s: %w", r.ID, err)
			}
			return []any{r.ID, r.Timestamp, r.TraceID, r.SpanID, r.Severity, r.Body, r.Attributes.ServiceName(), attrs}, nil
		}))
	return err
}

func (s *BulkStore) copySpans(ctx context.Context, records []model.SpanRecord) error {
	_, err := s.db.CopyFrom(ctx, pgx.Identifier{"spans"}, spanColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			attrs, err := json.Marshal(r.Attributes)
			if err != nil {
				return nil, fmt.Errorf("encode attributes for span %s: %w", r.ID, err)
			}
			return []any{r.ID, r.TraceID, r.SpanID, r.ParentSpanID, r.Name, r.StartTime, r.EndTime, r.Attributes.ServiceName(), r.Status, attrs}, nil
		}))
	return err
}

func (s *BulkStore) copyMetrics(ctx context.Context, records []model.MetricRecord) error {
	_, err := s.db.CopyFrom(ctx, pgx.Identifier{"metrics"}, metricColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			attrs, err := json.Marshal(r.Attributes)
			if err != nil {
				return nil, fmt.Errorf("encode attributes for metric %s: %w", r.ID, err)
			}
			return []any{r.ID, r.Name, r.Timestamp, r.Value, r.Attributes.ServiceName(), attrs}, nil
		}))
	return err
}

func (s *BulkStore) warnFallback(kind string, batchSize int, copyErr error) {
	s.logger.Warn("bulk copy failed, retrying batch via row inserts",
		zap.String("kind", kind),
		zap.Int("batch_size", batchSize),
		zap.Error(copyErr),
	)
}
