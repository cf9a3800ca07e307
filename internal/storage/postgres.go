package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/otelvault/otelvault/internal/model"
)

var postgresTracer = otel.Tracer("otelvault.storage.postgres")

// querier is the subset of pgxpool.Pool the PostgreSQL stores use.
// Narrowed so tests can inject failures.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Close()
}

// insertChunkSize caps rows per INSERT statement. PostgreSQL allows 65535
// bind parameters per statement; spans carry 10 columns, so 1000 rows
// stays well clear. Larger batches run chunked inside one transaction.
const insertChunkSize = 1000

// Column lists shared by the INSERT builders and the COPY path. Order must
// match the row construction in each builder.
var (
	logColumns    = []string{"id", "ts", "trace_id", "span_id", "severity", "body", "service_name", "attributes"}
	spanColumns   = []string{"id", "trace_id", "span_id", "parent_span_id", "name", "start_time", "end_time", "service_name", "status", "attributes"}
	metricColumns = []string{"id", "name", "ts", "value", "service_name", "attributes"}
)

// PostgresStore persists records in PostgreSQL. Each insert batch becomes
// one parameterized multi-row INSERT; attributes live in a JSONB column
// with service_name projected out for indexed filtering.
type PostgresStore struct {
	db     querier
	logger *zap.Logger
}

// NewPostgresStore connects to PostgreSQL, applies the schema, and returns
// a row store.
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := openPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return newPostgresStore(pool, logger), nil
}

func newPostgresStore(db querier, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, logger: logger}
}

// openPool dials the database, verifies connectivity, and applies the
// embedded schema.
func openPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// InsertLogs writes the batch as one multi-row INSERT.
func (s *PostgresStore) InsertLogs(ctx context.Context, records []model.LogRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, span := postgresTracer.Start(ctx, "PostgresStore.InsertLogs")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(records)))

	err := s.insertChunked(ctx, len(records), func(x executor, from, to int) error {
		sql, args, err := buildLogInsert(records[from:to])
		if err != nil {
			return err
		}
		_, err = x.Exec(ctx, sql, args...)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert logs: %w", err)
	}
	return nil
}

// InsertSpans writes the batch as one multi-row INSERT.
func (s *PostgresStore) InsertSpans(ctx context.Context, records []model.SpanRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, span := postgresTracer.Start(ctx, "PostgresStore.InsertSpans")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(records)))

	err := s.insertChunked(ctx, len(records), func(x executor, from, to int) error {
		sql, args, err := buildSpanInsert(records[from:to])
		if err != nil {
			return err
		}
		_, err = x.Exec(ctx, sql, args...)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert spans: %w", err)
	}
	return nil
}

// InsertMetrics writes the batch as one multi-row INSERT.
func (s *PostgresStore) InsertMetrics(ctx context.Context, records []model.MetricRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, span := postgresTracer.Start(ctx, "PostgresStore.InsertMetrics")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(records)))

	err := s.insertChunked(ctx, len(records), func(x executor, from, to int) error {
		sql, args, err := buildMetricInsert(records[from:to])
		if err != nil {
			return err
		}
		_, err = x.Exec(ctx, sql, args...)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert metrics: %w", err)
	}
	return nil
}

// executor is satisfied by both the pool and a transaction.
type executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// insertChunked runs one statement directly for small batches. Batches
// above insertChunkSize execute as several statements inside a single
// transaction so the batch stays all-or-nothing.
func (s *PostgresStore) insertChunked(ctx context.Context, n int, insert func(x executor, from, to int) error) error {
	if n <= insertChunkSize {
		return insert(s.db, 0, n)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for from := 0; from < n; from += insertChunkSize {
		to := min(from+insertChunkSize, n)
		if err := insert(tx, from, to); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const selectLogs = `SELECT id, ts, trace_id, span_id, severity, body, attributes FROM logs`

// LogPage returns a page of logs ordered by descending timestamp.
func (s *PostgresStore) LogPage(ctx context.Context, limit, offset int) ([]model.LogRecord, error) {
	if limit <= 0 || offset < 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, selectLogs+` ORDER BY ts DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select logs: %w", err)
	}
	defer rows.Close()
	return scanLogs(rows)
}

// SearchLogs returns logs whose body or attributes contain the term.
func (s *PostgresStore) SearchLogs(ctx context.Context, term string, limit, offset int) ([]model.LogRecord, error) {
	if limit <= 0 || offset < 0 {
		return nil, nil
	}
	pattern := likePattern(term)
	rows, err := s.db.Query(ctx,
		selectLogs+` WHERE body ILIKE $1 OR attributes::text ILIKE $1 ORDER BY ts DESC LIMIT $2 OFFSET $3`,
		pattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search logs: %w", err)
	}
	defer rows.Close()
	return scanLogs(rows)
}

const selectSpans = `SELECT id, trace_id, span_id, parent_span_id, name, start_time, end_time, status, attributes FROM spans`

// SpanPage returns a page of spans ordered by descending start time.
func (s *PostgresStore) SpanPage(ctx context.Context, limit, offset int) ([]model.SpanRecord, error) {
	if limit <= 0 || offset < 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, selectSpans+` ORDER BY start_time DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select spans: %w", err)
	}
	defer rows.Close()
	return scanSpans(rows)
}

// SearchSpans returns spans whose name or attributes contain the term.
func (s *PostgresStore) SearchSpans(ctx context.Context, term string, limit, offset int) ([]model.SpanRecord, error) {
	if limit <= 0 || offset < 0 {
		return nil, nil
	}
	pattern := likePattern(term)
	rows, err := s.db.Query(ctx,
		selectSpans+` WHERE name ILIKE $1 OR attributes::text ILIKE $1 ORDER BY start_time DESC LIMIT $2 OFFSET $3`,
		pattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search spans: %w", err)
	}
	defer rows.Close()
	return scanSpans(rows)
}

// SpansByTraceID returns the spans of one trace ascending by start time.
func (s *PostgresStore) SpansByTraceID(ctx context.Context, traceID string) ([]model.SpanRecord, error) {
	rows, err := s.db.Query(ctx, selectSpans+` WHERE trace_id = $1 ORDER BY start_time ASC`, traceID)
	if err != nil {
		return nil, fmt.Errorf("select spans by trace: %w", err)
	}
	defer rows.Close()
	return scanSpans(rows)
}

const selectMetrics = `SELECT id, name, ts, value, attributes FROM metrics`

// MetricPage returns a page of metrics ordered by descending timestamp.
func (s *PostgresStore) MetricPage(ctx context.Context, limit, offset int) ([]model.MetricRecord, error) {
	if limit <= 0 || offset < 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, selectMetrics+` ORDER BY ts DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select metrics: %w", err)
	}
	defer rows.Close()
	return scanMetrics(rows)
}

// SearchMetrics returns metrics whose name or attributes contain the term.
func (s *PostgresStore) SearchMetrics(ctx context.Context, term string, limit, offset int) ([]model.MetricRecord, error) {
	if limit <= 0 || offset < 0 {
		return nil, nil
	}
	pattern := likePattern(term)
	rows, err := s.db.Query(ctx,
		selectMetrics+` WHERE name ILIKE $1 OR attributes::text ILIKE $1 ORDER BY ts DESC LIMIT $2 OFFSET $3`,
		pattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search metrics: %w", err)
	}
	defer rows.Close()
	return scanMetrics(rows)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func buildLogInsert(records []model.LogRecord) (string, []any, error) {
	var sb strings.Builder
	sb.Grow(96 + len(records)*40)
	sb.WriteString("INSERT INTO logs (")
	sb.WriteString(strings.Join(logColumns, ", "))
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(records)*len(logColumns))
	for i, r := range records {
		attrs, err := json.Marshal(r.Attributes)
		if err != nil {
			return "", nil, fmt.Errorf("encode attributes for log %s: %w", r.ID, err)
		}
		if i > 0 {
			sb.WriteByte(',')
		}
		writePlaceholders(&sb, i*len(logColumns), len(logColumns))
		args = append(args, r.ID, r.Timestamp, r.TraceID, r.SpanID, r.Severity, r.Body, r.Attributes.ServiceName(), attrs)
	}
	return sb.String(), args, nil
}

func buildSpanInsert(records []model.SpanRecord) (string, []any, error) {
	var sb strings.Builder
	sb.Grow(128 + len(records)*48)
	sb.WriteString("INSERT INTO spans (")
	sb.WriteString(strings.Join(spanColumns, ", "))
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(records)*len(spanColumns))
	for i, r := range records {
		attrs, err := json.Marshal(r.Attributes)
		if err != nil {
			return "", nil, fmt.Errorf("encode attributes for span %s: %w", r.ID, err)
		}
		if i > 0 {
			sb.WriteByte(',')
		}
		writePlaceholders(&sb, i*len(spanColumns), len(spanColumns))
		args = append(args, r.ID, r.TraceID, r.SpanID, r.ParentSpanID, r.Name, r.StartTime, r.EndTime, r.Attributes.ServiceName(), r.Status, attrs)
	}
	return sb.String(), args, nil
}

func buildMetricInsert(records []model.MetricRecord) (string, []any, error) {
	var sb strings.Builder
	sb.Grow(96 + len(records)*32)
	sb.WriteString("INSERT INTO metrics (")
	sb.WriteString(strings.Join(metricColumns, ", "))
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(records)*len(metricColumns))
	for i, r := range records {
		attrs, err := json.Marshal(r.Attributes)
		if err != nil {
			return "", nil, fmt.Errorf("encode attributes for metric %s: %w", r.ID, err)
		}
		if i > 0 {
			sb.WriteByte(',')
		}
		writePlaceholders(&sb, i*len(metricColumns), len(metricColumns))
		args = append(args, r.ID, r.Name, r.Timestamp, r.Value, r.Attributes.ServiceName(), attrs)
	}
	return sb.String(), args, nil
}

// writePlaceholders appends ($n,$n+1,...,$n+count-1).
func writePlaceholders(sb *strings.Builder, start, count int) {
	sb.WriteByte('(')
	for i := 0; i < count; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('$')
		sb.WriteString(strconv.Itoa(start + i + 1))
	}
	sb.WriteByte(')')
}

// likePattern builds a contains-pattern with ILIKE wildcards escaped so
// the term matches literally.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

func scanLogs(rows pgx.Rows) ([]model.LogRecord, error) {
	var out []model.LogRecord
	for rows.Next() {
		var r model.LogRecord
		var attrs []byte
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.TraceID, &r.SpanID, &r.Severity, &r.Body, &attrs); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		if err := json.Unmarshal(attrs, &r.Attributes); err != nil {
			return nil, fmt.Errorf("decode log attributes: %w", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logs: %w", err)
	}
	return out, nil
}

func scanSpans(rows pgx.Rows) ([]model.SpanRecord, error) {
	var out []model.SpanRecord
	for rows.Next() {
		var r model.SpanRecord
		var attrs []byte
		if err := rows.Scan(&r.ID, &r.TraceID, &r.SpanID, &r.ParentSpanID, &r.Name, &r.StartTime, &r.EndTime, &r.Status, &attrs); err != nil {
			return nil, fmt.Errorf("scan span: %w", err)
		}
		if err := json.Unmarshal(attrs, &r.Attributes); err != nil {
			return nil, fmt.Errorf("decode span attributes: %w", err)
		}
		r.StartTime = r.StartTime.UTC()
		r.EndTime = r.EndTime.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spans: %w", err)
	}
	return out, nil
}

func scanMetrics(rows pgx.Rows) ([]model.MetricRecord, error) {
	var out []model.MetricRecord
	for rows.Next() {
		var r model.MetricRecord
		var attrs []byte
		if err := rows.Scan(&r.ID, &r.Name, &r.Timestamp, &r.Value, &attrs); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		if err := json.Unmarshal(attrs, &r.Attributes); err != nil {
			return nil, fmt.Errorf("decode metric attributes: %w", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics: %w", err)
	}
	return out, nil
}
