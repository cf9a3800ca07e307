package storage

import (
	"context"
	"fmt"
)

// schema holds the telemetry tables and indexes. Applied idempotently at
// open; production migrations remain the job of external tooling, this
// just makes a fresh database usable.
const schema = `
CREATE TABLE IF NOT EXISTS logs (
    id           UUID PRIMARY KEY,
    ts           TIMESTAMPTZ NOT NULL,
    trace_id     TEXT NOT NULL DEFAULT '',
    span_id      TEXT NOT NULL DEFAULT '',
    severity     TEXT NOT NULL DEFAULT '',
    body         TEXT NOT NULL DEFAULT '',
    service_name TEXT NOT NULL DEFAULT 'unknown',
    attributes   JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_logs_ts ON logs (ts DESC);
CREATE INDEX IF NOT EXISTS idx_logs_service_name ON logs (service_name);

CREATE TABLE IF NOT EXISTS spans (
    id             UUID PRIMARY KEY,
    trace_id       TEXT NOT NULL,
    span_id        TEXT NOT NULL,
    parent_span_id TEXT NOT NULL DEFAULT '',
    name           TEXT NOT NULL DEFAULT '',
    start_time     TIMESTAMPTZ NOT NULL,
    end_time       TIMESTAMPTZ NOT NULL,
    service_name   TEXT NOT NULL DEFAULT 'unknown',
    status         TEXT NOT NULL DEFAULT 'OK',
    attributes     JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_spans_start_time ON spans (start_time DESC);
CREATE INDEX IF NOT EXISTS idx_spans_trace_id ON spans (trace_id);
CREATE INDEX IF NOT EXISTS idx_spans_service_name ON spans (service_name);

CREATE TABLE IF NOT EXISTS metrics (
    id           UUID PRIMARY KEY,
    name         TEXT NOT NULL,
    ts           TIMESTAMPTZ NOT NULL,
    value        DOUBLE PRECISION NOT NULL,
    service_name TEXT NOT NULL DEFAULT 'unknown',
    attributes   JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_metrics_ts ON metrics (ts DESC);
CREATE INDEX IF NOT EXISTS idx_metrics_service_name ON metrics (service_name);
`

// ensureSchema applies the embedded DDL.
func ensureSchema(ctx context.Context, db querier) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
