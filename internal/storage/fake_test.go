package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeQuerier records calls and injects failures for the PostgreSQL
// stores. Read queries return zero rows.
type fakeQuerier struct {
	execSQL  []string
	execArgs [][]any
	execErr  error

	querySQL  []string
	queryArgs [][]any
	queryErr  error

	beginErr error
	tx       *fakeTx

	copyCalls  int
	copyTable  pgx.Identifier
	copyCols   []string
	copyRows   int
	copyErr    error
	copySrcErr error

	closed bool
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.querySQL = append(f.querySQL, sql)
	f.queryArgs = append(f.queryArgs, args)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return stubRows{}, nil
}

func (f *fakeQuerier) Begin(_ context.Context) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.tx = &fakeTx{q: f}
	return f.tx, nil
}

func (f *fakeQuerier) CopyFrom(_ context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	f.copyCalls++
	f.copyTable = table
	f.copyCols = cols
	var n int
	for src.Next() {
		if _, err := src.Values(); err != nil {
			f.copySrcErr = err
			return int64(n), err
		}
		n++
	}
	f.copyRows = n
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	return int64(n), nil
}

func (f *fakeQuerier) Close() {
	f.closed = true
}

// fakeTx satisfies pgx.Tx for the chunked-insert path. Exec delegates to
// the parent fake; unimplemented methods panic via the embedded nil
// interface, which no test should reach.
type fakeTx struct {
	pgx.Tx
	q          *fakeQuerier
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.q.Exec(ctx, sql, args...)
}

func (t *fakeTx) Commit(_ context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	// Rollback after Commit is a no-op, mirroring pgx semantics.
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

// stubRows is an empty pgx.Rows result set.
type stubRows struct {
	pgx.Rows
}

func (stubRows) Close()     {}
func (stubRows) Err() error { return nil }
func (stubRows) Next() bool { return false }
