package storage_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/otelvault/otelvault/internal/model"
	"github.com/otelvault/otelvault/internal/storage"
)

var memoryBase = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func memLog(i int) model.LogRecord {
	return model.LogRecord{
		ID:        fmt.Sprintf("log-%03d", i),
		Timestamp: memoryBase.Add(time.Duration(i) * time.Second),
		Severity:  "INFO",
		Body:      fmt.Sprintf("request %d completed", i),
		Attributes: model.Attributes{
			"service.name": model.StringValue("checkout"),
			"http.route":   model.StringValue("/cart"),
		},
	}
}

func memSpan(i int, traceID string) model.SpanRecord {
	return model.SpanRecord{
		ID:        fmt.Sprintf("span-%03d", i),
		TraceID:   traceID,
		SpanID:    fmt.Sprintf("%016x", i+1),
		Name:      fmt.Sprintf("op-%d", i),
		StartTime: memoryBase.Add(time.Duration(i) * time.Millisecond),
		EndTime:   memoryBase.Add(time.Duration(i)*time.Millisecond + time.Millisecond),
		Status:    "OK",
		Attributes: model.Attributes{
			"service.name": model.StringValue("checkout"),
		},
	}
}

func memMetric(i int, name string) model.MetricRecord {
	return model.MetricRecord{
		ID:        fmt.Sprintf("metric-%03d", i),
		Name:      name,
		Timestamp: memoryBase.Add(time.Duration(i) * time.Second),
		Value:     float64(i),
		Attributes: model.Attributes{
			"host.name": model.StringValue("node-7"),
		},
	}
}

func TestMemoryStore_LogPage_NewestFirst(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.InsertLogs(ctx, []model.LogRecord{memLog(0), memLog(2), memLog(1)}))

	got, err := store.LogPage(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "log-002", got[0].ID)
	assert.Equal(t, "log-001", got[1].ID)
	assert.Equal(t, "log-000", got[2].ID)
	assert.Equal(t, "request 2 completed", got[0].Body)
	assert.Equal(t, model.StringValue("checkout"), got[0].Attributes["service.name"])
}

func TestMemoryStore_LogPage_Windows(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	ctx := context.Background()

	var batch []model.LogRecord
	for i := 0; i < 10; i++ {
		batch = append(batch, memLog(i))
	}
	require.NoError(t, store.InsertLogs(ctx, batch))

	first, err := store.LogPage(ctx, 4, 0)
	require.NoError(t, err)
	second, err := store.LogPage(ctx, 4, 4)
	require.NoError(t, err)
	tail, err := store.LogPage(ctx, 4, 8)
	require.NoError(t, err)

	require.Len(t, first, 4)
	require.Len(t, second, 4)
	require.Len(t, tail, 2, "last window clamps to remaining records")
	assert.Equal(t, "log-009", first[0].ID)
	assert.Equal(t, "log-005", second[0].ID)
	assert.Equal(t, "log-000", tail[1].ID)

	seen := map[string]bool{}
	for _, r := range append(append(first, second...), tail...) {
		assert.False(t, seen[r.ID], "windows must not overlap: %s", r.ID)
		seen[r.ID] = true
	}
}

func TestMemoryStore_Page_EmptyCases(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.InsertLogs(ctx, []model.LogRecord{memLog(0)}))

	cases := []struct {
		name          string
		limit, offset int
	}{
		{"zero limit", 0, 0},
		{"negative limit", -1, 0},
		{"negative offset", 5, -1},
		{"offset past end", 5, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.LogPage(ctx, tc.limit, tc.offset)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestMemoryStore_InsertEmptyBatch(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.InsertLogs(ctx, nil))
	require.NoError(t, store.InsertSpans(ctx, nil))
	require.NoError(t, store.InsertMetrics(ctx, nil))

	logs, err := store.LogPage(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestMemoryStore_SearchLogs(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	ctx := context.Background()

	payment := memLog(0)
	payment.Body = "Payment declined by issuer"
	cart := memLog(1)
	cart.Attributes = model.Attributes{"tenant": model.StringValue("ACME-Corp")}
	require.NoError(t, store.InsertLogs(ctx, []model.LogRecord{payment, cart}))

	byBody, err := store.SearchLogs(ctx, "payment DECLINED", 10, 0)
	require.NoError(t, err)
	require.Len(t, byBody, 1)
	assert.Equal(t, payment.ID, byBody[0].ID)

	byAttr, err := store.SearchLogs(ctx, "acme-corp", 10, 0)
	require.NoError(t, err)
	require.Len(t, byAttr, 1)
	assert.Equal(t, cart.ID, byAttr[0].ID)

	none, err := store.SearchLogs(ctx, "no such needle", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_SearchSpans(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	ctx := context.Background()

	checkout := memSpan(0, "trace-a")
	checkout.Name = "HTTP POST /checkout"
	refund := memSpan(1, "trace-b")
	refund.Name = "refund.process"
	refund.Attributes = model.Attributes{"service.name": model.StringValue("billing")}
	require.NoError(t, store.InsertSpans(ctx, []model.SpanRecord{checkout, refund}))

	got, err := store.SearchSpans(ctx, "CHECKOUT", 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, checkout.ID, got[0].ID)
}

func TestMemoryStore_SearchMetrics(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.InsertMetrics(ctx, []model.MetricRecord{
		memMetric(0, "system.cpu.utilization"),
		memMetric(1, "http.server.duration"),
	}))

	byName, err := store.SearchMetrics(ctx, "CPU", 10, 0)
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "system.cpu.utilization", byName[0].Name)

	byAttr, err := store.SearchMetrics(ctx, "node-7", 10, 0)
	require.NoError(t, err)
	assert.Len(t, byAttr, 2, "attribute match applies to every metric")
}

func TestMemoryStore_SpansByTraceID(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.InsertSpans(ctx, []model.SpanRecord{
		memSpan(2, "trace-a"),
		memSpan(0, "trace-a"),
		memSpan(1, "trace-b"),
	}))

	got, err := store.SpansByTraceID(ctx, "trace-a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "span-000", got[0].ID, "trace spans come back oldest first")
	assert.Equal(t, "span-002", got[1].ID)

	missing, err := store.SpansByTraceID(ctx, "trace-z")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestMemoryStore_ConcurrentInserts(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	ctx := context.Background()

	var g errgroup.Group
	for w := 0; w < 10; w++ {
		w := w
		g.Go(func() error {
			var batch []model.LogRecord
			for i := 0; i < 10; i++ {
				batch = append(batch, memLog(w*10+i))
			}
			return store.InsertLogs(ctx, batch)
		})
	}
	require.NoError(t, g.Wait())

	got, err := store.LogPage(ctx, 200, 0)
	require.NoError(t, err)
	assert.Len(t, got, 100)
}

func TestMemoryStore_Close(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	require.NoError(t, store.Close())
}
