package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/otelvault/otelvault/internal/config"
	"github.com/otelvault/otelvault/internal/model"
	"github.com/otelvault/otelvault/internal/storage"
)

var queryBase = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		server, err := NewServer(storage.NewMemoryStore(), zap.NewNop(), config.HTTPConfig{ListenAddr: ":8080"})
		require.NoError(t, err)
		assert.NotNil(t, server)
		assert.NotNil(t, server.echo)
	})

	t.Run("defaults listen address", func(t *testing.T) {
		server, err := NewServer(storage.NewMemoryStore(), zap.NewNop(), config.HTTPConfig{})
		require.NoError(t, err)
		assert.Equal(t, ":8080", server.config.ListenAddr)
	})

	t.Run("returns error when store is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), config.HTTPConfig{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "store cannot be nil")
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(storage.NewMemoryStore(), nil, config.HTTPConfig{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	err := json.Unmarshal(rec.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleLogs(t *testing.T) {
	t.Run("lists logs newest first", func(t *testing.T) {
		server := setupTestServer(t)

		resp := getLogs(t, server, "/api/v1/logs")
		require.Len(t, resp.Logs, 3)
		assert.Equal(t, "checkout finished", resp.Logs[0].Body)
		assert.Equal(t, "payment declined by issuer", resp.Logs[1].Body)
		assert.Equal(t, "checkout started", resp.Logs[2].Body)
	})

	t.Run("applies limit and offset", func(t *testing.T) {
		server := setupTestServer(t)

		resp := getLogs(t, server, "/api/v1/logs?limit=1&offset=1")
		require.Len(t, resp.Logs, 1)
		assert.Equal(t, "payment declined by issuer", resp.Logs[0].Body)
	})

	t.Run("searches bodies and attributes when q is set", func(t *testing.T) {
		server := setupTestServer(t)

		resp := getLogs(t, server, "/api/v1/logs?q=DECLINED")
		require.Len(t, resp.Logs, 1)
		assert.Equal(t, "payment declined by issuer", resp.Logs[0].Body)

		resp = getLogs(t, server, "/api/v1/logs?q=billing")
		require.Len(t, resp.Logs, 1)
		assert.Equal(t, model.StringValue("billing"), resp.Logs[0].Attributes["service.name"])
	})

	t.Run("returns empty array rather than null", func(t *testing.T) {
		server := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/logs?q=nosuchterm", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"logs":[]`)
	})

	t.Run("rejects invalid paging params", func(t *testing.T) {
		server := setupTestServer(t)

		for _, target := range []string{
			"/api/v1/logs?limit=abc",
			"/api/v1/logs?limit=0",
			"/api/v1/logs?limit=-5",
			"/api/v1/logs?offset=-1",
			"/api/v1/logs?offset=1.5",
		} {
			req := httptest.NewRequest(http.MethodGet, target, nil)
			rec := httptest.NewRecorder()
			server.echo.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code, "target %s", target)
		}
	})

	t.Run("clamps oversized limit", func(t *testing.T) {
		server := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/logs?limit=100000", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHandleSpans(t *testing.T) {
	t.Run("lists spans by latest start", func(t *testing.T) {
		server := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/spans", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp SpansResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Spans, 3)
		assert.Equal(t, "db.query", resp.Spans[0].Name)
	})

	t.Run("searches span names when q is set", func(t *testing.T) {
		server := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/spans?q=charge", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp SpansResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Spans, 1)
		assert.Equal(t, "charge.card", resp.Spans[0].Name)
	})
}

func TestHandleMetrics(t *testing.T) {
	t.Run("lists metric points", func(t *testing.T) {
		server := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp MetricsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Metrics, 3)
	})

	t.Run("searches metric names when q is set", func(t *testing.T) {
		server := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics?q=cpu", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp MetricsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Metrics, 2)
		for _, m := range resp.Metrics {
			assert.Equal(t, "system.cpu.utilization", m.Name)
		}
	})
}

func TestHandleTrace(t *testing.T) {
	t.Run("returns trace spans earliest first", func(t *testing.T) {
		server := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/traces/trace-a", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp TraceResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "trace-a", resp.TraceID)
		require.Len(t, resp.Spans, 2)
		assert.Equal(t, "HTTP POST /checkout", resp.Spans[0].Name)
		assert.Equal(t, "charge.card", resp.Spans[1].Name)
	})

	t.Run("unknown trace returns empty spans", func(t *testing.T) {
		server := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/traces/no-such-trace", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"spans":[]`)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	server := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
}

func TestMiddleware(t *testing.T) {
	t.Run("adds request ID to response", func(t *testing.T) {
		server := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()

		server.echo.ServeHTTP(rec, req)

		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("recovers from panic", func(t *testing.T) {
		server := setupTestServer(t)

		server.echo.GET("/panic", func(c echo.Context) error {
			panic("test panic")
		})

		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		rec := httptest.NewRecorder()

		assert.NotPanics(t, func() {
			server.echo.ServeHTTP(rec, req)
		})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestServerLifecycle(t *testing.T) {
	t.Run("starts and shuts down gracefully", func(t *testing.T) {
		server, err := NewServer(storage.NewMemoryStore(), zap.NewNop(), config.HTTPConfig{ListenAddr: "127.0.0.1:0"})
		require.NoError(t, err)

		errChan := make(chan error, 1)
		go func() {
			errChan <- server.Start()
		}()

		time.Sleep(100 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, server.Shutdown(ctx))

		select {
		case err := <-errChan:
			assert.True(t, err == nil || err == http.ErrServerClosed)
		case <-time.After(6 * time.Second):
			t.Fatal("server did not shut down in time")
		}
	})
}

func getLogs(t *testing.T, server *Server, target string) LogsResponse {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp LogsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// setupTestServer creates a query server over a seeded in-memory store.
func setupTestServer(t *testing.T) *Server {
	t.Helper()

	store := storage.NewMemoryStore()
	ctx := context.Background()

	logs := []model.LogRecord{
		{
			ID:        "log-1",
			Timestamp: queryBase,
			Severity:  "INFO",
			Body:      "checkout started",
		},
		{
			ID:        "log-2",
			Timestamp: queryBase.Add(time.Second),
			Severity:  "ERROR",
			Body:      "payment declined by issuer",
			Attributes: model.Attributes{
				"service.name": model.StringValue("billing"),
			},
		},
		{
			ID:        "log-3",
			Timestamp: queryBase.Add(2 * time.Second),
			Severity:  "INFO",
			Body:      "checkout finished",
		},
	}
	require.NoError(t, store.InsertLogs(ctx, logs))

	spans := []model.SpanRecord{
		{
			ID:        "span-1",
			TraceID:   "trace-a",
			SpanID:    "b7ad6b7169203331",
			Name:      "HTTP POST /checkout",
			StartTime: queryBase,
			EndTime:   queryBase.Add(10 * time.Millisecond),
			Status:    "OK",
		},
		{
			ID:           "span-2",
			TraceID:      "trace-a",
			SpanID:       "00f067aa0ba902b7",
			ParentSpanID: "b7ad6b7169203331",
			Name:         "charge.card",
			StartTime:    queryBase.Add(2 * time.Millisecond),
			EndTime:      queryBase.Add(8 * time.Millisecond),
			Status:       "ERROR: card declined",
		},
		{
			ID:        "span-3",
			TraceID:   "trace-b",
			SpanID:    "53995c3f42cd8ad8",
			Name:      "db.query",
			StartTime: queryBase.Add(5 * time.Millisecond),
			EndTime:   queryBase.Add(6 * time.Millisecond),
			Status:    "OK",
		},
	}
	require.NoError(t, store.InsertSpans(ctx, spans))

	metrics := []model.MetricRecord{
		{ID: "metric-1", Name: "system.cpu.utilization", Timestamp: queryBase, Value: 0.41},
		{ID: "metric-2", Name: "system.cpu.utilization", Timestamp: queryBase.Add(time.Second), Value: 0.44},
		{ID: "metric-3", Name: "http.server.duration", Timestamp: queryBase.Add(2 * time.Second), Value: 0.012},
	}
	require.NoError(t, store.InsertMetrics(ctx, metrics))

	server, err := NewServer(store, zap.NewNop(), config.HTTPConfig{ListenAddr: ":8080"})
	require.NoError(t, err)

	return server
}
