package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otelvault/otelvault/internal/model"
	"github.com/otelvault/otelvault/internal/query"
)

func TestFetchJSON(t *testing.T) {
	t.Run("successfully fetches and decodes", func(t *testing.T) {
		mockResp := query.LogsResponse{
			Logs: []model.LogRecord{
				{
					ID:        "log-1",
					Timestamp: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
					Severity:  "ERROR",
					Body:      "payment declined",
					Attributes: model.Attributes{
						"service.name": model.StringValue("billing"),
					},
				},
			},
		}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/logs", r.URL.Path)
			assert.Equal(t, "DECLINED", r.URL.Query().Get("q"))
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(mockResp)
		}))
		defer server.Close()

		oldServerURL := serverURL
		serverURL = server.URL
		defer func() { serverURL = oldServerURL }()

		var got query.LogsResponse
		err := fetchJSON("/api/v1/logs?q=DECLINED", &got)

		require.NoError(t, err)
		require.Len(t, got.Logs, 1)
		assert.Equal(t, "payment declined", got.Logs[0].Body)
		assert.Equal(t, "billing", got.Logs[0].Attributes.ServiceName())
	})

	t.Run("handles connection error", func(t *testing.T) {
		oldServerURL := serverURL
		serverURL = "http://localhost:99999" // Invalid port
		defer func() { serverURL = oldServerURL }()

		var got query.HealthResponse
		err := fetchJSON("/health", &got)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect")
	})

	t.Run("handles non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"storage query failed"}`))
		}))
		defer server.Close()

		oldServerURL := serverURL
		serverURL = server.URL
		defer func() { serverURL = oldServerURL }()

		var got query.LogsResponse
		err := fetchJSON("/api/v1/logs", &got)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
		assert.Contains(t, err.Error(), "storage query failed")
	})

	t.Run("handles invalid json response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("not valid json"))
		}))
		defer server.Close()

		oldServerURL := serverURL
		serverURL = server.URL
		defer func() { serverURL = oldServerURL }()

		var got query.LogsResponse
		err := fetchJSON("/api/v1/logs", &got)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode")
	})
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{
			name:   "short string unchanged",
			input:  "cpu.utilization",
			maxLen: 48,
			want:   "cpu.utilization",
		},
		{
			name:   "exact length unchanged",
			input:  "abcd",
			maxLen: 4,
			want:   "abcd",
		},
		{
			name:   "long string gets ellipsis",
			input:  "0123456789abcdef0123456789abcdef",
			maxLen: 16,
			want:   "0123456789abc...",
		},
		{
			name:   "empty string",
			input:  "",
			maxLen: 10,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.input, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
