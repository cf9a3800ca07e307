package main

import (
	"testing"
)

func TestListPath(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		limit  int
		offset int
		want   string
	}{
		{
			name:  "default flags send only limit",
			limit: 50,
			want:  "/api/v1/logs?limit=50",
		},
		{
			name:  "search text is escaped",
			query: "payment declined",
			limit: 50,
			want:  "/api/v1/logs?limit=50&q=payment+declined",
		},
		{
			name:   "offset appears when set",
			limit:  20,
			offset: 40,
			want:   "/api/v1/logs?limit=20&offset=40",
		},
		{
			name: "no flags leaves the path bare",
			want: "/api/v1/logs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldQuery, oldLimit, oldOffset := queryText, queryLimit, queryOffset
			defer func() {
				queryText, queryLimit, queryOffset = oldQuery, oldLimit, oldOffset
			}()

			queryText = tt.query
			queryLimit = tt.limit
			queryOffset = tt.offset

			got := listPath("/api/v1/logs")
			if got != tt.want {
				t.Errorf("listPath() = %q, want %q", got, tt.want)
			}
		})
	}
}
