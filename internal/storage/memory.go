package storage

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/otelvault/otelvault/internal/model"
)

// MemoryStore keeps records in per-kind append-only slices. Each kind has
// its own mutex, held only for the append or the full scan, never across
// I/O. Intended for development and tests; nothing survives a restart.
type MemoryStore struct {
	logMu sync.Mutex
	logs  []model.LogRecord

	spanMu sync.Mutex
	spans  []model.SpanRecord

	metricMu sync.Mutex
	metrics  []model.MetricRecord
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// InsertLogs appends the batch in order.
func (s *MemoryStore) InsertLogs(_ context.Context, records []model.LogRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.logMu.Lock()
	s.logs = append(s.logs, records...)
	s.logMu.Unlock()
	return nil
}

// LogPage returns a page of logs ordered by descending timestamp.
func (s *MemoryStore) LogPage(_ context.Context, limit, offset int) ([]model.LogRecord, error) {
	recs := s.snapshotLogs()
	sort.Slice(recs, func(i, j int) bool { return recs[i].Timestamp.After(recs[j].Timestamp) })
	return page(recs, limit, offset), nil
}

// SearchLogs returns logs whose body or serialized attributes contain the
// term, ordered by descending timestamp.
func (s *MemoryStore) SearchLogs(_ context.Context, term string, limit, offset int) ([]model.LogRecord, error) {
	all := s.snapshotLogs()
	recs := all[:0:0]
	for _, r := range all {
		if matches(term, r.Body, r.Attributes) {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Timestamp.After(recs[j].Timestamp) })
	return page(recs, limit, offset), nil
}

// InsertSpans appends the batch in order.
func (s *MemoryStore) InsertSpans(_ context.Context, records []model.SpanRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.spanMu.Lock()
	s.spans = append(s.spans, records...)
	s.spanMu.Unlock()
	return nil
}

// SpanPage returns a page of spans ordered by descending start time.
func (s *MemoryStore) SpanPage(_ context.Context, limit, offset int) ([]model.SpanRecord, error) {
	recs := s.snapshotSpans()
	sort.Slice(recs, func(i, j int) bool { return recs[i].StartTime.After(recs[j].StartTime) })
	return page(recs, limit, offset), nil
}

// SearchSpans returns spans whose name or serialized attributes contain
// the term, ordered by descending start time.
func (s *MemoryStore) SearchSpans(_ context.Context, term string, limit, offset int) ([]model.SpanRecord, error) {
	all := s.snapshotSpans()
	recs := all[:0:0]
	for _, r := range all {
		if matches(term, r.Name, r.Attributes) {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].StartTime.After(recs[j].StartTime) })
	return page(recs, limit, offset), nil
}

// SpansByTraceID returns the spans of one trace ascending by start time,
// root first.
func (s *MemoryStore) SpansByTraceID(_ context.Context, traceID string) ([]model.SpanRecord, error) {
	all := s.snapshotSpans()
	recs := all[:0:0]
	for _, r := range all {
		if r.TraceID == traceID {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].StartTime.Before(recs[j].StartTime) })
	return recs, nil
}

// InsertMetrics appends the batch in order.
func (s *MemoryStore) InsertMetrics(_ context.Context, records []model.MetricRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.metricMu.Lock()
	s.metrics = append(s.metrics, records...)
	s.metricMu.Unlock()
	return nil
}

// MetricPage returns a page of metrics ordered by descending timestamp.
func (s *MemoryStore) MetricPage(_ context.Context, limit, offset int) ([]model.MetricRecord, error) {
	recs := s.snapshotMetrics()
	sort.Slice(recs, func(i, j int) bool { return recs[i].Timestamp.After(recs[j].Timestamp) })
	return page(recs, limit, offset), nil
}

// SearchMetrics returns metrics whose name or serialized attributes
// contain the term, ordered by descending timestamp.
func (s *MemoryStore) SearchMetrics(_ context.Context, term string, limit, offset int) ([]model.MetricRecord, error) {
	all := s.snapshotMetrics()
	recs := all[:0:0]
	for _, r := range all {
		if matches(term, r.Name, r.Attributes) {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Timestamp.After(recs[j].Timestamp) })
	return page(recs, limit, offset), nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) snapshotLogs() []model.LogRecord {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	recs := make([]model.LogRecord, len(s.logs))
	copy(recs, s.logs)
	return recs
}

func (s *MemoryStore) snapshotSpans() []model.SpanRecord {
	s.spanMu.Lock()
	defer s.spanMu.Unlock()
	recs := make([]model.SpanRecord, len(s.spans))
	copy(recs, s.spans)
	return recs
}

func (s *MemoryStore) snapshotMetrics() []model.MetricRecord {
	s.metricMu.Lock()
	defer s.metricMu.Unlock()
	recs := make([]model.MetricRecord, len(s.metrics))
	copy(recs, s.metrics)
	return recs
}

// page applies the shared limit/offset rules to a sorted slice.
func page[T any](recs []T, limit, offset int) []T {
	if limit <= 0 || offset < 0 || offset >= len(recs) {
		return nil
	}
	end := offset + limit
	if end > len(recs) {
		end = len(recs)
	}
	return recs[offset:end]
}

// matches reports whether term occurs in the primary text field or in the
// JSON-serialized attribute set, ignoring case.
func matches(term, primary string, attrs model.Attributes) bool {
	t := strings.ToLower(term)
	if strings.Contains(strings.ToLower(primary), t) {
		return true
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), t)
}
