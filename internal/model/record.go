// Package model defines the telemetry records otelvault decodes, stores,
// and serves: logs, spans, and metric points, plus the attribute value
// type shared by all three.
package model

import "time"

// ServiceNameKey is the resource attribute that identifies the emitting
// service.
const ServiceNameKey = "service.name"

// DefaultServiceName is used when a record carries no service.name
// attribute.
const DefaultServiceName = "unknown"

// LogRecord is a single decoded log entry.
type LogRecord struct {
	// ID uniquely identifies the record. Assigned at decode time.
	ID string `json:"id"`

	// Timestamp is the instant the log was emitted.
	Timestamp time.Time `json:"timestamp"`

	// TraceID and SpanID correlate the log with a trace, when present.
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`

	// Severity is the emitter's severity text (or numeric severity as a
	// string when no text was supplied).
	Severity string `json:"severity,omitempty"`

	// Body is the log message.
	Body string `json:"body"`

	// Attributes carries record attributes merged with the resource
	// attributes of the emitting service.
	Attributes Attributes `json:"attributes"`
}

// SpanRecord is a single decoded span.
type SpanRecord struct {
	ID string `json:"id"`

	// TraceID groups the spans of one trace; SpanID identifies this span
	// within it.
	TraceID      string `json:"trace_id"`
	SpanID       string `json:"span_id"`
	ParentSpanID string `json:"parent_span_id,omitempty"`

	// Name is the operation name.
	Name string `json:"name"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// Status is "OK" or "ERROR", optionally followed by ": <message>".
	Status string `json:"status"`

	Attributes Attributes `json:"attributes"`
}

// Duration returns the span's elapsed time.
func (s SpanRecord) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// MetricRecord is a single decoded metric data point. Integer source
// values are widened to float64; histogram points are flattened into one
// record carrying the distribution sum.
type MetricRecord struct {
	ID string `json:"id"`

	// Name is the metric name (histogram points carry a "_histogram"
	// suffix).
	Name string `json:"name"`

	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`

	Attributes Attributes `json:"attributes"`
}

// Attributes is the key/value set attached to a record.
type Attributes map[string]Value

// ServiceName returns the service.name attribute, or DefaultServiceName
// when absent or empty.
func (a Attributes) ServiceName() string {
	v, ok := a[ServiceNameKey]
	if !ok {
		return DefaultServiceName
	}
	if s := v.String(); s != "" {
		return s
	}
	return DefaultServiceName
}

// Clone returns an independent copy of the attribute set. A nil receiver
// yields an empty, writable map.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
