// Package otlp flattens OTLP export requests into storable records.
//
// Decoding is total: it never returns an error. Malformed or unknown
// attribute variants degrade to their text form, and unsupported metric
// shapes are skipped. Structural validation of the envelope belongs to
// the RPC layer.
package otlp

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/otelvault/otelvault/internal/model"
)

// Histogram data points flatten to a single record named after the metric
// with this suffix, carrying the distribution summary as attributes.
const (
	histogramSuffix   = "_histogram"
	histogramCountKey = "histogram.count"
	histogramSumKey   = "histogram.sum"
)

// DecodeLogs flattens an export request into one LogRecord per log entry,
// in resource, scope, entry order. Resource attributes fold into every
// record; record-level keys win on collision.
func DecodeLogs(req *collogspb.ExportLogsServiceRequest) []model.LogRecord {
	if req == nil {
		return nil
	}
	var out []model.LogRecord
	for _, rl := range req.GetResourceLogs() {
		resource := decodeKeyValues(rl.GetResource().GetAttributes())
		for _, sl := range rl.GetScopeLogs() {
			for _, lr := range sl.GetLogRecords() {
				attrs := resource.Clone()
				mergeKeyValues(attrs, lr.GetAttributes())
				ensureServiceName(attrs)
				out = append(out, model.LogRecord{
					ID:         uuid.NewString(),
					Timestamp:  fromUnixNano(lr.GetTimeUnixNano()),
					TraceID:    hexID(lr.GetTraceId()),
					SpanID:     hexID(lr.GetSpanId()),
					Severity:   logSeverity(lr),
					Body:       decodeAnyValue(lr.GetBody()).String(),
					Attributes: attrs,
				})
			}
		}
	}
	return out
}

// DecodeSpans flattens an export request into one SpanRecord per span, in
// resource, scope, span order.
func DecodeSpans(req *coltracepb.ExportTraceServiceRequest) []model.SpanRecord {
	if req == nil {
		return nil
	}
	var out []model.SpanRecord
	for _, rs := range req.GetResourceSpans() {
		resource := decodeKeyValues(rs.GetResource().GetAttributes())
		for _, ss := range rs.GetScopeSpans() {
			for _, sp := range ss.GetSpans() {
				attrs := resource.Clone()
				mergeKeyValues(attrs, sp.GetAttributes())
				ensureServiceName(attrs)
				out = append(out, model.SpanRecord{
					ID:           uuid.NewString(),
					TraceID:      hexID(sp.GetTraceId()),
					SpanID:       hexID(sp.GetSpanId()),
					ParentSpanID: hexID(sp.GetParentSpanId()),
					Name:         sp.GetName(),
					StartTime:    fromUnixNano(sp.GetStartTimeUnixNano()),
					EndTime:      fromUnixNano(sp.GetEndTimeUnixNano()),
					Status:       spanStatus(sp.GetStatus()),
					Attributes:   attrs,
				})
			}
		}
	}
	return out
}

// DecodeMetrics flattens an export request into one MetricRecord per data
// point. Gauge and Sum points carry the point value (integers widened to
// float64). Histogram points carry the distribution sum and synthetic
// histogram.count / histogram.sum attributes. ExponentialHistogram and
// Summary points are skipped.
func DecodeMetrics(req *colmetricspb.ExportMetricsServiceRequest) []model.MetricRecord {
	if req == nil {
		return nil
	}
	var out []model.MetricRecord
	for _, rm := range req.GetResourceMetrics() {
		resource := decodeKeyValues(rm.GetResource().GetAttributes())
		for _, sm := range rm.GetScopeMetrics() {
			for _, m := range sm.GetMetrics() {
				switch data := m.GetData().(type) {
				case *metricspb.Metric_Gauge:
					for _, dp := range data.Gauge.GetDataPoints() {
						out = append(out, numberRecord(m.GetName(), dp, resource))
					}
				case *metricspb.Metric_Sum:
					for _, dp := range data.Sum.GetDataPoints() {
						out = append(out, numberRecord(m.GetName(), dp, resource))
					}
				case *metricspb.Metric_Histogram:
					for _, dp := range data.Histogram.GetDataPoints() {
						out = append(out, histogramRecord(m.GetName(), dp, resource))
					}
				}
			}
		}
	}
	return out
}

func numberRecord(name string, dp *metricspb.NumberDataPoint, resource model.Attributes) model.MetricRecord {
	attrs := resource.Clone()
	mergeKeyValues(attrs, dp.GetAttributes())
	ensureServiceName(attrs)

	var value float64
	switch v := dp.GetValue().(type) {
	case *metricspb.NumberDataPoint_AsDouble:
		value = v.AsDouble
	case *metricspb.NumberDataPoint_AsInt:
		value = float64(v.AsInt)
	}

	return model.MetricRecord{
		ID:         uuid.NewString(),
		Name:       name,
		Timestamp:  fromUnixNano(dp.GetTimeUnixNano()),
		Value:      value,
		Attributes: attrs,
	}
}

func histogramRecord(name string, dp *metricspb.HistogramDataPoint, resource model.Attributes) model.MetricRecord {
	attrs := resource.Clone()
	mergeKeyValues(attrs, dp.GetAttributes())
	attrs[histogramCountKey] = model.IntValue(int64(dp.GetCount()))
	attrs[histogramSumKey] = model.DoubleValue(dp.GetSum())
	ensureServiceName(attrs)

	return model.MetricRecord{
		ID:         uuid.NewString(),
		Name:       name + histogramSuffix,
		Timestamp:  fromUnixNano(dp.GetTimeUnixNano()),
		Value:      dp.GetSum(),
		Attributes: attrs,
	}
}

func decodeKeyValues(kvs []*commonpb.KeyValue) model.Attributes {
	attrs := make(model.Attributes, len(kvs)+1)
	mergeKeyValues(attrs, kvs)
	return attrs
}

func mergeKeyValues(dst model.Attributes, kvs []*commonpb.KeyValue) {
	for _, kv := range kvs {
		if kv == nil {
			continue
		}
		dst[kv.GetKey()] = decodeAnyValue(kv.GetValue())
	}
}

func decodeAnyValue(v *commonpb.AnyValue) model.Value {
	switch t := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return model.StringValue(t.StringValue)
	case *commonpb.AnyValue_BoolValue:
		return model.BoolValue(t.BoolValue)
	case *commonpb.AnyValue_IntValue:
		return model.IntValue(t.IntValue)
	case *commonpb.AnyValue_DoubleValue:
		return model.DoubleValue(t.DoubleValue)
	case *commonpb.AnyValue_BytesValue:
		return model.BytesValue(t.BytesValue)
	default:
		// Array, kvlist, unset, and future variants degrade to text.
		if v == nil {
			return model.StringValue("")
		}
		return model.StringValue(v.String())
	}
}

func ensureServiceName(attrs model.Attributes) {
	if _, ok := attrs[model.ServiceNameKey]; !ok {
		attrs[model.ServiceNameKey] = model.StringValue(model.DefaultServiceName)
	}
}

func logSeverity(lr *logspb.LogRecord) string {
	if s := lr.GetSeverityText(); s != "" {
		return s
	}
	return lr.GetSeverityNumber().String()
}

func spanStatus(st *tracepb.Status) string {
	code := "OK"
	if st.GetCode() == tracepb.Status_STATUS_CODE_ERROR {
		code = "ERROR"
	}
	if msg := st.GetMessage(); msg != "" {
		return code + ": " + msg
	}
	return code
}

func hexID(id []byte) string {
	if len(id) == 0 {
		return ""
	}
	return hex.EncodeToString(id)
}

func fromUnixNano(nanos uint64) time.Time {
	return time.Unix(0, int64(nanos)).UTC()
}
