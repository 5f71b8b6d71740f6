// Package testing provides in-memory OpenTelemetry providers and assertions for
// tests that exercise fetch instrumentation.
//
// Usage:
//
//	tp := NewTestTraceProvider()
//	mp := NewTestMeterProvider()
//	client := httpclient.NewBuilder(log).
//		WithTracerProvider(tp).
//		WithMeterProvider(mp).
//		Build()
//
//	// run fetches, then
//	AssertSumInt64(t, mp.Collect(t), "fetch.attempts", 3)
//	span := NewSpanCollector(t, tp.Exporter).WithName("httpclient.fetch").First()
package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const metricNotFoundErrMsg = "metric %s not found"

// TestTraceProvider wraps the SDK TracerProvider and an in-memory exporter.
type TestTraceProvider struct {
	*sdktrace.TracerProvider
	Exporter *tracetest.InMemoryExporter
}

// NewTestTraceProvider creates a TracerProvider that exports spans synchronously to memory.
func NewTestTraceProvider() *TestTraceProvider {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	return &TestTraceProvider{
		TracerProvider: provider,
		Exporter:       exporter,
	}
}

// TestMeterProvider wraps the SDK MeterProvider and a manual reader.
type TestMeterProvider struct {
	*sdkmetric.MeterProvider
	Reader *sdkmetric.ManualReader
}

// NewTestMeterProvider creates a MeterProvider whose metrics are collected on demand.
func NewTestMeterProvider() *TestMeterProvider {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
	)

	return &TestMeterProvider{
		MeterProvider: provider,
		Reader:        reader,
	}
}

// Collect reads all metrics from the provider.
func (tmp *TestMeterProvider) Collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	err := tmp.Reader.Collect(context.Background(), &rm)
	require.NoError(t, err, "failed to collect metrics")
	return rm
}

// SpanCollector filters captured spans.
type SpanCollector struct {
	t     *testing.T
	spans tracetest.SpanStubs
}

// NewSpanCollector snapshots the spans held by exporter.
func NewSpanCollector(t *testing.T, exporter *tracetest.InMemoryExporter) *SpanCollector {
	t.Helper()
	return &SpanCollector{t: t, spans: exporter.GetSpans()}
}

func (sc *SpanCollector) Len() int {
	return len(sc.spans)
}

// WithName keeps spans with the given name.
func (sc *SpanCollector) WithName(name string) *SpanCollector {
	filtered := make(tracetest.SpanStubs, 0, len(sc.spans))
	for i := range sc.spans {
		if sc.spans[i].Name == name {
			filtered = append(filtered, sc.spans[i])
		}
	}
	return &SpanCollector{t: sc.t, spans: filtered}
}

// First returns the first span, failing the test when there is none.
func (sc *SpanCollector) First() tracetest.SpanStub {
	sc.t.Helper()
	require.NotEmpty(sc.t, sc.spans, "no spans in collection")
	return sc.spans[0]
}

// AssertCount asserts the number of collected spans.
func (sc *SpanCollector) AssertCount(expected int) *SpanCollector {
	sc.t.Helper()
	assert.Len(sc.t, sc.spans, expected, "unexpected number of spans")
	return sc
}

// AssertSpanAttribute asserts that span carries key with the expected string, int or bool value.
func AssertSpanAttribute(t *testing.T, span *tracetest.SpanStub, key string, expected any) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			assert.True(t, matchesValue(attr.Value, expected), "attribute %s = %v, want %v", key, attr.Value.Emit(), expected)
			return
		}
	}
	t.Errorf("attribute %s not found in span", key)
}

// AssertSpanStatus asserts the status code of a span.
func AssertSpanStatus(t *testing.T, span *tracetest.SpanStub, expectedCode codes.Code) {
	t.Helper()
	assert.Equal(t, expectedCode, span.Status.Code, "span status code mismatch")
}

// SpanEvents returns the events of span with the given name.
func SpanEvents(span *tracetest.SpanStub, name string) []sdktrace.Event {
	var events []sdktrace.Event
	for _, ev := range span.Events {
		if ev.Name == name {
			events = append(events, ev)
		}
	}
	return events
}

func matchesValue(attrValue attribute.Value, expected any) bool {
	switch v := expected.(type) {
	case string:
		return attrValue.AsString() == v
	case int:
		return attrValue.AsInt64() == int64(v)
	case int64:
		return attrValue.AsInt64() == v
	case bool:
		return attrValue.AsBool() == v
	default:
		return false
	}
}

// FindMetric finds a metric by name. Returns nil if not found.
func FindMetric(rm metricdata.ResourceMetrics, metricName string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == metricName {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// SumInt64 adds up the data points of an int64 counter whose attributes include
// every attribute in match.
func SumInt64(rm metricdata.ResourceMetrics, metricName string, match ...attribute.KeyValue) (int64, bool) {
	m := FindMetric(rm, metricName)
	if m == nil {
		return 0, false
	}
	data, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0, false
	}
	var total int64
	for _, dp := range data.DataPoints {
		if hasAll(dp.Attributes, match) {
			total += dp.Value
		}
	}
	return total, true
}

// HistogramCount returns the number of recordings of a float64 histogram whose
// attributes include every attribute in match.
func HistogramCount(rm metricdata.ResourceMetrics, metricName string, match ...attribute.KeyValue) (uint64, bool) {
	m := FindMetric(rm, metricName)
	if m == nil {
		return 0, false
	}
	data, ok := m.Data.(metricdata.Histogram[float64])
	if !ok {
		return 0, false
	}
	var count uint64
	for _, dp := range data.DataPoints {
		if hasAll(dp.Attributes, match) {
			count += dp.Count
		}
	}
	return count, true
}

// AssertSumInt64 asserts the filtered total of an int64 counter.
func AssertSumInt64(t *testing.T, rm metricdata.ResourceMetrics, metricName string, expected int64, match ...attribute.KeyValue) {
	t.Helper()
	total, ok := SumInt64(rm, metricName, match...)
	require.True(t, ok, metricNotFoundErrMsg, metricName)
	assert.Equal(t, expected, total, "metric %s value mismatch", metricName)
}

// AssertHistogramCount asserts the filtered recording count of a float64 histogram.
func AssertHistogramCount(t *testing.T, rm metricdata.ResourceMetrics, metricName string, expected uint64, match ...attribute.KeyValue) {
	t.Helper()
	count, ok := HistogramCount(rm, metricName, match...)
	require.True(t, ok, metricNotFoundErrMsg, metricName)
	assert.Equal(t, expected, count, "metric %s count mismatch", metricName)
}

func hasAll(set attribute.Set, match []attribute.KeyValue) bool {
	for _, kv := range match {
		v, ok := set.Value(kv.Key)
		if !ok || v.Type() != kv.Value.Type() || v.Emit() != kv.Value.Emit() {
			return false
		}
	}
	return true
}
