// Package tracking records OpenTelemetry metrics and spans for fetch calls.
package tracking

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "resilientfetch/httpclient"

	// SpanName is the span covering one fetch call including all retries
	SpanName = "httpclient.fetch"

	MetricAttempts = "fetch.attempts"
	MetricRetries  = "fetch.retries"
	MetricFailures = "fetch.failures"
	MetricDuration = "fetch.duration"

	attrMethod    = "http.request.method"
	attrURL       = "url.full"
	attrStatus    = "http.response.status_code"
	attrOutcome   = "fetch.outcome"
	attrAttempt   = "fetch.attempt"
	attrErrorType = "error.type"
)

// Attempt outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder owns the instruments. A nil *Recorder records nothing.
type Recorder struct {
	tracer   trace.Tracer
	attempts metric.Int64Counter
	retries  metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// New creates a Recorder. Nil providers fall back to the otel globals.
func New(mp metric.MeterProvider, tp trace.TracerProvider) *Recorder {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	meter := mp.Meter(instrumentationName)
	r := &Recorder{tracer: tp.Tracer(instrumentationName)}

	var err error
	r.attempts, err = meter.Int64Counter(MetricAttempts,
		metric.WithDescription("Transport attempts made by fetch calls"),
		metric.WithUnit("{attempt}"))
	logMetricError(MetricAttempts, err)

	r.retries, err = meter.Int64Counter(MetricRetries,
		metric.WithDescription("Attempts scheduled after a failed attempt"),
		metric.WithUnit("{retry}"))
	logMetricError(MetricRetries, err)

	r.failures, err = meter.Int64Counter(MetricFailures,
		metric.WithDescription("Fetch calls that ended in an error"),
		metric.WithUnit("{call}"))
	logMetricError(MetricFailures, err)

	r.duration, err = meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Duration of fetch calls including retries"),
		metric.WithUnit("s"))
	logMetricError(MetricDuration, err)

	return r
}

func logMetricError(name string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: failed to initialize fetch metric %s: %v\n", name, err)
	}
}

// Call tracks a single fetch call.
type Call struct {
	r      *Recorder
	ctx    context.Context
	span   trace.Span
	start  time.Time
	method attribute.KeyValue
}

// Start opens the span for a call and returns the context carrying it.
func (r *Recorder) Start(ctx context.Context, method, url string) (context.Context, *Call) {
	if r == nil {
		return ctx, nil
	}
	ctx, span := r.tracer.Start(ctx, SpanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(attrMethod, method),
			attribute.String(attrURL, url),
		))
	return ctx, &Call{r: r, ctx: ctx, span: span, start: time.Now(), method: attribute.String(attrMethod, method)}
}

// Attempt records the outcome of one transport attempt. status is 0 when no response arrived.
func (c *Call) Attempt(attempt int, outcome string, status int) {
	if c == nil {
		return
	}
	if c.r.attempts != nil {
		c.r.attempts.Add(c.ctx, 1, metric.WithAttributes(c.method, attribute.String(attrOutcome, outcome)))
	}
	c.span.AddEvent("fetch.attempt", trace.WithAttributes(
		attribute.Int(attrAttempt, attempt),
		attribute.String(attrOutcome, outcome),
		attribute.Int(attrStatus, status),
	))
}

// Retry records that another attempt was scheduled.
func (c *Call) Retry() {
	if c == nil || c.r.retries == nil {
		return
	}
	c.r.retries.Add(c.ctx, 1, metric.WithAttributes(c.method))
}

// End closes the call. errorType is empty on success.
func (c *Call) End(errorType string) {
	if c == nil {
		return
	}
	outcome := OutcomeSuccess
	if errorType != "" {
		outcome = OutcomeFailure
		if c.r.failures != nil {
			c.r.failures.Add(c.ctx, 1, metric.WithAttributes(c.method, attribute.String(attrErrorType, errorType)))
		}
		c.span.SetAttributes(attribute.String(attrErrorType, errorType))
		c.span.SetStatus(codes.Error, errorType)
	} else {
		c.span.SetStatus(codes.Ok, "")
	}
	if c.r.duration != nil {
		c.r.duration.Record(c.ctx, time.Since(c.start).Seconds(),
			metric.WithAttributes(c.method, attribute.String(attrOutcome, outcome)))
	}
	c.span.End()
}
