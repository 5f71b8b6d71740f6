package trace

import (
	"context"
	nethttp "net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var traceParentRe = regexp.MustCompile(`^00-[0-9a-f]{32}-[0-9a-f]{16}-01$`)

func TestEnsureRequestIDUsesContextValue(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", EnsureRequestID(ctx, func() string { return "generated" }))
}

func TestEnsureRequestIDGeneratesWhenMissing(t *testing.T) {
	assert.Equal(t, "generated", EnsureRequestID(context.Background(), func() string { return "generated" }))

	got := EnsureRequestID(context.Background(), nil)
	assert.Regexp(t, `^[a-f0-9\-]{36}$`, got)
}

func TestRequestIDFromContextIgnoresEmpty(t *testing.T) {
	_, ok := RequestIDFromContext(WithRequestID(context.Background(), ""))
	assert.False(t, ok)
}

func TestGenerateTraceParent(t *testing.T) {
	tp := GenerateTraceParent()
	assert.Regexp(t, traceParentRe, tp)
	assert.True(t, ValidTraceParent(tp))
	assert.NotEqual(t, tp, GenerateTraceParent())
}

func TestValidTraceParent(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"valid", "00-0123456789abcdef0123456789abcdef-0123456789abcdef-01", true},
		{"wrong version", "01-0123456789abcdef0123456789abcdef-0123456789abcdef-01", false},
		{"short trace id", "00-0123-0123456789abcdef-01", false},
		{"not hex", "00-zz23456789abcdef0123456789abcdef-0123456789abcdef-01", false},
		{"zero trace id", "00-00000000000000000000000000000000-0123456789abcdef-01", false},
		{"zero span id", "00-0123456789abcdef0123456789abcdef-0000000000000000-01", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidTraceParent(tt.value))
		})
	}
}

func TestPropagatorApply(t *testing.T) {
	t.Run("sets default header from context", func(t *testing.T) {
		h := nethttp.Header{}
		id := Propagator{}.Apply(WithRequestID(context.Background(), "ctx-id"), h)
		assert.Equal(t, "ctx-id", id)
		assert.Equal(t, "ctx-id", h.Get(HeaderXRequestID))
		assert.Empty(t, h.Get(HeaderTraceParent))
	})

	t.Run("keeps existing header", func(t *testing.T) {
		h := nethttp.Header{}
		h.Set("X-Correlation-ID", "caller")
		p := Propagator{Header: "X-Correlation-ID", Generate: func() string { return "new" }}
		assert.Equal(t, "caller", p.Apply(context.Background(), h))
		assert.Equal(t, "caller", h.Get("X-Correlation-ID"))
	})

	t.Run("w3c uses context traceparent when valid", func(t *testing.T) {
		in := "00-0123456789abcdef0123456789abcdef-0123456789abcdef-01"
		h := nethttp.Header{}
		Propagator{W3C: true}.Apply(WithTraceParent(context.Background(), in), h)
		assert.Equal(t, in, h.Get(HeaderTraceParent))
	})

	t.Run("w3c replaces invalid traceparent", func(t *testing.T) {
		h := nethttp.Header{}
		Propagator{W3C: true}.Apply(WithTraceParent(context.Background(), "garbage"), h)
		require.NotEmpty(t, h.Get(HeaderTraceParent))
		assert.Regexp(t, traceParentRe, h.Get(HeaderTraceParent))
	})
}
