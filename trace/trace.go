// Package trace carries request correlation identifiers across outbound fetches.
// Identifiers travel in the context and are stamped onto outgoing headers by the
// HTTP transport.
package trace

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	nethttp "net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	traceParentKey contextKey = "traceparent"

	// HeaderXRequestID is the default header used to propagate request IDs
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = "traceparent"
)

// Generator produces a fresh request ID.
type Generator func() string

// NewRequestID returns a random UUID string.
func NewRequestID() string {
	return uuid.NewString()
}

// WithRequestID stores a request ID in the context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// EnsureRequestID returns the context request ID or a generated one.
// A nil generator falls back to NewRequestID.
func EnsureRequestID(ctx context.Context, gen Generator) string {
	if id, ok := RequestIDFromContext(ctx); ok {
		return id
	}
	if gen == nil {
		gen = NewRequestID
	}
	return gen()
}

// WithTraceParent stores a W3C traceparent value in the context
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return context.WithValue(ctx, traceParentKey, traceParent)
}

// ParentFromContext returns the traceparent stored in ctx, if any.
func ParentFromContext(ctx context.Context) (string, bool) {
	if tp, ok := ctx.Value(traceParentKey).(string); ok && tp != "" {
		return tp, true
	}
	return "", false
}

// GenerateTraceParent creates a sampled W3C traceparent value:
// "00-<32 hex trace id>-<16 hex span id>-01".
func GenerateTraceParent() string {
	traceID := randomID(16)
	spanID := randomID(8)
	return "00-" + hex.EncodeToString(traceID) + "-" + hex.EncodeToString(spanID) + "-01"
}

// ValidTraceParent reports whether v has the version-00 traceparent shape.
func ValidTraceParent(v string) bool {
	parts := strings.Split(v, "-")
	if len(parts) != 4 || parts[0] != "00" {
		return false
	}
	if len(parts[1]) != 32 || len(parts[2]) != 16 || len(parts[3]) != 2 {
		return false
	}
	for _, p := range parts[1:] {
		if _, err := hex.DecodeString(p); err != nil {
			return false
		}
	}
	return strings.Trim(parts[1], "0") != "" && strings.Trim(parts[2], "0") != ""
}

// Propagator stamps correlation headers on outgoing requests.
type Propagator struct {
	// Header is the request ID header name (default X-Request-ID)
	Header string
	// Generate creates IDs when the context carries none
	Generate Generator
	// W3C enables traceparent propagation
	W3C bool
}

// Apply sets correlation headers that are not already present and returns the
// request ID in effect.
func (p Propagator) Apply(ctx context.Context, h nethttp.Header) string {
	name := p.Header
	if name == "" {
		name = HeaderXRequestID
	}

	id := h.Get(name)
	if id == "" {
		id = EnsureRequestID(ctx, p.Generate)
		h.Set(name, id)
	}

	if p.W3C && h.Get(HeaderTraceParent) == "" {
		tp, ok := ParentFromContext(ctx)
		if !ok || !ValidTraceParent(tp) {
			tp = GenerateTraceParent()
		}
		h.Set(HeaderTraceParent, tp)
	}
	return id
}

func randomID(n int) []byte {
	b := make([]byte, n)
	if _, err := crand.Read(b); err != nil || allZero(b) {
		b[n-1] = 0x01
	}
	return b
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
