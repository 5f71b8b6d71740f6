// Package httpclient provides a fetch client that retries failed HTTP calls a
// bounded number of times with a fixed pause, and reports exhausted calls as a
// structured FetchError.
package httpclient

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"strings"
	"time"
)

const (
	// DefaultMaxAttempts is the retry budget used when none is configured
	DefaultMaxAttempts = 12
	// DefaultRetryDelay is the pause between attempts used when none is configured
	DefaultRetryDelay = 2000 * time.Millisecond
)

// Client fetches JSON resources with bounded retry.
// A Client holds no per-call state; concurrent calls are independent.
type Client interface {
	// Fetch issues req until it succeeds or the policy is exhausted and returns
	// the decoded JSON body of the first 2xx response.
	Fetch(ctx context.Context, req *Request, policy RetryPolicy) (any, error)
	// FetchInto is Fetch decoding into out, which must be a non-nil pointer.
	FetchInto(ctx context.Context, req *Request, policy RetryPolicy, out any) error
	// DefaultPolicy is the policy configured on the builder.
	DefaultPolicy() RetryPolicy
}

// Request describes one logical call. It is read, never modified or retained.
type Request struct {
	URL    string `validate:"required"`
	// Method defaults to GET; any HTTP token is sent as given
	Method string `validate:"omitempty,httpmethod"`
	// Headers keys are case-insensitive
	Headers map[string]string
	Body    []byte
	Auth    *BasicAuth
}

// Header returns the value of the named header, matching names case-insensitively.
func (r *Request) Header(name string) string {
	if v, ok := r.Headers[name]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func (r *Request) method() string {
	if r.Method == "" {
		return nethttp.MethodGet
	}
	return r.Method
}

// BasicAuth contains basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// Response is what a Transport returns for a request that reached the server.
type Response struct {
	StatusCode int
	StatusText string
	// URL is the final URL after redirects
	URL     string
	Headers nethttp.Header
	Body    []byte
	Elapsed time.Duration
}

// OK reports whether the status is in the 2xx range
func (r *Response) OK() bool { return IsSuccessStatus(r.StatusCode) }

// Text returns the body as a string
func (r *Response) Text() string { return string(r.Body) }

// JSON decodes the body into out
func (r *Response) JSON(out any) error { return json.Unmarshal(r.Body, out) }

// Transport performs a single network exchange.
// An error means no response was received (connection refused, timeout, ...).
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to Transport
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// Send calls f(ctx, req)
func (f TransportFunc) Send(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// RetryObserver is told about every failed attempt that will be retried.
// It cannot influence the retry loop.
type RetryObserver func(ctx context.Context, failure Failure)

// RetryPolicy bounds one call.
type RetryPolicy struct {
	// MaxAttempts counts the first attempt; values below 1 are rejected
	MaxAttempts int
	// Delay is the constant pause between attempts
	Delay   time.Duration
	OnRetry RetryObserver
}

// DefaultRetryPolicy returns 12 attempts with a 2s pause
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultRetryDelay}
}

// Failure describes one failed attempt. Fields the transport could not
// provide are left at their zero value.
type Failure struct {
	Attempt    int
	Status     int
	StatusText string
	URL        string
	// BodySent is the request body decoded as JSON, or its text when it is not JSON
	BodySent     any
	ResponseText string
	// Err is the transport error, or an HTTP error for non-2xx responses
	Err error
}
