package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	nethttp "net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/brickworks/resilientfetch/logger"
	"github.com/brickworks/resilientfetch/trace"
)

const (
	// HeaderXRequestID is the default header carrying the request ID
	HeaderXRequestID = trace.HeaderXRequestID
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = trace.HeaderTraceParent

	defaultTimeout = 30 * time.Second
)

// RequestInterceptor is called before the request is sent
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after headers are received and before the body is read
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Config configures the net/http transport
type Config struct {
	// Timeout bounds one attempt, including reading the body
	Timeout              time.Duration
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	BasicAuth            *BasicAuth
	DefaultHeaders       map[string]string
	// LogPayloads enables debug-level logging of headers and body previews
	LogPayloads bool
	// MaxPayloadLogBytes caps logged body bytes (default 1024)
	MaxPayloadLogBytes int
	// TraceIDHeader names the request ID header (default X-Request-ID)
	TraceIDHeader string
	// NewTraceID generates request IDs when the context carries none (default uuid)
	NewTraceID func() string
	// EnableW3CTrace propagates or generates a traceparent header
	EnableW3CTrace bool
	// HTTPClient replaces the underlying client; Timeout is ignored when set
	HTTPClient *nethttp.Client
}

// clone copies c so later changes to its headers or interceptors do not reach
// a transport built from it.
func (c *Config) clone() *Config {
	out := *c
	out.RequestInterceptors = slices.Clone(c.RequestInterceptors)
	out.ResponseInterceptors = slices.Clone(c.ResponseInterceptors)
	out.DefaultHeaders = maps.Clone(c.DefaultHeaders)
	if c.BasicAuth != nil {
		auth := *c.BasicAuth
		out.BasicAuth = &auth
	}
	return &out
}

type httpTransport struct {
	hc         *nethttp.Client
	config     *Config
	logger     logger.Logger
	propagator trace.Propagator
}

var _ Transport = (*httpTransport)(nil)

// NewHTTPTransport returns a Transport backed by net/http.
func NewHTTPTransport(log logger.Logger, cfg *Config) Transport {
	if cfg == nil {
		cfg = &Config{}
	}
	if log == nil {
		log = logger.Nop()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &nethttp.Client{Timeout: timeout}
	}
	return &httpTransport{
		hc:     hc,
		config: cfg,
		logger: log,
		propagator: trace.Propagator{
			Header:   cfg.TraceIDHeader,
			Generate: cfg.NewTraceID,
			W3C:      cfg.EnableW3CTrace,
		},
	}
}

func (t *httpTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := t.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	requestID := t.propagator.Apply(ctx, httpReq.Header)

	for _, intercept := range t.config.RequestInterceptors {
		if err := intercept(ctx, httpReq); err != nil {
			return nil, NewInterceptorError("request interceptor failed", "request", err)
		}
	}

	safely(func() { t.logRequest(httpReq, req.Body, requestID) })

	start := time.Now()
	httpResp, err := t.hc.Do(httpReq)
	if err != nil {
		return nil, t.classify(err)
	}
	defer httpResp.Body.Close()

	for _, intercept := range t.config.ResponseInterceptors {
		if err := intercept(ctx, httpReq, httpResp); err != nil {
			return nil, NewInterceptorError("response interceptor failed", "response", err)
		}
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, t.classify(err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		StatusText: statusText(httpResp),
		URL:        httpResp.Request.URL.String(),
		Headers:    httpResp.Header,
		Body:       body,
		Elapsed:    time.Since(start),
	}
	safely(func() { t.logResponse(resp, requestID) })
	return resp, nil
}

func (t *httpTransport) buildRequest(ctx context.Context, req *Request) (*nethttp.Request, error) {
	var body io.Reader = nethttp.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := nethttp.NewRequestWithContext(ctx, req.method(), req.URL, body)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("invalid request: %v", err), "URL")
	}

	for k, v := range t.config.DefaultHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" && json.Valid(req.Body) {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	auth := req.Auth
	if auth == nil {
		auth = t.config.BasicAuth
	}
	if auth != nil {
		httpReq.SetBasicAuth(auth.Username, auth.Password)
	}
	return httpReq, nil
}

func (t *httpTransport) classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeoutError(err.Error(), t.hc.Timeout)
	}
	return NewNetworkError("request failed", err)
}

// statusText strips the numeric code from "503 Service Unavailable".
func statusText(resp *nethttp.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = nethttp.StatusText(resp.StatusCode)
	}
	return text
}
