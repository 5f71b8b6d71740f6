package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrorType classifies errors produced by the fetch client and its transport
type ErrorType string

const (
	NetworkError     ErrorType = "network"
	TimeoutError     ErrorType = "timeout"
	HTTPError        ErrorType = "http"
	ValidationError  ErrorType = "validation"
	InterceptorError ErrorType = "interceptor"
	// FetchFailure is the terminal outcome of an exhausted or misconfigured call
	FetchFailure ErrorType = "fetch"
	// DecodeFailure is a 2xx response whose body is not valid JSON
	DecodeFailure ErrorType = "decode"
	// CanceledFailure is a call aborted by its context
	CanceledFailure ErrorType = "canceled"
)

// FetchErrorName is the kind tag written into serialized FetchError records
const FetchErrorName = "Fetcher Error"

// ClientError is implemented by every error type in this package
type ClientError interface {
	error
	Type() ErrorType
}

type networkError struct {
	message string
	err     error
}

// NewNetworkError reports a transport-level failure such as a refused connection
func NewNetworkError(message string, err error) ClientError {
	return &networkError{message: message, err: err}
}

func (e *networkError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("network error: %s: %v", e.message, e.err)
	}
	return "network error: " + e.message
}

func (e *networkError) Type() ErrorType { return NetworkError }
func (e *networkError) Unwrap() error   { return e.err }

type timeoutError struct {
	message string
	timeout time.Duration
}

// NewTimeoutError reports an attempt that exceeded the transport timeout
func NewTimeoutError(message string, timeout time.Duration) ClientError {
	return &timeoutError{message: message, timeout: timeout}
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %v)", e.message, e.timeout)
}

func (e *timeoutError) Type() ErrorType { return TimeoutError }

type httpError struct {
	message    string
	statusCode int
	body       []byte
}

// NewHTTPError reports a non-2xx response
func NewHTTPError(message string, statusCode int, body []byte) ClientError {
	return &httpError{message: message, statusCode: statusCode, body: body}
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP error: %s (status: %d)", e.message, e.statusCode)
}

func (e *httpError) Type() ErrorType { return HTTPError }
func (e *httpError) StatusCode() int { return e.statusCode }
func (e *httpError) Body() []byte    { return e.body }

type validationError struct {
	message string
	field   string
}

// NewValidationError reports a malformed request; no attempt is made
func NewValidationError(message, field string) ClientError {
	return &validationError{message: message, field: field}
}

func (e *validationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.message, e.field)
	}
	return "validation error: " + e.message
}

func (e *validationError) Type() ErrorType { return ValidationError }

type interceptorError struct {
	message string
	stage   string
	err     error
}

// NewInterceptorError reports a request or response interceptor failure
func NewInterceptorError(message, stage string, err error) ClientError {
	return &interceptorError{message: message, stage: stage, err: err}
}

func (e *interceptorError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("interceptor error: %s (stage: %s): %v", e.message, e.stage, e.err)
	}
	return fmt.Sprintf("interceptor error: %s (stage: %s)", e.message, e.stage)
}

func (e *interceptorError) Type() ErrorType { return InterceptorError }
func (e *interceptorError) Unwrap() error   { return e.err }

// FetchError is the terminal error of a call whose retry budget is exhausted,
// or whose policy allows no attempts at all. Its fields describe the last failed attempt.
type FetchError struct {
	Message    string
	Status     int
	StatusText string
	URL        string
	BodySent   any

	cause   error
	history []Failure
	config  bool
}

func newFetchError(last Failure, history []Failure) *FetchError {
	msg := last.ResponseText
	if msg == "" && last.Err != nil && last.Status == 0 {
		msg = last.Err.Error()
	}
	if msg == "" {
		msg = last.StatusText
	}
	return &FetchError{
		Message:    msg,
		Status:     last.Status,
		StatusText: last.StatusText,
		URL:        last.URL,
		BodySent:   last.BodySent,
		cause:      last.Err,
		history:    history,
	}
}

func newPolicyError(req *Request, policy RetryPolicy) *FetchError {
	return &FetchError{
		Message:  fmt.Sprintf("retry policy allows no attempts (max attempts %d)", policy.MaxAttempts),
		URL:      req.URL,
		BodySent: decodeForDiagnostics(req.Body),
		config:   true,
	}
}

func (e *FetchError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("fetch error: %s: %s", e.URL, e.Message)
	}
	return fmt.Sprintf("fetch error: %s returned %d %s: %s", e.URL, e.Status, e.StatusText, e.Message)
}

func (e *FetchError) Type() ErrorType { return FetchFailure }

// Unwrap returns the last attempt's transport or HTTP error, if any
func (e *FetchError) Unwrap() error { return e.cause }

// Config reports whether the call was rejected for an invalid retry policy
// rather than exhausted.
func (e *FetchError) Config() bool { return e.config }

// History returns every failed attempt in order; the last entry is the one the
// error fields were built from. It is empty for policy errors.
func (e *FetchError) History() []Failure {
	out := make([]Failure, len(e.history))
	copy(out, e.history)
	return out
}

type fetchErrorRecord struct {
	Name       string `json:"name"`
	Status     *int   `json:"status"`
	StatusText string `json:"statusText"`
	URL        string `json:"url"`
	BodySent   any    `json:"bodySent"`
}

func (e *FetchError) record() fetchErrorRecord {
	r := fetchErrorRecord{
		Name:       FetchErrorName,
		StatusText: e.StatusText,
		URL:        e.URL,
		BodySent:   e.BodySent,
	}
	if e.Status != 0 {
		status := e.Status
		r.Status = &status
	}
	return r
}

// Record returns the structured form used by logs and telemetry:
// name, status, statusText, url and bodySent. An unknown status is nil.
func (e *FetchError) Record() map[string]any {
	r := e.record()
	var status any
	if r.Status != nil {
		status = *r.Status
	}
	return map[string]any{
		"name":       r.Name,
		"status":     status,
		"statusText": r.StatusText,
		"url":        r.URL,
		"bodySent":   r.BodySent,
	}
}

// MarshalJSON encodes the same fields as Record
func (e *FetchError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.record())
}

// DecodeError is returned when a successful response carries a body that is not valid JSON.
// It is never retried.
type DecodeError struct {
	URL    string
	Status int
	Body   []byte
	err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %s returned %d with invalid JSON: %v", e.URL, e.Status, e.err)
}

func (e *DecodeError) Type() ErrorType { return DecodeFailure }
func (e *DecodeError) Unwrap() error   { return e.err }

// CanceledError is returned when the context ends before the call completes.
// errors.Is matches context.Canceled or context.DeadlineExceeded through it.
type CanceledError struct {
	URL      string
	Attempts int
	err      error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("fetch canceled: %s after %d attempt(s): %v", e.URL, e.Attempts, e.err)
}

func (e *CanceledError) Type() ErrorType { return CanceledFailure }
func (e *CanceledError) Unwrap() error   { return e.err }

// IsErrorType reports whether err, or any error it wraps, is a ClientError of the given type
func IsErrorType(err error, errorType ErrorType) bool {
	for err != nil {
		if ce, ok := err.(ClientError); ok && ce.Type() == errorType {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsHTTPStatusError reports whether err wraps a non-2xx response with the given status.
// A FetchError built from such a response also matches.
func IsHTTPStatusError(err error, statusCode int) bool {
	var he *httpError
	if errors.As(err, &he) {
		return he.statusCode == statusCode
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Status != 0 && fe.Status == statusCode
	}
	return false
}

// IsSuccessStatus reports whether statusCode is in the 2xx range
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
