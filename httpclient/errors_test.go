package httpclient

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConnectionFailed = "connection failed"

func TestErrorTypeFormatting(t *testing.T) {
	tests := []struct {
		name     string
		error    ClientError
		contains []string
	}{
		{
			name:     "network error without wrapped error",
			error:    NewNetworkError(testConnectionFailed, nil),
			contains: []string{"network error", testConnectionFailed},
		},
		{
			name:     "network error with wrapped error",
			error:    NewNetworkError(testConnectionFailed, errors.New("underlying issue")),
			contains: []string{"network error", testConnectionFailed, "underlying issue"},
		},
		{
			name:     "timeout error",
			error:    NewTimeoutError("request timeout", 30*time.Second),
			contains: []string{"timeout error", "request timeout", "30s"},
		},
		{
			name:     "http error",
			error:    NewHTTPError("bad request", 400, []byte("invalid input")),
			contains: []string{"HTTP error", "bad request", "400"},
		},
		{
			name:     "validation error with field",
			error:    NewValidationError("failed required check", "URL"),
			contains: []string{"validation error", "failed required check", "URL"},
		},
		{
			name:     "interceptor error",
			error:    NewInterceptorError("processing failed", "request", errors.New("parsing error")),
			contains: []string{"interceptor error", "processing failed", "request", "parsing error"},
		},
		{
			name:     "fetch error with status",
			error:    &FetchError{Message: "boom", Status: 500, StatusText: "Internal Server Error", URL: testItemsURL},
			contains: []string{"fetch error", testItemsURL, "500", "Internal Server Error", "boom"},
		},
		{
			name:     "fetch error without status",
			error:    &FetchError{Message: "dial tcp: refused", URL: testItemsURL},
			contains: []string{"fetch error", testItemsURL, "dial tcp: refused"},
		},
		{
			name:     "decode error",
			error:    &DecodeError{URL: testItemsURL, Status: 200, err: errors.New("invalid character")},
			contains: []string{"decode error", testItemsURL, "200", "invalid character"},
		},
		{
			name:     "canceled error",
			error:    &CanceledError{URL: testItemsURL, Attempts: 2, err: context.Canceled},
			contains: []string{"fetch canceled", "2 attempt", "context canceled"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errorMsg := tt.error.Error()
			for _, expected := range tt.contains {
				assert.Contains(t, errorMsg, expected)
			}
		})
	}
}

func TestErrorTypeIdentification(t *testing.T) {
	tests := []struct {
		error    ClientError
		expected ErrorType
	}{
		{NewNetworkError("test", nil), NetworkError},
		{NewTimeoutError("test", time.Second), TimeoutError},
		{NewHTTPError("test", 500, nil), HTTPError},
		{NewValidationError("test", "field"), ValidationError},
		{NewInterceptorError("test", "stage", nil), InterceptorError},
		{&FetchError{}, FetchFailure},
		{&DecodeError{}, DecodeFailure},
		{&CanceledError{}, CanceledFailure},
	}

	for _, tt := range tests {
		t.Run(string(tt.expected), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.error.Type())
		})
	}
}

func TestErrorUnwrapping(t *testing.T) {
	t.Run("network error", func(t *testing.T) {
		underlyingErr := errors.New("connection refused")
		netErr := NewNetworkError("failed to connect", underlyingErr)

		assert.ErrorIs(t, netErr, underlyingErr)

		var target *networkError
		require.ErrorAs(t, netErr, &target)
		assert.Equal(t, "failed to connect", target.message)
	})

	t.Run("interceptor error", func(t *testing.T) {
		underlyingErr := errors.New("parsing failed")
		intErr := NewInterceptorError("interceptor failed", "request", underlyingErr)

		assert.ErrorIs(t, intErr, underlyingErr)

		var target *interceptorError
		require.ErrorAs(t, intErr, &target)
		assert.Equal(t, "request", target.stage)
	})

	t.Run("fetch error unwraps last cause", func(t *testing.T) {
		underlying := errors.New("socket closed")
		last := Failure{Attempt: 3, URL: testItemsURL, Err: NewNetworkError("request failed", underlying)}
		ferr := newFetchError(last, []Failure{last})

		assert.ErrorIs(t, ferr, underlying)
		assert.True(t, IsErrorType(ferr, NetworkError))
		assert.Equal(t, last.Err.Error(), ferr.Message)
	})

	t.Run("canceled error unwraps context error", func(t *testing.T) {
		cerr := &CanceledError{err: context.DeadlineExceeded}
		assert.ErrorIs(t, cerr, context.DeadlineExceeded)
	})
}

func TestNewFetchErrorMessage(t *testing.T) {
	tests := []struct {
		name    string
		failure Failure
		want    string
	}{
		{
			name:    "response text wins",
			failure: Failure{Status: 500, StatusText: "Internal Server Error", ResponseText: testBoomBody},
			want:    testBoomBody,
		},
		{
			name:    "empty body falls back to status text",
			failure: Failure{Status: 404, StatusText: "Not Found", Err: NewHTTPError("Not Found", 404, nil)},
			want:    "Not Found",
		},
		{
			name:    "transport error text",
			failure: Failure{Err: NewTimeoutError("deadline", time.Second)},
			want:    "timeout error: deadline (timeout: 1s)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newFetchError(tt.failure, nil).Message)
		})
	}
}

func TestPolicyErrorRecord(t *testing.T) {
	ferr := newPolicyError(&Request{URL: testItemsURL}, RetryPolicy{MaxAttempts: 0})

	assert.True(t, ferr.Config())
	assert.Contains(t, ferr.Message, "max attempts 0")
	assert.Nil(t, ferr.Unwrap())

	data, err := ferr.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Fetcher Error","status":null,"statusText":"","url":"https://api.example.com/items","bodySent":null}`, string(data))
}

func TestHTTPErrorBodyAccess(t *testing.T) {
	for _, body := range [][]byte{nil, {}, []byte(`{"error": "invalid request"}`), {0x89, 0x50, 0x4E, 0x47}} {
		httpErr := NewHTTPError("test error", 500, body)

		var he *httpError
		require.ErrorAs(t, httpErr, &he)
		assert.Equal(t, body, he.Body())
		assert.Equal(t, 500, he.StatusCode())
	}
}

func TestErrorTypeUtilities(t *testing.T) {
	t.Run("IsErrorType", func(t *testing.T) {
		tests := []struct {
			name      string
			error     error
			errorType ErrorType
			expected  bool
		}{
			{"nil error", nil, NetworkError, false},
			{"network error matches", NewNetworkError("test", nil), NetworkError, true},
			{"network error doesn't match timeout", NewNetworkError("test", nil), TimeoutError, false},
			{"standard error doesn't match", errors.New("standard error"), NetworkError, false},
			{"string concatenation is not wrapping", errors.New("wrapper: " + NewHTTPError("test", 400, nil).Error()), HTTPError, false},
			{"fmt wrapped error matches", fmt.Errorf("load items: %w", NewHTTPError("test", 400, nil)), HTTPError, true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Equal(t, tt.expected, IsErrorType(tt.error, tt.errorType))
			})
		}
	})

	t.Run("IsHTTPStatusError", func(t *testing.T) {
		tests := []struct {
			name       string
			error      error
			statusCode int
			expected   bool
		}{
			{"nil error", nil, 404, false},
			{"http error with matching status", NewHTTPError("not found", 404, nil), 404, true},
			{"http error with different status", NewHTTPError("server error", 500, nil), 404, false},
			{"non-http error", NewNetworkError(testConnectionFailed, nil), 404, false},
			{"fetch error with status", &FetchError{Status: 429}, 429, true},
			{"fetch error without status", &FetchError{}, 0, false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Equal(t, tt.expected, IsHTTPStatusError(tt.error, tt.statusCode))
			})
		}
	})

	t.Run("IsSuccessStatus", func(t *testing.T) {
		tests := []struct {
			statusCode int
			expected   bool
		}{
			{199, false},
			{200, true},
			{204, true},
			{299, true},
			{300, false},
			{404, false},
			{500, false},
		}

		for _, tt := range tests {
			t.Run(fmt.Sprintf("status_%d", tt.statusCode), func(t *testing.T) {
				assert.Equal(t, tt.expected, IsSuccessStatus(tt.statusCode))
			})
		}
	})
}

func TestErrorChaining(t *testing.T) {
	underlying := errors.New("socket closed")
	network := NewNetworkError("connection lost", underlying)
	interceptor := NewInterceptorError("request processing failed", "pre-request", network)

	assert.ErrorIs(t, interceptor, underlying)
	assert.ErrorIs(t, interceptor, network)

	var netErr *networkError
	require.ErrorAs(t, interceptor, &netErr)
	assert.Equal(t, "connection lost", netErr.message)
	assert.True(t, IsErrorType(interceptor, NetworkError))
}
