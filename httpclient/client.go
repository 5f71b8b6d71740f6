package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/brickworks/resilientfetch/httpclient/internal/tracking"
	"github.com/brickworks/resilientfetch/logger"
)

const maxLoggedResponseBytes = 2048

// Sleeper pauses for d or until ctx is done, returning ctx.Err() in the latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

type client struct {
	transport Transport
	logger    logger.Logger
	policy    RetryPolicy
	sleep     Sleeper
	tracker   *tracking.Recorder
	validate  *validator.Validate
}

var _ Client = (*client)(nil)

func (c *client) DefaultPolicy() RetryPolicy { return c.policy }

func (c *client) Fetch(ctx context.Context, req *Request, policy RetryPolicy) (any, error) {
	var out any
	if err := c.do(ctx, req, policy, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) FetchInto(ctx context.Context, req *Request, policy RetryPolicy, out any) error {
	return c.do(ctx, req, policy, out)
}

// FetchJSON fetches req with c and decodes the body into a T
func FetchJSON[T any](ctx context.Context, c Client, req *Request, policy RetryPolicy) (T, error) {
	var out T
	err := c.FetchInto(ctx, req, policy, &out)
	return out, err
}

func (c *client) do(ctx context.Context, req *Request, policy RetryPolicy, out any) error {
	if err := c.validateRequest(req); err != nil {
		return err
	}

	ctx, call := c.tracker.Start(ctx, req.method(), req.URL)

	if policy.MaxAttempts <= 0 {
		err := newPolicyError(req, policy)
		safely(func() {
			c.logger.Error().
				Str("url", req.URL).
				Int("max_attempts", policy.MaxAttempts).
				Interface("fetch_error", err.Record()).
				Msg("Fetch rejected: retry policy allows no attempts")
		})
		call.End(string(FetchFailure))
		return err
	}

	bodySent := decodeForDiagnostics(req.Body)
	var history []Failure

	for attempt, remaining := 1, policy.MaxAttempts; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return c.canceled(call, req, attempt-1, err)
		}

		resp, err := c.transport.Send(ctx, req)
		if err == nil && resp != nil && resp.OK() {
			call.Attempt(attempt, tracking.OutcomeSuccess, resp.StatusCode)
			if err := json.Unmarshal(resp.Body, out); err != nil {
				derr := &DecodeError{URL: responseURL(req, resp), Status: resp.StatusCode, Body: resp.Body, err: err}
				call.End(string(DecodeFailure))
				return derr
			}
			call.End("")
			return nil
		}
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				call.Attempt(attempt, tracking.OutcomeFailure, 0)
				return c.canceled(call, req, attempt, cerr)
			}
		}

		failure := newFailure(attempt, req, bodySent, resp, err)
		history = append(history, failure)
		call.Attempt(attempt, tracking.OutcomeFailure, failure.Status)
		c.logFailure(failure)

		remaining--
		if remaining == 0 {
			ferr := newFetchError(failure, history)
			call.End(string(FetchFailure))
			return ferr
		}

		c.logRetry(failure, remaining, policy.Delay)
		call.Retry()
		c.notify(ctx, policy.OnRetry, failure)

		if err := c.sleep(ctx, policy.Delay); err != nil {
			return c.canceled(call, req, attempt, err)
		}
	}
}

const methodTag = "httpmethod"

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation(methodTag, validMethod); err != nil {
		panic(err)
	}
	return v
}

// validMethod accepts any HTTP token (RFC 9110), the same set net/http sends.
func validMethod(fl validator.FieldLevel) bool {
	m := fl.Field().String()
	if m == "" {
		return false
	}
	for i := 0; i < len(m); i++ {
		if !isTokenChar(m[i]) {
			return false
		}
	}
	return true
}

func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}

func (c *client) validateRequest(req *Request) error {
	if req == nil {
		return NewValidationError("request is nil", "")
	}
	if err := c.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return NewValidationError("failed "+verrs[0].Tag()+" check", verrs[0].Field())
		}
		return NewValidationError(err.Error(), "")
	}
	return nil
}

func (c *client) canceled(call *tracking.Call, req *Request, attempts int, err error) error {
	call.End(string(CanceledFailure))
	safely(func() {
		c.logger.Warn().Str("url", req.URL).Int("attempts", attempts).Err(err).Msg("Fetch canceled")
	})
	return &CanceledError{URL: req.URL, Attempts: attempts, err: err}
}

// notify runs the observer; a panicking observer is logged and ignored.
func (c *client) notify(ctx context.Context, observer RetryObserver, f Failure) {
	if observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			safely(func() {
				c.logger.Error().Interface("panic", r).Int("attempt", f.Attempt).Msg("Retry observer panicked")
			})
		}
	}()
	observer(ctx, f)
}

// safely runs a logging call; the retry loop never fails because of its logger.
func safely(log func()) {
	defer func() { _ = recover() }()
	log()
}

func newFailure(attempt int, req *Request, bodySent any, resp *Response, err error) Failure {
	f := Failure{Attempt: attempt, URL: req.URL, BodySent: bodySent}
	if err != nil || resp == nil {
		if err == nil {
			err = NewNetworkError("transport returned no response", nil)
		}
		f.Err = err
		return f
	}

	f.Status = resp.StatusCode
	f.StatusText = resp.StatusText
	if f.StatusText == "" {
		f.StatusText = nethttp.StatusText(resp.StatusCode)
	}
	f.URL = responseURL(req, resp)
	f.ResponseText = resp.Text()
	f.Err = NewHTTPError(f.StatusText, resp.StatusCode, resp.Body)
	return f
}

func responseURL(req *Request, resp *Response) string {
	if resp != nil && resp.URL != "" {
		return resp.URL
	}
	return req.URL
}

// decodeForDiagnostics turns a request body into something readable in logs
// and error records: decoded JSON when possible, text otherwise.
func decodeForDiagnostics(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
