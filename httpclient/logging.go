package httpclient

import (
	nethttp "net/http"
	"time"
)

const defaultMaxPayloadLogBytes = 1024

// logFailure reports one failed attempt at error level.
func (c *client) logFailure(f Failure) {
	safely(func() {
		ev := c.logger.Error().
			Int("attempt", f.Attempt).
			Str("url", f.URL).
			Int("status", f.Status).
			Str("status_text", f.StatusText).
			Interface("body_sent", f.BodySent).
			Str("response", truncate(f.ResponseText, maxLoggedResponseBytes))
		if f.Err != nil {
			ev = ev.Err(f.Err)
		}
		ev.Msg("Fetch attempt failed")
	})
}

// logRetry announces the next attempt at warn level.
func (c *client) logRetry(f Failure, remaining int, delay time.Duration) {
	safely(func() {
		c.logger.Warn().
			Int("attempt", f.Attempt).
			Int("remaining", remaining).
			Dur("delay", delay).
			Str("url", f.URL).
			Int("status", f.Status).
			Msg("Retrying fetch")
	})
}

// logRequest logs an outbound request summary, plus headers and a body preview
// when payload logging is enabled.
func (t *httpTransport) logRequest(req *nethttp.Request, body []byte, requestID string) {
	ev := t.logger.Info().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", requestID)
	if n := len(req.Header); n > 0 {
		ev = ev.Int("header_count", n)
	}
	if len(body) > 0 {
		ev = ev.Int("body_size", len(body))
	}
	ev.Msg("Fetch request")

	if !t.config.LogPayloads {
		return
	}
	preview, truncated := t.preview(body)
	t.logger.Debug().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("request_id", requestID).
		Interface("headers", req.Header).
		Int("body_size", len(body)).
		Bool("body_truncated", truncated).
		Bytes("body_preview", preview).
		Msg("Fetch request")
}

// logResponse logs an inbound response summary, plus headers and a body preview
// when payload logging is enabled.
func (t *httpTransport) logResponse(resp *Response, requestID string) {
	ev := t.logger.Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Elapsed).
		Str("request_id", requestID)
	if len(resp.Body) > 0 {
		ev = ev.Int("body_size", len(resp.Body))
	}
	ev.Msg("Fetch response")

	if !t.config.LogPayloads {
		return
	}
	preview, truncated := t.preview(resp.Body)
	t.logger.Debug().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Interface("headers", resp.Headers).
		Int("body_size", len(resp.Body)).
		Bool("body_truncated", truncated).
		Bytes("body_preview", preview).
		Msg("Fetch response")
}

func (t *httpTransport) preview(body []byte) ([]byte, bool) {
	limit := t.config.MaxPayloadLogBytes
	if limit <= 0 {
		limit = defaultMaxPayloadLogBytes
	}
	if len(body) > limit {
		return body[:limit], true
	}
	return body, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
