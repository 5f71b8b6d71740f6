package httpclient

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brickworks/resilientfetch/logger"
)

func TestFetchAllKeepsOrderAndIndependentBudgets(t *testing.T) {
	var flakyCalls atomic.Int32
	tr := TransportFunc(func(_ context.Context, req *Request) (*Response, error) {
		switch {
		case strings.HasSuffix(req.URL, "/ok"):
			return &Response{StatusCode: 200, Body: []byte(`"ok"`)}, nil
		case strings.HasSuffix(req.URL, "/flaky"):
			if flakyCalls.Add(1) == 1 {
				return &Response{StatusCode: 503, Body: []byte("busy")}, nil
			}
			return &Response{StatusCode: 200, Body: []byte(`"recovered"`)}, nil
		default:
			return &Response{StatusCode: 404, Body: []byte("missing")}, nil
		}
	})
	c := newTestClient(logger.Nop(), tr, noSleep)

	reqs := []*Request{
		{URL: "https://api.example.com/ok"},
		{URL: "https://api.example.com/missing"},
		{URL: "https://api.example.com/flaky"},
	}
	results := FetchAll(context.Background(), c, reqs, RetryPolicy{MaxAttempts: 2}, 2)
	require.Len(t, results, 3)

	assert.Equal(t, "ok", results[0].Value)
	assert.NoError(t, results[0].Err)

	var ferr *FetchError
	require.ErrorAs(t, results[1].Err, &ferr)
	assert.Equal(t, 404, ferr.Status)
	assert.Len(t, ferr.History(), 2)

	assert.Equal(t, "recovered", results[2].Value)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, int32(2), flakyCalls.Load())
}

func TestFetchAllRespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	tr := TransportFunc(func(context.Context, *Request) (*Response, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return &Response{StatusCode: 200, Body: []byte(`{}`)}, nil
	})
	c := newTestClient(logger.Nop(), tr, noSleep)

	reqs := make([]*Request, 8)
	for i := range reqs {
		reqs[i] = &Request{URL: testItemsURL}
	}
	results := FetchAll(context.Background(), c, reqs, RetryPolicy{MaxAttempts: 1}, 3)

	require.Len(t, results, 8)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestFetchAllEmpty(t *testing.T) {
	c := newTestClient(logger.Nop(), TransportFunc(func(context.Context, *Request) (*Response, error) {
		t.Fatal("transport must not be called")
		return nil, nil
	}), noSleep)

	assert.Empty(t, FetchAll(context.Background(), c, nil, DefaultRetryPolicy(), 0))
}
