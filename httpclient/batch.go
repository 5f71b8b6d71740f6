package httpclient

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one request in FetchAll
type Result struct {
	Value any
	Err   error
}

// FetchAll runs every request as an independent call with its own retry budget,
// at most limit at a time (limit <= 0 means no limit). Results keep the order of
// reqs; a failing call never cancels the others.
func FetchAll(ctx context.Context, c Client, reqs []*Request, policy RetryPolicy, limit int) []Result {
	results := make([]Result, len(reqs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		g.Go(func() error {
			v, err := c.Fetch(ctx, req, policy)
			results[i] = Result{Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
