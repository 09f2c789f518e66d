package fetch

import (
	"context"
	"net/url"
)

// Candidate is one prioritized query in a probing fetch.
type Candidate struct {
	Path  string
	Query url.Values
}

// Probe tries candidates in order and returns the first response whose
// size (as reported by count) reaches minResults. When no candidate
// clears the threshold the largest response seen wins; when every
// candidate fails the last error is returned. Used for rosters where
// a filtered query can come back suspiciously small and an alternate
// query is worth a try.
func (c *Client) Probe(ctx context.Context, candidates []Candidate, minResults int, count func(*Object) int, opts ...CallOption) (*Object, error) {
	var (
		best     *Object
		bestSize = -1
		lastErr  error
	)
	for _, cand := range candidates {
		obj, err := c.GetJSON(ctx, cand.Path, cand.Query, opts...)
		if err != nil {
			lastErr = err
			continue
		}
		size := count(obj)
		if size >= minResults {
			return obj, nil
		}
		if size > bestSize {
			best = obj
			bestSize = size
		}
	}
	if best != nil {
		return best, nil
	}
	return nil, lastErr
}
