package model

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited throttles calls to an underlying Model with a token bucket.
type RateLimited struct {
	next    Model
	limiter *rate.Limiter
}

// NewRateLimited wraps m so that each Generate waits on limiter first.
// rps <= 0 disables throttling; NewRateLimited then returns m unchanged.
func NewRateLimited(m Model, rps float64, burst int) Model {
	if rps <= 0 {
		return m
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: m, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Generate waits for a token and then delegates.
func (r *RateLimited) Generate(ctx context.Context, req Request) (Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Response{}, err
	}
	return r.next.Generate(ctx, req)
}

// Info implements Model.
func (r *RateLimited) Info() Info { return r.next.Info() }
