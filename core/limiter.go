package core

import (
	"context"
	"fmt"
	"sync/atomic"
)

// ModelLimiter caps the model requests issued on behalf of one run. It is
// shared by every agent and kernel call reached from the run's context.
type ModelLimiter struct {
	max   int64
	count atomic.Int64
}

// NewModelLimiter creates a limiter allowing max calls. max <= 0 means unlimited.
func NewModelLimiter(max int) *ModelLimiter {
	return &ModelLimiter{max: int64(max)}
}

// Increment reserves one call and fails with KindBudgetExceeded once the
// budget is spent.
func (ml *ModelLimiter) Increment() error {
	n := ml.count.Add(1)
	if ml.max > 0 && n > ml.max {
		return NewError(KindBudgetExceeded, "model.limiter", fmt.Sprintf("max %d calls", ml.max), nil)
	}
	return nil
}

// Count returns the number of reserved calls, including rejected ones.
func (ml *ModelLimiter) Count() int { return int(ml.count.Load()) }

// Remaining returns the calls left, or -1 when unlimited.
func (ml *ModelLimiter) Remaining() int {
	if ml.max <= 0 {
		return -1
	}
	return int(max(ml.max-ml.count.Load(), 0))
}

type limiterKey struct{}

// WithModelLimiter attaches a per-run limiter to ctx.
func WithModelLimiter(ctx context.Context, ml *ModelLimiter) context.Context {
	return context.WithValue(ctx, limiterKey{}, ml)
}

// ModelLimiterFrom returns the limiter attached to ctx, or nil.
func ModelLimiterFrom(ctx context.Context) *ModelLimiter {
	ml, _ := ctx.Value(limiterKey{}).(*ModelLimiter)
	return ml
}
