package agent

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hupe1980/echokernel/core"
)

// retryTransient runs op up to retries+1 times while it fails with a
// transient error (provider timeout or unavailable). Other errors stop at once.
func retryTransient[T any](ctx context.Context, retries int, delay time.Duration, op func() (T, error)) (T, error) {
	if retries < 0 {
		retries = 0
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = delay
	b.MaxInterval = 10 * delay

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !core.IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(retries+1)), backoff.WithMaxElapsedTime(0))
}
