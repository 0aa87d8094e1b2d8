package kernel

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/echokernel/logging"
	"github.com/hupe1980/echokernel/model"
)

// executeTools runs the tool calls of one provider response, possibly in
// parallel, and returns one ToolInvocation per call in the original order.
func (k *Kernel) executeTools(ctx context.Context, calls []model.ToolCall) []ToolInvocation {
	n := len(calls)
	results := make([]ToolInvocation, n)
	if n == 0 {
		return results
	}

	// Fast path: single call, execute inline.
	if n == 1 {
		results[0] = k.executeOne(ctx, calls[0])
		return results
	}

	maxPar := k.opts.MaxParallelTools
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var g errgroup.Group
	g.SetLimit(maxPar)

	batchStart := time.Now()
	for i, call := range calls {
		g.Go(func() error {
			results[i] = k.executeOne(ctx, call)
			return nil
		})
	}
	_ = g.Wait()

	k.logger.Debug("kernel.tools.batch.complete", "count", n, "parallelism", maxPar, "duration_ms", time.Since(batchStart).Milliseconds())

	return results
}

func (k *Kernel) executeOne(ctx context.Context, call model.ToolCall) ToolInvocation {
	start := time.Now()
	out, err := k.tools.Execute(ctx, call)
	dur := time.Since(start)
	k.metrics.ObserveToolCall(call.Name, dur, err)
	if kl, ok := k.logger.(*logging.KernelLogger); ok {
		kl.LogToolCall(call.Name, dur, err)
	} else if err != nil {
		k.logger.Warn("tool.call.error", "tool", call.Name, "error", err.Error())
	}
	return ToolInvocation{Call: call, Output: out, Err: err}
}
