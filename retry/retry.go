package retry

import (
	"context"
	"sync/atomic"

	"github.com/Atronar/yt-dlp-web-api/faults"
	"github.com/Atronar/yt-dlp-web-api/logger"
)

// Policy grants at most one retry to a single job. A fresh Policy is made per
// job invocation; every fallible step of that job shares it, so once the
// retry has been spent later transient failures are returned as they are.
type Policy struct {
	spent   atomic.Bool
	onRetry func(err error)
}

// NewPolicy returns a policy with its retry still available. onRetry, when
// non-nil, observes the error that triggered the retry.
func NewPolicy(onRetry func(err error)) *Policy {
	return &Policy{onRetry: onRetry}
}

// Spent reports whether the retry has already been used.
func (p *Policy) Spent() bool {
	return p.spent.Load()
}

func (p *Policy) take() bool {
	return p.spent.CompareAndSwap(false, true)
}

// Do runs op once. If it fails with a transient error and the policy still
// has its retry, op is invoked exactly once more, immediately, and that
// second outcome is returned whatever it is. Any other failure is returned
// without retrying.
func Do[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	result, err := op(ctx)
	if err == nil || !faults.IsTransient(err) {
		return result, err
	}
	if ctx.Err() != nil || !p.take() {
		return result, err
	}

	logger.Warnf("Transient failure, retrying once: %v", err)
	if p.onRetry != nil {
		p.onRetry(err)
	}
	return op(ctx)
}

// Run is Do for operations that only produce an error.
func Run(ctx context.Context, p *Policy, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
