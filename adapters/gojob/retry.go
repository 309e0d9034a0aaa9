package gojob

import (
	"time"

	"github.com/goliatone/go-accounts/core"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

// RetryPolicy wraps the worker's backoff policy and stretches the retry
// delay to the provider's Retry-After hint when one was reported.
type RetryPolicy struct {
	Base worker.DefaultRetryPolicy
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Base: worker.DefaultRetryPolicy{
			MaxAttempts: 5,
			Backoff: worker.BackoffConfig{
				Strategy:    worker.BackoffExponential,
				Interval:    5 * time.Second,
				MaxInterval: 5 * time.Minute,
			},
		},
	}
}

func (p RetryPolicy) Decide(attempt int, err error) queue.NackOptions {
	opts := p.Base.Decide(attempt, err)
	if opts.Disposition != queue.NackDispositionRetry {
		return opts
	}
	if hint := core.RetryAfterOf(err); hint > opts.Delay {
		opts.Delay = hint
	}
	return opts
}

var _ worker.RetryPolicy = RetryPolicy{}
