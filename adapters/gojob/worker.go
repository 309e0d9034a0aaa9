package gojob

import (
	"fmt"
	"time"

	"github.com/goliatone/go-accounts/adapters/gologger"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

const defaultRefreshTimeout = 30 * time.Second

type workerConfig struct {
	policy      worker.RetryPolicy
	logger      glog.Logger
	hooks       []worker.Hook
	timeout     time.Duration
	concurrency int
	idleDelay   time.Duration
}

type WorkerOption func(*workerConfig)

func WithRetryPolicy(policy worker.RetryPolicy) WorkerOption {
	return func(c *workerConfig) {
		if policy != nil {
			c.policy = policy
		}
	}
}

func WithLogger(logger glog.Logger) WorkerOption {
	return func(c *workerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHooks adds lifecycle hooks after the logging hook.
func WithHooks(hooks ...worker.Hook) WorkerOption {
	return func(c *workerConfig) {
		c.hooks = append(c.hooks, hooks...)
	}
}

// WithTimeout bounds a single refresh execution.
func WithTimeout(timeout time.Duration) WorkerOption {
	return func(c *workerConfig) {
		c.timeout = timeout
	}
}

func WithConcurrency(concurrency int) WorkerOption {
	return func(c *workerConfig) {
		c.concurrency = concurrency
	}
}

func WithIdleDelay(delay time.Duration) WorkerOption {
	return func(c *workerConfig) {
		c.idleDelay = delay
	}
}

// NewRefreshWorker builds a go-job worker with the refresh task registered.
// Success acks, retryable failures are nacked with backoff and everything
// else is dead-lettered.
func NewRefreshWorker(dequeuer queue.Dequeuer, refresher Refresher, opts ...WorkerOption) (*worker.Worker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	cfg := workerConfig{
		policy:      DefaultRetryPolicy(),
		logger:      glog.Nop(),
		timeout:     defaultRefreshTimeout,
		concurrency: 1,
		idleDelay:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	task, err := NewRefreshTask(refresher, cfg.timeout)
	if err != nil {
		return nil, err
	}

	hooks := append([]worker.Hook{NewLoggingHook(cfg.logger)}, cfg.hooks...)
	w := worker.NewWorker(dequeuer,
		worker.WithRetryPolicy(cfg.policy),
		worker.WithLogger(gologger.ToJobLogger(cfg.logger)),
		worker.WithHooks(hooks...),
		worker.WithConcurrency(cfg.concurrency),
		worker.WithIdleDelay(cfg.idleDelay),
	)
	if err := w.Register(task); err != nil {
		return nil, fmt.Errorf("gojob: register refresh task: %w", err)
	}
	return w, nil
}
