package gojob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-accounts/core"
	command "github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

const (
	JobIDGitHubRefresh = "accounts.github.refresh"
	ParamUserID        = "user_id"

	// TerminalCodeMalformedMessage marks deliveries without a usable user id.
	TerminalCodeMalformedMessage job.TerminalErrorCode = "accounts_malformed_message"
	// TerminalCodeRefreshRejected marks refreshes that cannot succeed on retry.
	TerminalCodeRefreshRejected job.TerminalErrorCode = "accounts_refresh_rejected"
)

// Refresher is the slice of the orchestrator the refresh job needs.
type Refresher interface {
	RefreshGitHubConnection(ctx context.Context, userID string) (core.GitHubConnection, error)
}

// NewRefreshMessage builds the execution message for one user.
//
// The message carries no dedup policy: the commander's in-process tracker
// would drop every redelivery of a stable key, retries included. Concurrent
// refreshes for one user are already coalesced by the orchestrator.
func NewRefreshMessage(userID string) (*job.ExecutionMessage, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("gojob: user id is required")
	}
	msg := &job.ExecutionMessage{
		JobID:      JobIDGitHubRefresh,
		ScriptPath: JobIDGitHubRefresh,
		Parameters: map[string]any{ParamUserID: userID},
	}
	if err := queue.ValidateRequiredMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func EnqueueRefresh(ctx context.Context, enqueuer queue.Enqueuer, userID string) (queue.EnqueueReceipt, error) {
	if enqueuer == nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: enqueuer is not configured")
	}
	msg, err := NewRefreshMessage(userID)
	if err != nil {
		return queue.EnqueueReceipt{}, err
	}
	return enqueuer.Enqueue(ctx, msg)
}

var errMalformedMessage = errors.New("gojob: malformed refresh message")

func userIDFromMessage(msg *job.ExecutionMessage) (string, error) {
	if msg == nil {
		return "", errMalformedMessage
	}
	userID, _ := msg.Parameters[ParamUserID].(string)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("%w: %s parameter is required", errMalformedMessage, ParamUserID)
	}
	return userID, nil
}

// RefreshTask runs RefreshGitHubConnection for the user named in the
// message. Failures the orchestrator marks as not retryable come back as
// job.NonRetryableError so the worker dead-letters them.
type RefreshTask struct {
	refresher Refresher
	timeout   time.Duration
}

func NewRefreshTask(refresher Refresher, timeout time.Duration) (*RefreshTask, error) {
	if refresher == nil {
		return nil, fmt.Errorf("gojob: refresher is required")
	}
	return &RefreshTask{refresher: refresher, timeout: timeout}, nil
}

func (t *RefreshTask) GetID() string            { return JobIDGitHubRefresh }
func (t *RefreshTask) GetPath() string          { return JobIDGitHubRefresh }
func (t *RefreshTask) GetConfig() job.Config    { return job.Config{} }
func (t *RefreshTask) GetEngine() job.Engine    { return nil }
func (t *RefreshTask) GetHandler() func() error { return func() error { return nil } }

func (t *RefreshTask) GetHandlerConfig() job.HandlerOptions {
	if t == nil {
		return job.HandlerOptions{}
	}
	return job.HandlerOptions{HandlerConfig: command.HandlerConfig{Timeout: t.timeout}}
}

func (t *RefreshTask) Execute(ctx context.Context, msg *job.ExecutionMessage) error {
	if t == nil || t.refresher == nil {
		return fmt.Errorf("gojob: refresh task is not configured")
	}
	userID, err := userIDFromMessage(msg)
	if err != nil {
		return job.NewTerminalError(TerminalCodeMalformedMessage, err.Error(), err)
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	_, err = t.refresher.RefreshGitHubConnection(ctx, userID)
	if err == nil {
		return nil
	}
	if !core.IsRetryable(err) {
		reason := core.TextCodeOf(err)
		if reason == "" {
			reason = err.Error()
		}
		return job.NewTerminalError(TerminalCodeRefreshRejected, reason, err)
	}
	return err
}

var _ job.Task = (*RefreshTask)(nil)
