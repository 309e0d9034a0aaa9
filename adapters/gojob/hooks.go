package gojob

import (
	"context"

	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

// LoggingHook reports refresh worker lifecycle events through glog.
type LoggingHook struct {
	logger glog.Logger
}

func NewLoggingHook(logger glog.Logger) *LoggingHook {
	return &LoggingHook{logger: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(_ context.Context, event worker.Event) {
	if h == nil {
		return
	}
	h.logger.Debug("refresh job started", eventFields(event)...)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event worker.Event) {
	if h == nil {
		return
	}
	h.logger.Info("refresh job succeeded", eventFields(event)...)
}

func (h *LoggingHook) OnFailure(_ context.Context, event worker.Event) {
	if h == nil {
		return
	}
	h.logger.Error("refresh job failed", eventFields(event)...)
}

func (h *LoggingHook) OnRetry(_ context.Context, event worker.Event) {
	if h == nil {
		return
	}
	h.logger.Warn("refresh job retrying", eventFields(event)...)
}

func eventFields(event worker.Event) []any {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	fields := []any{"attempt", event.Attempt, "duration", event.Duration}
	if message != nil {
		fields = append(fields, "job_id", message.JobID)
		if userID, ok := message.Parameters[ParamUserID].(string); ok {
			fields = append(fields, "user_id", userID)
		}
	}
	if event.Delay > 0 {
		fields = append(fields, "delay", event.Delay)
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err)
	}
	return fields
}

var _ worker.Hook = (*LoggingHook)(nil)
