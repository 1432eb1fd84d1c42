package gologger

import (
	"context"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-socialink/core"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves glog logger/provider then returns equivalent go-job adapters.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}

// WorkerLogHook writes reconcile worker lifecycle events to a glog logger.
type WorkerLogHook struct {
	logger glog.Logger
}

func NewWorkerLogHook(logger glog.Logger) *WorkerLogHook {
	return &WorkerLogHook{logger: glog.Ensure(logger)}
}

func (h *WorkerLogHook) OnStart(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx, "debug", "reconcile job started", event)
}

func (h *WorkerLogHook) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx, "info", "reconcile job confirmed connection", event)
}

func (h *WorkerLogHook) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx, "error", "reconcile job dead-lettered", event)
}

func (h *WorkerLogHook) OnRetry(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx, "warn", "reconcile job scheduled for retry", event)
}

func (h *WorkerLogHook) log(ctx context.Context, level string, message string, event core.JobWorkerEvent) {
	if h == nil || h.logger == nil {
		return
	}
	logger := h.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	args := []any{"attempt", event.Attempt}
	if event.Message != nil {
		args = append(args, "job_id", event.Message.JobID, "identity", event.Message.Parameters["identity"])
	}
	if event.Delay > 0 {
		args = append(args, "delay", event.Delay.String())
	}
	if event.Duration > 0 {
		args = append(args, "duration_ms", event.Duration.Milliseconds())
	}
	if event.Err != nil {
		args = append(args, "error", event.Err.Error())
	}
	switch level {
	case "debug":
		logger.Debug(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "error":
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

var _ core.JobWorkerHook = (*WorkerLogHook)(nil)
