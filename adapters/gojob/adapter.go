package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-socialink/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

// RetryPolicy shapes reconcile nacks before they reach the queue. The
// reconcile worker counts attempts and picks the backoff; the queue side only
// caps the delay and keeps requeue and dead-letter exclusive.
type RetryPolicy struct {
	MaxDelay time.Duration
}

func NewRetryPolicy(maxDelay time.Duration) RetryPolicy {
	if maxDelay < 0 {
		maxDelay = 0
	}
	return RetryPolicy{MaxDelay: maxDelay}
}

func (p RetryPolicy) normalize(opts core.JobNackOptions) queue.NackOptions {
	out := queue.NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     strings.TrimSpace(opts.Reason),
	}
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
		out.Delay = 0
	} else {
		out.Requeue = true
	}
	return out
}

// validateReconcileMessage rejects anything that is not a reconcile job for a
// single identity.
func validateReconcileMessage(msg *core.JobExecutionMessage) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("gojob: execution message is required")
	}
	if jobID := strings.TrimSpace(msg.JobID); jobID != core.JobIDConnectionReconcile {
		return "", fmt.Errorf("gojob: unsupported job %q", jobID)
	}
	identity, _ := msg.Parameters["identity"].(string)
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", fmt.Errorf("gojob: reconcile job requires an identity")
	}
	return identity, nil
}

func toExecutionMessage(msg *core.JobExecutionMessage, identity string) *job.ExecutionMessage {
	params := copyAnyMap(msg.Parameters)
	params["identity"] = identity
	idempotencyKey := strings.TrimSpace(msg.IdempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = core.JobIDConnectionReconcile + ":" + identity
	}
	dedup := strings.TrimSpace(msg.DedupPolicy)
	if dedup == "" {
		dedup = dedupPolicyDrop
	}
	return &job.ExecutionMessage{
		JobID:          core.JobIDConnectionReconcile,
		ScriptPath:     core.JobIDConnectionReconcile,
		Parameters:     params,
		IdempotencyKey: idempotencyKey,
		DedupPolicy:    job.DeduplicationPolicy(dedup),
	}
}

func fromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

// EnqueuerAdapter publishes reconcile jobs onto a go-job queue. Pending
// duplicates for the same identity are dropped by default.
type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	identity, err := validateReconcileMessage(msg)
	if err != nil {
		return err
	}
	return a.enqueuer.Enqueue(ctx, toExecutionMessage(msg, identity))
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return fromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Nack(ctx, d.policy.normalize(opts))
}

type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

// Dequeue returns nil, nil when nothing is ready.
func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, nil
	}
	return &DeliveryAdapter{delivery: delivery, policy: a.policy}, nil
}

func copyAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.JobEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer = (*DequeuerAdapter)(nil)
)
