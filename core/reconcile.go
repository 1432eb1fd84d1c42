package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	JobIDConnectionReconcile = "socialink.connection.reconcile"

	defaultReconcileInitialBackoff = 30 * time.Second
	defaultReconcileMaxBackoff     = 15 * time.Minute
	defaultReconcileIdleWait       = 5 * time.Second
)

type BackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = defaultReconcileInitialBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultReconcileMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// ReconcilePending runs CheckConnection for records that hold a profile key
// but are not yet connected, so links completed without a client poll are
// still recorded.
func (s *Service) ReconcilePending(ctx context.Context, limit int) (result ReconcileResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["checked"] = result.Checked
		fields["connected"] = result.Connected
		fields["failed"] = result.Failed
		s.observeOperation(ctx, startedAt, "reconcile_pending", err, fields)
	}()

	if limit <= 0 {
		limit = s.config.Reconcile.BatchSize
	}
	if limit <= 0 {
		limit = defaultReconcileBatch
	}
	records, err := s.connectionStore.ListPending(ctx, limit)
	if err != nil {
		err = PersistenceError(err)
		return ReconcileResult{}, err
	}

	for _, record := range records {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
			return result, err
		}
		status, checkErr := s.CheckConnection(ctx, CheckConnectionRequest{
			Identity:   record.Identity,
			ProfileKey: record.ProviderProfileKey,
		})
		result.Checked++
		if checkErr != nil || status.ProviderError != nil || status.Persistence.Failed() {
			result.Failed++
			continue
		}
		if status.Connected {
			result.Connected++
		}
	}
	return result, nil
}

// EnqueueReconcile schedules a background CheckConnection for identity.
func (s *Service) EnqueueReconcile(ctx context.Context, identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return MissingIdentityError()
	}
	if s == nil || s.jobEnqueuer == nil {
		return s.mapError(fmt.Errorf("core: job enqueuer is not configured"))
	}
	return s.jobEnqueuer.Enqueue(ctx, NewReconcileMessage(identity))
}

func NewReconcileMessage(identity string) *JobExecutionMessage {
	identity = strings.TrimSpace(identity)
	return &JobExecutionMessage{
		JobID:          JobIDConnectionReconcile,
		ScriptPath:     JobIDConnectionReconcile,
		Parameters:     map[string]any{"identity": identity},
		IdempotencyKey: JobIDConnectionReconcile + ":" + identity,
		DedupPolicy:    "drop",
	}
}

type ReconcileWorkerOptions struct {
	MaxAttempts int
	Backoff     BackoffScheduler
	IdleWait    time.Duration
	Hook        JobWorkerHook
}

// ReconcileWorker drains reconcile jobs. A job is acked once the identity is
// confirmed connected and nacked with backoff otherwise, until the attempt
// budget is spent and the job is dead-lettered.
type ReconcileWorker struct {
	service     *Service
	dequeuer    JobDequeuer
	maxAttempts int
	backoff     BackoffScheduler
	idleWait    time.Duration
	hook        JobWorkerHook

	mu       sync.Mutex
	attempts map[string]int
}

func NewReconcileWorker(service *Service, dequeuer JobDequeuer, opts ReconcileWorkerOptions) (*ReconcileWorker, error) {
	if service == nil {
		return nil, fmt.Errorf("core: service is required")
	}
	if dequeuer == nil {
		return nil, fmt.Errorf("core: job dequeuer is required")
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = service.config.Reconcile.MaxAttempts
	}
	if maxAttempts < 1 {
		maxAttempts = defaultReconcileRetries
	}
	backoff := opts.Backoff
	if backoff == nil {
		backoff = ExponentialBackoffScheduler{}
	}
	idleWait := opts.IdleWait
	if idleWait <= 0 {
		idleWait = defaultReconcileIdleWait
	}
	return &ReconcileWorker{
		service:     service,
		dequeuer:    dequeuer,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		idleWait:    idleWait,
		hook:        opts.Hook,
		attempts:    map[string]int{},
	}, nil
}

// RunOnce handles at most one delivery. It reports whether a delivery was
// received.
func (w *ReconcileWorker) RunOnce(ctx context.Context) (bool, error) {
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if delivery == nil {
		return false, nil
	}

	msg := delivery.Message()
	if msg == nil || strings.TrimSpace(msg.JobID) != JobIDConnectionReconcile {
		return true, delivery.Nack(ctx, JobNackOptions{DeadLetter: true, Reason: "unsupported job"})
	}
	identity := strings.TrimSpace(fmt.Sprint(msg.Parameters["identity"]))
	if identity == "" || identity == "<nil>" {
		return true, delivery.Nack(ctx, JobNackOptions{DeadLetter: true, Reason: "identity is required"})
	}

	attemptKey := firstNonEmpty(msg.IdempotencyKey, identity)
	event := JobWorkerEvent{Message: msg, Attempt: w.currentAttempt(attemptKey) + 1, StartedAt: time.Now().UTC()}
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}

	status, err := w.service.CheckConnection(ctx, CheckConnectionRequest{Identity: identity})
	event.Duration = time.Since(event.StartedAt)
	if err == nil && status.ProviderError == nil && status.Connected && !status.Persistence.Failed() {
		w.reset(attemptKey)
		if w.hook != nil {
			w.hook.OnSuccess(ctx, event)
		}
		return true, delivery.Ack(ctx)
	}

	reason := "not connected"
	switch {
	case err != nil:
		reason = err.Error()
	case status.ProviderError != nil:
		reason = status.ProviderError.Error()
	case status.Persistence.Failed():
		reason = status.Persistence.Err.Error()
	}

	event.Err = fmt.Errorf("reconcile %s: %s", identity, reason)
	attempt := w.nextAttempt(attemptKey)
	if attempt >= w.maxAttempts {
		w.reset(attemptKey)
		if w.hook != nil {
			w.hook.OnFailure(ctx, event)
		}
		return true, delivery.Nack(ctx, JobNackOptions{DeadLetter: true, Reason: reason})
	}
	event.Delay = w.backoff.NextDelay(attempt)
	if w.hook != nil {
		w.hook.OnRetry(ctx, event)
	}
	return true, delivery.Nack(ctx, JobNackOptions{
		Requeue: true,
		Delay:   event.Delay,
		Reason:  reason,
	})
}

// Run processes deliveries until ctx is cancelled.
func (w *ReconcileWorker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		received, err := w.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			w.service.logError(ctx, "reconcile worker iteration failed", map[string]any{
				"error": err.Error(),
			})
		}
		if received && err == nil {
			continue
		}
		if waitErr := waitWithContext(ctx, w.idleWait); waitErr != nil {
			return nil
		}
	}
}

func (w *ReconcileWorker) nextAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *ReconcileWorker) currentAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attempts[key]
}

func (w *ReconcileWorker) reset(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, key)
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
