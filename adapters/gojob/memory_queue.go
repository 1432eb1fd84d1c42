package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

const dedupPolicyDrop = "drop"

// MemoryQueue is a process-local go-job queue. Dequeue never blocks: it
// returns a nil delivery when nothing is ready.
type MemoryQueue struct {
	mu         sync.Mutex
	pending    []*memoryEntry
	deadLetter []*job.ExecutionMessage
	now        func() time.Time
}

type memoryEntry struct {
	msg     *job.ExecutionMessage
	readyAt time.Time
	leased  bool
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{now: func() time.Time { return time.Now().UTC() }}
}

func (q *MemoryQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	if q == nil {
		return fmt.Errorf("gojob: memory queue is nil")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	key := strings.TrimSpace(msg.IdempotencyKey)
	if key != "" && strings.EqualFold(string(msg.DedupPolicy), dedupPolicyDrop) {
		for _, entry := range q.pending {
			if strings.TrimSpace(entry.msg.IdempotencyKey) == key {
				return nil
			}
		}
	}
	q.pending = append(q.pending, &memoryEntry{msg: cloneExecutionMessage(msg), readyAt: q.now()})
	return nil
}

func (q *MemoryQueue) Dequeue(_ context.Context) (queue.Delivery, error) {
	if q == nil {
		return nil, fmt.Errorf("gojob: memory queue is nil")
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for _, entry := range q.pending {
		if entry.leased || entry.readyAt.After(now) {
			continue
		}
		entry.leased = true
		return &memoryDelivery{queue: q, entry: entry}, nil
	}
	return nil, nil
}

// Len reports queued messages, including leased and delayed ones.
func (q *MemoryQueue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *MemoryQueue) DeadLetters() []*job.ExecutionMessage {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*job.ExecutionMessage, 0, len(q.deadLetter))
	for _, msg := range q.deadLetter {
		out = append(out, cloneExecutionMessage(msg))
	}
	return out
}

func (q *MemoryQueue) remove(target *memoryEntry) {
	for i, entry := range q.pending {
		if entry == target {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

type memoryDelivery struct {
	queue *MemoryQueue
	entry *memoryEntry
	done  bool
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return cloneExecutionMessage(d.entry.msg)
}

func (d *memoryDelivery) Ack(context.Context) error {
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()
	if d.done {
		return fmt.Errorf("gojob: delivery already settled")
	}
	d.done = true
	d.queue.remove(d.entry)
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()
	if d.done {
		return fmt.Errorf("gojob: delivery already settled")
	}
	d.done = true
	if opts.DeadLetter || !opts.Requeue {
		d.queue.remove(d.entry)
		if opts.DeadLetter {
			d.queue.deadLetter = append(d.queue.deadLetter, d.entry.msg)
		}
		return nil
	}
	delay := opts.Delay
	if delay < 0 {
		delay = 0
	}
	d.entry.leased = false
	d.entry.readyAt = d.queue.now().Add(delay)
	return nil
}

func cloneExecutionMessage(msg *job.ExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	out := *msg
	out.Parameters = copyAnyMap(msg.Parameters)
	return &out
}

var (
	_ queue.Enqueuer = (*MemoryQueue)(nil)
	_ queue.Dequeuer = (*MemoryQueue)(nil)
	_ queue.Delivery = (*memoryDelivery)(nil)
)
