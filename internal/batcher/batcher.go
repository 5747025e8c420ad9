// Package batcher implements the bounded per-topic sample queue and its single-flight periodic flush to the
// persistence store.
package batcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sarayu-io/telemetrymon/internal/telemetry"
	"github.com/sarayu-io/telemetrymon/internal/telemetrylog"
)

const (
	// MaxQueueSize bounds QueuedSamples per topic; overflow drops the oldest entries.
	MaxQueueSize = 100
	// BatchSize is the number of samples removed from a topic's queue per flush tick.
	BatchSize = 10
	// FlushInterval is the period of the background flush ticker.
	FlushInterval = 1000 * time.Millisecond
)

// AppendOp is one topic's worth of samples to append during a flush.
type AppendOp struct {
	Topic   string
	Samples []telemetry.Sample
}

// Store is the external persistence store contract.
type Store interface {
	BulkAppendSamples(ctx context.Context, ops []AppendOp) error
}

// Batcher buffers samples per topic and flushes them to Store on a single-flight ticker.
type Batcher struct {
	store Store
	log   *slog.Logger

	mu     sync.Mutex
	queues map[string][]telemetry.Sample

	flushing  sync.Mutex
	stopFlush chan struct{}
}

// New constructs a Batcher and starts its background flush loop.
func New(store Store) *Batcher {
	b := &Batcher{
		store:     store,
		log:       telemetrylog.ForComponent("batcher"),
		queues:    make(map[string][]telemetry.Sample),
		stopFlush: make(chan struct{}),
	}

	go b.flushLoop(context.Background(), FlushInterval)

	return b
}

// Close stops the background flush loop.
func (b *Batcher) Close() {
	close(b.stopFlush)
}

// Enqueue appends sample to topic's queue, dropping the oldest entries if MaxQueueSize is exceeded.
func (b *Batcher) Enqueue(topic string, sample telemetry.Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := append(b.queues[topic], sample)
	if overflow := len(q) - MaxQueueSize; overflow > 0 {
		q = q[overflow:]
	}
	b.queues[topic] = q
}

// DropTopic discards any buffered samples for topic, matching unsubscribe semantics.
func (b *Batcher) DropTopic(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.queues, topic)
}

// QueueLen reports the current buffered sample count for topic; used by tests and diagnostics.
func (b *Batcher) QueueLen(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.queues[topic])
}

func (b *Batcher) flushLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopFlush:
			return
		case <-ticker.C:
			b.tryFlush(ctx)
		}
	}
}

// tryFlush is guarded by flushing so a tick arriving during an in-progress flush is skipped rather than queued.
func (b *Batcher) tryFlush(ctx context.Context) {
	if !b.flushing.TryLock() {
		return
	}
	defer b.flushing.Unlock()

	ops := b.drainBatches()
	if len(ops) == 0 {
		return
	}

	if err := b.store.BulkAppendSamples(ctx, ops); err != nil {
		b.log.With(telemetrylog.Error(err)).Warn("bulk append samples failed")
	}
}

func (b *Batcher) drainBatches() []AppendOp {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ops []AppendOp
	for topic, q := range b.queues {
		if len(q) == 0 {
			continue
		}

		n := BatchSize
		if n > len(q) {
			n = len(q)
		}

		batch := append([]telemetry.Sample(nil), q[:n]...)
		b.queues[topic] = q[n:]

		ops = append(ops, AppendOp{Topic: topic, Samples: batch})
	}

	return ops
}
