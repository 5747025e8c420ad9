// Package mailer implements the best-effort FIFO email queue and its SMTP dispatch worker loop.
package mailer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sarayu-io/telemetrymon/internal/telemetrylog"
)

const (
	// MaxRetries is the retry cap; an item is dropped once its retry counter would exceed it.
	MaxRetries = 3
	// RetryDelay is how long an item waits after a failed dispatch before it is eligible again.
	RetryDelay = 1000 * time.Millisecond
	// idlePoll is how long the worker loop sleeps when the queue is empty.
	idlePoll = 100 * time.Millisecond
)

// PendingEmail is one queued alert awaiting dispatch.
type PendingEmail struct {
	Recipients   []string
	Subject      string
	Body         string
	Retries      int
	NextEligible time.Time
}

// Gateway sends a single email to a single recipient.
type Gateway interface {
	SendMail(ctx context.Context, recipient, subject, body string) error
}

// Queue is a FIFO of PendingEmails drained by a single worker loop.
type Queue struct {
	gateway Gateway
	log     *slog.Logger

	mu    sync.Mutex
	items []PendingEmail

	stop chan struct{}
	done chan struct{}
}

// New constructs a Queue and starts its worker loop.
func New(gateway Gateway) *Queue {
	q := &Queue{
		gateway: gateway,
		log:     telemetrylog.ForComponent("mailer"),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go q.run(context.Background())

	return q
}

// Close stops the worker loop and waits for it to exit.
func (q *Queue) Close() {
	close(q.stop)
	<-q.done
}

// Enqueue appends an email to the tail of the queue with a fresh retry counter.
func (q *Queue) Enqueue(recipients []string, subject, body string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, PendingEmail{
		Recipients:   recipients,
		Subject:      subject,
		Body:         body,
		NextEligible: time.Now(),
	})
}

// Len reports the current queue length; used by tests and diagnostics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)

	for {
		select {
		case <-q.stop:
			return
		default:
		}

		if q.Len() == 0 {
			select {
			case <-q.stop:
				return
			case <-time.After(idlePoll):
			}
			continue
		}

		q.dispatchRound(ctx)
	}
}

// dispatchRound dequeues every head item eligible for dispatch right now, dispatches them all in parallel, and
// requeues retry-eligible failures at the tail before returning.
func (q *Queue) dispatchRound(ctx context.Context) {
	round := q.collectRound()
	if len(round) == 0 {
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(round))

	for i := range round {
		go func(item *PendingEmail) {
			defer wg.Done()
			q.dispatch(ctx, item)
		}(&round[i])
	}

	wg.Wait()

	q.mu.Lock()
	for _, item := range round {
		if item.Retries > 0 {
			q.items = append(q.items, item)
		}
	}
	q.mu.Unlock()
}

// collectRound pops items from the head while they are immediately eligible, dropping any that have exhausted
// their retry budget, and stops at the first item that must wait out its retry delay.
func (q *Queue) collectRound() []PendingEmail {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var round []PendingEmail

	for len(q.items) > 0 {
		head := q.items[0]

		if head.Retries >= MaxRetries {
			q.log.Warn("dropping email after exhausting retries", "subject", head.Subject)
			q.items = q.items[1:]
			continue
		}

		if head.Retries > 0 && now.Before(head.NextEligible) {
			break
		}

		round = append(round, head)
		q.items = q.items[1:]
	}

	return round
}

// dispatch sends item to every recipient in parallel. Any recipient failure fails the whole item: its retry
// counter is incremented and its next-eligible time pushed out by RetryDelay.
func (q *Queue) dispatch(ctx context.Context, item *PendingEmail) {
	var wg sync.WaitGroup
	failed := make([]bool, len(item.Recipients))

	wg.Add(len(item.Recipients))
	for i, recipient := range item.Recipients {
		go func(i int, recipient string) {
			defer wg.Done()
			if err := q.gateway.SendMail(ctx, recipient, item.Subject, item.Body); err != nil {
				q.log.With(telemetrylog.Error(err)).Warn("send mail failed", "recipient", recipient)
				failed[i] = true
			}
		}(i, recipient)
	}
	wg.Wait()

	for _, f := range failed {
		if f {
			item.Retries++
			item.NextEligible = time.Now().Add(RetryDelay)
			return
		}
	}

	item.Retries = 0
}
