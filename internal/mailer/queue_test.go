package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sarayu-io/telemetrymon/internal/telemetrylog"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]int
}

func (g *fakeGateway) SendMail(_ context.Context, recipient, _, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sent = append(g.sent, recipient)
	if g.failFor[recipient] > 0 {
		g.failFor[recipient]--
		return errors.New("smtp failure")
	}
	return nil
}

func (g *fakeGateway) sentCount(recipient string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for _, r := range g.sent {
		if r == recipient {
			n++
		}
	}
	return n
}

func newTestQueue(gw Gateway) *Queue {
	return &Queue{gateway: gw, log: telemetrylog.ForComponent("mailer"), stop: make(chan struct{}), done: make(chan struct{})}
}

func TestDispatchRoundSucceedsWithoutRetry(t *testing.T) {
	gw := &fakeGateway{failFor: map[string]int{}}
	q := newTestQueue(gw)

	q.Enqueue([]string{"a@x"}, "subject", "body")
	q.dispatchRound(context.Background())

	require.Equal(t, 0, q.Len())
	require.Equal(t, 1, gw.sentCount("a@x"))
}

func TestDispatchRoundRetriesOnFailureThenSucceeds(t *testing.T) {
	gw := &fakeGateway{failFor: map[string]int{"a@x": 1}}
	q := newTestQueue(gw)

	q.Enqueue([]string{"a@x"}, "subject", "body")
	q.dispatchRound(context.Background())

	require.Equal(t, 1, q.Len())

	q.mu.Lock()
	q.items[0].NextEligible = time.Now().Add(-time.Millisecond)
	q.mu.Unlock()

	q.dispatchRound(context.Background())

	require.Equal(t, 0, q.Len())
	require.Equal(t, 2, gw.sentCount("a@x"))
}

func TestCollectRoundDropsItemsAtRetryCap(t *testing.T) {
	gw := &fakeGateway{}
	q := newTestQueue(gw)

	q.mu.Lock()
	q.items = append(q.items, PendingEmail{Recipients: []string{"a@x"}, Retries: MaxRetries})
	q.mu.Unlock()

	round := q.collectRound()
	require.Empty(t, round)
	require.Equal(t, 0, q.Len())
}

func TestCollectRoundStopsAtIneligibleHead(t *testing.T) {
	gw := &fakeGateway{}
	q := newTestQueue(gw)

	q.mu.Lock()
	q.items = append(q.items,
		PendingEmail{Recipients: []string{"a@x"}, Retries: 1, NextEligible: time.Now().Add(time.Hour)},
		PendingEmail{Recipients: []string{"b@x"}},
	)
	q.mu.Unlock()

	round := q.collectRound()
	require.Empty(t, round)
	require.Equal(t, 2, q.Len())
}
