package coordinator

import (
	"context"
	"sync"
	"testing"

	"github.com/sarayu-io/telemetrymon/internal/mqtt"
	"github.com/sarayu-io/telemetrymon/internal/telemetry"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu           sync.Mutex
	subscribed   []string
	unsubscribed []string
	subscribeErr error
	failTopic    string
}

func (f *fakeTransport) WriteTopic(_ context.Context, _ string, _ mqtt.WriteOptions, _ []byte) error {
	return nil
}

func (f *fakeTransport) Subscribe(_ context.Context, _ mqtt.Handler, subs ...mqtt.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range subs {
		if s.Topic == f.failTopic {
			return f.subscribeErr
		}
		f.subscribed = append(f.subscribed, s.Topic)
	}
	return nil
}

func (f *fakeTransport) Unsubscribe(_ context.Context, topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, topics...)
	return nil
}

type fakeBatcher struct {
	mu      sync.Mutex
	queued  []telemetry.Sample
	dropped []string
}

func (f *fakeBatcher) Enqueue(_ string, sample telemetry.Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, sample)
}

func (f *fakeBatcher) DropTopic(topic string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, topic)
}

type fakeEvaluator struct {
	mu         sync.Mutex
	evaluated  []float64
	resetCalls []string
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _ string, v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evaluated = append(f.evaluated, v)
}

func (f *fakeEvaluator) ResetTopic(topic string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls = append(f.resetCalls, topic)
}

type fakeThresholdUpdater struct{ calls int }

func (f *fakeThresholdUpdater) UpdateThresholds(_ context.Context, _ string, _ []telemetry.ThresholdLevel) {
	f.calls++
}

func TestSubscribeToTopicIsIdempotent(t *testing.T) {
	transport := &fakeTransport{}
	c := New(transport, transport, &fakeBatcher{}, &fakeEvaluator{}, &fakeThresholdUpdater{})

	c.SubscribeToTopic(context.Background(), "t")
	c.SubscribeToTopic(context.Background(), "t")

	require.Equal(t, []string{"t"}, transport.subscribed)
	require.True(t, c.IsTopicSubscribed("t"))
}

func TestSubscribeToTopicFailureLeavesStateUnchanged(t *testing.T) {
	transport := &fakeTransport{failTopic: "bad", subscribeErr: assertErr}
	c := New(transport, transport, &fakeBatcher{}, &fakeEvaluator{}, &fakeThresholdUpdater{})

	c.SubscribeToTopic(context.Background(), "bad")

	require.False(t, c.IsTopicSubscribed("bad"))
}

func TestUnsubscribeTearsDownPerTopicState(t *testing.T) {
	transport := &fakeTransport{}
	batcher := &fakeBatcher{}
	evaluator := &fakeEvaluator{}
	c := New(transport, transport, batcher, evaluator, &fakeThresholdUpdater{})

	c.SubscribeToTopic(context.Background(), "t")
	c.onMessage(context.Background(), "t", []byte("42"))

	c.UnsubscribeFromTopic(context.Background(), "t")

	require.False(t, c.IsTopicSubscribed("t"))
	_, ok := c.GetLatestLiveMessage("t")
	require.False(t, ok)
	require.Equal(t, []string{"t"}, batcher.dropped)
	require.Equal(t, []string{"t"}, evaluator.resetCalls)
}

func TestOnMessageUpdatesLatestAndSkipsLargePayloads(t *testing.T) {
	transport := &fakeTransport{}
	batcher := &fakeBatcher{}
	evaluator := &fakeEvaluator{}
	c := New(transport, transport, batcher, evaluator, &fakeThresholdUpdater{})

	c.onMessage(context.Background(), "t", []byte("99.5"))
	_, ok := c.GetLatestLiveMessage("t")
	require.True(t, ok)
	require.Len(t, batcher.queued, 1)
	require.Len(t, evaluator.evaluated, 1)

	large := make([]byte, 200)
	for i := range large {
		large[i] = '1'
	}
	c.onMessage(context.Background(), "t", large)
	require.Len(t, batcher.queued, 1)
	require.Len(t, evaluator.evaluated, 1)
}

func TestOnMessageSkipsEvaluationForNonNumericPayload(t *testing.T) {
	transport := &fakeTransport{}
	batcher := &fakeBatcher{}
	evaluator := &fakeEvaluator{}
	c := New(transport, transport, batcher, evaluator, &fakeThresholdUpdater{})

	c.onMessage(context.Background(), "t", []byte("on"))

	msg, ok := c.GetLatestLiveMessage("t")
	require.True(t, ok)
	require.Equal(t, "on", msg.Payload)
	require.Empty(t, batcher.queued)
	require.Empty(t, evaluator.evaluated)
}

func TestSubscribeToTopicNormalizesStraySeparators(t *testing.T) {
	transport := &fakeTransport{}
	c := New(transport, transport, &fakeBatcher{}, &fakeEvaluator{}, &fakeThresholdUpdater{})

	c.SubscribeToTopic(context.Background(), "/sensors/a/")

	require.Equal(t, []string{"sensors/a"}, transport.subscribed)
	require.True(t, c.IsTopicSubscribed("sensors/a"))
	require.True(t, c.IsTopicSubscribed("/sensors/a/"))
}

func TestOnConnectedResubscribesTrackedTopics(t *testing.T) {
	transport := &fakeTransport{}
	c := New(transport, transport, &fakeBatcher{}, &fakeEvaluator{}, &fakeThresholdUpdater{})

	c.SubscribeToTopic(context.Background(), "a")
	c.SubscribeToTopic(context.Background(), "b")
	transport.subscribed = nil

	c.OnConnected(context.Background())

	require.ElementsMatch(t, []string{"a", "b"}, transport.subscribed)
}

var assertErr = errBoom{}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
