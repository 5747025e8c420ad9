// Package coordinator implements MqttCoordinator: the long-lived session owner that wires the MQTT transport to
// the decode/batch/evaluate/alert pipeline and exposes the service's control surface.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sarayu-io/telemetrymon/internal/decoder"
	"github.com/sarayu-io/telemetrymon/internal/mqtt"
	"github.com/sarayu-io/telemetrymon/internal/telemetry"
	"github.com/sarayu-io/telemetrymon/internal/telemetrylog"
)

// SamplePayloadCutoff is the payload-length bound (bytes) at or beyond which a message is treated as non-sample
// control/diagnostic traffic and skips both batching and threshold evaluation.
const SamplePayloadCutoff = 100

// Evaluator decides whether a sample crosses a configured threshold level.
type Evaluator interface {
	Evaluate(ctx context.Context, topic string, v float64)
	ResetTopic(topic string)
}

// Batcher buffers samples for periodic persistence.
type Batcher interface {
	Enqueue(topic string, sample telemetry.Sample)
	DropTopic(topic string)
}

// ThresholdUpdater write-through updates a topic's threshold ladder.
type ThresholdUpdater interface {
	UpdateThresholds(ctx context.Context, topic string, newLevels []telemetry.ThresholdLevel)
}

// Coordinator owns the MQTT session lifecycle, the subscribed-topic set, and the latest-message map. Queued samples
// live in the Batcher and per-level threshold state in the Evaluator; the coordinator clears both for a topic on
// unsubscribe through DropTopic and ResetTopic.
type Coordinator struct {
	writer     mqtt.Writer
	subscriber mqtt.Subscriber
	batcher    Batcher
	evaluator  Evaluator
	thresholds ThresholdUpdater
	log        *slog.Logger

	mu               sync.Mutex
	subscribedTopics map[string]struct{}
	latestMessage    map[string]telemetry.LatestMessage
}

// New constructs a Coordinator. writer/subscriber are the live MQTT transport handles returned by the broker
// adapter; the subscriber is expected to deliver inbound publishes to the Handler passed to Subscribe (this
// Coordinator's ServeMQTT), and the caller is expected to invoke OnConnected for connection-up events.
func New(writer mqtt.Writer, subscriber mqtt.Subscriber, b Batcher, e Evaluator, t ThresholdUpdater) *Coordinator {
	return &Coordinator{
		writer:           writer,
		subscriber:       subscriber,
		batcher:          b,
		evaluator:        e,
		thresholds:       t,
		log:              telemetrylog.ForComponent("coordinator"),
		subscribedTopics: make(map[string]struct{}),
		latestMessage:    make(map[string]telemetry.LatestMessage),
	}
}

// OnConnected re-issues a subscribe for every topic the coordinator has ever successfully subscribed to and not
// since unsubscribed. Called on both the initial connect and every reconnect. A subscribe failure is logged and
// the topic is left in the set so the next reconnect retries it.
func (c *Coordinator) OnConnected(ctx context.Context) {
	c.mu.Lock()
	topics := make([]string, 0, len(c.subscribedTopics))
	for t := range c.subscribedTopics {
		topics = append(topics, t)
	}
	c.mu.Unlock()

	for _, topic := range topics {
		if err := c.subscriber.Subscribe(ctx, c, mqtt.NewSubscription(topic, mqtt.ReadOptions{})); err != nil {
			c.log.With(telemetrylog.Error(err), telemetrylog.Topic(topic)).Warn("resubscribe failed")
		}
	}
}

// SubscribeToTopic is idempotent: it issues a broker subscribe only for topics not already tracked. On ACK the
// topic is added to the subscribed set with an empty sample queue; on NACK the failure is logged and state is
// left unchanged.
func (c *Coordinator) SubscribeToTopic(ctx context.Context, topic string) {
	topic = mqtt.TrimTopic(topic)

	c.mu.Lock()
	_, already := c.subscribedTopics[topic]
	c.mu.Unlock()
	if already {
		return
	}

	if err := c.subscriber.Subscribe(ctx, c, mqtt.NewSubscription(topic, mqtt.ReadOptions{})); err != nil {
		c.log.With(telemetrylog.Error(err), telemetrylog.Topic(topic)).Warn("subscribe failed")
		return
	}

	c.mu.Lock()
	c.subscribedTopics[topic] = struct{}{}
	c.mu.Unlock()
}

// UnsubscribeFromTopic is idempotent. On ACK it removes the topic from the subscribed set and tears down its
// queued samples, latest message, and threshold state. Buffered unflushed samples are discarded.
func (c *Coordinator) UnsubscribeFromTopic(ctx context.Context, topic string) {
	topic = mqtt.TrimTopic(topic)

	c.mu.Lock()
	_, tracked := c.subscribedTopics[topic]
	c.mu.Unlock()
	if !tracked {
		return
	}

	if err := c.subscriber.Unsubscribe(ctx, topic); err != nil {
		c.log.With(telemetrylog.Error(err), telemetrylog.Topic(topic)).Warn("unsubscribe failed")
		return
	}

	c.mu.Lock()
	delete(c.subscribedTopics, topic)
	delete(c.latestMessage, topic)
	c.mu.Unlock()

	c.batcher.DropTopic(topic)
	c.evaluator.ResetTopic(topic)
}

// IsTopicSubscribed reports whether topic is currently in the subscribed set.
func (c *Coordinator) IsTopicSubscribed(topic string) bool {
	topic = mqtt.TrimTopic(topic)

	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.subscribedTopics[topic]
	return ok
}

// GetLatestLiveMessage returns the most recently received raw payload and receipt instant for topic, if any.
func (c *Coordinator) GetLatestLiveMessage(topic string) (telemetry.LatestMessage, bool) {
	topic = mqtt.TrimTopic(topic)

	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.latestMessage[topic]
	return m, ok
}

// UpdateThresholds write-through updates topic's threshold ladder and invalidates the registry's cache entry.
func (c *Coordinator) UpdateThresholds(ctx context.Context, topic string, newLevels []telemetry.ThresholdLevel) {
	c.thresholds.UpdateThresholds(ctx, mqtt.TrimTopic(topic), newLevels)
}

// ServeMQTT is the message ingress handler described by the data flow: decode, update LatestMessage
// unconditionally, then for sufficiently small numeric payloads enqueue for persistence and evaluate thresholds.
// Every error is caught and logged; the handler never panics out to the caller.
func (c *Coordinator) ServeMQTT(_ mqtt.Writer, topic string, payload []byte) {
	c.onMessage(context.Background(), topic, payload)
}

func (c *Coordinator) onMessage(ctx context.Context, topic string, payload []byte) {
	topic = mqtt.TrimTopic(topic)

	defer func() {
		if r := recover(); r != nil {
			c.log.With(telemetrylog.Topic(topic)).Error("panic in message handler", "recovered", r)
		}
	}()

	now := time.Now()
	result := decoder.Decode(payload)

	c.mu.Lock()
	c.latestMessage[topic] = telemetry.LatestMessage{Payload: string(payload), Timestamp: now}
	c.mu.Unlock()

	if result.Kind == decoder.Undecodable {
		c.log.With(telemetrylog.Topic(topic)).Warn("undecodable payload")
	}

	if !result.IsNumber() || len(payload) >= SamplePayloadCutoff {
		return
	}

	sample := telemetry.Sample{Value: result.NumberValue, Timestamp: now}
	c.batcher.Enqueue(topic, sample)
	c.evaluator.Evaluate(ctx, topic, result.NumberValue)
}
