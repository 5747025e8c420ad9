package mqtt

import (
	"context"
	"log/slog"

	"github.com/sarayu-io/telemetrymon/internal/telemetrylog"
)

// Subscription holds metadata for a MQTT subscription for a given topic. It implements fmt.Stringer and slog.LogValuer.
type Subscription struct {
	Topic   string
	Options ReadOptions
}

// NewSubscription builds a Subscription for topic with the given read options, trimming stray separators so
// that "sensors/a", "/sensors/a", and "sensors/a/" all resolve to the same broker filter and the same
// bookkeeping key the coordinator uses for its subscribed-topic set.
func NewSubscription(topic string, opts ReadOptions) Subscription {
	return Subscription{Topic: TrimTopic(topic), Options: opts}
}

func (s Subscription) String() string {
	return s.Topic
}

func (s Subscription) LogValue() slog.Value {
	return slog.GroupValue(
		telemetrylog.Topic(s.Topic),
		slog.Any("options", s.Options),
	)
}

// Handler is the MQTT equivalent to http.Handler. It is a callback configured for an MQTT Subscription.
//
// Because a handler may receive a message at any time, they do not directly return errors. The ingest pipeline
// this service builds on top of Handler deals with decode/store/evaluate failures by logging and moving on; a
// handler implementation must never let a bad payload escape as a panic, since one malformed message on one
// topic must not take down delivery for every other subscribed topic. Handlers must not block; any long-running
// operation should be run from a new goroutine started by the Handler instead.
//
// If the handler needs to write any response message to MQTT, it should use the provided writer and return. It is not
// valid to use Writer or message slice after returning.
type Handler interface {
	ServeMQTT(w Writer, topic string, message []byte)
}

// The HandlerFunc type is an adapter to allow the use of ordinary functions as MQTT handlers. If f is a function with
// the appropriate signature, HandlerFunc(f) is a Handler that calls f.
type HandlerFunc func(Writer, string, []byte)

func (f HandlerFunc) ServeMQTT(w Writer, topic string, message []byte) {
	f(w, topic, message)
}

// Subscriber manages MQTT Subscriptions
type Subscriber interface {
	// Subscribe configures the underlying MQTT connection to send the client messages for the provided subscriptions.
	// The provided Handler will be called for all subscribed topics in this call.
	Subscribe(ctx context.Context, handler Handler, subscriptions ...Subscription) error

	// Unsubscribe removes any subscriptions configured for the specified topics.
	Unsubscribe(ctx context.Context, topics ...string) error
}
