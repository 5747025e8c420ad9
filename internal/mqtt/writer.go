package mqtt

import (
	"context"
)

// Writer is the minimum abstraction around writing values to MQTT. This service never publishes: it only
// subscribes, decodes, batches, and alerts. Writer exists purely because ServeMQTT hands every Handler one, so
// the broker adapter must implement it to satisfy that call signature; the coordinator's handler ignores it.
type Writer interface {
	// WriteTopic writes the provided value to the specified topic with the specified WriteOptions.
	WriteTopic(ctx context.Context, topic string, options WriteOptions, value []byte) error
}
