package mqtt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSubscriptionTrimsTopic(t *testing.T) {
	sub := NewSubscription("/sensors/a/", ReadOptions{QoS: QOSAtLeastOnce})
	require.Equal(t, "sensors/a", sub.Topic)
	require.Equal(t, QOSAtLeastOnce, sub.Options.QoS)
}
