package mqtt

import "strings"

const TopicSeparator = "/"

// TrimTopic trims TopicSeparator from the start and end of the specified topic. The coordinator's
// subscribe/unsubscribe/query paths and the HTTP control plane all run their topic argument through this before
// using it as a broker filter or a map key, so "sensors/a", "/sensors/a", and "sensors/a/" are always treated as
// the same topic.
func TrimTopic(topic string) string {
	return strings.Trim(topic, TopicSeparator)
}
