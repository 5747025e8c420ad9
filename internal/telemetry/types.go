// Package telemetry holds the domain types shared by the coordinator's components: samples, threshold ladders, and
// the state a threshold evaluator carries between readings. None of these types know how they are persisted.
package telemetry

import "time"

// Topic is an opaque, non-empty identifier. It is the primary key for samples, thresholds, and recipients.
type Topic = string

// Sample is a single numeric reading and the instant it was received. Immutable after creation.
type Sample struct {
	Value     float64
	Timestamp time.Time
}

// ThresholdLevel is one rung of a topic's threshold ladder. Value triggers an alert; ResetValue re-arms it. Contract:
// ResetValue <= Value. The color "red" is always the highest priority regardless of Value.
type ThresholdLevel struct {
	Color      string
	Value      float64
	ResetValue float64
}

// IsRed reports whether this level is the highest-priority "red" level.
func (l ThresholdLevel) IsRed() bool {
	return l.Color == "red"
}

// LevelKey uniquely identifies a level within a topic's ThresholdConfig.
type LevelKey struct {
	Color string
	Value float64
}

// Key returns the composite (color, value) identity of this level.
func (l ThresholdLevel) Key() LevelKey {
	return LevelKey{Color: l.Color, Value: l.Value}
}

// ThresholdConfig is the ordered set of levels configured for a topic. Levels are keyed by (color, value), which must
// be unique within a config.
type ThresholdConfig struct {
	Topic  Topic
	Levels []ThresholdLevel
}

// LevelState is the hysteresis/cooldown state the evaluator carries for one level of one topic.
type LevelState struct {
	Triggered     bool
	LastAlertTime time.Time
}

// LatestMessage is the most recent raw payload received for a topic and when it arrived.
type LatestMessage struct {
	Payload   string
	Timestamp time.Time
}
