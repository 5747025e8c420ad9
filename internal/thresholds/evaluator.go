package thresholds

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sarayu-io/telemetrymon/internal/telemetry"
	"github.com/sarayu-io/telemetrymon/internal/telemetrylog"
)

// CooldownPeriod is the minimum interval between re-alerting on an already-triggered level.
const CooldownPeriod = 30 * time.Second

// Alert is the content handed to the email queue when a level crosses.
type Alert struct {
	Recipients []string
	Subject    string
	Body       string
}

// RecipientResolver resolves the alert recipients for a topic.
type RecipientResolver interface {
	Recipients(ctx context.Context, topic string) []string
}

// AlertSink accepts alerts for asynchronous dispatch.
type AlertSink interface {
	Enqueue(alert Alert)
}

// Evaluator is the per-topic, per-level threshold state machine described by the ladder algorithm: it walks
// configured levels from highest value to lowest, applying hysteresis and cooldown, and lets a triggered red level
// suppress lower-priority levels for the same sample.
type Evaluator struct {
	registry   *Registry
	recipients RecipientResolver
	emails     AlertSink
	log        *slog.Logger

	mu    sync.Mutex
	state map[string]map[telemetry.LevelKey]telemetry.LevelState
}

// NewEvaluator constructs an Evaluator backed by registry for threshold lookups and recipients for alert addressing.
func NewEvaluator(registry *Registry, recipients RecipientResolver, emails AlertSink) *Evaluator {
	return &Evaluator{
		registry:   registry,
		recipients: recipients,
		emails:     emails,
		log:        telemetrylog.ForComponent("thresholds"),
		state:      make(map[string]map[telemetry.LevelKey]telemetry.LevelState),
	}
}

// Evaluate decides whether v on topic crosses any configured level and, if so, enqueues the corresponding alerts.
// Evaluation for a given topic is strictly sequential: concurrent calls for the same topic serialize on an
// internal per-evaluator lock, matching the contract that topics may interleave but a topic's own samples may not.
func (e *Evaluator) Evaluate(ctx context.Context, topic string, v float64) {
	cfg, ok := e.registry.Thresholds(ctx, topic)
	if !ok || len(cfg.Levels) == 0 {
		return
	}

	levels := append([]telemetry.ThresholdLevel(nil), cfg.Levels...)
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].Value > levels[j].Value
	})

	e.mu.Lock()
	defer e.mu.Unlock()

	topicState := e.state[topic]
	if topicState == nil {
		topicState = make(map[telemetry.LevelKey]telemetry.LevelState)
		e.state[topic] = topicState
	}

	now := time.Now()
	dangerTriggered := false

	for _, level := range levels {
		key := level.Key()
		s := topicState[key]

		switch {
		case v >= level.Value:
			if level.IsRed() {
				dangerTriggered = true
			} else if dangerTriggered {
				continue
			}

			if !s.Triggered || now.Sub(s.LastAlertTime) >= CooldownPeriod {
				s = telemetry.LevelState{Triggered: true, LastAlertTime: now}
				topicState[key] = s

				e.alert(ctx, topic, level, v, now)

				if level.IsRed() {
					return
				}
			} else {
				topicState[key] = s
			}
		case v < level.ResetValue:
			topicState[key] = telemetry.LevelState{}
		default:
			topicState[key] = s
		}
	}
}

// ResetTopic discards all per-level state tracked for topic, matching unsubscribe semantics.
func (e *Evaluator) ResetTopic(topic string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.state, topic)
}

func (e *Evaluator) alert(ctx context.Context, topic string, level telemetry.ThresholdLevel, v float64, now time.Time) {
	recipients := e.recipients.Recipients(ctx, topic)
	if len(recipients) == 0 {
		return
	}

	e.emails.Enqueue(buildAlert(topic, level, v, recipients, now))
}

func buildAlert(topic string, level telemetry.ThresholdLevel, v float64, recipients []string, now time.Time) Alert {
	danger := level.IsRed()

	alertType := "Warning"
	severity := "warning"
	action := "WARNING: Monitor situation closely."
	if danger {
		alertType = "Danger"
		severity = "critical"
		action = "IMMEDIATE ACTION REQUIRED: Critical threshold exceeded!"
	}

	subject := fmt.Sprintf("%s: %s Threshold Exceeded", alertType, topic)
	body := fmt.Sprintf(
		"%s Alert: %s\nCurrent value: %v\nThreshold value: %v\nSeverity: %s\nTimestamp: %s\n%s",
		alertType, topic, v, level.Value, severity, now.UTC().Format(time.RFC3339), action,
	)

	return Alert{Recipients: recipients, Subject: subject, Body: body}
}
