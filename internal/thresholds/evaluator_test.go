package thresholds

import (
	"context"
	"sync"
	"testing"

	"github.com/sarayu-io/telemetrymon/internal/telemetry"
	"github.com/stretchr/testify/require"
)

type fakeThresholdStore struct {
	cfg   telemetry.ThresholdConfig
	found bool
}

func (f *fakeThresholdStore) LoadThresholds(_ context.Context, _ string) (telemetry.ThresholdConfig, bool, error) {
	return f.cfg, f.found, nil
}

func (f *fakeThresholdStore) UpsertThresholds(_ context.Context, _ string, levels []telemetry.ThresholdLevel) error {
	f.cfg = telemetry.ThresholdConfig{Levels: levels}
	f.found = true
	return nil
}

type fakeRecipients struct{ emails []string }

func (f *fakeRecipients) Recipients(_ context.Context, _ string) []string { return f.emails }

type fakeSink struct {
	mu     sync.Mutex
	alerts []Alert
}

func (f *fakeSink) Enqueue(a Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
}

func (f *fakeSink) subjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.alerts))
	for i, a := range f.alerts {
		out[i] = a.Subject
	}
	return out
}

func TestEvaluateLadderWithHysteresisAndCooldownSuppression(t *testing.T) {
	store := &fakeThresholdStore{
		found: true,
		cfg: telemetry.ThresholdConfig{
			Topic: "t",
			Levels: []telemetry.ThresholdLevel{
				{Color: "yellow", Value: 50, ResetValue: 40},
				{Color: "red", Value: 90, ResetValue: 80},
			},
		},
	}
	registry := New(store)
	defer registry.Close()

	recipients := &fakeRecipients{emails: []string{"u@x"}}
	sink := &fakeSink{}
	eval := NewEvaluator(registry, recipients, sink)

	for _, v := range []float64{45, 55, 95, 70, 35, 55} {
		eval.Evaluate(context.Background(), "t", v)
	}

	got := sink.subjects()
	require.Equal(t, []string{
		"Warning: t Threshold Exceeded",
		"Danger: t Threshold Exceeded",
		"Warning: t Threshold Exceeded",
	}, got)
}

func TestEvaluateNoThresholdsIsNoop(t *testing.T) {
	store := &fakeThresholdStore{found: false}
	registry := New(store)
	defer registry.Close()

	sink := &fakeSink{}
	eval := NewEvaluator(registry, &fakeRecipients{}, sink)

	eval.Evaluate(context.Background(), "t", 1000)
	require.Empty(t, sink.alerts)
}

func TestEvaluateSkipsAlertWhenNoRecipients(t *testing.T) {
	store := &fakeThresholdStore{
		found: true,
		cfg: telemetry.ThresholdConfig{
			Levels: []telemetry.ThresholdLevel{{Color: "red", Value: 10, ResetValue: 5}},
		},
	}
	registry := New(store)
	defer registry.Close()

	sink := &fakeSink{}
	eval := NewEvaluator(registry, &fakeRecipients{}, sink)

	eval.Evaluate(context.Background(), "t", 20)
	require.Empty(t, sink.alerts)
}

func TestResetTopicClearsState(t *testing.T) {
	store := &fakeThresholdStore{
		found: true,
		cfg: telemetry.ThresholdConfig{
			Levels: []telemetry.ThresholdLevel{{Color: "red", Value: 10, ResetValue: 5}},
		},
	}
	registry := New(store)
	defer registry.Close()

	sink := &fakeSink{}
	eval := NewEvaluator(registry, &fakeRecipients{emails: []string{"u@x"}}, sink)

	eval.Evaluate(context.Background(), "t", 20)
	require.Len(t, sink.alerts, 1)

	eval.ResetTopic("t")

	eval.Evaluate(context.Background(), "t", 20)
	require.Len(t, sink.alerts, 2)
}
