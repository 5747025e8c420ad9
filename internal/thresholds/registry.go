// Package thresholds implements the TTL-cached threshold registry and the per-topic ladder evaluator that decides
// when a sample crosses a configured level.
package thresholds

import (
	"context"
	"log/slog"
	"time"

	"github.com/sarayu-io/telemetrymon/internal/cache"
	"github.com/sarayu-io/telemetrymon/internal/telemetry"
	"github.com/sarayu-io/telemetrymon/internal/telemetrylog"
)

const (
	// CacheTTL is how long a loaded threshold config is cached for a topic.
	CacheTTL = 1800 * time.Second
	// CacheSweep is how often expired entries are swept from the cache.
	CacheSweep = 300 * time.Second
	// FlushInterval is the period of the process-wide full-cache flush that makes out-of-band
	// store edits eventually visible.
	FlushInterval = 120 * time.Second
)

// Store is the external topic-config store contract.
type Store interface {
	LoadThresholds(ctx context.Context, topic string) (telemetry.ThresholdConfig, bool, error)
	UpsertThresholds(ctx context.Context, topic string, levels []telemetry.ThresholdLevel) error
}

// Registry is a read-through, write-invalidated cache over a Store.
type Registry struct {
	store Store
	cache *cache.TTL[string, telemetry.ThresholdConfig]
	log   *slog.Logger

	stopFlush chan struct{}
}

// New constructs a Registry and starts its periodic full-cache flush loop.
func New(store Store) *Registry {
	r := &Registry{
		store:     store,
		cache:     cache.NewTTL[string, telemetry.ThresholdConfig](CacheTTL, CacheSweep),
		log:       telemetrylog.ForComponent("thresholds"),
		stopFlush: make(chan struct{}),
	}

	go r.flushLoop(FlushInterval)

	return r
}

// Close stops the registry's background loops.
func (r *Registry) Close() {
	close(r.stopFlush)
	r.cache.Close()
}

// Thresholds returns the cached or freshly loaded threshold config for topic. The second return value reports
// whether a config exists; a store failure is logged and treated as "no thresholds" for this call.
func (r *Registry) Thresholds(ctx context.Context, topic string) (telemetry.ThresholdConfig, bool) {
	if cfg, ok := r.cache.Get(topic); ok {
		return cfg, true
	}

	cfg, found, err := r.store.LoadThresholds(ctx, topic)
	if err != nil {
		r.log.With(telemetrylog.Error(err)).Warn("failed to load thresholds for topic")
		return telemetry.ThresholdConfig{}, false
	}
	if !found {
		return telemetry.ThresholdConfig{}, false
	}

	r.cache.Set(topic, cfg)
	return cfg, true
}

// UpdateThresholds writes newLevels through to the store and invalidates the topic's cache entry. Failures are
// logged; this operation does not retry.
func (r *Registry) UpdateThresholds(ctx context.Context, topic string, newLevels []telemetry.ThresholdLevel) {
	if err := r.store.UpsertThresholds(ctx, topic, newLevels); err != nil {
		r.log.With(telemetrylog.Error(err)).Warn("failed to update thresholds for topic")
		return
	}

	r.cache.Invalidate(topic)
}

func (r *Registry) flushLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopFlush:
			return
		case <-ticker.C:
			r.cache.Flush()
		}
	}
}
