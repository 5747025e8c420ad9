// Package directory implements a TTL-cached read-through lookup of alert recipients for a topic, backed by an
// external employee/supervisor directory store.
package directory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sarayu-io/telemetrymon/internal/cache"
	"github.com/sarayu-io/telemetrymon/internal/telemetrylog"
)

const (
	// CacheTTL is how long a non-empty recipient list is cached for a topic.
	CacheTTL = 3600 * time.Second
	// CacheSweep is how often expired entries are swept from the cache.
	CacheSweep = 600 * time.Second
)

// Employee is a directory record whose Email is eligible to receive alerts for the topics it is associated with.
type Employee struct {
	Email string
}

// Supervisor mirrors Employee for the supervisor collection.
type Supervisor struct {
	Email string
}

// Store is the external directory/identity store contract.
type Store interface {
	LoadEmployeesByTopic(ctx context.Context, topic string) ([]Employee, error)
	LoadSupervisorsByTopic(ctx context.Context, topic string) ([]Supervisor, error)
}

// Directory resolves topic -> recipient emails, caching non-empty results.
type Directory struct {
	store Store
	cache *cache.TTL[string, []string]
	log   *slog.Logger
}

func New(store Store) *Directory {
	return &Directory{
		store: store,
		cache: cache.NewTTL[string, []string](CacheTTL, CacheSweep),
		log:   telemetrylog.ForComponent("directory"),
	}
}

// Recipients returns the deduplicated, first-seen-order union of employee and supervisor emails associated with
// topic. A lookup failure against the external store is logged and yields an empty list; it never propagates as an
// error.
func (d *Directory) Recipients(ctx context.Context, topic string) []string {
	if cached, ok := d.cache.Get(topic); ok {
		return cached
	}

	var employees []Employee
	var supervisors []Supervisor
	var employeesErr, supervisorsErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		employees, employeesErr = d.store.LoadEmployeesByTopic(ctx, topic)
	}()
	go func() {
		defer wg.Done()
		supervisors, supervisorsErr = d.store.LoadSupervisorsByTopic(ctx, topic)
	}()

	wg.Wait()

	if employeesErr != nil {
		d.log.With(telemetrylog.Error(employeesErr)).Warn("failed to load employees for topic")
	}
	if supervisorsErr != nil {
		d.log.With(telemetrylog.Error(supervisorsErr)).Warn("failed to load supervisors for topic")
	}
	if employeesErr != nil || supervisorsErr != nil {
		return nil
	}

	recipients := dedupe(append(emailsOf(employees), supervisorEmails(supervisors)...))
	if len(recipients) > 0 {
		d.cache.Set(topic, recipients)
	}

	return recipients
}

func emailsOf(employees []Employee) []string {
	out := make([]string, len(employees))
	for i, e := range employees {
		out[i] = e.Email
	}
	return out
}

func supervisorEmails(supervisors []Supervisor) []string {
	out := make([]string, len(supervisors))
	for i, s := range supervisors {
		out[i] = s.Email
	}
	return out
}

func dedupe(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
