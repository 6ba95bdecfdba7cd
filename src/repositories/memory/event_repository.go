// Package memory provides an in-memory EventRepository for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/khabaroff/webhook-inbox/src/models"
	"github.com/khabaroff/webhook-inbox/src/repositories"
)

var _ repositories.EventRepository = (*EventRepository)(nil)

type record struct {
	event       *models.WebhookEvent
	lockedUntil time.Time
}

// EventRepository keeps events in a map keyed by (provider, id).
// All returned events are copies.
type EventRepository struct {
	mu     sync.RWMutex
	events map[models.EventKey]*record
	now    func() time.Time
}

// NewEventRepository creates an empty in-memory repository
func NewEventRepository() *EventRepository {
	return &EventRepository{
		events: make(map[models.EventKey]*record),
		now:    time.Now,
	}
}

// SetClock replaces the time source (tests only)
func (r *EventRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *EventRepository) FindByKey(_ context.Context, key models.EventKey) (*models.WebhookEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.events[key]
	if !ok {
		return nil, repositories.ErrEventNotFound
	}
	return rec.event.Clone(), nil
}

func (r *EventRepository) Create(_ context.Context, event *models.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := event.Key()
	if _, exists := r.events[key]; exists {
		return repositories.ErrDuplicateEvent
	}
	stored := event.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.now().UTC()
	}
	r.events[key] = &record{event: stored}
	return nil
}

// update mutates a pending event; terminal events are left untouched
func (r *EventRepository) update(key models.EventKey, fn func(rec *record)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.events[key]
	if !ok {
		return repositories.ErrEventNotFound
	}
	if !rec.event.IsPending() {
		return repositories.ErrEventNotPending
	}
	fn(rec)
	return nil
}

func (r *EventRepository) IncrementAttempts(_ context.Context, key models.EventKey) error {
	return r.update(key, func(rec *record) {
		rec.event.Attempts++
	})
}

func (r *EventRepository) MarkProcessed(_ context.Context, key models.EventKey) error {
	return r.update(key, func(rec *record) {
		rec.event.MarkProcessed(r.now().UTC())
		rec.lockedUntil = time.Time{}
	})
}

func (r *EventRepository) MarkFailed(_ context.Context, key models.EventKey, errMsg string) error {
	return r.update(key, func(rec *record) {
		rec.event.MarkFailed(errMsg)
		rec.lockedUntil = time.Time{}
	})
}

func (r *EventRepository) ListPending(_ context.Context) ([]models.WebhookEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(rec *record) bool {
		return rec.event.IsPending()
	}, 0), nil
}

// ClaimPending leases up to limit pending events that are not already leased
func (r *EventRepository) ClaimPending(_ context.Context, limit int, lease time.Duration) ([]models.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	claimed := r.collect(func(rec *record) bool {
		return rec.event.IsPending() && !rec.lockedUntil.After(now)
	}, limit)

	for _, e := range claimed {
		r.events[e.Key()].lockedUntil = now.Add(lease)
	}
	return claimed, nil
}

func (r *EventRepository) List(_ context.Context, filter models.EventFilter) ([]models.WebhookEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.collect(func(rec *record) bool {
		if filter.Provider != "" && rec.event.Provider != filter.Provider {
			return false
		}
		if filter.Status != "" && rec.event.Status != filter.Status {
			return false
		}
		return true
	}, 0)

	// newest first, like the postgres listing
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[:filter.Limit]
	}
	return events, nil
}

func (r *EventRepository) CountByStatus(_ context.Context) (map[models.EventStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[models.EventStatus]int, len(models.AllStatuses))
	for _, s := range models.AllStatuses {
		counts[s] = 0
	}
	for _, rec := range r.events {
		counts[rec.event.Status]++
	}
	return counts, nil
}

// Ping always succeeds for the in-memory store
func (r *EventRepository) Ping(_ context.Context) error { return nil }

// Len returns the number of stored events
func (r *EventRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// collect returns copies of matching events ordered by created_at, oldest first.
// Caller must hold the lock.
func (r *EventRepository) collect(match func(rec *record) bool, limit int) []models.WebhookEvent {
	var out []models.WebhookEvent
	for _, rec := range r.events {
		if match(rec) {
			out = append(out, *rec.event.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Key().String() < out[j].Key().String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
