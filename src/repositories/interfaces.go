package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/khabaroff/webhook-inbox/src/models"
)

var (
	// ErrEventNotFound indicates no event exists for the given key
	ErrEventNotFound = errors.New("event not found")

	// ErrDuplicateEvent indicates an event with the same (provider, id) already exists
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrEventNotPending indicates an update to an event that already reached a terminal state
	ErrEventNotPending = errors.New("event is not pending")
)

// EventRepository defines the interface for webhook event data access.
// Create must be an atomic check-and-insert on (provider, id).
type EventRepository interface {
	FindByKey(ctx context.Context, key models.EventKey) (*models.WebhookEvent, error)
	Create(ctx context.Context, event *models.WebhookEvent) error

	// Processor bookkeeping; only pending events change
	IncrementAttempts(ctx context.Context, key models.EventKey) error
	MarkProcessed(ctx context.Context, key models.EventKey) error
	MarkFailed(ctx context.Context, key models.EventKey, errMsg string) error

	// Pending selection
	ListPending(ctx context.Context) ([]models.WebhookEvent, error)
	ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]models.WebhookEvent, error)

	// Listing
	List(ctx context.Context, filter models.EventFilter) ([]models.WebhookEvent, error)
	CountByStatus(ctx context.Context) (map[models.EventStatus]int, error)

	Ping(ctx context.Context) error
}
