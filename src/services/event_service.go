package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/khabaroff/webhook-inbox/src/logging"
	"github.com/khabaroff/webhook-inbox/src/models"
	"github.com/khabaroff/webhook-inbox/src/repositories"
	"github.com/rs/zerolog"
)

// IngestInput carries a validated webhook event
type IngestInput struct {
	Provider  string
	ID        string
	EventType string
	Payload   json.RawMessage
}

// IngestResult is the outcome of an ingestion: the stored event and whether it was new
type IngestResult struct {
	Status models.IngestStatus  `json:"status"`
	Event  *models.WebhookEvent `json:"event"`
}

// EventService handles event ingestion and read access
type EventService struct {
	repo    repositories.EventRepository
	tracker EventTracker
	logger  zerolog.Logger
}

// NewEventService creates a new event service
func NewEventService(repo repositories.EventRepository) *EventService {
	return &EventService{
		repo:   repo,
		logger: logging.NewLogger("events"),
	}
}

// SetTracker sets an observer for ingestion outcomes
func (es *EventService) SetTracker(tracker EventTracker) {
	es.tracker = tracker
}

// IngestEvent stores the event unless (provider, id) already exists. An
// existing record is returned unchanged with status duplicate.
func (es *EventService) IngestEvent(ctx context.Context, input IngestInput) (*IngestResult, error) {
	key := models.EventKey{Provider: input.Provider, ID: input.ID}

	existing, err := es.repo.FindByKey(ctx, key)
	if err == nil {
		return es.duplicate(existing), nil
	}
	if !errors.Is(err, repositories.ErrEventNotFound) {
		return nil, fmt.Errorf("failed to look up event %s: %w", key, err)
	}

	event := models.NewWebhookEvent(input.Provider, input.ID, input.EventType, input.Payload)
	err = es.repo.Create(ctx, event)
	if errors.Is(err, repositories.ErrDuplicateEvent) {
		// lost the race against a concurrent delivery of the same event
		existing, findErr := es.repo.FindByKey(ctx, key)
		if findErr != nil {
			return nil, fmt.Errorf("failed to load duplicate event %s: %w", key, findErr)
		}
		return es.duplicate(existing), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create event %s: %w", key, err)
	}

	es.logger.Info().
		Str("provider", input.Provider).
		Str("event_id", input.ID).
		Str("event_type", input.EventType).
		Msg("event ingested")

	if es.tracker != nil {
		es.tracker.TrackIngested(event, models.IngestStatusCreated)
	}
	return &IngestResult{Status: models.IngestStatusCreated, Event: event}, nil
}

func (es *EventService) duplicate(event *models.WebhookEvent) *IngestResult {
	es.logger.Warn().
		Str("provider", event.Provider).
		Str("event_id", event.ID).
		Msg("duplicate event ingestion detected")
	if es.tracker != nil {
		es.tracker.TrackIngested(event, models.IngestStatusDuplicate)
	}
	return &IngestResult{Status: models.IngestStatusDuplicate, Event: event}
}

// GetEvent retrieves a single event
func (es *EventService) GetEvent(ctx context.Context, key models.EventKey) (*models.WebhookEvent, error) {
	return es.repo.FindByKey(ctx, key)
}

// ListEvents returns events matching filter; the limit is clamped to sane bounds
func (es *EventService) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.WebhookEvent, error) {
	if filter.Limit <= 0 {
		filter.Limit = models.DefaultListLimit
	}
	if filter.Limit > models.MaxListLimit {
		filter.Limit = models.MaxListLimit
	}
	events, err := es.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	if events == nil {
		events = []models.WebhookEvent{}
	}
	return events, nil
}

// CountByStatus returns event counts per status
func (es *EventService) CountByStatus(ctx context.Context) (map[models.EventStatus]int, error) {
	counts, err := es.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	return counts, nil
}

// Health checks the underlying store
func (es *EventService) Health(ctx context.Context) error {
	return es.repo.Ping(ctx)
}
