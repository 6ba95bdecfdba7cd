package services

import (
	"fmt"
	"time"

	"github.com/khabaroff/webhook-inbox/src/logging"
	"github.com/khabaroff/webhook-inbox/src/models"
	"github.com/posthog/posthog-go"
	"github.com/rs/zerolog"
)

// Analytics event names
const (
	EventIngested  = "webhook_ingested"
	EventProcessed = "webhook_processed"
	EventFailed    = "webhook_failed"
)

// EventTracker observes event lifecycle changes. Implementations must not block.
type EventTracker interface {
	TrackIngested(event *models.WebhookEvent, status models.IngestStatus)
	TrackProcessed(event models.WebhookEvent, err error)
}

// enqueuer is the part of posthog.Client used here
type enqueuer interface {
	Enqueue(msg posthog.Message) error
	Close() error
}

type posthogLogger struct {
	logger zerolog.Logger
}

func (l posthogLogger) Success(m posthog.APIMessage) {
	l.logger.Debug().Str("type", fmt.Sprintf("%T", m)).Msg("PostHog event delivered")
}

func (l posthogLogger) Failure(m posthog.APIMessage, err error) {
	l.logger.Error().Err(err).Str("type", fmt.Sprintf("%T", m)).Msg("PostHog delivery failed")
}

// AnalyticsConfig holds analytics configuration
type AnalyticsConfig struct {
	PostHogAPIKey string
	PostHogHost   string
	Environment   string
}

// AnalyticsService reports event outcomes to PostHog. Payloads are never sent.
type AnalyticsService struct {
	client      enqueuer
	environment string
	logger      zerolog.Logger
}

// NewAnalyticsService creates a tracker; it is a no-op without an API key
func NewAnalyticsService(cfg AnalyticsConfig) (*AnalyticsService, error) {
	logger := logging.NewLogger("analytics")
	s := &AnalyticsService{environment: cfg.Environment, logger: logger}

	if cfg.PostHogAPIKey == "" {
		return s, nil
	}

	client, err := posthog.NewWithConfig(
		cfg.PostHogAPIKey,
		posthog.Config{
			Endpoint:  cfg.PostHogHost,
			Interval:  30 * time.Second,
			BatchSize: 100,
			Callback:  posthogLogger{logger: logger},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostHog client: %w", err)
	}
	s.client = client
	return s, nil
}

// Enabled reports whether events are sent anywhere
func (s *AnalyticsService) Enabled() bool {
	return s.client != nil
}

// Close flushes pending events and closes client
func (s *AnalyticsService) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *AnalyticsService) TrackIngested(event *models.WebhookEvent, status models.IngestStatus) {
	s.capture(EventIngested, event.Provider, map[string]interface{}{
		"event_type":    event.EventType,
		"ingest_status": string(status),
		"payload_bytes": len(event.Payload),
	})
}

func (s *AnalyticsService) TrackProcessed(event models.WebhookEvent, err error) {
	name := EventProcessed
	// event is the claimed snapshot; the stored counter already includes this attempt
	props := map[string]interface{}{
		"event_type": event.EventType,
		"attempts":   event.Attempts + 1,
		"age_ms":     time.Since(event.CreatedAt).Milliseconds(),
	}
	if err != nil {
		name = EventFailed
	}
	s.capture(name, event.Provider, props)
}

func (s *AnalyticsService) capture(name, provider string, props map[string]interface{}) {
	if s.client == nil {
		return
	}

	props["provider"] = provider
	if s.environment != "" {
		props["environment"] = s.environment
	}

	if err := s.client.Enqueue(posthog.Capture{
		DistinctId: "provider_" + provider,
		Event:      name,
		Properties: props,
	}); err != nil {
		s.logger.Error().Err(err).Str("event", name).Msg("PostHog enqueue failed")
	}
}
