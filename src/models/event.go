package models

import (
	"encoding/json"
	"time"
)

// EventKey is the natural identity of a webhook event. Providers assign their
// own event ids, so the pair is unique across the store.
type EventKey struct {
	Provider string `json:"provider"`
	ID       string `json:"id"`
}

// String returns "provider:id", the form used in logs
func (k EventKey) String() string {
	return k.Provider + ":" + k.ID
}

// WebhookEvent represents a webhook notification received from a provider
type WebhookEvent struct {
	Provider    string          `json:"provider"`
	ID          string          `json:"id"`
	EventType   string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload"`
	Status      EventStatus     `json:"status"`
	Attempts    int             `json:"attempts"`
	LastError   *string         `json:"last_error"`
	ProcessedAt *time.Time      `json:"processed_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewWebhookEvent builds a pending event with no attempts
func NewWebhookEvent(provider, id, eventType string, payload json.RawMessage) *WebhookEvent {
	return &WebhookEvent{
		Provider:  provider,
		ID:        id,
		EventType: eventType,
		Payload:   payload,
		Status:    EventStatusPending,
		Attempts:  0,
		CreatedAt: time.Now().UTC(),
	}
}

// Key returns the composite identity of the event
func (e *WebhookEvent) Key() EventKey {
	return EventKey{Provider: e.Provider, ID: e.ID}
}

// IsPending returns true if the event has not reached a terminal state
func (e *WebhookEvent) IsPending() bool {
	return e.Status == EventStatusPending
}

// MarkProcessed moves the event to processed and stamps processed_at
func (e *WebhookEvent) MarkProcessed(at time.Time) {
	e.Status = EventStatusProcessed
	e.ProcessedAt = &at
}

// MarkFailed moves the event to failed and records the error message
func (e *WebhookEvent) MarkFailed(errMsg string) {
	e.Status = EventStatusFailed
	e.LastError = &errMsg
}

// Clone returns a deep copy so stored records cannot be mutated by callers
func (e *WebhookEvent) Clone() *WebhookEvent {
	c := *e
	if e.Payload != nil {
		c.Payload = append(json.RawMessage(nil), e.Payload...)
	}
	if e.LastError != nil {
		msg := *e.LastError
		c.LastError = &msg
	}
	if e.ProcessedAt != nil {
		at := *e.ProcessedAt
		c.ProcessedAt = &at
	}
	return &c
}
