package services

import (
	"context"
	"encoding/json"
	"fmt"
)

// WebhookInput is one inbound webhook call exactly as received
type WebhookInput struct {
	Provider  string
	RawBody   []byte
	Signature string
}

// Validator checks a webhook signature
type Validator interface {
	Validate(provider string, rawBody []byte, signature string) bool
}

// Ingester stores validated events
type Ingester interface {
	IngestEvent(ctx context.Context, input IngestInput) (*IngestResult, error)
}

// WebhookService validates, parses and ingests webhook calls
type WebhookService struct {
	validator Validator
	ingester  Ingester
}

// NewWebhookService creates a new webhook service
func NewWebhookService(validator Validator, ingester Ingester) *WebhookService {
	return &WebhookService{validator: validator, ingester: ingester}
}

// HandleWebhook checks the signature over the raw body before anything else,
// then parses the body and ingests it. Errors wrap ErrInvalidSignature or
// ErrInvalidPayload; anything else is internal.
func (ws *WebhookService) HandleWebhook(ctx context.Context, input WebhookInput) (*IngestResult, error) {
	if !ws.validator.Validate(input.Provider, input.RawBody, input.Signature) {
		return nil, ErrInvalidSignature
	}

	var parsed interface{}
	if err := json.Unmarshal(input.RawBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON payload", ErrInvalidPayload)
	}

	record, ok := parsed.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: payload must be a JSON object", ErrInvalidPayload)
	}

	eventID, ok := record["id"].(string)
	if !ok || eventID == "" {
		return nil, fmt.Errorf("%w: missing event id", ErrInvalidPayload)
	}

	eventType, ok := record["type"].(string)
	if !ok || eventType == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrInvalidPayload)
	}

	return ws.ingester.IngestEvent(ctx, IngestInput{
		Provider:  input.Provider,
		ID:        eventID,
		EventType: eventType,
		Payload:   json.RawMessage(input.RawBody),
	})
}
