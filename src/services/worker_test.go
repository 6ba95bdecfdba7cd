package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/khabaroff/webhook-inbox/src/models"
	"github.com/stretchr/testify/assert"
)

func TestWorkerRegistry(t *testing.T) {
	ctx := context.Background()
	stripeErr := errors.New("stripe handler")

	var fallbackSeen []string
	fallback := WorkerFunc(func(ctx context.Context, event models.WebhookEvent) error {
		fallbackSeen = append(fallbackSeen, event.Provider)
		return nil
	})

	registry := NewWorkerRegistry(fallback)
	registry.Register("stripe", WorkerFunc(func(ctx context.Context, event models.WebhookEvent) error {
		return stripeErr
	}))

	stripe := models.NewWebhookEvent("stripe", "evt_1", "charge.succeeded", json.RawMessage(`{}`))
	other := models.NewWebhookEvent("github", "evt_1", "push", json.RawMessage(`{}`))

	assert.ErrorIs(t, registry.Process(ctx, *stripe), stripeErr)
	assert.NoError(t, registry.Process(ctx, *other))
	assert.Equal(t, []string{"github"}, fallbackSeen)
}

func TestWorkerRegistry_DefaultsToNoop(t *testing.T) {
	registry := NewWorkerRegistry(nil)
	event := models.NewWebhookEvent("test", "evt_1", "ping", json.RawMessage(`{}`))

	assert.IsType(t, &NoopWorker{}, registry.Lookup("test"))
	assert.NoError(t, registry.Process(context.Background(), *event))
}
