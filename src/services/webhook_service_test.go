package services

import (
	"context"
	"errors"
	"testing"

	"github.com/khabaroff/webhook-inbox/src/config"
	"github.com/khabaroff/webhook-inbox/src/models"
	"github.com/khabaroff/webhook-inbox/src/repositories/memory"
	"github.com/khabaroff/webhook-inbox/src/repositories/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func newTestWebhookService(t *testing.T) (*WebhookService, *memory.EventRepository) {
	t.Helper()
	repo := memory.NewEventRepository()
	validator := NewSignatureValidator(config.ProviderSecrets{"test": testSecret})
	return NewWebhookService(validator, NewEventService(repo)), repo
}

func signedInput(body string) WebhookInput {
	return WebhookInput{
		Provider:  "test",
		RawBody:   []byte(body),
		Signature: Sign(testSecret, []byte(body)),
	}
}

func TestWebhookService_HandleWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("ingests signed event", func(t *testing.T) {
		service, repo := newTestWebhookService(t)
		body := `{"id":"evt_1","type":"invoice.paid","amount":42}`

		result, err := service.HandleWebhook(ctx, signedInput(body))
		require.NoError(t, err)

		assert.Equal(t, models.IngestStatusCreated, result.Status)
		assert.Equal(t, "test", result.Event.Provider)
		assert.Equal(t, "evt_1", result.Event.ID)
		assert.Equal(t, "invoice.paid", result.Event.EventType)
		assert.Equal(t, body, string(result.Event.Payload))
		assert.Equal(t, 1, repo.Len())
	})

	t.Run("second delivery is duplicate", func(t *testing.T) {
		service, repo := newTestWebhookService(t)
		body := `{"id":"evt_1","type":"invoice.paid"}`

		_, err := service.HandleWebhook(ctx, signedInput(body))
		require.NoError(t, err)
		result, err := service.HandleWebhook(ctx, signedInput(body))
		require.NoError(t, err)

		assert.Equal(t, models.IngestStatusDuplicate, result.Status)
		assert.Equal(t, 1, repo.Len())
	})

	t.Run("rejects bad signature before parsing", func(t *testing.T) {
		service, repo := newTestWebhookService(t)
		input := signedInput(`not json at all`)
		input.Signature = Sign("wrong", input.RawBody)

		_, err := service.HandleWebhook(ctx, input)
		assert.ErrorIs(t, err, ErrInvalidSignature)
		assert.Equal(t, KindInvalidSignature, ErrorKind(err))
		assert.Equal(t, 0, repo.Len())
	})

	t.Run("rejects unknown provider", func(t *testing.T) {
		service, _ := newTestWebhookService(t)
		input := signedInput(`{"id":"evt_1","type":"x"}`)
		input.Provider = "github"

		_, err := service.HandleWebhook(ctx, input)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	payloadCases := []struct {
		name    string
		body    string
		message string
	}{
		{"invalid json", `{"id":`, "invalid JSON payload"},
		{"array body", `[{"id":"evt_1","type":"x"}]`, "payload must be a JSON object"},
		{"null body", `null`, "payload must be a JSON object"},
		{"string body", `"evt_1"`, "payload must be a JSON object"},
		{"missing id", `{"type":"x"}`, "missing event id"},
		{"numeric id", `{"id":12,"type":"x"}`, "missing event id"},
		{"empty id", `{"id":"","type":"x"}`, "missing event id"},
		{"missing type", `{"id":"evt_1"}`, "missing event type"},
		{"object type", `{"id":"evt_1","type":{"name":"x"}}`, "missing event type"},
	}
	for _, tc := range payloadCases {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			service, repo := newTestWebhookService(t)

			_, err := service.HandleWebhook(ctx, signedInput(tc.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPayload)
			assert.Contains(t, err.Error(), tc.message)
			assert.Equal(t, KindInvalidPayload, ErrorKind(err))
			assert.Equal(t, 0, repo.Len())
		})
	}

	t.Run("store failure is internal", func(t *testing.T) {
		repo := mock.NewEventRepository()
		repo.FindByKeyFunc = func(ctx context.Context, key models.EventKey) (*models.WebhookEvent, error) {
			return nil, errors.New("connection reset")
		}
		validator := NewSignatureValidator(config.ProviderSecrets{"test": testSecret})
		service := NewWebhookService(validator, NewEventService(repo))

		_, err := service.HandleWebhook(ctx, signedInput(`{"id":"evt_1","type":"x"}`))
		require.Error(t, err)
		assert.Equal(t, KindInternal, ErrorKind(err))
	})
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, KindNone, ErrorKind(nil))
	assert.Equal(t, KindInvalidSignature, ErrorKind(ErrInvalidSignature))
	assert.Equal(t, KindInvalidPayload, ErrorKind(errors.Join(errors.New("x"), ErrInvalidPayload)))
	assert.Equal(t, KindInternal, ErrorKind(errors.New("boom")))
}
