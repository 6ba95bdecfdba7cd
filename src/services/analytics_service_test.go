package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/khabaroff/webhook-inbox/src/logging"
	"github.com/khabaroff/webhook-inbox/src/models"
	"github.com/khabaroff/webhook-inbox/src/repositories/memory"
	"github.com/posthog/posthog-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	mu       sync.Mutex
	captures []posthog.Capture
	closed   bool
}

func (f *fakeEnqueuer) Enqueue(msg posthog.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := msg.(posthog.Capture); ok {
		f.captures = append(f.captures, c)
	}
	return nil
}

func (f *fakeEnqueuer) Close() error {
	f.closed = true
	return nil
}

func (f *fakeEnqueuer) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.captures {
		out = append(out, c.Event)
	}
	return out
}

func newFakeAnalytics() (*AnalyticsService, *fakeEnqueuer) {
	fake := &fakeEnqueuer{}
	return &AnalyticsService{client: fake, environment: "test", logger: logging.NewLogger("analytics")}, fake
}

func TestAnalyticsService_DisabledWithoutKey(t *testing.T) {
	service, err := NewAnalyticsService(AnalyticsConfig{})
	require.NoError(t, err)
	assert.False(t, service.Enabled())

	event := models.NewWebhookEvent("test", "evt_1", "x", json.RawMessage(`{}`))
	assert.NotPanics(t, func() {
		service.TrackIngested(event, models.IngestStatusCreated)
		service.TrackProcessed(*event, nil)
	})
	assert.NoError(t, service.Close())
}

func TestAnalyticsService_Capture(t *testing.T) {
	service, fake := newFakeAnalytics()
	event := models.NewWebhookEvent("stripe", "evt_1", "charge.succeeded", json.RawMessage(`{"secret":"card"}`))

	service.TrackIngested(event, models.IngestStatusCreated)
	service.TrackProcessed(*event, errors.New("boom"))

	require.Len(t, fake.captures, 2)
	ingested := fake.captures[0]
	assert.Equal(t, EventIngested, ingested.Event)
	assert.Equal(t, "provider_stripe", ingested.DistinctId)
	assert.Equal(t, "stripe", ingested.Properties["provider"])
	assert.Equal(t, "created", ingested.Properties["ingest_status"])
	assert.Equal(t, "test", ingested.Properties["environment"])
	assert.NotContains(t, ingested.Properties, "payload")

	assert.Equal(t, EventFailed, fake.captures[1].Event)
	assert.Equal(t, 1, fake.captures[1].Properties["attempts"])

	require.NoError(t, service.Close())
	assert.True(t, fake.closed)
}

func TestAnalyticsService_WiredIntoPipeline(t *testing.T) {
	ctx := context.Background()
	service, fake := newFakeAnalytics()
	repo := memory.NewEventRepository()

	events := NewEventService(repo)
	events.SetTracker(service)
	processor := NewEventProcessor(repo, nil, ProcessorConfig{})
	processor.SetTracker(service)

	_, err := events.IngestEvent(ctx, testInput("evt_1"))
	require.NoError(t, err)
	_, err = events.IngestEvent(ctx, testInput("evt_1"))
	require.NoError(t, err)
	_, err = processor.ProcessPending(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{EventIngested, EventIngested, EventProcessed}, fake.names())
	assert.Equal(t, "duplicate", fake.captures[1].Properties["ingest_status"])
}
