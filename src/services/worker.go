package services

import (
	"context"
	"sync"

	"github.com/khabaroff/webhook-inbox/src/logging"
	"github.com/khabaroff/webhook-inbox/src/models"
	"github.com/rs/zerolog"
)

// Worker performs the provider-specific work for one event.
// A returned error marks the event failed with err.Error() as its last error.
type Worker interface {
	Process(ctx context.Context, event models.WebhookEvent) error
}

// WorkerFunc adapts a plain function to Worker
type WorkerFunc func(ctx context.Context, event models.WebhookEvent) error

// Process calls f(ctx, event)
func (f WorkerFunc) Process(ctx context.Context, event models.WebhookEvent) error {
	return f(ctx, event)
}

// NoopWorker logs the event and succeeds
type NoopWorker struct {
	logger zerolog.Logger
}

// NewNoopWorker creates a worker that only logs
func NewNoopWorker() *NoopWorker {
	return &NoopWorker{logger: logging.NewLogger("worker")}
}

func (w *NoopWorker) Process(_ context.Context, event models.WebhookEvent) error {
	logger := logging.WithEvent(w.logger, event.Provider, event.ID)
	logger.Info().Str("event_type", event.EventType).Msg("processing event (noop)")
	return nil
}

// WorkerRegistry dispatches events to the worker registered for their
// provider, falling back to a default worker
type WorkerRegistry struct {
	mu       sync.RWMutex
	workers  map[string]Worker
	fallback Worker
}

// NewWorkerRegistry creates a registry; a nil fallback means NoopWorker
func NewWorkerRegistry(fallback Worker) *WorkerRegistry {
	if fallback == nil {
		fallback = NewNoopWorker()
	}
	return &WorkerRegistry{
		workers:  make(map[string]Worker),
		fallback: fallback,
	}
}

// Register sets the worker for provider, replacing any previous one
func (r *WorkerRegistry) Register(provider string, worker Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[provider] = worker
}

// Lookup returns the worker that handles provider
func (r *WorkerRegistry) Lookup(provider string) Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if w, ok := r.workers[provider]; ok {
		return w
	}
	return r.fallback
}

// Process implements Worker by dispatching on event.Provider
func (r *WorkerRegistry) Process(ctx context.Context, event models.WebhookEvent) error {
	return r.Lookup(event.Provider).Process(ctx, event)
}
