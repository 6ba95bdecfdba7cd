package mock

import (
	"context"
	"sync"
	"time"

	"github.com/khabaroff/webhook-inbox/src/models"
	"github.com/khabaroff/webhook-inbox/src/repositories"
)

// EventRepository is a mock implementation of repositories.EventRepository
type EventRepository struct {
	// Function stubs that can be overridden in tests
	FindByKeyFunc         func(ctx context.Context, key models.EventKey) (*models.WebhookEvent, error)
	CreateFunc            func(ctx context.Context, event *models.WebhookEvent) error
	IncrementAttemptsFunc func(ctx context.Context, key models.EventKey) error
	MarkProcessedFunc     func(ctx context.Context, key models.EventKey) error
	MarkFailedFunc        func(ctx context.Context, key models.EventKey, errMsg string) error
	ListPendingFunc       func(ctx context.Context) ([]models.WebhookEvent, error)
	ClaimPendingFunc      func(ctx context.Context, limit int, lease time.Duration) ([]models.WebhookEvent, error)
	ListFunc              func(ctx context.Context, filter models.EventFilter) ([]models.WebhookEvent, error)
	CountByStatusFunc     func(ctx context.Context) (map[models.EventStatus]int, error)
	PingFunc              func(ctx context.Context) error

	// Call tracking
	mu    sync.Mutex
	Calls map[string][]interface{}
}

// NewEventRepository creates a new mock event repository
func NewEventRepository() *EventRepository {
	return &EventRepository{
		Calls: make(map[string][]interface{}),
	}
}

func (m *EventRepository) record(name string, arg interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[name] = append(m.Calls[name], arg)
}

// CallCount returns how many times the named method was called
func (m *EventRepository) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls[name])
}

func (m *EventRepository) FindByKey(ctx context.Context, key models.EventKey) (*models.WebhookEvent, error) {
	m.record("FindByKey", key)
	if m.FindByKeyFunc != nil {
		return m.FindByKeyFunc(ctx, key)
	}
	return nil, repositories.ErrEventNotFound
}

func (m *EventRepository) Create(ctx context.Context, event *models.WebhookEvent) error {
	m.record("Create", event)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, event)
	}
	return nil
}

func (m *EventRepository) IncrementAttempts(ctx context.Context, key models.EventKey) error {
	m.record("IncrementAttempts", key)
	if m.IncrementAttemptsFunc != nil {
		return m.IncrementAttemptsFunc(ctx, key)
	}
	return nil
}

func (m *EventRepository) MarkProcessed(ctx context.Context, key models.EventKey) error {
	m.record("MarkProcessed", key)
	if m.MarkProcessedFunc != nil {
		return m.MarkProcessedFunc(ctx, key)
	}
	return nil
}

func (m *EventRepository) MarkFailed(ctx context.Context, key models.EventKey, errMsg string) error {
	m.record("MarkFailed", []interface{}{key, errMsg})
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, key, errMsg)
	}
	return nil
}

func (m *EventRepository) ListPending(ctx context.Context) ([]models.WebhookEvent, error) {
	m.record("ListPending", nil)
	if m.ListPendingFunc != nil {
		return m.ListPendingFunc(ctx)
	}
	return nil, nil
}

func (m *EventRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]models.WebhookEvent, error) {
	m.record("ClaimPending", []interface{}{limit, lease})
	if m.ClaimPendingFunc != nil {
		return m.ClaimPendingFunc(ctx, limit, lease)
	}
	return nil, nil
}

func (m *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.WebhookEvent, error) {
	m.record("List", filter)
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return nil, nil
}

func (m *EventRepository) CountByStatus(ctx context.Context) (map[models.EventStatus]int, error) {
	m.record("CountByStatus", nil)
	if m.CountByStatusFunc != nil {
		return m.CountByStatusFunc(ctx)
	}
	return map[models.EventStatus]int{}, nil
}

func (m *EventRepository) Ping(ctx context.Context) error {
	m.record("Ping", nil)
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// Ensure EventRepository implements the interface
var _ repositories.EventRepository = (*EventRepository)(nil)
