// Package postgres implements event storage on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/khabaroff/webhook-inbox/src/database"
	"github.com/khabaroff/webhook-inbox/src/models"
	"github.com/khabaroff/webhook-inbox/src/repositories"
)

const uniqueViolation = "23505"

const eventColumns = `provider, id, event_type, payload, status, attempts, last_error, processed_at, created_at`

// EventRepository stores webhook events in the webhook_events table
type EventRepository struct {
	pool   *pgxpool.Pool
	cipher *database.PayloadCipher
}

// NewEventRepository creates a repository on the given pool. cipher may be nil.
func NewEventRepository(pool *pgxpool.Pool, cipher *database.PayloadCipher) *EventRepository {
	return &EventRepository{pool: pool, cipher: cipher}
}

var _ repositories.EventRepository = (*EventRepository)(nil)

func (r *EventRepository) scanEvent(row pgx.Row) (*models.WebhookEvent, error) {
	var (
		e       models.WebhookEvent
		payload []byte
		status  string
	)
	err := row.Scan(&e.Provider, &e.ID, &e.EventType, &payload, &status, &e.Attempts, &e.LastError, &e.ProcessedAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	opened, err := r.cipher.Open(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt payload of %s:%s: %w", e.Provider, e.ID, err)
	}
	e.Payload = opened
	e.Status = models.EventStatus(status)
	return &e, nil
}

func (r *EventRepository) queryEvents(ctx context.Context, sql string, args ...interface{}) ([]models.WebhookEvent, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.WebhookEvent
	for rows.Next() {
		e, err := r.scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// FindByKey retrieves an event by (provider, id)
func (r *EventRepository) FindByKey(ctx context.Context, key models.EventKey) (*models.WebhookEvent, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM webhook_events WHERE provider = $1 AND id = $2`,
		key.Provider, key.ID,
	)
	e, err := r.scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repositories.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find event: %w", err)
	}
	return e, nil
}

// Create inserts a new event. The primary key on (provider, id) makes the
// insert the atomic idempotency check.
func (r *EventRepository) Create(ctx context.Context, event *models.WebhookEvent) error {
	payload, err := r.cipher.Seal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to encrypt payload: %w", err)
	}
	if payload == nil {
		payload = []byte("null")
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO webhook_events (provider, id, event_type, payload, status, attempts)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (provider, id) DO NOTHING
		 RETURNING created_at`,
		event.Provider, event.ID, event.EventType, payload, string(event.Status), event.Attempts,
	).Scan(&event.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return repositories.ErrDuplicateEvent
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repositories.ErrDuplicateEvent
	}
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// IncrementAttempts adds one to the attempt counter of a pending event
func (r *EventRepository) IncrementAttempts(ctx context.Context, key models.EventKey) error {
	return r.transition(ctx, key,
		`UPDATE webhook_events SET attempts = attempts + 1
		 WHERE provider = $1 AND id = $2 AND status = 'pending'`,
	)
}

// MarkProcessed moves a pending event to processed
func (r *EventRepository) MarkProcessed(ctx context.Context, key models.EventKey) error {
	return r.transition(ctx, key,
		`UPDATE webhook_events
		 SET status = 'processed', processed_at = NOW(), locked_until = NULL
		 WHERE provider = $1 AND id = $2 AND status = 'pending'`,
	)
}

// MarkFailed moves a pending event to failed and records the error
func (r *EventRepository) MarkFailed(ctx context.Context, key models.EventKey, errMsg string) error {
	return r.transition(ctx, key,
		`UPDATE webhook_events
		 SET status = 'failed', last_error = $3, locked_until = NULL
		 WHERE provider = $1 AND id = $2 AND status = 'pending'`,
		errMsg,
	)
}

func (r *EventRepository) transition(ctx context.Context, key models.EventKey, sql string, extra ...interface{}) error {
	args := append([]interface{}{key.Provider, key.ID}, extra...)
	result, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	// distinguish a missing row from a terminal one
	if _, err := r.FindByKey(ctx, key); err != nil {
		return err
	}
	return repositories.ErrEventNotPending
}

// ListPending returns a snapshot of all pending events, oldest first
func (r *EventRepository) ListPending(ctx context.Context) ([]models.WebhookEvent, error) {
	return r.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM webhook_events
		 WHERE status = 'pending'
		 ORDER BY created_at ASC`,
	)
}

// ClaimPending leases up to limit pending events. Rows locked by a concurrent
// claim are skipped, and leased rows stay invisible until the lease expires.
func (r *EventRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]models.WebhookEvent, error) {
	events, err := r.queryEvents(ctx,
		`UPDATE webhook_events AS e
		 SET locked_until = NOW() + make_interval(secs => $2)
		 FROM (
			SELECT provider, id FROM webhook_events
			WHERE status = 'pending' AND (locked_until IS NULL OR locked_until <= NOW())
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		 ) AS c
		 WHERE e.provider = c.provider AND e.id = c.id
		 RETURNING e.provider, e.id, e.event_type, e.payload, e.status, e.attempts, e.last_error, e.processed_at, e.created_at`,
		limit, lease.Seconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending events: %w", err)
	}

	// RETURNING does not preserve the subquery order
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}

// List returns events matching the filter, newest first
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.WebhookEvent, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Provider != "" {
		args = append(args, filter.Provider)
		conds = append(conds, fmt.Sprintf("provider = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	sql := `SELECT ` + eventColumns + ` FROM webhook_events`
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	sql += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return r.queryEvents(ctx, sql, args...)
}

// CountByStatus returns the number of events in each status
func (r *EventRepository) CountByStatus(ctx context.Context) (map[models.EventStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM webhook_events GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.EventStatus]int, len(models.AllStatuses))
	for _, s := range models.AllStatuses {
		counts[s] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[models.EventStatus(status)] = n
	}
	return counts, rows.Err()
}

// Ping checks database connectivity
func (r *EventRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.pool.Ping(ctx)
}
