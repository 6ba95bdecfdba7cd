package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ProcessorLockKey is the advisory lock id shared by every processor run
const ProcessorLockKey int64 = 0x77686b_70726f63 // "whk" "proc"

// AdvisoryRunLock serializes processor runs across processes sharing one
// database using a session-level advisory lock. The lock lives on a
// dedicated pooled connection held until Unlock.
type AdvisoryRunLock struct {
	pool  *pgxpool.Pool
	key   int64
	local sync.Mutex
	conn  *pgxpool.Conn
}

// NewAdvisoryRunLock creates a run lock on the given pool
func NewAdvisoryRunLock(pool *pgxpool.Pool, key int64) *AdvisoryRunLock {
	return &AdvisoryRunLock{pool: pool, key: key}
}

// TryLock attempts to take the lock without waiting
func (l *AdvisoryRunLock) TryLock(ctx context.Context) (bool, error) {
	if !l.local.TryLock() {
		return false, nil
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		l.local.Unlock()
		return false, fmt.Errorf("failed to acquire connection for run lock: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&acquired); err != nil {
		conn.Release()
		l.local.Unlock()
		return false, fmt.Errorf("failed to take advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		l.local.Unlock()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Unlock releases the advisory lock and its connection
func (l *AdvisoryRunLock) Unlock(ctx context.Context) error {
	conn := l.conn
	if conn == nil {
		return nil
	}
	l.conn = nil
	defer l.local.Unlock()
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, l.key); err != nil {
		// closing the session drops the lock server-side
		_ = conn.Conn().Close(ctx)
		return fmt.Errorf("failed to release advisory lock: %w", err)
	}
	return nil
}
