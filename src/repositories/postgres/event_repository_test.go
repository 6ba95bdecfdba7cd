package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/khabaroff/webhook-inbox/src/database"
	"github.com/khabaroff/webhook-inbox/src/models"
	"github.com/khabaroff/webhook-inbox/src/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvent(id string) *models.WebhookEvent {
	return models.NewWebhookEvent("test", id, "created", json.RawMessage(`{"id":"`+id+`","type":"created"}`))
}

func TestEventRepository_CreateFindDuplicate(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		repo := NewEventRepository(tdb.Pool, nil)

		require.NoError(t, repo.Create(ctx, newEvent("evt-1")))
		assert.ErrorIs(t, repo.Create(ctx, newEvent("evt-1")), repositories.ErrDuplicateEvent)

		got, err := repo.FindByKey(ctx, models.EventKey{Provider: "test", ID: "evt-1"})
		require.NoError(t, err)
		assert.Equal(t, models.EventStatusPending, got.Status)
		assert.Equal(t, 0, got.Attempts)
		assert.Nil(t, got.LastError)
		assert.Nil(t, got.ProcessedAt)
		assert.JSONEq(t, `{"id":"evt-1","type":"created"}`, string(got.Payload))

		n, err := tdb.CountEvents("test")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = repo.FindByKey(ctx, models.EventKey{Provider: "test", ID: "missing"})
		assert.ErrorIs(t, err, repositories.ErrEventNotFound)
	})
}

func TestEventRepository_ConcurrentCreate(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		repo := NewEventRepository(tdb.Pool, nil)

		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- repo.Create(ctx, newEvent("evt-race"))
			}()
		}
		wg.Wait()
		close(errs)

		created := 0
		for err := range errs {
			if err == nil {
				created++
				continue
			}
			assert.ErrorIs(t, err, repositories.ErrDuplicateEvent)
		}
		assert.Equal(t, 1, created)
	})
}

func TestEventRepository_Transitions(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		repo := NewEventRepository(tdb.Pool, nil)
		ok := models.EventKey{Provider: "test", ID: "ok"}
		bad := models.EventKey{Provider: "test", ID: "bad"}
		require.NoError(t, repo.Create(ctx, newEvent("ok")))
		require.NoError(t, repo.Create(ctx, newEvent("bad")))

		require.NoError(t, repo.IncrementAttempts(ctx, ok))
		require.NoError(t, repo.MarkProcessed(ctx, ok))
		require.NoError(t, repo.IncrementAttempts(ctx, bad))
		require.NoError(t, repo.MarkFailed(ctx, bad, "boom"))

		got, err := repo.FindByKey(ctx, ok)
		require.NoError(t, err)
		assert.Equal(t, models.EventStatusProcessed, got.Status)
		assert.Equal(t, 1, got.Attempts)
		assert.NotNil(t, got.ProcessedAt)

		got, err = repo.FindByKey(ctx, bad)
		require.NoError(t, err)
		assert.Equal(t, models.EventStatusFailed, got.Status)
		require.NotNil(t, got.LastError)
		assert.Equal(t, "boom", *got.LastError)
		assert.Nil(t, got.ProcessedAt)

		assert.ErrorIs(t, repo.MarkProcessed(ctx, bad), repositories.ErrEventNotPending)
		assert.ErrorIs(t, repo.IncrementAttempts(ctx, bad), repositories.ErrEventNotPending)
		assert.ErrorIs(t, repo.IncrementAttempts(ctx, models.EventKey{Provider: "test", ID: "nope"}), repositories.ErrEventNotFound)
		got, err = repo.FindByKey(ctx, bad)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Attempts)
		assert.ErrorIs(t, repo.MarkFailed(ctx, models.EventKey{Provider: "test", ID: "nope"}, "x"), repositories.ErrEventNotFound)

		pending, err := repo.ListPending(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)

		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, counts[models.EventStatusProcessed])
		assert.Equal(t, 1, counts[models.EventStatusFailed])
		assert.Equal(t, 0, counts[models.EventStatusPending])
	})
}

func TestEventRepository_ClaimPending(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		repo := NewEventRepository(tdb.Pool, nil)
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.Create(ctx, newEvent(fmt.Sprintf("evt-%d", i))))
		}

		first, err := repo.ClaimPending(ctx, 2, time.Minute)
		require.NoError(t, err)
		assert.Len(t, first, 2)

		rest, err := repo.ClaimPending(ctx, 10, time.Minute)
		require.NoError(t, err)
		assert.Len(t, rest, 1)

		none, err := repo.ClaimPending(ctx, 10, time.Minute)
		require.NoError(t, err)
		assert.Empty(t, none)

		// ListPending still reports leased events
		pending, err := repo.ListPending(ctx)
		require.NoError(t, err)
		assert.Len(t, pending, 3)
	})
}

func TestEventRepository_EncryptedPayload(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		pc, err := database.NewPayloadCipher("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
		require.NoError(t, err)
		repo := NewEventRepository(tdb.Pool, pc)

		require.NoError(t, repo.Create(ctx, newEvent("enc-1")))

		var raw []byte
		require.NoError(t, tdb.Pool.QueryRow(ctx,
			`SELECT payload FROM webhook_events WHERE provider = 'test' AND id = 'enc-1'`).Scan(&raw))
		assert.NotContains(t, string(raw), "enc-1")

		got, err := repo.FindByKey(ctx, models.EventKey{Provider: "test", ID: "enc-1"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"enc-1","type":"created"}`, string(got.Payload))
	})
}

func TestEventRepository_List(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		repo := NewEventRepository(tdb.Pool, nil)
		require.NoError(t, repo.Create(ctx, newEvent("a")))
		require.NoError(t, repo.Create(ctx, newEvent("b")))
		require.NoError(t, repo.MarkFailed(ctx, models.EventKey{Provider: "test", ID: "a"}, "x"))

		failed, err := repo.List(ctx, models.EventFilter{Provider: "test", Status: models.EventStatusFailed, Limit: 10})
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, "a", failed[0].ID)

		all, err := repo.List(ctx, models.EventFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestAdvisoryRunLock(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		a := NewAdvisoryRunLock(tdb.Pool, ProcessorLockKey)
		b := NewAdvisoryRunLock(tdb.Pool, ProcessorLockKey)

		ok, err := a.TryLock(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = b.TryLock(ctx)
		require.NoError(t, err)
		assert.False(t, ok, "second holder must not get the lock")

		require.NoError(t, a.Unlock(ctx))

		ok, err = b.TryLock(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, b.Unlock(ctx))
	})
}
