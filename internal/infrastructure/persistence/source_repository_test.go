package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/retailpulse/backend/internal/domain/shared"
	"github.com/retailpulse/backend/internal/domain/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLinkedSource(t *testing.T, userID, sheetID string) *source.LinkedSource {
	t.Helper()
	src, err := source.NewLinkedSource(userID, "https://docs.google.com/spreadsheets/d/"+sheetID+"/edit")
	require.NoError(t, err)
	return src
}

func TestGormSourceRepository_Replace(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the first source for a user", func(t *testing.T) {
		repo := NewGormSourceRepository(setupTestDB(t))
		src := newLinkedSource(t, "user-1", "sheetA")

		require.NoError(t, repo.Replace(ctx, src))

		found, err := repo.FindByUserID(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, src.ID, found.ID)
		assert.Equal(t, "sheetA", found.SheetID)
	})

	t.Run("replaces the previous source and its subscription", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormSourceRepository(db)
		subs := NewGormSubscriptionRepository(db)

		old := newLinkedSource(t, "user-1", "sheetA")
		require.NoError(t, repo.Replace(ctx, old))
		require.NoError(t, subs.Upsert(ctx, source.NewWatchSubscription(old, "chan-1", "res-1", time.Now().UTC().Add(time.Hour))))

		next := newLinkedSource(t, "user-1", "sheetB")
		require.NoError(t, repo.Replace(ctx, next))

		found, err := repo.FindByUserID(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "sheetB", found.SheetID)

		_, err = repo.FindByID(ctx, old.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = subs.FindByChannelID(ctx, "chan-1")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormSourceRepository_Find(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSourceRepository(setupTestDB(t))
	src := newLinkedSource(t, "user-1", "sheetA")
	require.NoError(t, repo.Replace(ctx, src))

	t.Run("by sheet id", func(t *testing.T) {
		found, err := repo.FindBySheetID(ctx, "sheetA")
		require.NoError(t, err)
		assert.Equal(t, "user-1", found.UserID)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := repo.FindByUserID(ctx, "nobody")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormSourceRepository_DeleteByUserID(t *testing.T) {
	ctx := context.Background()

	t.Run("removes source and subscription", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormSourceRepository(db)
		subs := NewGormSubscriptionRepository(db)

		src := newLinkedSource(t, "user-1", "sheetA")
		require.NoError(t, repo.Replace(ctx, src))
		require.NoError(t, subs.Upsert(ctx, source.NewWatchSubscription(src, "chan-1", "res-1", time.Now().UTC().Add(time.Hour))))

		removed, err := repo.DeleteByUserID(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, src.ID, removed.ID)

		_, err = repo.FindByUserID(ctx, "user-1")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = subs.FindBySourceID(ctx, src.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("nothing linked", func(t *testing.T) {
		repo := NewGormSourceRepository(setupTestDB(t))
		_, err := repo.DeleteByUserID(ctx, "user-1")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormSubscriptionRepository_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("supersedes the subscription of the same source", func(t *testing.T) {
		db := setupTestDB(t)
		sources := NewGormSourceRepository(db)
		repo := NewGormSubscriptionRepository(db)

		src := newLinkedSource(t, "user-1", "sheetA")
		require.NoError(t, sources.Replace(ctx, src))

		first := source.NewWatchSubscription(src, "chan-1", "res-1", time.Now().UTC().Add(time.Hour))
		require.NoError(t, repo.Upsert(ctx, first))

		second := source.NewWatchSubscription(src, "chan-2", "res-2", time.Now().UTC().Add(2*time.Hour))
		require.NoError(t, repo.Upsert(ctx, second))
		assert.Equal(t, first.ID, second.ID)

		found, err := repo.FindBySourceID(ctx, src.ID)
		require.NoError(t, err)
		assert.Equal(t, "chan-2", found.ChannelID)
		assert.Equal(t, "res-2", found.ResourceID)

		_, err = repo.FindByChannelID(ctx, "chan-1")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("source removed", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormSubscriptionRepository(db)

		src := newLinkedSource(t, "user-1", "sheetA")
		err := repo.Upsert(ctx, source.NewWatchSubscription(src, "chan-1", "res-1", time.Now().UTC()))
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormSubscriptionRepository_FindExpiringBefore(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	sources := NewGormSourceRepository(db)
	repo := NewGormSubscriptionRepository(db)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	expirations := map[string]time.Duration{
		"user-1": 30 * time.Minute,
		"user-2": 90 * time.Minute,
		"user-3": -10 * time.Minute,
	}
	for user, d := range expirations {
		src := newLinkedSource(t, user, "sheet-"+user)
		require.NoError(t, sources.Replace(ctx, src))
		require.NoError(t, repo.Upsert(ctx, source.NewWatchSubscription(src, "chan-"+user, "res", now.Add(d))))
	}

	subs, err := repo.FindExpiringBefore(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "user-3", subs[0].UserID)
	assert.Equal(t, "user-1", subs[1].UserID)

	require.NoError(t, repo.DeleteBySourceID(ctx, subs[0].SourceID))
	subs, err = repo.FindExpiringBefore(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}
