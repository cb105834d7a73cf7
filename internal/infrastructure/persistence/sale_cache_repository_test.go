package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/possync/backend/internal/domain/shared"
	"github.com/possync/backend/internal/domain/sync"
	"github.com/possync/backend/internal/infrastructure/persistence/models"
)

func setupSaleCacheTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.CachedSaleModel{}, &models.CachedSaleLineModel{})
	require.NoError(t, err)

	return db
}

func newTestCachedSale(t *testing.T) *sync.CachedSale {
	lines := []sync.CachedSaleLine{
		{LocalLineID: uuid.New(), ProductID: uuid.New()},
		{LocalLineID: uuid.New(), ProductID: uuid.New()},
	}
	sale, err := sync.NewCachedSale(uuid.New(), uuid.New(), lines)
	require.NoError(t, err)
	return sale
}

func TestGormSaleCacheRepository_Upsert(t *testing.T) {
	db := setupSaleCacheTestDB(t)
	repo := NewGormSaleCacheRepository(db)
	ctx := context.Background()

	t.Run("inserts a new offline sale", func(t *testing.T) {
		sale := newTestCachedSale(t)

		err := repo.Upsert(ctx, sale)
		require.NoError(t, err)

		found, err := repo.FindByLocalID(ctx, sale.LocalID)
		require.NoError(t, err)
		assert.Equal(t, sale.LocalID, found.LocalID)
		assert.True(t, found.IsOffline)
		assert.Nil(t, found.ServerID)
		assert.Len(t, found.Lines, 2)
	})

	t.Run("replaces lines on repeated upsert", func(t *testing.T) {
		sale := newTestCachedSale(t)
		require.NoError(t, repo.Upsert(ctx, sale))

		sale.Lines = sale.Lines[:1]
		require.NoError(t, repo.Upsert(ctx, sale))

		found, err := repo.FindByLocalID(ctx, sale.LocalID)
		require.NoError(t, err)
		assert.Len(t, found.Lines, 1)
	})
}

func TestGormSaleCacheRepository_FindByIdempotencyKey(t *testing.T) {
	db := setupSaleCacheTestDB(t)
	repo := NewGormSaleCacheRepository(db)
	ctx := context.Background()

	sale := newTestCachedSale(t)
	require.NoError(t, repo.Upsert(ctx, sale))

	t.Run("finds by key", func(t *testing.T) {
		found, err := repo.FindByIdempotencyKey(ctx, sale.IdempotencyKey)
		require.NoError(t, err)
		assert.Equal(t, sale.LocalID, found.LocalID)
	})

	t.Run("returns not found for unknown key", func(t *testing.T) {
		_, err := repo.FindByIdempotencyKey(ctx, uuid.New())
		assert.Equal(t, shared.ErrNotFound, err)
	})
}

func TestGormSaleCacheRepository_MarkSynced(t *testing.T) {
	db := setupSaleCacheTestDB(t)
	repo := NewGormSaleCacheRepository(db)
	ctx := context.Background()

	t.Run("records server identities for sale and lines", func(t *testing.T) {
		sale := newTestCachedSale(t)
		require.NoError(t, repo.Upsert(ctx, sale))

		serverID := uuid.New()
		serverLines := map[uuid.UUID]uuid.UUID{
			sale.Lines[0].LocalLineID: uuid.New(),
			sale.Lines[1].LocalLineID: uuid.New(),
		}

		err := repo.MarkSynced(ctx, sale.LocalID, serverID, serverLines)
		require.NoError(t, err)

		found, err := repo.FindByLocalID(ctx, sale.LocalID)
		require.NoError(t, err)
		assert.False(t, found.IsOffline)
		require.NotNil(t, found.ServerID)
		assert.Equal(t, serverID, *found.ServerID)
		require.NotNil(t, found.SyncedAt)
		for _, line := range found.Lines {
			require.NotNil(t, line.ServerLineID)
			assert.Equal(t, serverLines[line.LocalLineID], *line.ServerLineID)
		}
	})

	t.Run("returns not found for unknown sale", func(t *testing.T) {
		err := repo.MarkSynced(ctx, uuid.New(), uuid.New(), nil)
		assert.Equal(t, shared.ErrNotFound, err)
	})
}

func TestGormSaleCacheRepository_DeleteSyncedBefore(t *testing.T) {
	db := setupSaleCacheTestDB(t)
	repo := NewGormSaleCacheRepository(db)
	ctx := context.Background()
	now := time.Now()

	stale := newTestCachedSale(t)
	require.NoError(t, repo.Upsert(ctx, stale))
	require.NoError(t, repo.MarkSynced(ctx, stale.LocalID, uuid.New(), nil))
	require.NoError(t, db.Model(&models.CachedSaleModel{}).
		Where("local_id = ?", stale.LocalID).
		Update("synced_at", now.Add(-48*time.Hour)).Error)

	fresh := newTestCachedSale(t)
	require.NoError(t, repo.Upsert(ctx, fresh))
	require.NoError(t, repo.MarkSynced(ctx, fresh.LocalID, uuid.New(), nil))

	offline := newTestCachedSale(t)
	require.NoError(t, repo.Upsert(ctx, offline))

	referenced := newTestCachedSale(t)
	require.NoError(t, repo.Upsert(ctx, referenced))
	require.NoError(t, repo.MarkSynced(ctx, referenced.LocalID, uuid.New(), nil))
	require.NoError(t, db.Model(&models.CachedSaleModel{}).
		Where("local_id = ?", referenced.LocalID).
		Update("synced_at", now.Add(-48*time.Hour)).Error)

	t.Run("prunes only stale confirmed sales", func(t *testing.T) {
		pruned, err := repo.DeleteSyncedBefore(ctx, now.Add(-24*time.Hour), []uuid.UUID{referenced.LocalID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), pruned)

		_, err = repo.FindByLocalID(ctx, stale.LocalID)
		assert.Equal(t, shared.ErrNotFound, err)

		_, err = repo.FindByLocalID(ctx, fresh.LocalID)
		assert.NoError(t, err)

		_, err = repo.FindByLocalID(ctx, offline.LocalID)
		assert.NoError(t, err)

		var orphans int64
		require.NoError(t, db.Model(&models.CachedSaleLineModel{}).
			Where("sale_local_id = ?", stale.LocalID).
			Count(&orphans).Error)
		assert.Zero(t, orphans)
	})

	t.Run("keeps stale sales still referenced by queued operations", func(t *testing.T) {
		kept, err := repo.FindByLocalID(ctx, referenced.LocalID)
		require.NoError(t, err)
		assert.Equal(t, referenced.LocalID, kept.LocalID)
		assert.Len(t, kept.Lines, 2)

		pruned, err := repo.DeleteSyncedBefore(ctx, now.Add(-24*time.Hour), nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), pruned)

		_, err = repo.FindByLocalID(ctx, referenced.LocalID)
		assert.Equal(t, shared.ErrNotFound, err)
	})
}
