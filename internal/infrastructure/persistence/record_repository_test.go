package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/possync/backend/internal/domain/pos"
	"github.com/possync/backend/internal/domain/shared"
	"github.com/possync/backend/internal/infrastructure/persistence/models"
)

func setupRecordTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.PosSaleModel{},
		&models.PosSaleLineModel{},
		&models.PosReturnModel{},
		&models.PosReturnLineModel{},
		&models.PosSwapModel{},
		&models.StockLevelModel{},
	)
	require.NoError(t, err)

	return db
}

func newTestSaleRecord(t *testing.T) *pos.SaleRecord {
	sale, err := pos.NewSaleRecord(
		uuid.New(), uuid.New(), uuid.New(), uuid.New(),
		"CASH", "EUR", decimal.NewFromInt(30),
	)
	require.NoError(t, err)
	require.NoError(t, sale.AddLine(uuid.New(), uuid.New(), "SKU-001", decimal.NewFromInt(2), decimal.NewFromInt(10)))
	require.NoError(t, sale.AddLine(uuid.New(), uuid.New(), "SKU-002", decimal.NewFromInt(1), decimal.NewFromInt(10)))
	return sale
}

func stockQuantity(t *testing.T, db *gorm.DB, storeID, productID uuid.UUID) decimal.Decimal {
	var level models.StockLevelModel
	err := db.First(&level, "store_id = ? AND product_id = ?", storeID, productID).Error
	require.NoError(t, err)
	return level.Quantity
}

func TestGormRecordRepository_CreateSale(t *testing.T) {
	db := setupRecordTestDB(t)
	repo := NewGormRecordRepository(db)
	ctx := context.Background()

	t.Run("persists sale with lines and stock movements", func(t *testing.T) {
		sale := newTestSaleRecord(t)

		err := repo.CreateSale(ctx, sale, sale.StockMovements())
		require.NoError(t, err)

		found, err := repo.FindSaleByKey(ctx, sale.IdempotencyKey)
		require.NoError(t, err)
		assert.Equal(t, sale.ID, found.ID)
		assert.Equal(t, sale.LocalSaleID, found.LocalSaleID)
		assert.Len(t, found.Lines, 2)
		assert.True(t, found.Total.Equal(sale.Total))

		qty := stockQuantity(t, db, sale.StoreID, sale.Lines[0].ProductID)
		assert.True(t, qty.Equal(decimal.NewFromInt(-2)))
	})

	t.Run("second delivery with the same key loses", func(t *testing.T) {
		sale := newTestSaleRecord(t)
		require.NoError(t, repo.CreateSale(ctx, sale, nil))

		replay := newTestSaleRecord(t)
		replay.IdempotencyKey = sale.IdempotencyKey

		err := repo.CreateSale(ctx, replay, replay.StockMovements())
		assert.Equal(t, shared.ErrAlreadyExists, err)

		// The loser's movements must not have been applied
		var levels int64
		require.NoError(t, db.Model(&models.StockLevelModel{}).
			Where("store_id = ?", replay.StoreID).
			Count(&levels).Error)
		assert.Zero(t, levels)
	})
}

func TestGormRecordRepository_FindSale(t *testing.T) {
	db := setupRecordTestDB(t)
	repo := NewGormRecordRepository(db)
	ctx := context.Background()

	sale := newTestSaleRecord(t)
	require.NoError(t, repo.CreateSale(ctx, sale, nil))

	t.Run("finds by server identity", func(t *testing.T) {
		found, err := repo.FindSaleByID(ctx, sale.ID)
		require.NoError(t, err)
		assert.Equal(t, sale.IdempotencyKey, found.IdempotencyKey)
	})

	t.Run("returns not found for unknown key", func(t *testing.T) {
		_, err := repo.FindSaleByKey(ctx, uuid.New())
		assert.Equal(t, shared.ErrNotFound, err)
	})
}

func TestGormRecordRepository_CreateReturn(t *testing.T) {
	db := setupRecordTestDB(t)
	repo := NewGormRecordRepository(db)
	ctx := context.Background()

	sale := newTestSaleRecord(t)
	require.NoError(t, repo.CreateSale(ctx, sale, sale.StockMovements()))

	t.Run("persists return and restores stock", func(t *testing.T) {
		ret, err := pos.NewReturnRecord(
			sale.StoreID, sale.DeviceID, uuid.New(), sale.ID,
			"damaged packaging", decimal.NewFromInt(20),
		)
		require.NoError(t, err)
		require.NoError(t, ret.AddLine(sale.Lines[0].ID, sale.Lines[0].ProductID, decimal.NewFromInt(2)))

		err = repo.CreateReturn(ctx, ret, ret.StockMovements())
		require.NoError(t, err)

		found, err := repo.FindReturnByKey(ctx, ret.IdempotencyKey)
		require.NoError(t, err)
		assert.Equal(t, sale.ID, found.SaleID)
		assert.Len(t, found.Lines, 1)

		qty := stockQuantity(t, db, sale.StoreID, sale.Lines[0].ProductID)
		assert.True(t, qty.IsZero())
	})

	t.Run("duplicate key is reported", func(t *testing.T) {
		ret, err := pos.NewReturnRecord(
			sale.StoreID, sale.DeviceID, uuid.New(), sale.ID,
			"wrong size", decimal.NewFromInt(10),
		)
		require.NoError(t, err)
		require.NoError(t, repo.CreateReturn(ctx, ret, nil))

		dup, err := pos.NewReturnRecord(
			sale.StoreID, sale.DeviceID, ret.IdempotencyKey, sale.ID,
			"wrong size", decimal.NewFromInt(10),
		)
		require.NoError(t, err)

		err = repo.CreateReturn(ctx, dup, nil)
		assert.Equal(t, shared.ErrAlreadyExists, err)
	})
}

func TestGormRecordRepository_CreateSwap(t *testing.T) {
	db := setupRecordTestDB(t)
	repo := NewGormRecordRepository(db)
	ctx := context.Background()

	sale := newTestSaleRecord(t)
	require.NoError(t, repo.CreateSale(ctx, sale, sale.StockMovements()))

	t.Run("persists swap and moves both products", func(t *testing.T) {
		replacementProduct := uuid.New()
		replacement := pos.SaleLineRecord{
			SaleID:      sale.ID,
			LocalLineID: uuid.New(),
			ProductID:   replacementProduct,
			ProductCode: "SKU-003",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.NewFromInt(12),
			Amount:      decimal.NewFromInt(12),
		}
		swap, err := pos.NewSwapRecord(
			sale.StoreID, sale.DeviceID, uuid.New(), sale.ID,
			sale.Lines[1].ID, sale.Lines[1].ProductID, decimal.NewFromInt(1),
			replacement, decimal.NewFromInt(2),
		)
		require.NoError(t, err)

		err = repo.CreateSwap(ctx, swap, swap.StockMovements())
		require.NoError(t, err)

		found, err := repo.FindSwapByKey(ctx, swap.IdempotencyKey)
		require.NoError(t, err)
		assert.Equal(t, sale.ID, found.SaleID)
		assert.Equal(t, "SKU-003", found.Replacement.ProductCode)
		assert.True(t, found.PriceDifference.Equal(decimal.NewFromInt(2)))

		returned := stockQuantity(t, db, sale.StoreID, sale.Lines[1].ProductID)
		assert.True(t, returned.IsZero())
		out := stockQuantity(t, db, sale.StoreID, replacementProduct)
		assert.True(t, out.Equal(decimal.NewFromInt(-1)))
	})
}

func TestGormRecordRepository_Stats(t *testing.T) {
	db := setupRecordTestDB(t)
	repo := NewGormRecordRepository(db)
	ctx := context.Background()
	now := time.Now()

	sale := newTestSaleRecord(t)
	require.NoError(t, repo.CreateSale(ctx, sale, nil))

	old := newTestSaleRecord(t)
	require.NoError(t, repo.CreateSale(ctx, old, nil))
	require.NoError(t, db.Model(&models.PosSaleModel{}).
		Where("id = ?", old.ID).
		Update("processed_at", now.Add(-48*time.Hour)).Error)

	t.Run("aggregates totals and recent activity", func(t *testing.T) {
		stats, err := repo.Stats(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.TotalSales)
		assert.Equal(t, int64(0), stats.TotalReturns)
		assert.Equal(t, int64(0), stats.TotalSwaps)
		assert.Equal(t, int64(1), stats.Last24h)
	})
}
