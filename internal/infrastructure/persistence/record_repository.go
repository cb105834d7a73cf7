package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/possync/backend/internal/domain/pos"
	"github.com/possync/backend/internal/domain/shared"
	"github.com/possync/backend/internal/infrastructure/persistence/models"
)

// GormRecordRepository implements pos.RecordRepository using GORM over
// Postgres. The unique index on each table's idempotency key decides which
// of two concurrent first deliveries wins; the loser sees
// shared.ErrAlreadyExists and replays the winner's record.
type GormRecordRepository struct {
	db *gorm.DB
}

// NewGormRecordRepository creates a new GormRecordRepository
func NewGormRecordRepository(db *gorm.DB) *GormRecordRepository {
	return &GormRecordRepository{db: db}
}

// CreateSale persists a sale and its stock movements in one transaction
func (r *GormRecordRepository) CreateSale(ctx context.Context, sale *pos.SaleRecord, movements []pos.StockMovement) error {
	model := models.PosSaleModelFromDomain(sale)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			if isUniqueViolation(err) {
				return shared.ErrAlreadyExists
			}
			return err
		}
		return applyStockMovements(tx, sale.StoreID, movements)
	})
}

// FindSaleByKey finds a sale by its idempotency key
func (r *GormRecordRepository) FindSaleByKey(ctx context.Context, idempotencyKey uuid.UUID) (*pos.SaleRecord, error) {
	var model models.PosSaleModel
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&model, "idempotency_key = ?", idempotencyKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindSaleByID finds a sale by its server identity
func (r *GormRecordRepository) FindSaleByID(ctx context.Context, id uuid.UUID) (*pos.SaleRecord, error) {
	var model models.PosSaleModel
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// CreateReturn persists a return and its stock movements in one transaction
func (r *GormRecordRepository) CreateReturn(ctx context.Context, ret *pos.ReturnRecord, movements []pos.StockMovement) error {
	model := models.PosReturnModelFromDomain(ret)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			if isUniqueViolation(err) {
				return shared.ErrAlreadyExists
			}
			return err
		}
		return applyStockMovements(tx, ret.StoreID, movements)
	})
}

// FindReturnByKey finds a return by its idempotency key
func (r *GormRecordRepository) FindReturnByKey(ctx context.Context, idempotencyKey uuid.UUID) (*pos.ReturnRecord, error) {
	var model models.PosReturnModel
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&model, "idempotency_key = ?", idempotencyKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// CreateSwap persists a swap and its stock movements in one transaction
func (r *GormRecordRepository) CreateSwap(ctx context.Context, swap *pos.SwapRecord, movements []pos.StockMovement) error {
	model := models.PosSwapModelFromDomain(swap)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			if isUniqueViolation(err) {
				return shared.ErrAlreadyExists
			}
			return err
		}
		return applyStockMovements(tx, swap.StoreID, movements)
	})
}

// FindSwapByKey finds a swap by its idempotency key
func (r *GormRecordRepository) FindSwapByKey(ctx context.Context, idempotencyKey uuid.UUID) (*pos.SwapRecord, error) {
	var model models.PosSwapModel
	if err := r.db.WithContext(ctx).
		First(&model, "idempotency_key = ?", idempotencyKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Stats aggregates processed counts; "last 24h" is relative to now
func (r *GormRecordRepository) Stats(ctx context.Context, now time.Time) (*pos.Stats, error) {
	stats := &pos.Stats{}
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.PosSaleModel{}).Count(&stats.TotalSales).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.PosReturnModel{}).Count(&stats.TotalReturns).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.PosSwapModel{}).Count(&stats.TotalSwaps).Error; err != nil {
		return nil, err
	}

	since := now.Add(-24 * time.Hour)
	var recent int64
	if err := db.Model(&models.PosSaleModel{}).
		Where("processed_at >= ?", since).
		Count(&recent).Error; err != nil {
		return nil, err
	}
	stats.Last24h = recent
	if err := db.Model(&models.PosReturnModel{}).
		Where("processed_at >= ?", since).
		Count(&recent).Error; err != nil {
		return nil, err
	}
	stats.Last24h += recent
	if err := db.Model(&models.PosSwapModel{}).
		Where("processed_at >= ?", since).
		Count(&recent).Error; err != nil {
		return nil, err
	}
	stats.Last24h += recent

	return stats, nil
}

// applyStockMovements adjusts per-product quantities inside the record's
// transaction so the ledger and stock never diverge
func applyStockMovements(tx *gorm.DB, storeID uuid.UUID, movements []pos.StockMovement) error {
	now := time.Now()
	for _, movement := range movements {
		level := models.StockLevelModel{
			StoreID:   storeID,
			ProductID: movement.ProductID,
			Quantity:  movement.Delta,
			UpdatedAt: now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "store_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   gorm.Expr("stock_levels.quantity + ?", movement.Delta),
				"updated_at": now,
			}),
		}).Create(&level).Error; err != nil {
			return err
		}
	}
	return nil
}
