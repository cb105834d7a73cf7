package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/possync/backend/internal/domain/shared"
	"github.com/possync/backend/internal/domain/sync"
	"github.com/possync/backend/internal/infrastructure/persistence/models"
)

// GormSaleCacheRepository implements sync.SaleCacheRepository over the
// device-local SQLite store
type GormSaleCacheRepository struct {
	db *gorm.DB
}

// NewGormSaleCacheRepository creates a new GormSaleCacheRepository
func NewGormSaleCacheRepository(db *gorm.DB) *GormSaleCacheRepository {
	return &GormSaleCacheRepository{db: db}
}

// Upsert inserts or replaces the cached sale for its local identity
func (r *GormSaleCacheRepository) Upsert(ctx context.Context, sale *sync.CachedSale) error {
	model := models.CachedSaleModelFromDomain(sale)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "local_id"}},
			UpdateAll: true,
		}).Omit("Lines").Create(model).Error; err != nil {
			return err
		}
		if err := tx.Where("sale_local_id = ?", model.LocalID).
			Delete(&models.CachedSaleLineModel{}).Error; err != nil {
			return err
		}
		if len(model.Lines) == 0 {
			return nil
		}
		return tx.Create(&model.Lines).Error
	})
}

// FindByLocalID retrieves a cached sale by local identity
func (r *GormSaleCacheRepository) FindByLocalID(ctx context.Context, localID uuid.UUID) (*sync.CachedSale, error) {
	var model models.CachedSaleModel
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&model, "local_id = ?", localID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIdempotencyKey retrieves a cached sale by idempotency key
func (r *GormSaleCacheRepository) FindByIdempotencyKey(ctx context.Context, key uuid.UUID) (*sync.CachedSale, error) {
	var model models.CachedSaleModel
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&model, "idempotency_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// MarkSynced records the server identities for a sale and its lines
func (r *GormSaleCacheRepository) MarkSynced(ctx context.Context, localID, serverID uuid.UUID, serverLines map[uuid.UUID]uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.CachedSaleModel{}).
			Where("local_id = ?", localID).
			Updates(map[string]interface{}{
				"server_id":  serverID,
				"is_offline": false,
				"synced_at":  now,
				"updated_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		for localLineID, serverLineID := range serverLines {
			if err := tx.Model(&models.CachedSaleLineModel{}).
				Where("local_line_id = ? AND sale_local_id = ?", localLineID, localID).
				Update("server_line_id", serverLineID).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteSyncedBefore prunes confirmed sales synced before the cutoff.
// Unsynced sales are kept, as is every sale listed in keep: pending
// returns and swaps must still resolve their server identities.
func (r *GormSaleCacheRepository) DeleteSyncedBefore(ctx context.Context, cutoff time.Time, keep []uuid.UUID) (int64, error) {
	var pruned int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&models.CachedSaleModel{}).
			Where("synced_at IS NOT NULL AND synced_at < ?", cutoff)
		if len(keep) > 0 {
			query = query.Where("local_id NOT IN ?", keep)
		}
		var localIDs []uuid.UUID
		if err := query.Pluck("local_id", &localIDs).Error; err != nil {
			return err
		}
		if len(localIDs) == 0 {
			return nil
		}
		if err := tx.Where("sale_local_id IN ?", localIDs).
			Delete(&models.CachedSaleLineModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("local_id IN ?", localIDs).
			Delete(&models.CachedSaleModel{})
		if result.Error != nil {
			return result.Error
		}
		pruned = result.RowsAffected
		return nil
	})
	return pruned, err
}
