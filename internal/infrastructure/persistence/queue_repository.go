package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/possync/backend/internal/domain/shared"
	"github.com/possync/backend/internal/domain/sync"
	"github.com/possync/backend/internal/infrastructure/persistence/models"
)

// GormQueueRepository implements sync.QueueRepository over the device-local
// SQLite store
type GormQueueRepository struct {
	db *gorm.DB
}

// NewGormQueueRepository creates a new GormQueueRepository
func NewGormQueueRepository(db *gorm.DB) *GormQueueRepository {
	return &GormQueueRepository{db: db}
}

// Append durably adds a new operation to the queue
func (r *GormQueueRepository) Append(ctx context.Context, op *sync.QueuedOperation) error {
	model := models.QueuedOperationModelFromDomain(op)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return shared.ErrStorageUnavailable
	}
	return nil
}

// FindByID retrieves a single operation
func (r *GormQueueRepository) FindByID(ctx context.Context, id uuid.UUID) (*sync.QueuedOperation, error) {
	var model models.QueuedOperationModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists queued operations, optionally filtered by kind, oldest first
func (r *GormQueueRepository) FindAll(ctx context.Context, kind *sync.OperationKind) ([]*sync.QueuedOperation, error) {
	query := r.db.WithContext(ctx).Model(&models.QueuedOperationModel{})
	if kind != nil {
		query = query.Where("kind = ?", string(*kind))
	}

	var rows []models.QueuedOperationModel
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainOperations(rows), nil
}

// FindDue retrieves pending operations deliverable at the given instant,
// oldest first
func (r *GormQueueRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*sync.QueuedOperation, error) {
	var rows []models.QueuedOperationModel
	query := r.db.WithContext(ctx).
		Where("status = ?", string(sync.OperationStatusPending)).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainOperations(rows), nil
}

// Update persists attempt metadata and status changes
func (r *GormQueueRepository) Update(ctx context.Context, op *sync.QueuedOperation) error {
	model := models.QueuedOperationModelFromDomain(op)
	result := r.db.WithContext(ctx).
		Model(&models.QueuedOperationModel{}).
		Where("id = ?", op.ID).
		Select("kind", "payload", "status", "attempts", "last_error", "next_attempt_at", "updated_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Remove deletes an operation after confirmed delivery or operator removal
func (r *GormQueueRepository) Remove(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Delete(&models.QueuedOperationModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Depth returns the number of operations in the queue
func (r *GormQueueRepository) Depth(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.QueuedOperationModel{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountEscalated returns the number of operations at or past the attempt
// threshold
func (r *GormQueueRepository) CountEscalated(ctx context.Context, threshold int) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.QueuedOperationModel{}).
		Where("attempts >= ?", threshold).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func toDomainOperations(rows []models.QueuedOperationModel) []*sync.QueuedOperation {
	ops := make([]*sync.QueuedOperation, 0, len(rows))
	for i := range rows {
		ops = append(ops, rows[i].ToDomain())
	}
	return ops
}
