package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/possync/backend/internal/domain/sync"
)

// QueuedOperationModel is the persistence model for the device-local
// durable operation queue. The primary key doubles as the idempotency key
// sent to the server.
type QueuedOperationModel struct {
	ID            uuid.UUID            `gorm:"type:uuid;primaryKey"`
	Kind          sync.OperationKind   `gorm:"type:varchar(16);not null;index:idx_queue_kind"`
	Payload       []byte               `gorm:"not null"`
	Status        sync.OperationStatus `gorm:"type:varchar(16);not null;default:PENDING;index:idx_queue_status_created,priority:1"`
	Attempts      int                  `gorm:"not null;default:0"`
	LastError     string               `gorm:"type:text"`
	NextAttemptAt *time.Time           `gorm:"index:idx_queue_next_attempt"`
	CreatedAt     time.Time            `gorm:"not null;index:idx_queue_status_created,priority:2"`
	UpdatedAt     time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (QueuedOperationModel) TableName() string {
	return "queued_operations"
}

// ToDomain converts the persistence model to a domain QueuedOperation
func (m *QueuedOperationModel) ToDomain() *sync.QueuedOperation {
	return &sync.QueuedOperation{
		ID:            m.ID,
		Kind:          m.Kind,
		Payload:       m.Payload,
		Status:        m.Status,
		Attempts:      m.Attempts,
		LastError:     m.LastError,
		NextAttemptAt: m.NextAttemptAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// QueuedOperationModelFromDomain creates a persistence model from a domain
// QueuedOperation
func QueuedOperationModelFromDomain(op *sync.QueuedOperation) *QueuedOperationModel {
	return &QueuedOperationModel{
		ID:            op.ID,
		Kind:          op.Kind,
		Payload:       op.Payload,
		Status:        op.Status,
		Attempts:      op.Attempts,
		LastError:     op.LastError,
		NextAttemptAt: op.NextAttemptAt,
		CreatedAt:     op.CreatedAt,
		UpdatedAt:     op.UpdatedAt,
	}
}

// CachedSaleModel is the persistence model for the local sale read cache
type CachedSaleModel struct {
	LocalID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ServerID       *uuid.UUID `gorm:"type:uuid;index:idx_cached_sales_server"`
	IdempotencyKey uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_cached_sales_key"`
	IsOffline      bool       `gorm:"not null;default:true"`
	SyncedAt       *time.Time `gorm:"index:idx_cached_sales_synced"`
	CreatedAt      time.Time  `gorm:"not null"`
	UpdatedAt      time.Time  `gorm:"not null"`

	Lines []CachedSaleLineModel `gorm:"foreignKey:SaleLocalID;references:LocalID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (CachedSaleModel) TableName() string {
	return "cached_sales"
}

// CachedSaleLineModel mirrors one sold line for dependency resolution
type CachedSaleLineModel struct {
	LocalLineID  uuid.UUID  `gorm:"type:uuid;primaryKey"`
	SaleLocalID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_cached_lines_sale"`
	ServerLineID *uuid.UUID `gorm:"type:uuid"`
	ProductID    uuid.UUID  `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (CachedSaleLineModel) TableName() string {
	return "cached_sale_lines"
}

// ToDomain converts the persistence model to a domain CachedSale
func (m *CachedSaleModel) ToDomain() *sync.CachedSale {
	lines := make([]sync.CachedSaleLine, 0, len(m.Lines))
	for _, line := range m.Lines {
		lines = append(lines, sync.CachedSaleLine{
			LocalLineID:  line.LocalLineID,
			ServerLineID: line.ServerLineID,
			ProductID:    line.ProductID,
		})
	}
	return &sync.CachedSale{
		LocalID:        m.LocalID,
		ServerID:       m.ServerID,
		IdempotencyKey: m.IdempotencyKey,
		IsOffline:      m.IsOffline,
		SyncedAt:       m.SyncedAt,
		Lines:          lines,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// CachedSaleModelFromDomain creates a persistence model from a domain
// CachedSale
func CachedSaleModelFromDomain(sale *sync.CachedSale) *CachedSaleModel {
	lines := make([]CachedSaleLineModel, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		lines = append(lines, CachedSaleLineModel{
			LocalLineID:  line.LocalLineID,
			SaleLocalID:  sale.LocalID,
			ServerLineID: line.ServerLineID,
			ProductID:    line.ProductID,
		})
	}
	return &CachedSaleModel{
		LocalID:        sale.LocalID,
		ServerID:       sale.ServerID,
		IdempotencyKey: sale.IdempotencyKey,
		IsOffline:      sale.IsOffline,
		SyncedAt:       sale.SyncedAt,
		CreatedAt:      sale.CreatedAt,
		UpdatedAt:      sale.UpdatedAt,
		Lines:          lines,
	}
}
