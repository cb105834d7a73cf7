package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/possync/backend/internal/domain/pos"
)

// PosSaleModel is the canonical server-side sale record. The unique index
// on the idempotency key is the single source of truth for exactly-once
// ingestion.
type PosSaleModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	StoreID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_pos_sales_store"`
	DeviceID       uuid.UUID       `gorm:"type:uuid;not null"`
	IdempotencyKey uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_pos_sales_key"`
	LocalSaleID    uuid.UUID       `gorm:"type:uuid;not null"`
	PaymentMethod  string          `gorm:"type:varchar(16);not null"`
	Total          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency       string          `gorm:"type:varchar(3);not null"`
	ProcessedAt    time.Time       `gorm:"not null;index:idx_pos_sales_processed"`
	CreatedAt      time.Time       `gorm:"not null"`

	Lines []PosSaleLineModel `gorm:"foreignKey:SaleID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (PosSaleModel) TableName() string {
	return "pos_sales"
}

// PosSaleLineModel is one persisted sale line
type PosSaleLineModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SaleID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_pos_sale_lines_sale"`
	LocalLineID uuid.UUID       `gorm:"type:uuid;not null"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null"`
	ProductCode string          `gorm:"type:varchar(64);not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PosSaleLineModel) TableName() string {
	return "pos_sale_lines"
}

// ToDomain converts the persistence model to a domain SaleRecord
func (m *PosSaleModel) ToDomain() *pos.SaleRecord {
	lines := make([]pos.SaleLineRecord, 0, len(m.Lines))
	for _, line := range m.Lines {
		lines = append(lines, pos.SaleLineRecord{
			ID:          line.ID,
			SaleID:      line.SaleID,
			LocalLineID: line.LocalLineID,
			ProductID:   line.ProductID,
			ProductCode: line.ProductCode,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Amount:      line.Amount,
			CreatedAt:   line.CreatedAt,
		})
	}
	return &pos.SaleRecord{
		ID:             m.ID,
		StoreID:        m.StoreID,
		DeviceID:       m.DeviceID,
		IdempotencyKey: m.IdempotencyKey,
		LocalSaleID:    m.LocalSaleID,
		Lines:          lines,
		PaymentMethod:  m.PaymentMethod,
		Total:          m.Total,
		Currency:       m.Currency,
		ProcessedAt:    m.ProcessedAt,
		CreatedAt:      m.CreatedAt,
	}
}

// PosSaleModelFromDomain creates a persistence model from a domain SaleRecord
func PosSaleModelFromDomain(sale *pos.SaleRecord) *PosSaleModel {
	lines := make([]PosSaleLineModel, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		lines = append(lines, PosSaleLineModel{
			ID:          line.ID,
			SaleID:      line.SaleID,
			LocalLineID: line.LocalLineID,
			ProductID:   line.ProductID,
			ProductCode: line.ProductCode,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Amount:      line.Amount,
			CreatedAt:   line.CreatedAt,
		})
	}
	return &PosSaleModel{
		ID:             sale.ID,
		StoreID:        sale.StoreID,
		DeviceID:       sale.DeviceID,
		IdempotencyKey: sale.IdempotencyKey,
		LocalSaleID:    sale.LocalSaleID,
		PaymentMethod:  sale.PaymentMethod,
		Total:          sale.Total,
		Currency:       sale.Currency,
		ProcessedAt:    sale.ProcessedAt,
		CreatedAt:      sale.CreatedAt,
		Lines:          lines,
	}
}

// PosReturnModel is the canonical server-side return record
type PosReturnModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	StoreID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_pos_returns_store"`
	DeviceID       uuid.UUID       `gorm:"type:uuid;not null"`
	IdempotencyKey uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_pos_returns_key"`
	SaleID         uuid.UUID       `gorm:"type:uuid;not null;index:idx_pos_returns_sale"`
	Reason         string          `gorm:"type:varchar(500);not null"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ProcessedAt    time.Time       `gorm:"not null;index:idx_pos_returns_processed"`
	CreatedAt      time.Time       `gorm:"not null"`

	Lines []PosReturnLineModel `gorm:"foreignKey:ReturnID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (PosReturnModel) TableName() string {
	return "pos_returns"
}

// PosReturnLineModel is one persisted returned line
type PosReturnLineModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ReturnID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_pos_return_lines_return"`
	SaleLineID uuid.UUID       `gorm:"type:uuid;not null"`
	ProductID  uuid.UUID       `gorm:"type:uuid;not null"`
	Quantity   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt  time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PosReturnLineModel) TableName() string {
	return "pos_return_lines"
}

// ToDomain converts the persistence model to a domain ReturnRecord
func (m *PosReturnModel) ToDomain() *pos.ReturnRecord {
	lines := make([]pos.ReturnLineRecord, 0, len(m.Lines))
	for _, line := range m.Lines {
		lines = append(lines, pos.ReturnLineRecord{
			ID:         line.ID,
			ReturnID:   line.ReturnID,
			SaleLineID: line.SaleLineID,
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			CreatedAt:  line.CreatedAt,
		})
	}
	return &pos.ReturnRecord{
		ID:             m.ID,
		StoreID:        m.StoreID,
		DeviceID:       m.DeviceID,
		IdempotencyKey: m.IdempotencyKey,
		SaleID:         m.SaleID,
		Lines:          lines,
		Reason:         m.Reason,
		Amount:         m.Amount,
		ProcessedAt:    m.ProcessedAt,
		CreatedAt:      m.CreatedAt,
	}
}

// PosReturnModelFromDomain creates a persistence model from a domain
// ReturnRecord
func PosReturnModelFromDomain(ret *pos.ReturnRecord) *PosReturnModel {
	lines := make([]PosReturnLineModel, 0, len(ret.Lines))
	for _, line := range ret.Lines {
		lines = append(lines, PosReturnLineModel{
			ID:         line.ID,
			ReturnID:   line.ReturnID,
			SaleLineID: line.SaleLineID,
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			CreatedAt:  line.CreatedAt,
		})
	}
	return &PosReturnModel{
		ID:             ret.ID,
		StoreID:        ret.StoreID,
		DeviceID:       ret.DeviceID,
		IdempotencyKey: ret.IdempotencyKey,
		SaleID:         ret.SaleID,
		Reason:         ret.Reason,
		Amount:         ret.Amount,
		ProcessedAt:    ret.ProcessedAt,
		CreatedAt:      ret.CreatedAt,
		Lines:          lines,
	}
}

// PosSwapModel is the canonical server-side swap record
type PosSwapModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	StoreID         uuid.UUID       `gorm:"type:uuid;not null;index:idx_pos_swaps_store"`
	DeviceID        uuid.UUID       `gorm:"type:uuid;not null"`
	IdempotencyKey  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_pos_swaps_key"`
	SaleID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_pos_swaps_sale"`
	ReturnedLineID  uuid.UUID       `gorm:"type:uuid;not null"`
	ReturnedQty     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ReturnedProduct uuid.UUID       `gorm:"type:uuid;not null"`

	ReplacementID          uuid.UUID       `gorm:"type:uuid;not null"`
	ReplacementLocalLineID uuid.UUID       `gorm:"type:uuid;not null"`
	ReplacementProductID   uuid.UUID       `gorm:"type:uuid;not null"`
	ReplacementProductCode string          `gorm:"type:varchar(64);not null"`
	ReplacementQuantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ReplacementUnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ReplacementAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null"`

	PriceDifference decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ProcessedAt     time.Time       `gorm:"not null;index:idx_pos_swaps_processed"`
	CreatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PosSwapModel) TableName() string {
	return "pos_swaps"
}

// ToDomain converts the persistence model to a domain SwapRecord
func (m *PosSwapModel) ToDomain() *pos.SwapRecord {
	return &pos.SwapRecord{
		ID:              m.ID,
		StoreID:         m.StoreID,
		DeviceID:        m.DeviceID,
		IdempotencyKey:  m.IdempotencyKey,
		SaleID:          m.SaleID,
		ReturnedLineID:  m.ReturnedLineID,
		ReturnedQty:     m.ReturnedQty,
		ReturnedProduct: m.ReturnedProduct,
		Replacement: pos.SaleLineRecord{
			ID:          m.ReplacementID,
			SaleID:      m.SaleID,
			LocalLineID: m.ReplacementLocalLineID,
			ProductID:   m.ReplacementProductID,
			ProductCode: m.ReplacementProductCode,
			Quantity:    m.ReplacementQuantity,
			UnitPrice:   m.ReplacementUnitPrice,
			Amount:      m.ReplacementAmount,
			CreatedAt:   m.CreatedAt,
		},
		PriceDifference: m.PriceDifference,
		ProcessedAt:     m.ProcessedAt,
		CreatedAt:       m.CreatedAt,
	}
}

// PosSwapModelFromDomain creates a persistence model from a domain SwapRecord
func PosSwapModelFromDomain(swap *pos.SwapRecord) *PosSwapModel {
	return &PosSwapModel{
		ID:                     swap.ID,
		StoreID:                swap.StoreID,
		DeviceID:               swap.DeviceID,
		IdempotencyKey:         swap.IdempotencyKey,
		SaleID:                 swap.SaleID,
		ReturnedLineID:         swap.ReturnedLineID,
		ReturnedQty:            swap.ReturnedQty,
		ReturnedProduct:        swap.ReturnedProduct,
		ReplacementID:          swap.Replacement.ID,
		ReplacementLocalLineID: swap.Replacement.LocalLineID,
		ReplacementProductID:   swap.Replacement.ProductID,
		ReplacementProductCode: swap.Replacement.ProductCode,
		ReplacementQuantity:    swap.Replacement.Quantity,
		ReplacementUnitPrice:   swap.Replacement.UnitPrice,
		ReplacementAmount:      swap.Replacement.Amount,
		PriceDifference:        swap.PriceDifference,
		ProcessedAt:            swap.ProcessedAt,
		CreatedAt:              swap.CreatedAt,
	}
}

// StockLevelModel tracks per-product quantity on hand per store
type StockLevelModel struct {
	StoreID   uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProductID uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Quantity  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UpdatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockLevelModel) TableName() string {
	return "stock_levels"
}
