package pos

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/possync/backend/internal/domain/shared"
)

// ReturnLineRecord is one returned line, referencing the server identity of
// the sold line it reverses.
type ReturnLineRecord struct {
	ID         uuid.UUID
	ReturnID   uuid.UUID
	SaleLineID uuid.UUID
	ProductID  uuid.UUID
	Quantity   decimal.Decimal
	CreatedAt  time.Time
}

// ReturnRecord is the canonical server-side representation of a return. It
// always references the server identity of its sale; the ingestion endpoint
// rejects returns whose sale is unknown.
type ReturnRecord struct {
	ID             uuid.UUID
	StoreID        uuid.UUID
	DeviceID       uuid.UUID
	IdempotencyKey uuid.UUID
	SaleID         uuid.UUID
	Lines          []ReturnLineRecord
	Reason         string
	Amount         decimal.Decimal
	ProcessedAt    time.Time
	CreatedAt      time.Time
}

// NewReturnRecord builds the canonical record for a first-time delivery
func NewReturnRecord(storeID, deviceID, idempotencyKey, saleID uuid.UUID, reason string, amount decimal.Decimal) (*ReturnRecord, error) {
	if idempotencyKey == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_KEY", "Idempotency key cannot be empty")
	}
	if saleID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SALE", "Server sale ID cannot be empty")
	}
	if reason == "" {
		return nil, shared.NewDomainError("INVALID_REASON", "Return reason cannot be empty")
	}
	if amount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Return amount cannot be negative")
	}
	now := time.Now()
	return &ReturnRecord{
		ID:             uuid.New(),
		StoreID:        storeID,
		DeviceID:       deviceID,
		IdempotencyKey: idempotencyKey,
		SaleID:         saleID,
		Reason:         reason,
		Amount:         amount,
		ProcessedAt:    now,
		CreatedAt:      now,
	}, nil
}

// AddLine appends a returned line referencing a server-side sale line
func (r *ReturnRecord) AddLine(saleLineID, productID uuid.UUID, quantity decimal.Decimal) error {
	if saleLineID == uuid.Nil {
		return shared.NewDomainError("INVALID_LINE", "Sale line ID cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	r.Lines = append(r.Lines, ReturnLineRecord{
		ID:         uuid.New(),
		ReturnID:   r.ID,
		SaleLineID: saleLineID,
		ProductID:  productID,
		Quantity:   quantity,
		CreatedAt:  time.Now(),
	})
	return nil
}

// StockMovements returns the inventory deltas this return causes: one
// increment per returned line.
func (r *ReturnRecord) StockMovements() []StockMovement {
	movements := make([]StockMovement, 0, len(r.Lines))
	for _, line := range r.Lines {
		movements = append(movements, StockMovement{
			ProductID: line.ProductID,
			Delta:     line.Quantity,
		})
	}
	return movements
}

// SwapRecord is the canonical server-side representation of a swap: one
// sold line comes back, one replacement goes out.
type SwapRecord struct {
	ID              uuid.UUID
	StoreID         uuid.UUID
	DeviceID        uuid.UUID
	IdempotencyKey  uuid.UUID
	SaleID          uuid.UUID
	ReturnedLineID  uuid.UUID
	ReturnedQty     decimal.Decimal
	ReturnedProduct uuid.UUID
	Replacement     SaleLineRecord
	PriceDifference decimal.Decimal
	ProcessedAt     time.Time
	CreatedAt       time.Time
}

// NewSwapRecord builds the canonical record for a first-time delivery
func NewSwapRecord(storeID, deviceID, idempotencyKey, saleID, returnedLineID, returnedProduct uuid.UUID, returnedQty decimal.Decimal, replacement SaleLineRecord, priceDifference decimal.Decimal) (*SwapRecord, error) {
	if idempotencyKey == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_KEY", "Idempotency key cannot be empty")
	}
	if saleID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SALE", "Server sale ID cannot be empty")
	}
	if returnedLineID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LINE", "Returned sale line ID cannot be empty")
	}
	if returnedQty.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Returned quantity must be positive")
	}
	now := time.Now()
	replacement.ID = uuid.New()
	replacement.CreatedAt = now
	return &SwapRecord{
		ID:              uuid.New(),
		StoreID:         storeID,
		DeviceID:        deviceID,
		IdempotencyKey:  idempotencyKey,
		SaleID:          saleID,
		ReturnedLineID:  returnedLineID,
		ReturnedQty:     returnedQty,
		ReturnedProduct: returnedProduct,
		Replacement:     replacement,
		PriceDifference: priceDifference,
		ProcessedAt:     now,
		CreatedAt:       now,
	}, nil
}

// StockMovements returns the inventory deltas this swap causes: the
// returned product comes back, the replacement goes out.
func (s *SwapRecord) StockMovements() []StockMovement {
	return []StockMovement{
		{ProductID: s.ReturnedProduct, Delta: s.ReturnedQty},
		{ProductID: s.Replacement.ProductID, Delta: s.Replacement.Quantity.Neg()},
	}
}
