package pos

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/possync/backend/internal/domain/shared"
)

// SaleLineRecord is one server-persisted line of a sale. The server assigns
// the line identity; the device-local line identity is kept so later
// returns and swaps recorded offline can be mapped back.
type SaleLineRecord struct {
	ID          uuid.UUID
	SaleID      uuid.UUID
	LocalLineID uuid.UUID
	ProductID   uuid.UUID
	ProductCode string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
	CreatedAt   time.Time
}

// SaleRecord is the canonical server-side representation of a sale. Exactly
// one record exists per idempotency key; the uniqueness constraint on that
// key is what makes duplicate deliveries collapse.
type SaleRecord struct {
	ID             uuid.UUID
	StoreID        uuid.UUID
	DeviceID       uuid.UUID
	IdempotencyKey uuid.UUID
	LocalSaleID    uuid.UUID
	Lines          []SaleLineRecord
	PaymentMethod  string
	Total          decimal.Decimal
	Currency       string
	ProcessedAt    time.Time
	CreatedAt      time.Time
}

// NewSaleRecord builds the canonical record for a first-time delivery
func NewSaleRecord(storeID, deviceID, idempotencyKey, localSaleID uuid.UUID, paymentMethod, currency string, total decimal.Decimal) (*SaleRecord, error) {
	if idempotencyKey == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_KEY", "Idempotency key cannot be empty")
	}
	if localSaleID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SALE", "Local sale ID cannot be empty")
	}
	if total.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Sale total cannot be negative")
	}
	now := time.Now()
	return &SaleRecord{
		ID:             uuid.New(),
		StoreID:        storeID,
		DeviceID:       deviceID,
		IdempotencyKey: idempotencyKey,
		LocalSaleID:    localSaleID,
		PaymentMethod:  paymentMethod,
		Total:          total,
		Currency:       currency,
		ProcessedAt:    now,
		CreatedAt:      now,
	}, nil
}

// AddLine appends a sold line, assigning its server identity
func (s *SaleRecord) AddLine(localLineID, productID uuid.UUID, productCode string, quantity, unitPrice decimal.Decimal) error {
	if productID == uuid.Nil {
		return shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}
	s.Lines = append(s.Lines, SaleLineRecord{
		ID:          uuid.New(),
		SaleID:      s.ID,
		LocalLineID: localLineID,
		ProductID:   productID,
		ProductCode: productCode,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Amount:      quantity.Mul(unitPrice),
		CreatedAt:   time.Now(),
	})
	return nil
}

// LineByLocalID finds a line by the device-local identity it was sold under
func (s *SaleRecord) LineByLocalID(localLineID uuid.UUID) (*SaleLineRecord, bool) {
	for i := range s.Lines {
		if s.Lines[i].LocalLineID == localLineID {
			return &s.Lines[i], true
		}
	}
	return nil, false
}

// StockMovements returns the inventory deltas this sale causes: one
// decrement per sold line.
func (s *SaleRecord) StockMovements() []StockMovement {
	movements := make([]StockMovement, 0, len(s.Lines))
	for _, line := range s.Lines {
		movements = append(movements, StockMovement{
			ProductID: line.ProductID,
			Delta:     line.Quantity.Neg(),
		})
	}
	return movements
}
