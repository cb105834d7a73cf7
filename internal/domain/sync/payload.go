package sync

import (
	"bytes"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/possync/backend/internal/domain/shared"
)

// Payload shapes are validated once at enqueue time. Anything that does not
// bind to the kind's schema is rejected at the boundary; downstream code
// never branches on shape.

var validate = validator.New()

// SaleLine is one line item of a sale or the replacement side of a swap
type SaleLine struct {
	LocalLineID uuid.UUID       `json:"local_line_id" validate:"required"`
	ProductID   uuid.UUID       `json:"product_id" validate:"required"`
	ProductCode string          `json:"product_code" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// SalePayload is the business data of a SALE operation
type SalePayload struct {
	LocalSaleID   uuid.UUID       `json:"local_sale_id" validate:"required"`
	Lines         []SaleLine      `json:"lines" validate:"required,min=1,dive"`
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=CASH CARD TRANSFER"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency" validate:"required,len=3"`
}

// ReturnLine identifies a sold line being returned, by its local identity.
// The server line identity is resolved by the reconciler just before
// delivery and never persisted as ground truth.
type ReturnLine struct {
	LocalLineID uuid.UUID       `json:"local_line_id" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// ReturnPayload is the business data of a RETURN operation. It references
// the originating sale by local identity because the server identity may
// not exist yet at enqueue time.
type ReturnPayload struct {
	LocalSaleID uuid.UUID       `json:"local_sale_id" validate:"required"`
	Lines       []ReturnLine    `json:"lines" validate:"required,min=1,dive"`
	Reason      string          `json:"reason" validate:"required,max=500"`
	Amount      decimal.Decimal `json:"amount"`
}

// SwapPayload is the business data of a SWAP operation: one sold line comes
// back, one replacement line goes out, priced by the difference.
type SwapPayload struct {
	LocalSaleID     uuid.UUID       `json:"local_sale_id" validate:"required"`
	ReturnedLine    ReturnLine      `json:"returned_line" validate:"required"`
	Replacement     SaleLine        `json:"replacement" validate:"required"`
	PriceDifference decimal.Decimal `json:"price_difference"`
}

// ParseSalePayload decodes and validates a SALE payload
func ParseSalePayload(raw []byte) (*SalePayload, error) {
	var p SalePayload
	if err := decodeStrict(raw, &p); err != nil {
		return nil, err
	}
	if err := validate.Struct(&p); err != nil {
		return nil, shared.NewDomainError("INVALID_PAYLOAD", "Sale payload failed validation: "+err.Error())
	}
	for _, line := range p.Lines {
		if line.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, shared.NewDomainError("INVALID_QUANTITY", "Line quantity must be positive")
		}
		if line.UnitPrice.IsNegative() {
			return nil, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
		}
	}
	if p.Total.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Sale total cannot be negative")
	}
	return &p, nil
}

// ParseReturnPayload decodes and validates a RETURN payload
func ParseReturnPayload(raw []byte) (*ReturnPayload, error) {
	var p ReturnPayload
	if err := decodeStrict(raw, &p); err != nil {
		return nil, err
	}
	if err := validate.Struct(&p); err != nil {
		return nil, shared.NewDomainError("INVALID_PAYLOAD", "Return payload failed validation: "+err.Error())
	}
	for _, line := range p.Lines {
		if line.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, shared.NewDomainError("INVALID_QUANTITY", "Return quantity must be positive")
		}
	}
	return &p, nil
}

// ParseSwapPayload decodes and validates a SWAP payload
func ParseSwapPayload(raw []byte) (*SwapPayload, error) {
	var p SwapPayload
	if err := decodeStrict(raw, &p); err != nil {
		return nil, err
	}
	if err := validate.Struct(&p); err != nil {
		return nil, shared.NewDomainError("INVALID_PAYLOAD", "Swap payload failed validation: "+err.Error())
	}
	if p.ReturnedLine.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Returned quantity must be positive")
	}
	if p.Replacement.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Replacement quantity must be positive")
	}
	return &p, nil
}

// ValidatePayload validates raw payload bytes against the kind's schema
func ValidatePayload(kind OperationKind, raw []byte) error {
	var err error
	switch kind {
	case OperationKindSale:
		_, err = ParseSalePayload(raw)
	case OperationKindReturn:
		_, err = ParseReturnPayload(raw)
	case OperationKindSwap:
		_, err = ParseSwapPayload(raw)
	default:
		return shared.NewDomainError("INVALID_KIND", "Unrecognized operation kind")
	}
	return err
}

// LocalSaleRef returns the local sale identity a RETURN or SWAP payload
// depends on. Sales have no dependency and return false.
func LocalSaleRef(kind OperationKind, raw []byte) (uuid.UUID, bool, error) {
	switch kind {
	case OperationKindReturn:
		p, err := ParseReturnPayload(raw)
		if err != nil {
			return uuid.Nil, false, err
		}
		return p.LocalSaleID, true, nil
	case OperationKindSwap:
		p, err := ParseSwapPayload(raw)
		if err != nil {
			return uuid.Nil, false, err
		}
		return p.LocalSaleID, true, nil
	}
	return uuid.Nil, false, nil
}

// decodeStrict decodes JSON rejecting unknown fields so legacy or
// unrecognized shapes fail at the boundary
func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return shared.NewDomainError("INVALID_PAYLOAD", "Payload is not valid JSON for this operation kind: "+err.Error())
	}
	return nil
}
