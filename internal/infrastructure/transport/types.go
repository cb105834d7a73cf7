package transport

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wire types for the sync ingestion API. They mirror the server's request
// and response DTOs field for field; the agent and server are deployed
// independently, so the shapes are pinned here rather than shared.

// SaleLineRequest is one sold line in a sale delivery
type SaleLineRequest struct {
	LocalLineID uuid.UUID       `json:"local_line_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductCode string          `json:"product_code"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// SaleRequest is the body of a sale delivery
type SaleRequest struct {
	LocalSaleID   uuid.UUID         `json:"local_sale_id"`
	Lines         []SaleLineRequest `json:"lines"`
	PaymentMethod string            `json:"payment_method"`
	Total         decimal.Decimal   `json:"total"`
	Currency      string            `json:"currency"`
}

// ReturnLineRequest references a server-side sale line being returned
type ReturnLineRequest struct {
	SaleLineID uuid.UUID       `json:"sale_line_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// ReturnRequest is the body of a return delivery. SaleID is the server
// identity of the original sale, resolved before delivery.
type ReturnRequest struct {
	SaleID uuid.UUID           `json:"sale_id"`
	Lines  []ReturnLineRequest `json:"lines"`
	Reason string              `json:"reason"`
	Amount decimal.Decimal     `json:"amount"`
}

// SwapRequest is the body of a swap delivery
type SwapRequest struct {
	SaleID           uuid.UUID       `json:"sale_id"`
	ReturnedLineID   uuid.UUID       `json:"returned_line_id"`
	ReturnedQuantity decimal.Decimal `json:"returned_quantity"`
	Replacement      SaleLineRequest `json:"replacement"`
	PriceDifference  decimal.Decimal `json:"price_difference"`
}

// SaleLineResponse maps one local line to its server identity
type SaleLineResponse struct {
	ID          uuid.UUID `json:"id"`
	LocalLineID uuid.UUID `json:"local_line_id"`
}

// SaleResponse is the canonical ingestion result for a sale
type SaleResponse struct {
	ID          uuid.UUID          `json:"id"`
	LocalSaleID uuid.UUID          `json:"local_sale_id"`
	Lines       []SaleLineResponse `json:"lines"`
}

// RecordResponse is the canonical ingestion result for a return or swap
type RecordResponse struct {
	ID uuid.UUID `json:"id"`
}

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// envelope is the server's standard response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *errorInfo      `json:"error,omitempty"`
}
