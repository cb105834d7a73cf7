package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/possync/backend/internal/domain/sync"
)

// IntakeService is the application surface the till endpoints sit on
type IntakeService interface {
	EnqueueSale(ctx context.Context, payload sync.SalePayload) (*sync.QueuedOperation, error)
	EnqueueReturn(ctx context.Context, payload sync.ReturnPayload) (*sync.QueuedOperation, error)
	EnqueueSwap(ctx context.Context, payload sync.SwapPayload) (*sync.QueuedOperation, error)
}

// IntakeHandler accepts completed operations from the till. Acceptance is
// local: the operation is durably queued and the response says nothing about
// server delivery.
type IntakeHandler struct {
	BaseHandler
	service IntakeService
}

// NewIntakeHandler creates a new IntakeHandler
func NewIntakeHandler(service IntakeService) *IntakeHandler {
	return &IntakeHandler{service: service}
}

// RegisterRoutes registers till intake routes
func (h *IntakeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sales", h.EnqueueSale)
	rg.POST("/returns", h.EnqueueReturn)
	rg.POST("/swaps", h.EnqueueSwap)
}

// TillSaleLineRequest is one sold line as the till reports it
type TillSaleLineRequest struct {
	LocalLineID uuid.UUID       `json:"local_line_id" binding:"required"`
	ProductID   uuid.UUID       `json:"product_id" binding:"required"`
	ProductCode string          `json:"product_code" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// TillSaleRequest is a completed sale as the till reports it
type TillSaleRequest struct {
	LocalSaleID   uuid.UUID             `json:"local_sale_id" binding:"required"`
	Lines         []TillSaleLineRequest `json:"lines" binding:"required,min=1,dive"`
	PaymentMethod string                `json:"payment_method" binding:"required,oneof=CASH CARD TRANSFER"`
	Total         decimal.Decimal       `json:"total"`
	Currency      string                `json:"currency" binding:"required,len=3"`
}

// TillReturnLineRequest identifies a sold line being returned
type TillReturnLineRequest struct {
	LocalLineID uuid.UUID       `json:"local_line_id" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// TillReturnRequest is a return as the till reports it, referencing the
// original sale by its local identity
type TillReturnRequest struct {
	LocalSaleID uuid.UUID               `json:"local_sale_id" binding:"required"`
	Lines       []TillReturnLineRequest `json:"lines" binding:"required,min=1,dive"`
	Reason      string                  `json:"reason" binding:"required,max=500"`
	Amount      decimal.Decimal         `json:"amount"`
}

// TillSwapRequest is a swap as the till reports it
type TillSwapRequest struct {
	LocalSaleID     uuid.UUID             `json:"local_sale_id" binding:"required"`
	ReturnedLine    TillReturnLineRequest `json:"returned_line" binding:"required"`
	Replacement     TillSaleLineRequest   `json:"replacement" binding:"required"`
	PriceDifference decimal.Decimal       `json:"price_difference"`
}

// OperationResponse is a queued operation as the till and console see it
type OperationResponse struct {
	ID            uuid.UUID       `json:"id"`
	Kind          string          `json:"kind"`
	Status        string          `json:"status"`
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"last_error,omitempty"`
	NextAttemptAt *time.Time      `json:"next_attempt_at,omitempty"`
	Escalated     bool            `json:"escalated"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// EnqueueSale handles POST /sales
func (h *IntakeHandler) EnqueueSale(c *gin.Context) {
	var req TillSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid sale: "+err.Error())
		return
	}

	lines := make([]sync.SaleLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, sync.SaleLine{
			LocalLineID: line.LocalLineID,
			ProductID:   line.ProductID,
			ProductCode: line.ProductCode,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Amount:      line.Amount,
		})
	}
	op, err := h.service.EnqueueSale(c.Request.Context(), sync.SalePayload{
		LocalSaleID:   req.LocalSaleID,
		Lines:         lines,
		PaymentMethod: req.PaymentMethod,
		Total:         req.Total,
		Currency:      req.Currency,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, toOperationResponse(op, false, false))
}

// EnqueueReturn handles POST /returns
func (h *IntakeHandler) EnqueueReturn(c *gin.Context) {
	var req TillReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid return: "+err.Error())
		return
	}

	lines := make([]sync.ReturnLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, sync.ReturnLine{
			LocalLineID: line.LocalLineID,
			Quantity:    line.Quantity,
		})
	}
	op, err := h.service.EnqueueReturn(c.Request.Context(), sync.ReturnPayload{
		LocalSaleID: req.LocalSaleID,
		Lines:       lines,
		Reason:      req.Reason,
		Amount:      req.Amount,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, toOperationResponse(op, false, false))
}

// EnqueueSwap handles POST /swaps
func (h *IntakeHandler) EnqueueSwap(c *gin.Context) {
	var req TillSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid swap: "+err.Error())
		return
	}

	op, err := h.service.EnqueueSwap(c.Request.Context(), sync.SwapPayload{
		LocalSaleID: req.LocalSaleID,
		ReturnedLine: sync.ReturnLine{
			LocalLineID: req.ReturnedLine.LocalLineID,
			Quantity:    req.ReturnedLine.Quantity,
		},
		Replacement: sync.SaleLine{
			LocalLineID: req.Replacement.LocalLineID,
			ProductID:   req.Replacement.ProductID,
			ProductCode: req.Replacement.ProductCode,
			Quantity:    req.Replacement.Quantity,
			UnitPrice:   req.Replacement.UnitPrice,
			Amount:      req.Replacement.Amount,
		},
		PriceDifference: req.PriceDifference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, toOperationResponse(op, false, false))
}

func toOperationResponse(op *sync.QueuedOperation, escalated, withPayload bool) OperationResponse {
	resp := OperationResponse{
		ID:            op.ID,
		Kind:          op.Kind.String(),
		Status:        string(op.Status),
		Attempts:      op.Attempts,
		LastError:     op.LastError,
		NextAttemptAt: op.NextAttemptAt,
		Escalated:     escalated,
		CreatedAt:     op.CreatedAt,
	}
	if withPayload {
		resp.Payload = json.RawMessage(op.Payload)
	}
	return resp
}
