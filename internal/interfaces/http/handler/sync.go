package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/possync/backend/internal/application/ingest"
	"github.com/possync/backend/internal/domain/pos"
)

// IngestionService is the application surface the sync endpoints sit on
type IngestionService interface {
	IngestSale(ctx context.Context, cmd ingest.SaleCommand) (*pos.SaleRecord, bool, error)
	IngestReturn(ctx context.Context, cmd ingest.ReturnCommand) (*pos.ReturnRecord, bool, error)
	IngestSwap(ctx context.Context, cmd ingest.SwapCommand) (*pos.SwapRecord, bool, error)
	FindSaleByKey(ctx context.Context, key uuid.UUID) (*pos.SaleRecord, error)
	Stats(ctx context.Context) (*pos.Stats, error)
}

// SyncHandler receives operation deliveries from store devices. Every
// delivery carries an Idempotency-Key header; a duplicate key answers 409
// with the canonical result of the first delivery, which the device treats
// as confirmation.
type SyncHandler struct {
	BaseHandler
	service IngestionService
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(service IngestionService) *SyncHandler {
	return &SyncHandler{service: service}
}

// RegisterRoutes registers sync ingestion routes
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sync := rg.Group("/sync")
	{
		sync.POST("/sales", h.IngestSale)
		sync.POST("/returns", h.IngestReturn)
		sync.POST("/swaps", h.IngestSwap)
		sync.GET("/sales/key/:key", h.LookupSale)
		sync.GET("/stats", h.Stats)
	}
}

// SaleLineRequest is one sold line in a sale delivery
type SaleLineRequest struct {
	LocalLineID uuid.UUID       `json:"local_line_id" binding:"required"`
	ProductID   uuid.UUID       `json:"product_id" binding:"required"`
	ProductCode string          `json:"product_code"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// SaleRequest is the body of a sale delivery
type SaleRequest struct {
	LocalSaleID   uuid.UUID         `json:"local_sale_id" binding:"required"`
	Lines         []SaleLineRequest `json:"lines" binding:"required,min=1,dive"`
	PaymentMethod string            `json:"payment_method" binding:"required"`
	Total         decimal.Decimal   `json:"total"`
	Currency      string            `json:"currency" binding:"required,len=3"`
}

// ReturnLineRequest references a server-side sale line being returned
type ReturnLineRequest struct {
	SaleLineID uuid.UUID       `json:"sale_line_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// ReturnRequest is the body of a return delivery
type ReturnRequest struct {
	SaleID uuid.UUID           `json:"sale_id" binding:"required"`
	Lines  []ReturnLineRequest `json:"lines" binding:"required,min=1,dive"`
	Reason string              `json:"reason" binding:"required,max=500"`
	Amount decimal.Decimal     `json:"amount"`
}

// SwapRequest is the body of a swap delivery
type SwapRequest struct {
	SaleID           uuid.UUID       `json:"sale_id" binding:"required"`
	ReturnedLineID   uuid.UUID       `json:"returned_line_id" binding:"required"`
	ReturnedQuantity decimal.Decimal `json:"returned_quantity"`
	Replacement      SaleLineRequest `json:"replacement" binding:"required"`
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

// StatsResponse reports ingestion counters
type StatsResponse struct {
	TotalSales   int64 `json:"total_sales"`
	TotalReturns int64 `json:"total_returns"`
	TotalSwaps   int64 `json:"total_swaps"`
	Last24h      int64 `json:"last_24h"`
}

// deliveryHeaders are the identification headers every delivery carries
type deliveryHeaders struct {
	IdempotencyKey uuid.UUID
	StoreID        uuid.UUID
	DeviceID       uuid.UUID
}

func (h *SyncHandler) parseHeaders(c *gin.Context) (deliveryHeaders, bool) {
	key, err := uuid.Parse(c.GetHeader("Idempotency-Key"))
	if err != nil {
		h.BadRequest(c, "Idempotency-Key header must be a UUID")
		return deliveryHeaders{}, false
	}
	storeID, err := uuid.Parse(c.GetHeader("X-Store-ID"))
	if err != nil {
		h.BadRequest(c, "X-Store-ID header must be a UUID")
		return deliveryHeaders{}, false
	}
	deviceID, err := uuid.Parse(c.GetHeader("X-Device-ID"))
	if err != nil {
		h.BadRequest(c, "X-Device-ID header must be a UUID")
		return deliveryHeaders{}, false
	}
	return deliveryHeaders{IdempotencyKey: key, StoreID: storeID, DeviceID: deviceID}, true
}

// IngestSale handles POST /api/v1/sync/sales
func (h *SyncHandler) IngestSale(c *gin.Context) {
	hdr, ok := h.parseHeaders(c)
	if !ok {
		return
	}
	var req SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid sale payload: "+err.Error())
		return
	}

	lines := make([]ingest.SaleLineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, ingest.SaleLineInput{
			LocalLineID: line.LocalLineID,
			ProductID:   line.ProductID,
			ProductCode: line.ProductCode,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Amount:      line.Amount,
		})
	}
	sale, replayed, err := h.service.IngestSale(c.Request.Context(), ingest.SaleCommand{
		StoreID:        hdr.StoreID,
		DeviceID:       hdr.DeviceID,
		IdempotencyKey: hdr.IdempotencyKey,
		LocalSaleID:    req.LocalSaleID,
		Lines:          lines,
		PaymentMethod:  req.PaymentMethod,
		Total:          req.Total,
		Currency:       req.Currency,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if replayed {
		h.Replayed(c, toSaleResponse(sale))
		return
	}
	h.Created(c, toSaleResponse(sale))
}

// IngestReturn handles POST /api/v1/sync/returns
func (h *SyncHandler) IngestReturn(c *gin.Context) {
	hdr, ok := h.parseHeaders(c)
	if !ok {
		return
	}
	var req ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid return payload: "+err.Error())
		return
	}

	lines := make([]ingest.ReturnLineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, ingest.ReturnLineInput{
			SaleLineID: line.SaleLineID,
			Quantity:   line.Quantity,
		})
	}
	ret, replayed, err := h.service.IngestReturn(c.Request.Context(), ingest.ReturnCommand{
		StoreID:        hdr.StoreID,
		DeviceID:       hdr.DeviceID,
		IdempotencyKey: hdr.IdempotencyKey,
		SaleID:         req.SaleID,
		Lines:          lines,
		Reason:         req.Reason,
		Amount:         req.Amount,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if replayed {
		h.Replayed(c, RecordResponse{ID: ret.ID})
		return
	}
	h.Created(c, RecordResponse{ID: ret.ID})
}

// IngestSwap handles POST /api/v1/sync/swaps
func (h *SyncHandler) IngestSwap(c *gin.Context) {
	hdr, ok := h.parseHeaders(c)
	if !ok {
		return
	}
	var req SwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid swap payload: "+err.Error())
		return
	}

	swap, replayed, err := h.service.IngestSwap(c.Request.Context(), ingest.SwapCommand{
		StoreID:          hdr.StoreID,
		DeviceID:         hdr.DeviceID,
		IdempotencyKey:   hdr.IdempotencyKey,
		SaleID:           req.SaleID,
		ReturnedLineID:   req.ReturnedLineID,
		ReturnedQuantity: req.ReturnedQuantity,
		Replacement: ingest.SaleLineInput{
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

	if replayed {
		h.Replayed(c, RecordResponse{ID: swap.ID})
		return
	}
	h.Created(c, RecordResponse{ID: swap.ID})
}

// LookupSale handles GET /api/v1/sync/sales/key/:key. Devices use it to
// recover a confirmation that was lost in transit.
func (h *SyncHandler) LookupSale(c *gin.Context) {
	key, err := uuid.Parse(c.Param("key"))
	if err != nil {
		h.BadRequest(c, "Idempotency key must be a UUID")
		return
	}

	sale, err := h.service.FindSaleByKey(c.Request.Context(), key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSaleResponse(sale))
}

// Stats handles GET /api/v1/sync/stats
func (h *SyncHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, StatsResponse{
		TotalSales:   stats.TotalSales,
		TotalReturns: stats.TotalReturns,
		TotalSwaps:   stats.TotalSwaps,
		Last24h:      stats.Last24h,
	})
}

func toSaleResponse(sale *pos.SaleRecord) SaleResponse {
	lines := make([]SaleLineResponse, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		lines = append(lines, SaleLineResponse{
			ID:          line.ID,
			LocalLineID: line.LocalLineID,
		})
	}
	return SaleResponse{
		ID:          sale.ID,
		LocalSaleID: sale.LocalSaleID,
		Lines:       lines,
	}
}
