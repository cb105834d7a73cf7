package handler

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/possync/backend/internal/application/syncer"
	"github.com/possync/backend/internal/domain/sync"
	"github.com/possync/backend/internal/interfaces/http/dto"
)

// ConsoleService is the application surface the operator console sits on
type ConsoleService interface {
	List(ctx context.Context, kind *sync.OperationKind) ([]*sync.QueuedOperation, error)
	Get(ctx context.Context, id uuid.UUID) (*sync.QueuedOperation, error)
	Status(ctx context.Context) (*syncer.QueueStatus, error)
	Escalated(op *sync.QueuedOperation) bool
	UpdatePayload(ctx context.Context, id uuid.UUID, payload []byte) (*sync.QueuedOperation, error)
	Expedite(ctx context.Context, id uuid.UUID) (*sync.QueuedOperation, error)
	Remove(ctx context.Context, id uuid.UUID) error
	RequestSync()
}

// ConsoleHandler exposes the pending queue to the operator console
type ConsoleHandler struct {
	BaseHandler
	service ConsoleService
}

// NewConsoleHandler creates a new ConsoleHandler
func NewConsoleHandler(service ConsoleService) *ConsoleHandler {
	return &ConsoleHandler{service: service}
}

// RegisterRoutes registers operator console routes
func (h *ConsoleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	queue := rg.Group("/queue")
	{
		queue.GET("", h.List)
		queue.GET("/status", h.Status)
		queue.GET("/:id", h.Get)
		queue.PUT("/:id/payload", h.UpdatePayload)
		queue.POST("/:id/expedite", h.Expedite)
		queue.DELETE("/:id", h.Remove)
	}
	rg.POST("/sync", h.RequestSync)
}

// QueueStatusResponse summarizes the queue for the console header
type QueueStatusResponse struct {
	Depth     int64 `json:"depth"`
	Escalated int64 `json:"escalated"`
}

// UpdatePayloadRequest carries an operator-corrected payload
type UpdatePayloadRequest struct {
	Payload json.RawMessage `json:"payload" binding:"required"`
}

// List handles GET /queue, optionally filtered by ?kind=SALE
func (h *ConsoleHandler) List(c *gin.Context) {
	var kind *sync.OperationKind
	if raw := c.Query("kind"); raw != "" {
		k := sync.OperationKind(raw)
		if !k.IsValid() {
			h.BadRequest(c, "Unrecognized operation kind: "+raw)
			return
		}
		kind = &k
	}

	ops, err := h.service.List(c.Request.Context(), kind)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]OperationResponse, 0, len(ops))
	for _, op := range ops {
		resp = append(resp, toOperationResponse(op, h.service.Escalated(op), false))
	}
	h.Success(c, resp)
}

// Get handles GET /queue/:id, including the full payload for editing
func (h *ConsoleHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	op, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOperationResponse(op, h.service.Escalated(op), true))
}

// Status handles GET /queue/status
func (h *ConsoleHandler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, QueueStatusResponse{
		Depth:     status.Depth,
		Escalated: status.Escalated,
	})
}

// UpdatePayload handles PUT /queue/:id/payload. A successful edit puts the
// operation back in rotation under its original identity.
func (h *ConsoleHandler) UpdatePayload(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req UpdatePayloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid payload: "+err.Error())
		return
	}

	op, err := h.service.UpdatePayload(c.Request.Context(), id, req.Payload)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOperationResponse(op, h.service.Escalated(op), true))
}

// Expedite handles POST /queue/:id/expedite
func (h *ConsoleHandler) Expedite(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	op, err := h.service.Expedite(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOperationResponse(op, h.service.Escalated(op), false))
}

// Remove handles DELETE /queue/:id
func (h *ConsoleHandler) Remove(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	if err := h.service.Remove(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RequestSync handles POST /sync
func (h *ConsoleHandler) RequestSync(c *gin.Context) {
	h.service.RequestSync()
	h.Accepted(c, gin.H{"requested": true})
}

func (h *ConsoleHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "ID must be a UUID")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "ID must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
