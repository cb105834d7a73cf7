package syncer

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/possync/backend/internal/domain/shared"
	"github.com/possync/backend/internal/domain/sync"
)

// IntakeService accepts point-of-sale operations from the till and queues
// them durably. Acceptance never depends on server reachability; an
// operation is only refused when the payload is invalid or the local store
// cannot persist it.
type IntakeService struct {
	queue  sync.QueueRepository
	cache  sync.SaleCacheRepository
	hub    *TriggerHub
	logger *zap.Logger
}

// NewIntakeService creates a new IntakeService
func NewIntakeService(
	queue sync.QueueRepository,
	cache sync.SaleCacheRepository,
	hub *TriggerHub,
	logger *zap.Logger,
) *IntakeService {
	return &IntakeService{
		queue:  queue,
		cache:  cache,
		hub:    hub,
		logger: logger,
	}
}

// EnqueueSale registers a completed sale. The sale enters the read cache
// as offline immediately so returns and swaps can reference it before the
// server has seen it.
func (s *IntakeService) EnqueueSale(ctx context.Context, payload sync.SalePayload) (*sync.QueuedOperation, error) {
	op, err := s.enqueue(ctx, sync.OperationKindSale, payload)
	if err != nil {
		return nil, err
	}

	lines := make([]sync.CachedSaleLine, 0, len(payload.Lines))
	for _, line := range payload.Lines {
		lines = append(lines, sync.CachedSaleLine{
			LocalLineID: line.LocalLineID,
			ProductID:   line.ProductID,
		})
	}
	cached, err := sync.NewCachedSale(payload.LocalSaleID, op.ID, lines)
	if err != nil {
		s.rollback(ctx, op)
		return nil, err
	}
	if err := s.cache.Upsert(ctx, cached); err != nil {
		s.logger.Error("failed to cache enqueued sale",
			zap.String("local_sale_id", payload.LocalSaleID.String()),
			zap.Error(err))
		s.rollback(ctx, op)
		return nil, err
	}

	s.hub.Request(TriggerManual)
	return op, nil
}

// EnqueueReturn registers a return against a locally known sale
func (s *IntakeService) EnqueueReturn(ctx context.Context, payload sync.ReturnPayload) (*sync.QueuedOperation, error) {
	if _, err := s.cache.FindByLocalID(ctx, payload.LocalSaleID); err != nil {
		if err == shared.ErrNotFound {
			return nil, shared.NewDomainError("UNKNOWN_SALE", "Return references a sale this device has never seen")
		}
		return nil, err
	}

	op, err := s.enqueue(ctx, sync.OperationKindReturn, payload)
	if err != nil {
		return nil, err
	}
	s.hub.Request(TriggerManual)
	return op, nil
}

// EnqueueSwap registers a swap against a locally known sale
func (s *IntakeService) EnqueueSwap(ctx context.Context, payload sync.SwapPayload) (*sync.QueuedOperation, error) {
	if _, err := s.cache.FindByLocalID(ctx, payload.LocalSaleID); err != nil {
		if err == shared.ErrNotFound {
			return nil, shared.NewDomainError("UNKNOWN_SALE", "Swap references a sale this device has never seen")
		}
		return nil, err
	}

	op, err := s.enqueue(ctx, sync.OperationKindSwap, payload)
	if err != nil {
		return nil, err
	}
	s.hub.Request(TriggerManual)
	return op, nil
}

// rollback removes a freshly queued sale whose cache entry could not be
// written: a failed enqueue must leave nothing behind that still delivers.
func (s *IntakeService) rollback(ctx context.Context, op *sync.QueuedOperation) {
	if err := s.queue.Remove(ctx, op.ID); err != nil {
		s.logger.Error("failed to remove queued sale after cache failure",
			zap.String("operation_id", op.ID.String()),
			zap.Error(err))
	}
}

func (s *IntakeService) enqueue(ctx context.Context, kind sync.OperationKind, payload any) (*sync.QueuedOperation, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_PAYLOAD", "Payload cannot be serialized")
	}
	if err := sync.ValidatePayload(kind, raw); err != nil {
		return nil, err
	}

	op, err := sync.NewQueuedOperation(kind, raw)
	if err != nil {
		return nil, err
	}
	if err := s.queue.Append(ctx, op); err != nil {
		s.logger.Error("failed to append operation to durable queue",
			zap.String("kind", kind.String()),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("operation queued",
		zap.String("operation_id", op.ID.String()),
		zap.String("kind", kind.String()))
	return op, nil
}
