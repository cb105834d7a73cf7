package syncer

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/domain/sync"
)

// InspectionService is the operator console's window into the queue.
// Listing shows everything including failed operations; edits re-validate
// the payload and put the operation back in rotation.
type InspectionService struct {
	queue  sync.QueueRepository
	hub    *TriggerHub
	policy sync.BackoffPolicy
	logger *zap.Logger
}

// NewInspectionService creates a new InspectionService
func NewInspectionService(queue sync.QueueRepository, hub *TriggerHub, policy sync.BackoffPolicy, logger *zap.Logger) *InspectionService {
	return &InspectionService{
		queue:  queue,
		hub:    hub,
		policy: policy,
		logger: logger,
	}
}

// QueueStatus summarizes the queue for the console header
type QueueStatus struct {
	Depth     int64
	Escalated int64
}

// List returns queued operations, optionally filtered by kind, oldest first
func (s *InspectionService) List(ctx context.Context, kind *sync.OperationKind) ([]*sync.QueuedOperation, error) {
	return s.queue.FindAll(ctx, kind)
}

// Get returns a single queued operation
func (s *InspectionService) Get(ctx context.Context, id uuid.UUID) (*sync.QueuedOperation, error) {
	return s.queue.FindByID(ctx, id)
}

// Status returns queue depth and the escalated count
func (s *InspectionService) Status(ctx context.Context) (*QueueStatus, error) {
	depth, err := s.queue.Depth(ctx)
	if err != nil {
		return nil, err
	}
	escalated, err := s.queue.CountEscalated(ctx, s.policy.EscalationThreshold)
	if err != nil {
		return nil, err
	}
	return &QueueStatus{Depth: depth, Escalated: escalated}, nil
}

// Escalated reports whether an operation has crossed the attention threshold
func (s *InspectionService) Escalated(op *sync.QueuedOperation) bool {
	return s.policy.Escalated(op)
}

// UpdatePayload replaces an operation's payload after validating it for the
// operation's kind. The operation keeps its identity, so the server still
// recognizes earlier deliveries of it, and returns to pending.
func (s *InspectionService) UpdatePayload(ctx context.Context, id uuid.UUID, payload []byte) (*sync.QueuedOperation, error) {
	op, err := s.queue.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sync.ValidatePayload(op.Kind, payload); err != nil {
		return nil, err
	}
	if err := op.ReplacePayload(payload); err != nil {
		return nil, err
	}
	if err := s.queue.Update(ctx, op); err != nil {
		return nil, err
	}

	s.logger.Info("operation payload replaced by operator",
		zap.String("operation_id", op.ID.String()),
		zap.String("kind", op.Kind.String()))
	s.hub.Request(TriggerManual)
	return op, nil
}

// Expedite clears an operation's backoff schedule so the next pass picks
// it up immediately
func (s *InspectionService) Expedite(ctx context.Context, id uuid.UUID) (*sync.QueuedOperation, error) {
	op, err := s.queue.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	op.Expedite()
	if err := s.queue.Update(ctx, op); err != nil {
		return nil, err
	}

	s.logger.Info("operation expedited by operator",
		zap.String("operation_id", op.ID.String()))
	s.hub.Request(TriggerManual)
	return op, nil
}

// Remove deletes an operation from the queue. The operator owns the
// consequences; nothing else ever deletes an unconfirmed operation.
func (s *InspectionService) Remove(ctx context.Context, id uuid.UUID) error {
	if err := s.queue.Remove(ctx, id); err != nil {
		return err
	}
	s.logger.Warn("operation removed by operator",
		zap.String("operation_id", id.String()))
	return nil
}

// RequestSync schedules a reconciliation pass on operator demand
func (s *InspectionService) RequestSync() {
	s.hub.Request(TriggerManual)
}
