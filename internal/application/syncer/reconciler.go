package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/domain/shared"
	"github.com/possync/backend/internal/domain/sync"
	"github.com/possync/backend/internal/infrastructure/transport"
)

// errBlocked marks an operation waiting on an unsynced dependency. Blocked
// operations are skipped without counting a delivery attempt.
var errBlocked = errors.New("operation blocked on unsynced dependency")

// DeliveryGateway is the reconciler's view of the sync server
type DeliveryGateway interface {
	DeliverSale(ctx context.Context, key uuid.UUID, payload sync.SalePayload) (*transport.DeliveryResult, error)
	DeliverReturn(ctx context.Context, key uuid.UUID, body transport.ReturnRequest) (*transport.DeliveryResult, error)
	DeliverSwap(ctx context.Context, key uuid.UUID, body transport.SwapRequest) (*transport.DeliveryResult, error)
	LookupSale(ctx context.Context, key uuid.UUID) (*transport.SaleResult, error)
}

// ReconcilerConfig holds reconciler tuning
type ReconcilerConfig struct {
	Interval       time.Duration
	BatchLimit     int
	Backoff        sync.BackoffPolicy
	CacheRetention time.Duration
	PruneInterval  time.Duration
}

// DefaultReconcilerConfig returns the default configuration
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Interval:       30 * time.Second,
		BatchLimit:     100,
		Backoff:        sync.DefaultBackoffPolicy(),
		CacheRetention: 30 * 24 * time.Hour,
		PruneInterval:  time.Hour,
	}
}

// Reconciler drains the durable queue against the sync server. All passes
// run on one goroutine consuming the trigger hub, so at most one pass is in
// flight and triggers arriving mid-pass coalesce into a single follow-up.
type Reconciler struct {
	queue   sync.QueueRepository
	cache   sync.SaleCacheRepository
	gateway DeliveryGateway
	hub     *TriggerHub
	config  ReconcilerConfig
	logger  *zap.Logger

	cancel    context.CancelFunc
	runDone   chan struct{}
	pruneDone chan struct{}
}

// NewReconciler creates a new Reconciler
func NewReconciler(
	queue sync.QueueRepository,
	cache sync.SaleCacheRepository,
	gateway DeliveryGateway,
	hub *TriggerHub,
	config ReconcilerConfig,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		queue:   queue,
		cache:   cache,
		gateway: gateway,
		hub:     hub,
		config:  config,
		logger:  logger,
	}
}

// Start launches the run loop and the cache prune loop
func (r *Reconciler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.runDone = make(chan struct{})
	r.pruneDone = make(chan struct{})

	go r.runLoop(ctx)
	go r.pruneLoop(ctx)

	r.logger.Info("sync reconciler started",
		zap.Duration("interval", r.config.Interval),
		zap.Int("batch_limit", r.config.BatchLimit))
}

// Stop gracefully stops the reconciler
func (r *Reconciler) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	for _, done := range []chan struct{}{r.runDone, r.pruneDone} {
		if done == nil {
			continue
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.logger.Info("sync reconciler stopped")
	return nil
}

func (r *Reconciler) runLoop(ctx context.Context) {
	defer close(r.runDone)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunPass(ctx, TriggerInterval)
		case trigger := <-r.hub.C():
			r.RunPass(ctx, trigger)
		}
	}
}

// RunPass reconciles every currently deliverable operation, oldest first.
// A transport-level failure aborts the pass; the server is treated as
// unreachable and the remaining operations keep their attempt counts.
func (r *Reconciler) RunPass(ctx context.Context, trigger Trigger) {
	now := time.Now()
	ops, err := r.queue.FindDue(ctx, now, r.config.BatchLimit)
	if err != nil {
		r.logger.Error("failed to load due operations", zap.Error(err))
		return
	}
	if len(ops) == 0 {
		return
	}

	r.logger.Info("sync pass started",
		zap.String("trigger", string(trigger)),
		zap.Int("due", len(ops)))

	var confirmed, blocked, failed int
	for _, op := range ops {
		if ctx.Err() != nil {
			return
		}
		done, err := r.deliver(ctx, op)
		switch {
		case errors.Is(err, errBlocked):
			blocked++
		case err != nil:
			r.logger.Warn("sync pass aborted, server unreachable",
				zap.String("operation_id", op.ID.String()),
				zap.Error(err))
			return
		case done:
			confirmed++
		default:
			failed++
		}
	}

	r.logger.Info("sync pass completed",
		zap.Int("confirmed", confirmed),
		zap.Int("blocked", blocked),
		zap.Int("rejected", failed),
		zap.Duration("elapsed", time.Since(now)))

	// Confirmations may have unblocked dependents, and a full batch means
	// more work is waiting.
	if (confirmed > 0 && blocked > 0) || len(ops) == r.config.BatchLimit {
		r.hub.Request(TriggerPassCompleted)
	}
}

// deliver sends one operation. Returns (true, nil) when the operation was
// confirmed and removed, (false, nil) when it was terminally rejected,
// errBlocked when skipped, and any other error on transient failure.
func (r *Reconciler) deliver(ctx context.Context, op *sync.QueuedOperation) (bool, error) {
	switch op.Kind {
	case sync.OperationKindSale:
		return r.deliverSale(ctx, op)
	case sync.OperationKindReturn:
		return r.deliverReturn(ctx, op)
	case sync.OperationKindSwap:
		return r.deliverSwap(ctx, op)
	default:
		r.reject(ctx, op, "unknown operation kind "+string(op.Kind))
		return false, nil
	}
}

func (r *Reconciler) deliverSale(ctx context.Context, op *sync.QueuedOperation) (bool, error) {
	payload, err := sync.ParseSalePayload(op.Payload)
	if err != nil {
		r.reject(ctx, op, "malformed payload: "+err.Error())
		return false, nil
	}

	result, err := r.gateway.DeliverSale(ctx, op.ID, *payload)
	if err != nil {
		return false, r.recordFailure(ctx, op, err)
	}
	if result.Outcome == transport.OutcomeRejected {
		r.reject(ctx, op, result.Message)
		return false, nil
	}

	if err := r.confirmSale(ctx, op.ID, payload, result.Sale); err != nil {
		r.logger.Error("failed to update sale cache",
			zap.String("local_sale_id", payload.LocalSaleID.String()),
			zap.Error(err))
	}
	return true, r.confirm(ctx, op, result.Outcome)
}

func (r *Reconciler) deliverReturn(ctx context.Context, op *sync.QueuedOperation) (bool, error) {
	payload, err := sync.ParseReturnPayload(op.Payload)
	if err != nil {
		r.reject(ctx, op, "malformed payload: "+err.Error())
		return false, nil
	}

	sale, err := r.resolveSale(ctx, op, payload.LocalSaleID)
	if err != nil {
		return false, err
	}

	lines := make([]transport.ReturnLineRequest, 0, len(payload.Lines))
	for _, line := range payload.Lines {
		serverLineID, ok := sale.ServerLineFor(line.LocalLineID)
		if !ok {
			r.logger.Warn("return references unknown sale line, skipping",
				zap.String("operation_id", op.ID.String()),
				zap.String("local_line_id", line.LocalLineID.String()))
			return false, errBlocked
		}
		lines = append(lines, transport.ReturnLineRequest{
			SaleLineID: serverLineID,
			Quantity:   line.Quantity,
		})
	}

	result, err := r.gateway.DeliverReturn(ctx, op.ID, transport.ReturnRequest{
		SaleID: *sale.ServerID,
		Lines:  lines,
		Reason: payload.Reason,
		Amount: payload.Amount,
	})
	if err != nil {
		return false, r.recordFailure(ctx, op, err)
	}
	if result.Outcome == transport.OutcomeRejected {
		r.reject(ctx, op, result.Message)
		return false, nil
	}
	return true, r.confirm(ctx, op, result.Outcome)
}

func (r *Reconciler) deliverSwap(ctx context.Context, op *sync.QueuedOperation) (bool, error) {
	payload, err := sync.ParseSwapPayload(op.Payload)
	if err != nil {
		r.reject(ctx, op, "malformed payload: "+err.Error())
		return false, nil
	}

	sale, err := r.resolveSale(ctx, op, payload.LocalSaleID)
	if err != nil {
		return false, err
	}

	returnedLineID, ok := sale.ServerLineFor(payload.ReturnedLine.LocalLineID)
	if !ok {
		r.logger.Warn("swap references unknown sale line, skipping",
			zap.String("operation_id", op.ID.String()),
			zap.String("local_line_id", payload.ReturnedLine.LocalLineID.String()))
		return false, errBlocked
	}

	result, err := r.gateway.DeliverSwap(ctx, op.ID, transport.SwapRequest{
		SaleID:           *sale.ServerID,
		ReturnedLineID:   returnedLineID,
		ReturnedQuantity: payload.ReturnedLine.Quantity,
		Replacement: transport.SaleLineRequest{
			LocalLineID: payload.Replacement.LocalLineID,
			ProductID:   payload.Replacement.ProductID,
			ProductCode: payload.Replacement.ProductCode,
			Quantity:    payload.Replacement.Quantity,
			UnitPrice:   payload.Replacement.UnitPrice,
			Amount:      payload.Replacement.Amount,
		},
		PriceDifference: payload.PriceDifference,
	})
	if err != nil {
		return false, r.recordFailure(ctx, op, err)
	}
	if result.Outcome == transport.OutcomeRejected {
		r.reject(ctx, op, result.Message)
		return false, nil
	}
	return true, r.confirm(ctx, op, result.Outcome)
}

// resolveSale maps a local sale identity to its server-confirmed cache
// entry. When the cache has the sale but no server identity yet, the server
// is asked directly; a confirmation may have been lost in transit.
func (r *Reconciler) resolveSale(ctx context.Context, op *sync.QueuedOperation, localSaleID uuid.UUID) (*sync.CachedSale, error) {
	sale, err := r.cache.FindByLocalID(ctx, localSaleID)
	if errors.Is(err, shared.ErrNotFound) {
		r.logger.Warn("operation references unknown sale, skipping",
			zap.String("operation_id", op.ID.String()),
			zap.String("local_sale_id", localSaleID.String()))
		return nil, errBlocked
	}
	if err != nil {
		return nil, err
	}
	if sale.Resolved() {
		return sale, nil
	}

	result, err := r.gateway.LookupSale(ctx, sale.IdempotencyKey)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, errBlocked
	}
	if err != nil {
		return nil, err
	}

	if err := r.cache.MarkSynced(ctx, sale.LocalID, result.ServerID, result.Lines); err != nil {
		return nil, err
	}
	return r.cache.FindByLocalID(ctx, sale.LocalID)
}

// confirmSale records the server identities in the read cache. The cache
// entry normally exists from enqueue time; it is recreated when missing so
// dependents can always resolve.
func (r *Reconciler) confirmSale(ctx context.Context, key uuid.UUID, payload *sync.SalePayload, result *transport.SaleResult) error {
	if result == nil {
		return nil
	}
	err := r.cache.MarkSynced(ctx, payload.LocalSaleID, result.ServerID, result.Lines)
	if !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	lines := make([]sync.CachedSaleLine, 0, len(payload.Lines))
	for _, line := range payload.Lines {
		lines = append(lines, sync.CachedSaleLine{
			LocalLineID: line.LocalLineID,
			ProductID:   line.ProductID,
		})
	}
	sale, err := sync.NewCachedSale(payload.LocalSaleID, key, lines)
	if err != nil {
		return err
	}
	if err := r.cache.Upsert(ctx, sale); err != nil {
		return err
	}
	return r.cache.MarkSynced(ctx, payload.LocalSaleID, result.ServerID, result.Lines)
}

func (r *Reconciler) confirm(ctx context.Context, op *sync.QueuedOperation, outcome transport.Outcome) error {
	if err := r.queue.Remove(ctx, op.ID); err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	r.logger.Info("operation confirmed",
		zap.String("operation_id", op.ID.String()),
		zap.String("kind", op.Kind.String()),
		zap.String("outcome", string(outcome)),
		zap.Int("attempts", op.Attempts+1))
	r.hub.Request(TriggerOperationConfirmed)
	return nil
}

func (r *Reconciler) recordFailure(ctx context.Context, op *sync.QueuedOperation, cause error) error {
	op.RecordFailure(cause.Error(), r.config.Backoff)
	if err := r.queue.Update(ctx, op); err != nil {
		r.logger.Error("failed to record delivery failure",
			zap.String("operation_id", op.ID.String()),
			zap.Error(err))
	}
	if r.config.Backoff.Escalated(op) {
		r.logger.Warn("operation escalated, retries continue",
			zap.String("operation_id", op.ID.String()),
			zap.String("kind", op.Kind.String()),
			zap.Int("attempts", op.Attempts),
			zap.String("last_error", op.LastError))
	}
	return cause
}

func (r *Reconciler) reject(ctx context.Context, op *sync.QueuedOperation, reason string) {
	op.RecordRejection(reason)
	if err := r.queue.Update(ctx, op); err != nil {
		r.logger.Error("failed to record rejection",
			zap.String("operation_id", op.ID.String()),
			zap.Error(err))
		return
	}
	r.logger.Warn("operation rejected by server, operator action required",
		zap.String("operation_id", op.ID.String()),
		zap.String("kind", op.Kind.String()),
		zap.String("reason", reason))
}

func (r *Reconciler) pruneLoop(ctx context.Context) {
	defer close(r.pruneDone)

	ticker := time.NewTicker(r.config.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.PrunePass(ctx)
		}
	}
}

// PrunePass removes confirmed cached sales past the retention window.
// Sales still referenced by a queued return or swap are kept regardless of
// age; the dependent resolves through them once its turn comes.
func (r *Reconciler) PrunePass(ctx context.Context) {
	referenced, err := r.referencedSales(ctx)
	if err != nil {
		r.logger.Error("failed to collect referenced sales, skipping prune", zap.Error(err))
		return
	}

	cutoff := time.Now().Add(-r.config.CacheRetention)
	pruned, err := r.cache.DeleteSyncedBefore(ctx, cutoff, referenced)
	if err != nil {
		r.logger.Error("failed to prune sale cache", zap.Error(err))
		return
	}
	if pruned > 0 {
		r.logger.Info("pruned confirmed sales from cache",
			zap.Int64("pruned", pruned),
			zap.Time("cutoff", cutoff))
	}
}

// referencedSales returns the local sale identities every queued return and
// swap depends on
func (r *Reconciler) referencedSales(ctx context.Context) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, kind := range []sync.OperationKind{sync.OperationKindReturn, sync.OperationKindSwap} {
		ops, err := r.queue.FindAll(ctx, &kind)
		if err != nil {
			return nil, err
		}
		for _, op := range ops {
			localSaleID, ok, err := sync.LocalSaleRef(op.Kind, op.Payload)
			if err != nil || !ok {
				continue
			}
			if _, dup := seen[localSaleID]; dup {
				continue
			}
			seen[localSaleID] = struct{}{}
			ids = append(ids, localSaleID)
		}
	}
	return ids, nil
}
