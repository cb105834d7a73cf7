package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// QueueRepository is the durable local queue of pending operations.
// Implementations must survive process restarts and must surface storage
// failures on Append rather than dropping silently.
type QueueRepository interface {
	// Append durably adds a new operation to the queue
	Append(ctx context.Context, op *QueuedOperation) error
	// FindByID retrieves a single operation
	FindByID(ctx context.Context, id uuid.UUID) (*QueuedOperation, error)
	// FindAll lists queued operations, optionally filtered by kind,
	// oldest first
	FindAll(ctx context.Context, kind *OperationKind) ([]*QueuedOperation, error)
	// FindDue retrieves pending operations deliverable at the given
	// instant, ordered by creation time (oldest first)
	FindDue(ctx context.Context, now time.Time, limit int) ([]*QueuedOperation, error)
	// Update persists attempt metadata and status changes
	Update(ctx context.Context, op *QueuedOperation) error
	// Remove deletes an operation (confirmed success or operator removal)
	Remove(ctx context.Context, id uuid.UUID) error
	// Depth returns the number of operations in the queue
	Depth(ctx context.Context) (int64, error)
	// CountEscalated returns the number of operations at or past the
	// given attempt threshold
	CountEscalated(ctx context.Context, threshold int) (int64, error)
}

// SaleCacheRepository is the local read cache mirroring server-confirmed
// sales for dependency resolution.
type SaleCacheRepository interface {
	// Upsert inserts or replaces the cached sale for its idempotency key
	Upsert(ctx context.Context, sale *CachedSale) error
	// FindByLocalID retrieves a cached sale by local identity
	FindByLocalID(ctx context.Context, localID uuid.UUID) (*CachedSale, error)
	// FindByIdempotencyKey retrieves a cached sale by idempotency key
	FindByIdempotencyKey(ctx context.Context, key uuid.UUID) (*CachedSale, error)
	// MarkSynced records the server identities for a sale and its lines
	MarkSynced(ctx context.Context, localID, serverID uuid.UUID, serverLines map[uuid.UUID]uuid.UUID) error
	// DeleteSyncedBefore prunes confirmed sales synced before the cutoff.
	// Unsynced sales are never pruned, and neither is any sale whose local
	// identity appears in keep; queued returns and swaps still resolve
	// through those entries.
	DeleteSyncedBefore(ctx context.Context, cutoff time.Time, keep []uuid.UUID) (int64, error)
}
