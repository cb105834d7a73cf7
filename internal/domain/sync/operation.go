package sync

import (
	"time"

	"github.com/google/uuid"

	"github.com/possync/backend/internal/domain/shared"
)

// OperationKind identifies the kind of a queued operation
type OperationKind string

const (
	OperationKindSale   OperationKind = "SALE"
	OperationKindReturn OperationKind = "RETURN"
	OperationKindSwap   OperationKind = "SWAP"
)

// IsValid checks if the kind is a recognized OperationKind
func (k OperationKind) IsValid() bool {
	switch k {
	case OperationKindSale, OperationKindReturn, OperationKindSwap:
		return true
	}
	return false
}

// String returns the string representation of OperationKind
func (k OperationKind) String() string {
	return string(k)
}

// OperationStatus represents the delivery status of a queued operation
type OperationStatus string

const (
	// OperationStatusPending means the operation is awaiting delivery
	// (possibly not before NextAttemptAt).
	OperationStatusPending OperationStatus = "PENDING"
	// OperationStatusFailed means the server rejected the payload
	// permanently. The operation is kept for operator edit/retry and is
	// never selected for automatic delivery.
	OperationStatusFailed OperationStatus = "FAILED"
)

// QueuedOperation represents one not-yet-confirmed sale, return, or swap.
// ID doubles as the idempotency key the server deduplicates on; it is
// immutable for the lifetime of the operation.
type QueuedOperation struct {
	ID            uuid.UUID
	Kind          OperationKind
	Payload       []byte
	Status        OperationStatus
	Attempts      int
	LastError     string
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewQueuedOperation creates a pending operation with a fresh id.
// The payload must already be validated canonical JSON for the kind.
func NewQueuedOperation(kind OperationKind, payload []byte) (*QueuedOperation, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_KIND", "Unrecognized operation kind")
	}
	if len(payload) == 0 {
		return nil, shared.ErrInvalidInput
	}
	now := time.Now()
	return &QueuedOperation{
		ID:        uuid.New(),
		Kind:      kind,
		Payload:   payload,
		Status:    OperationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// RecordFailure records a transient delivery failure and schedules the next
// attempt according to the backoff policy.
func (o *QueuedOperation) RecordFailure(errMsg string, policy BackoffPolicy) {
	o.Attempts++
	o.LastError = errMsg
	next := policy.NextAttemptAt(o.Attempts, time.Now())
	o.NextAttemptAt = &next
	o.UpdatedAt = time.Now()
}

// RecordRejection marks the operation as permanently rejected by the server.
// It still counts the attempt so the operator sees how far delivery got.
func (o *QueuedOperation) RecordRejection(errMsg string) {
	o.Attempts++
	o.LastError = errMsg
	o.Status = OperationStatusFailed
	o.NextAttemptAt = nil
	o.UpdatedAt = time.Now()
}

// ReplacePayload swaps in an operator-edited payload and makes the
// operation immediately deliverable again. The idempotency key is kept: the
// edit is a correction of the same logical operation, not a new one.
func (o *QueuedOperation) ReplacePayload(payload []byte) error {
	if len(payload) == 0 {
		return shared.ErrInvalidInput
	}
	o.Payload = payload
	o.Status = OperationStatusPending
	o.LastError = ""
	o.NextAttemptAt = nil
	o.UpdatedAt = time.Now()
	return nil
}

// Expedite clears the backoff delay so the next pass picks the operation up
// immediately.
func (o *QueuedOperation) Expedite() {
	o.NextAttemptAt = nil
	o.UpdatedAt = time.Now()
}

// Deliverable returns true if the operation may be delivered at the given
// instant: pending, and either never scheduled or due.
func (o *QueuedOperation) Deliverable(now time.Time) bool {
	if o.Status != OperationStatusPending {
		return false
	}
	return o.NextAttemptAt == nil || !o.NextAttemptAt.After(now)
}
