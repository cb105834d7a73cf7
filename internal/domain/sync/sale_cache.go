package sync

import (
	"time"

	"github.com/google/uuid"

	"github.com/possync/backend/internal/domain/shared"
)

// CachedSaleLine mirrors one sold line so dependent returns and swaps can
// map their local line reference to the server-assigned line identity.
type CachedSaleLine struct {
	LocalLineID  uuid.UUID
	ServerLineID *uuid.UUID
	ProductID    uuid.UUID
}

// CachedSale is the local mirror of a sale, confirmed or not. At most one
// cached sale exists per idempotency key. Once ServerID is set, IsOffline
// is false and SyncedAt is non-nil.
type CachedSale struct {
	LocalID        uuid.UUID
	ServerID       *uuid.UUID
	IdempotencyKey uuid.UUID
	IsOffline      bool
	SyncedAt       *time.Time
	Lines          []CachedSaleLine
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewCachedSale mirrors a freshly recorded sale that has not been confirmed
// by the server yet
func NewCachedSale(localID, idempotencyKey uuid.UUID, lines []CachedSaleLine) (*CachedSale, error) {
	if localID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SALE", "Local sale ID cannot be empty")
	}
	if idempotencyKey == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SALE", "Idempotency key cannot be empty")
	}
	now := time.Now()
	return &CachedSale{
		LocalID:        localID,
		IdempotencyKey: idempotencyKey,
		IsOffline:      true,
		Lines:          lines,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// MarkSynced records the server identity of the sale and of each line the
// server reported. After this, dependency resolution for this sale succeeds
// without a network call.
func (s *CachedSale) MarkSynced(serverID uuid.UUID, serverLines map[uuid.UUID]uuid.UUID, syncedAt time.Time) error {
	if serverID == uuid.Nil {
		return shared.NewDomainError("INVALID_SALE", "Server sale ID cannot be empty")
	}
	s.ServerID = &serverID
	s.IsOffline = false
	s.SyncedAt = &syncedAt
	for i := range s.Lines {
		if id, ok := serverLines[s.Lines[i].LocalLineID]; ok {
			lineID := id
			s.Lines[i].ServerLineID = &lineID
		}
	}
	s.UpdatedAt = time.Now()
	return nil
}

// Resolved reports whether the sale has a server identity
func (s *CachedSale) Resolved() bool {
	return s.ServerID != nil
}

// ServerLineFor maps a local line identity to its server identity, if known
func (s *CachedSale) ServerLineFor(localLineID uuid.UUID) (uuid.UUID, bool) {
	for _, line := range s.Lines {
		if line.LocalLineID == localLineID && line.ServerLineID != nil {
			return *line.ServerLineID, true
		}
	}
	return uuid.Nil, false
}
