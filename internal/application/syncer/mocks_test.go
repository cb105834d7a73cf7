package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/possync/backend/internal/domain/sync"
	"github.com/possync/backend/internal/infrastructure/transport"
)

type MockQueueRepository struct {
	mock.Mock
}

func (m *MockQueueRepository) Append(ctx context.Context, op *sync.QueuedOperation) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

func (m *MockQueueRepository) FindByID(ctx context.Context, id uuid.UUID) (*sync.QueuedOperation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.QueuedOperation), args.Error(1)
}

func (m *MockQueueRepository) FindAll(ctx context.Context, kind *sync.OperationKind) ([]*sync.QueuedOperation, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*sync.QueuedOperation), args.Error(1)
}

func (m *MockQueueRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*sync.QueuedOperation, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*sync.QueuedOperation), args.Error(1)
}

func (m *MockQueueRepository) Update(ctx context.Context, op *sync.QueuedOperation) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

func (m *MockQueueRepository) Remove(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQueueRepository) Depth(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQueueRepository) CountEscalated(ctx context.Context, threshold int) (int64, error) {
	args := m.Called(ctx, threshold)
	return args.Get(0).(int64), args.Error(1)
}

type MockSaleCacheRepository struct {
	mock.Mock
}

func (m *MockSaleCacheRepository) Upsert(ctx context.Context, sale *sync.CachedSale) error {
	args := m.Called(ctx, sale)
	return args.Error(0)
}

func (m *MockSaleCacheRepository) FindByLocalID(ctx context.Context, localID uuid.UUID) (*sync.CachedSale, error) {
	args := m.Called(ctx, localID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.CachedSale), args.Error(1)
}

func (m *MockSaleCacheRepository) FindByIdempotencyKey(ctx context.Context, key uuid.UUID) (*sync.CachedSale, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.CachedSale), args.Error(1)
}

func (m *MockSaleCacheRepository) MarkSynced(ctx context.Context, localID, serverID uuid.UUID, serverLines map[uuid.UUID]uuid.UUID) error {
	args := m.Called(ctx, localID, serverID, serverLines)
	return args.Error(0)
}

func (m *MockSaleCacheRepository) DeleteSyncedBefore(ctx context.Context, cutoff time.Time, keep []uuid.UUID) (int64, error) {
	args := m.Called(ctx, cutoff, keep)
	return args.Get(0).(int64), args.Error(1)
}

type MockDeliveryGateway struct {
	mock.Mock
}

func (m *MockDeliveryGateway) DeliverSale(ctx context.Context, key uuid.UUID, payload sync.SalePayload) (*transport.DeliveryResult, error) {
	args := m.Called(ctx, key, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transport.DeliveryResult), args.Error(1)
}

func (m *MockDeliveryGateway) DeliverReturn(ctx context.Context, key uuid.UUID, body transport.ReturnRequest) (*transport.DeliveryResult, error) {
	args := m.Called(ctx, key, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transport.DeliveryResult), args.Error(1)
}

func (m *MockDeliveryGateway) DeliverSwap(ctx context.Context, key uuid.UUID, body transport.SwapRequest) (*transport.DeliveryResult, error) {
	args := m.Called(ctx, key, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transport.DeliveryResult), args.Error(1)
}

func (m *MockDeliveryGateway) LookupSale(ctx context.Context, key uuid.UUID) (*transport.SaleResult, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transport.SaleResult), args.Error(1)
}
