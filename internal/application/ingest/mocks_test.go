package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/possync/backend/internal/domain/pos"
)

type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) CreateSale(ctx context.Context, sale *pos.SaleRecord, movements []pos.StockMovement) error {
	args := m.Called(ctx, sale, movements)
	return args.Error(0)
}

func (m *MockRecordRepository) FindSaleByKey(ctx context.Context, idempotencyKey uuid.UUID) (*pos.SaleRecord, error) {
	args := m.Called(ctx, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pos.SaleRecord), args.Error(1)
}

func (m *MockRecordRepository) FindSaleByID(ctx context.Context, id uuid.UUID) (*pos.SaleRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pos.SaleRecord), args.Error(1)
}

func (m *MockRecordRepository) CreateReturn(ctx context.Context, ret *pos.ReturnRecord, movements []pos.StockMovement) error {
	args := m.Called(ctx, ret, movements)
	return args.Error(0)
}

func (m *MockRecordRepository) FindReturnByKey(ctx context.Context, idempotencyKey uuid.UUID) (*pos.ReturnRecord, error) {
	args := m.Called(ctx, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pos.ReturnRecord), args.Error(1)
}

func (m *MockRecordRepository) CreateSwap(ctx context.Context, swap *pos.SwapRecord, movements []pos.StockMovement) error {
	args := m.Called(ctx, swap, movements)
	return args.Error(0)
}

func (m *MockRecordRepository) FindSwapByKey(ctx context.Context, idempotencyKey uuid.UUID) (*pos.SwapRecord, error) {
	args := m.Called(ctx, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pos.SwapRecord), args.Error(1)
}

func (m *MockRecordRepository) Stats(ctx context.Context, now time.Time) (*pos.Stats, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pos.Stats), args.Error(1)
}

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
