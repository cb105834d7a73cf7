package handler

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/possync/backend/internal/application/ingest"
	"github.com/possync/backend/internal/application/syncer"
	"github.com/possync/backend/internal/domain/pos"
	"github.com/possync/backend/internal/domain/sync"
)

type MockIngestionService struct {
	mock.Mock
}

func (m *MockIngestionService) IngestSale(ctx context.Context, cmd ingest.SaleCommand) (*pos.SaleRecord, bool, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*pos.SaleRecord), args.Bool(1), args.Error(2)
}

func (m *MockIngestionService) IngestReturn(ctx context.Context, cmd ingest.ReturnCommand) (*pos.ReturnRecord, bool, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*pos.ReturnRecord), args.Bool(1), args.Error(2)
}

func (m *MockIngestionService) IngestSwap(ctx context.Context, cmd ingest.SwapCommand) (*pos.SwapRecord, bool, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*pos.SwapRecord), args.Bool(1), args.Error(2)
}

func (m *MockIngestionService) FindSaleByKey(ctx context.Context, key uuid.UUID) (*pos.SaleRecord, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pos.SaleRecord), args.Error(1)
}

func (m *MockIngestionService) Stats(ctx context.Context) (*pos.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pos.Stats), args.Error(1)
}

type MockIntakeService struct {
	mock.Mock
}

func (m *MockIntakeService) EnqueueSale(ctx context.Context, payload sync.SalePayload) (*sync.QueuedOperation, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.QueuedOperation), args.Error(1)
}

func (m *MockIntakeService) EnqueueReturn(ctx context.Context, payload sync.ReturnPayload) (*sync.QueuedOperation, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.QueuedOperation), args.Error(1)
}

func (m *MockIntakeService) EnqueueSwap(ctx context.Context, payload sync.SwapPayload) (*sync.QueuedOperation, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.QueuedOperation), args.Error(1)
}

type MockConsoleService struct {
	mock.Mock
}

func (m *MockConsoleService) List(ctx context.Context, kind *sync.OperationKind) ([]*sync.QueuedOperation, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*sync.QueuedOperation), args.Error(1)
}

func (m *MockConsoleService) Get(ctx context.Context, id uuid.UUID) (*sync.QueuedOperation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.QueuedOperation), args.Error(1)
}

func (m *MockConsoleService) Status(ctx context.Context) (*syncer.QueueStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncer.QueueStatus), args.Error(1)
}

func (m *MockConsoleService) Escalated(op *sync.QueuedOperation) bool {
	args := m.Called(op)
	return args.Bool(0)
}

func (m *MockConsoleService) UpdatePayload(ctx context.Context, id uuid.UUID, payload []byte) (*sync.QueuedOperation, error) {
	args := m.Called(ctx, id, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.QueuedOperation), args.Error(1)
}

func (m *MockConsoleService) Expedite(ctx context.Context, id uuid.UUID) (*sync.QueuedOperation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.QueuedOperation), args.Error(1)
}

func (m *MockConsoleService) Remove(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockConsoleService) RequestSync() {
	m.Called()
}
