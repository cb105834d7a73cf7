package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/domain/pos"
	"github.com/possync/backend/internal/domain/shared"
)

func newTestService(records *MockRecordRepository, store *MockIdempotencyStore) *Service {
	cfg := shared.DefaultIdempotencyConfig()
	if store == nil {
		cfg.Enabled = false
	}
	var s shared.IdempotencyStore
	if store != nil {
		s = store
	}
	return NewService(records, s, cfg, zap.NewNop())
}

func saleCommandFixture() SaleCommand {
	return SaleCommand{
		StoreID:        uuid.New(),
		DeviceID:       uuid.New(),
		IdempotencyKey: uuid.New(),
		LocalSaleID:    uuid.New(),
		Lines: []SaleLineInput{
			{
				LocalLineID: uuid.New(),
				ProductID:   uuid.New(),
				ProductCode: "SKU-001",
				Quantity:    decimal.NewFromInt(2),
				UnitPrice:   decimal.NewFromInt(10),
			},
			{
				LocalLineID: uuid.New(),
				ProductID:   uuid.New(),
				ProductCode: "SKU-002",
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   decimal.NewFromInt(5),
			},
		},
		PaymentMethod: "CASH",
		Total:         decimal.NewFromInt(25),
		Currency:      "EUR",
	}
}

func ingestedSaleFixture(cmd SaleCommand) *pos.SaleRecord {
	sale, _ := pos.NewSaleRecord(cmd.StoreID, cmd.DeviceID, cmd.IdempotencyKey, cmd.LocalSaleID,
		cmd.PaymentMethod, cmd.Currency, cmd.Total)
	for _, line := range cmd.Lines {
		_ = sale.AddLine(line.LocalLineID, line.ProductID, line.ProductCode, line.Quantity, line.UnitPrice)
	}
	return sale
}

func TestIngestSale(t *testing.T) {
	ctx := context.Background()

	t.Run("first delivery creates record with stock movements", func(t *testing.T) {
		records := new(MockRecordRepository)
		store := new(MockIdempotencyStore)
		svc := newTestService(records, store)
		cmd := saleCommandFixture()

		store.On("IsProcessed", ctx, cmd.IdempotencyKey.String()).Return(false, nil)
		records.On("CreateSale", ctx, mock.AnythingOfType("*pos.SaleRecord"), mock.Anything).
			Run(func(args mock.Arguments) {
				sale := args.Get(1).(*pos.SaleRecord)
				movements := args.Get(2).([]pos.StockMovement)
				assert.Equal(t, cmd.IdempotencyKey, sale.IdempotencyKey)
				assert.Len(t, sale.Lines, 2)
				require.Len(t, movements, 2)
				assert.True(t, movements[0].Delta.Equal(decimal.NewFromInt(-2)))
			}).Return(nil)
		store.On("MarkProcessed", ctx, cmd.IdempotencyKey.String(), mock.Anything).Return(true, nil)

		sale, replayed, err := svc.IngestSale(ctx, cmd)

		require.NoError(t, err)
		assert.False(t, replayed)
		assert.Equal(t, cmd.LocalSaleID, sale.LocalSaleID)
		assert.NotEqual(t, uuid.Nil, sale.ID)
		records.AssertExpectations(t)
		store.AssertExpectations(t)
	})

	t.Run("duplicate key returns the winner as replayed", func(t *testing.T) {
		records := new(MockRecordRepository)
		svc := newTestService(records, nil)
		cmd := saleCommandFixture()
		winner := ingestedSaleFixture(cmd)

		records.On("CreateSale", ctx, mock.Anything, mock.Anything).Return(shared.ErrAlreadyExists)
		records.On("FindSaleByKey", ctx, cmd.IdempotencyKey).Return(winner, nil)

		sale, replayed, err := svc.IngestSale(ctx, cmd)

		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Equal(t, winner.ID, sale.ID)
	})

	t.Run("fast path short-circuits known keys without touching the database", func(t *testing.T) {
		records := new(MockRecordRepository)
		store := new(MockIdempotencyStore)
		svc := newTestService(records, store)
		cmd := saleCommandFixture()
		winner := ingestedSaleFixture(cmd)

		store.On("IsProcessed", ctx, cmd.IdempotencyKey.String()).Return(true, nil)
		records.On("FindSaleByKey", ctx, cmd.IdempotencyKey).Return(winner, nil)

		sale, replayed, err := svc.IngestSale(ctx, cmd)

		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Equal(t, winner.ID, sale.ID)
		records.AssertNotCalled(t, "CreateSale", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("fast path false positive falls through to create", func(t *testing.T) {
		records := new(MockRecordRepository)
		store := new(MockIdempotencyStore)
		svc := newTestService(records, store)
		cmd := saleCommandFixture()

		store.On("IsProcessed", ctx, cmd.IdempotencyKey.String()).Return(true, nil)
		records.On("FindSaleByKey", ctx, cmd.IdempotencyKey).Return(nil, shared.ErrNotFound)
		records.On("CreateSale", ctx, mock.Anything, mock.Anything).Return(nil)
		store.On("MarkProcessed", ctx, cmd.IdempotencyKey.String(), mock.Anything).Return(true, nil)

		_, replayed, err := svc.IngestSale(ctx, cmd)

		require.NoError(t, err)
		assert.False(t, replayed)
	})

	t.Run("fast path errors are tolerated", func(t *testing.T) {
		records := new(MockRecordRepository)
		store := new(MockIdempotencyStore)
		svc := newTestService(records, store)
		cmd := saleCommandFixture()

		store.On("IsProcessed", ctx, cmd.IdempotencyKey.String()).Return(false, errors.New("redis down"))
		records.On("CreateSale", ctx, mock.Anything, mock.Anything).Return(nil)
		store.On("MarkProcessed", ctx, cmd.IdempotencyKey.String(), mock.Anything).Return(false, errors.New("redis down"))

		_, replayed, err := svc.IngestSale(ctx, cmd)

		require.NoError(t, err)
		assert.False(t, replayed)
	})

	t.Run("sale without lines is rejected", func(t *testing.T) {
		records := new(MockRecordRepository)
		svc := newTestService(records, nil)
		cmd := saleCommandFixture()
		cmd.Lines = nil

		_, _, err := svc.IngestSale(ctx, cmd)

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_SALE", domainErr.Code)
		records.AssertNotCalled(t, "CreateSale", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid line is rejected before create", func(t *testing.T) {
		records := new(MockRecordRepository)
		svc := newTestService(records, nil)
		cmd := saleCommandFixture()
		cmd.Lines[0].Quantity = decimal.Zero

		_, _, err := svc.IngestSale(ctx, cmd)

		require.Error(t, err)
		records.AssertNotCalled(t, "CreateSale", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestIngestReturn(t *testing.T) {
	ctx := context.Background()

	t.Run("return against known sale restores stock", func(t *testing.T) {
		records := new(MockRecordRepository)
		svc := newTestService(records, nil)
		saleCmd := saleCommandFixture()
		sale := ingestedSaleFixture(saleCmd)
		cmd := ReturnCommand{
			StoreID:        saleCmd.StoreID,
			DeviceID:       saleCmd.DeviceID,
			IdempotencyKey: uuid.New(),
			SaleID:         sale.ID,
			Lines: []ReturnLineInput{
				{SaleLineID: sale.Lines[0].ID, Quantity: decimal.NewFromInt(1)},
			},
			Reason: "damaged",
			Amount: decimal.NewFromInt(10),
		}

		records.On("FindSaleByID", ctx, sale.ID).Return(sale, nil)
		records.On("CreateReturn", ctx, mock.AnythingOfType("*pos.ReturnRecord"), mock.Anything).
			Run(func(args mock.Arguments) {
				ret := args.Get(1).(*pos.ReturnRecord)
				movements := args.Get(2).([]pos.StockMovement)
				require.Len(t, ret.Lines, 1)
				assert.Equal(t, sale.Lines[0].ID, ret.Lines[0].SaleLineID)
				assert.Equal(t, sale.Lines[0].ProductID, ret.Lines[0].ProductID)
				require.Len(t, movements, 1)
				assert.True(t, movements[0].Delta.Equal(decimal.NewFromInt(1)))
			}).Return(nil)

		ret, replayed, err := svc.IngestReturn(ctx, cmd)

		require.NoError(t, err)
		assert.False(t, replayed)
		assert.Equal(t, sale.ID, ret.SaleID)
		records.AssertExpectations(t)
	})

	t.Run("return against unknown sale is rejected", func(t *testing.T) {
		records := new(MockRecordRepository)
		svc := newTestService(records, nil)
		cmd := ReturnCommand{
			StoreID:        uuid.New(),
			DeviceID:       uuid.New(),
			IdempotencyKey: uuid.New(),
			SaleID:         uuid.New(),
			Lines:          []ReturnLineInput{{SaleLineID: uuid.New(), Quantity: decimal.NewFromInt(1)}},
			Reason:         "damaged",
			Amount:         decimal.NewFromInt(10),
		}

		records.On("FindSaleByID", ctx, cmd.SaleID).Return(nil, shared.ErrNotFound)

		_, _, err := svc.IngestReturn(ctx, cmd)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "UNKNOWN_SALE", domainErr.Code)
		records.AssertNotCalled(t, "CreateReturn", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("return referencing a foreign line is rejected", func(t *testing.T) {
		records := new(MockRecordRepository)
		svc := newTestService(records, nil)
		sale := ingestedSaleFixture(saleCommandFixture())
		cmd := ReturnCommand{
			StoreID:        sale.StoreID,
			DeviceID:       sale.DeviceID,
			IdempotencyKey: uuid.New(),
			SaleID:         sale.ID,
			Lines:          []ReturnLineInput{{SaleLineID: uuid.New(), Quantity: decimal.NewFromInt(1)}},
			Reason:         "damaged",
			Amount:         decimal.NewFromInt(10),
		}

		records.On("FindSaleByID", ctx, sale.ID).Return(sale, nil)

		_, _, err := svc.IngestReturn(ctx, cmd)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "UNKNOWN_SALE_LINE", domainErr.Code)
	})

	t.Run("returning more than sold is rejected", func(t *testing.T) {
		records := new(MockRecordRepository)
		svc := newTestService(records, nil)
		sale := ingestedSaleFixture(saleCommandFixture())
		cmd := ReturnCommand{
			StoreID:        sale.StoreID,
			DeviceID:       sale.DeviceID,
			IdempotencyKey: uuid.New(),
			SaleID:         sale.ID,
			Lines:          []ReturnLineInput{{SaleLineID: sale.Lines[0].ID, Quantity: decimal.NewFromInt(99)}},
			Reason:         "damaged",
			Amount:         decimal.NewFromInt(10),
		}

		records.On("FindSaleByID", ctx, sale.ID).Return(sale, nil)

		_, _, err := svc.IngestReturn(ctx, cmd)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_QUANTITY", domainErr.Code)
	})

	t.Run("duplicate return key replays the winner", func(t *testing.T) {
		records := new(MockRecordRepository)
		svc := newTestService(records, nil)
		sale := ingestedSaleFixture(saleCommandFixture())
		key := uuid.New()
		winner, _ := pos.NewReturnRecord(sale.StoreID, sale.DeviceID, key, sale.ID, "damaged", decimal.NewFromInt(10))
		cmd := ReturnCommand{
			StoreID:        sale.StoreID,
			DeviceID:       sale.DeviceID,
			IdempotencyKey: key,
			SaleID:         sale.ID,
			Lines:          []ReturnLineInput{{SaleLineID: sale.Lines[0].ID, Quantity: decimal.NewFromInt(1)}},
			Reason:         "damaged",
			Amount:         decimal.NewFromInt(10),
		}

		records.On("FindSaleByID", ctx, sale.ID).Return(sale, nil)
		records.On("CreateReturn", ctx, mock.Anything, mock.Anything).Return(shared.ErrAlreadyExists)
		records.On("FindReturnByKey", ctx, key).Return(winner, nil)

		ret, replayed, err := svc.IngestReturn(ctx, cmd)

		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Equal(t, winner.ID, ret.ID)
	})
}

func TestIngestSwap(t *testing.T) {
	ctx := context.Background()

	t.Run("swap moves stock both ways", func(t *testing.T) {
		records := new(MockRecordRepository)
		svc := newTestService(records, nil)
		sale := ingestedSaleFixture(saleCommandFixture())
		replacementProduct := uuid.New()
		cmd := SwapCommand{
			StoreID:          sale.StoreID,
			DeviceID:         sale.DeviceID,
			IdempotencyKey:   uuid.New(),
			SaleID:           sale.ID,
			ReturnedLineID:   sale.Lines[0].ID,
			ReturnedQuantity: decimal.NewFromInt(1),
			Replacement: SaleLineInput{
				LocalLineID: uuid.New(),
				ProductID:   replacementProduct,
				ProductCode: "SKU-003",
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   decimal.NewFromInt(12),
				Amount:      decimal.NewFromInt(12),
			},
			PriceDifference: decimal.NewFromInt(2),
		}

		records.On("FindSaleByID", ctx, sale.ID).Return(sale, nil)
		records.On("CreateSwap", ctx, mock.AnythingOfType("*pos.SwapRecord"), mock.Anything).
			Run(func(args mock.Arguments) {
				swap := args.Get(1).(*pos.SwapRecord)
				movements := args.Get(2).([]pos.StockMovement)
				assert.Equal(t, sale.Lines[0].ProductID, swap.ReturnedProduct)
				require.Len(t, movements, 2)
				assert.True(t, movements[0].Delta.Equal(decimal.NewFromInt(1)))
				assert.True(t, movements[1].Delta.Equal(decimal.NewFromInt(-1)))
				assert.Equal(t, replacementProduct, movements[1].ProductID)
			}).Return(nil)

		swap, replayed, err := svc.IngestSwap(ctx, cmd)

		require.NoError(t, err)
		assert.False(t, replayed)
		assert.Equal(t, sale.ID, swap.SaleID)
		records.AssertExpectations(t)
	})

	t.Run("swap against unknown sale is rejected", func(t *testing.T) {
		records := new(MockRecordRepository)
		svc := newTestService(records, nil)
		cmd := SwapCommand{
			StoreID:          uuid.New(),
			DeviceID:         uuid.New(),
			IdempotencyKey:   uuid.New(),
			SaleID:           uuid.New(),
			ReturnedLineID:   uuid.New(),
			ReturnedQuantity: decimal.NewFromInt(1),
			Replacement: SaleLineInput{
				LocalLineID: uuid.New(),
				ProductID:   uuid.New(),
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   decimal.NewFromInt(12),
			},
		}

		records.On("FindSaleByID", ctx, cmd.SaleID).Return(nil, shared.ErrNotFound)

		_, _, err := svc.IngestSwap(ctx, cmd)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "UNKNOWN_SALE", domainErr.Code)
	})

	t.Run("duplicate swap key replays the winner", func(t *testing.T) {
		records := new(MockRecordRepository)
		svc := newTestService(records, nil)
		sale := ingestedSaleFixture(saleCommandFixture())
		key := uuid.New()
		winner, _ := pos.NewSwapRecord(sale.StoreID, sale.DeviceID, key, sale.ID,
			sale.Lines[0].ID, sale.Lines[0].ProductID, decimal.NewFromInt(1),
			pos.SaleLineRecord{SaleID: sale.ID, LocalLineID: uuid.New(), ProductID: uuid.New(), Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(12)},
			decimal.NewFromInt(2))
		cmd := SwapCommand{
			StoreID:          sale.StoreID,
			DeviceID:         sale.DeviceID,
			IdempotencyKey:   key,
			SaleID:           sale.ID,
			ReturnedLineID:   sale.Lines[0].ID,
			ReturnedQuantity: decimal.NewFromInt(1),
			Replacement: SaleLineInput{
				LocalLineID: uuid.New(),
				ProductID:   uuid.New(),
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   decimal.NewFromInt(12),
			},
		}

		records.On("FindSaleByID", ctx, sale.ID).Return(sale, nil)
		records.On("CreateSwap", ctx, mock.Anything, mock.Anything).Return(shared.ErrAlreadyExists)
		records.On("FindSwapByKey", ctx, key).Return(winner, nil)

		swap, replayed, err := svc.IngestSwap(ctx, cmd)

		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Equal(t, winner.ID, swap.ID)
	})
}

func TestStats(t *testing.T) {
	records := new(MockRecordRepository)
	svc := newTestService(records, nil)

	records.On("Stats", mock.Anything, mock.Anything).Return(&pos.Stats{
		TotalSales:   12,
		TotalReturns: 3,
		TotalSwaps:   1,
		Last24h:      5,
	}, nil)

	stats, err := svc.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.TotalSales)
	assert.Equal(t, int64(5), stats.Last24h)
}
