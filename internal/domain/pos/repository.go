package pos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockMovement is one inventory delta caused by ingesting an operation
type StockMovement struct {
	ProductID uuid.UUID
	Delta     decimal.Decimal
}

// Stats holds aggregate ingestion counts for the health endpoint
type Stats struct {
	TotalSales   int64
	TotalReturns int64
	TotalSwaps   int64
	Last24h      int64
}

// RecordRepository persists canonical operation records. Create methods
// apply the record and its stock movements in one transaction and return
// shared.ErrAlreadyExists when the idempotency key is already taken; the
// caller then reads the winner's record and replays it.
type RecordRepository interface {
	CreateSale(ctx context.Context, sale *SaleRecord, movements []StockMovement) error
	FindSaleByKey(ctx context.Context, idempotencyKey uuid.UUID) (*SaleRecord, error)
	FindSaleByID(ctx context.Context, id uuid.UUID) (*SaleRecord, error)

	CreateReturn(ctx context.Context, ret *ReturnRecord, movements []StockMovement) error
	FindReturnByKey(ctx context.Context, idempotencyKey uuid.UUID) (*ReturnRecord, error)

	CreateSwap(ctx context.Context, swap *SwapRecord, movements []StockMovement) error
	FindSwapByKey(ctx context.Context, idempotencyKey uuid.UUID) (*SwapRecord, error)

	// Stats aggregates processed counts; "last 24h" is relative to now
	Stats(ctx context.Context, now time.Time) (*Stats, error)
}
