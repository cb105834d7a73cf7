package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/domain/pos"
	"github.com/possync/backend/internal/domain/shared"
)

// SaleLineInput is one sold line of an incoming sale
type SaleLineInput struct {
	LocalLineID uuid.UUID
	ProductID   uuid.UUID
	ProductCode string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// SaleCommand carries one sale delivery from a device
type SaleCommand struct {
	StoreID        uuid.UUID
	DeviceID       uuid.UUID
	IdempotencyKey uuid.UUID
	LocalSaleID    uuid.UUID
	Lines          []SaleLineInput
	PaymentMethod  string
	Total          decimal.Decimal
	Currency       string
}

// ReturnLineInput references a server-side sale line being returned
type ReturnLineInput struct {
	SaleLineID uuid.UUID
	Quantity   decimal.Decimal
}

// ReturnCommand carries one return delivery from a device
type ReturnCommand struct {
	StoreID        uuid.UUID
	DeviceID       uuid.UUID
	IdempotencyKey uuid.UUID
	SaleID         uuid.UUID
	Lines          []ReturnLineInput
	Reason         string
	Amount         decimal.Decimal
}

// SwapCommand carries one swap delivery from a device
type SwapCommand struct {
	StoreID          uuid.UUID
	DeviceID         uuid.UUID
	IdempotencyKey   uuid.UUID
	SaleID           uuid.UUID
	ReturnedLineID   uuid.UUID
	ReturnedQuantity decimal.Decimal
	Replacement      SaleLineInput
	PriceDifference  decimal.Decimal
}

// Service ingests device operations exactly once per idempotency key. The
// database uniqueness constraint is the source of truth; the idempotency
// store in front of it only short-circuits obvious replays.
type Service struct {
	records     pos.RecordRepository
	idempotency shared.IdempotencyStore
	idemConfig  shared.IdempotencyConfig
	logger      *zap.Logger
}

// NewService creates a new ingestion Service
func NewService(
	records pos.RecordRepository,
	idempotency shared.IdempotencyStore,
	idemConfig shared.IdempotencyConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		records:     records,
		idempotency: idempotency,
		idemConfig:  idemConfig,
		logger:      logger,
	}
}

// IngestSale records a sale. The bool result reports a replay: the key was
// already processed and the returned record is the original winner's.
func (s *Service) IngestSale(ctx context.Context, cmd SaleCommand) (*pos.SaleRecord, bool, error) {
	if len(cmd.Lines) == 0 {
		return nil, false, shared.NewDomainError("INVALID_SALE", "Sale must have at least one line")
	}

	if s.seenBefore(ctx, cmd.IdempotencyKey) {
		if existing, err := s.records.FindSaleByKey(ctx, cmd.IdempotencyKey); err == nil {
			return existing, true, nil
		}
		// fast path lied, fall through to the constraint
	}

	sale, err := pos.NewSaleRecord(cmd.StoreID, cmd.DeviceID, cmd.IdempotencyKey, cmd.LocalSaleID,
		cmd.PaymentMethod, cmd.Currency, cmd.Total)
	if err != nil {
		return nil, false, err
	}
	for _, line := range cmd.Lines {
		if err := sale.AddLine(line.LocalLineID, line.ProductID, line.ProductCode, line.Quantity, line.UnitPrice); err != nil {
			return nil, false, err
		}
	}

	if err := s.records.CreateSale(ctx, sale, sale.StockMovements()); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return s.replaySale(ctx, cmd.IdempotencyKey)
		}
		return nil, false, err
	}

	s.markProcessed(ctx, cmd.IdempotencyKey)
	s.logger.Info("sale ingested",
		zap.String("sale_id", sale.ID.String()),
		zap.String("idempotency_key", cmd.IdempotencyKey.String()),
		zap.String("device_id", cmd.DeviceID.String()),
		zap.Int("lines", len(sale.Lines)))
	return sale, false, nil
}

// IngestReturn records a return against an already ingested sale
func (s *Service) IngestReturn(ctx context.Context, cmd ReturnCommand) (*pos.ReturnRecord, bool, error) {
	if len(cmd.Lines) == 0 {
		return nil, false, shared.NewDomainError("INVALID_RETURN", "Return must have at least one line")
	}

	if s.seenBefore(ctx, cmd.IdempotencyKey) {
		if existing, err := s.records.FindReturnByKey(ctx, cmd.IdempotencyKey); err == nil {
			return existing, true, nil
		}
	}

	sale, err := s.records.FindSaleByID(ctx, cmd.SaleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, false, shared.NewDomainError("UNKNOWN_SALE", "Return references a sale this server has never seen")
		}
		return nil, false, err
	}

	ret, err := pos.NewReturnRecord(cmd.StoreID, cmd.DeviceID, cmd.IdempotencyKey, sale.ID, cmd.Reason, cmd.Amount)
	if err != nil {
		return nil, false, err
	}
	for _, line := range cmd.Lines {
		saleLine := saleLineByID(sale, line.SaleLineID)
		if saleLine == nil {
			return nil, false, shared.NewDomainError("UNKNOWN_SALE_LINE", "Return references a line that is not part of the sale")
		}
		if line.Quantity.GreaterThan(saleLine.Quantity) {
			return nil, false, shared.NewDomainError("INVALID_QUANTITY", "Cannot return more than was sold")
		}
		if err := ret.AddLine(saleLine.ID, saleLine.ProductID, line.Quantity); err != nil {
			return nil, false, err
		}
	}

	if err := s.records.CreateReturn(ctx, ret, ret.StockMovements()); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return s.replayReturn(ctx, cmd.IdempotencyKey)
		}
		return nil, false, err
	}

	s.markProcessed(ctx, cmd.IdempotencyKey)
	s.logger.Info("return ingested",
		zap.String("return_id", ret.ID.String()),
		zap.String("sale_id", sale.ID.String()),
		zap.String("idempotency_key", cmd.IdempotencyKey.String()))
	return ret, false, nil
}

// IngestSwap records a swap against an already ingested sale
func (s *Service) IngestSwap(ctx context.Context, cmd SwapCommand) (*pos.SwapRecord, bool, error) {
	if s.seenBefore(ctx, cmd.IdempotencyKey) {
		if existing, err := s.records.FindSwapByKey(ctx, cmd.IdempotencyKey); err == nil {
			return existing, true, nil
		}
	}

	sale, err := s.records.FindSaleByID(ctx, cmd.SaleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, false, shared.NewDomainError("UNKNOWN_SALE", "Swap references a sale this server has never seen")
		}
		return nil, false, err
	}

	returnedLine := saleLineByID(sale, cmd.ReturnedLineID)
	if returnedLine == nil {
		return nil, false, shared.NewDomainError("UNKNOWN_SALE_LINE", "Swap references a line that is not part of the sale")
	}
	if cmd.ReturnedQuantity.GreaterThan(returnedLine.Quantity) {
		return nil, false, shared.NewDomainError("INVALID_QUANTITY", "Cannot swap more than was sold")
	}

	replacement := pos.SaleLineRecord{
		SaleID:      sale.ID,
		LocalLineID: cmd.Replacement.LocalLineID,
		ProductID:   cmd.Replacement.ProductID,
		ProductCode: cmd.Replacement.ProductCode,
		Quantity:    cmd.Replacement.Quantity,
		UnitPrice:   cmd.Replacement.UnitPrice,
		Amount:      cmd.Replacement.Amount,
	}
	swap, err := pos.NewSwapRecord(cmd.StoreID, cmd.DeviceID, cmd.IdempotencyKey, sale.ID,
		returnedLine.ID, returnedLine.ProductID, cmd.ReturnedQuantity, replacement, cmd.PriceDifference)
	if err != nil {
		return nil, false, err
	}

	if err := s.records.CreateSwap(ctx, swap, swap.StockMovements()); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return s.replaySwap(ctx, cmd.IdempotencyKey)
		}
		return nil, false, err
	}

	s.markProcessed(ctx, cmd.IdempotencyKey)
	s.logger.Info("swap ingested",
		zap.String("swap_id", swap.ID.String()),
		zap.String("sale_id", sale.ID.String()),
		zap.String("idempotency_key", cmd.IdempotencyKey.String()))
	return swap, false, nil
}

// FindSaleByKey returns the canonical sale for an idempotency key
func (s *Service) FindSaleByKey(ctx context.Context, key uuid.UUID) (*pos.SaleRecord, error) {
	return s.records.FindSaleByKey(ctx, key)
}

// Stats aggregates ingestion counters for the stats endpoint
func (s *Service) Stats(ctx context.Context) (*pos.Stats, error) {
	return s.records.Stats(ctx, time.Now())
}

// replaySale re-reads the winner's record after losing the uniqueness race
func (s *Service) replaySale(ctx context.Context, key uuid.UUID) (*pos.SaleRecord, bool, error) {
	winner, err := s.records.FindSaleByKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	s.logger.Info("duplicate sale delivery replayed",
		zap.String("sale_id", winner.ID.String()),
		zap.String("idempotency_key", key.String()))
	return winner, true, nil
}

func (s *Service) replayReturn(ctx context.Context, key uuid.UUID) (*pos.ReturnRecord, bool, error) {
	winner, err := s.records.FindReturnByKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return winner, true, nil
}

func (s *Service) replaySwap(ctx context.Context, key uuid.UUID) (*pos.SwapRecord, bool, error) {
	winner, err := s.records.FindSwapByKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return winner, true, nil
}

// seenBefore consults the advisory fast path. Errors are tolerated; the
// database constraint still decides.
func (s *Service) seenBefore(ctx context.Context, key uuid.UUID) bool {
	if !s.idemConfig.Enabled || s.idempotency == nil {
		return false
	}
	seen, err := s.idempotency.IsProcessed(ctx, key.String())
	if err != nil {
		s.logger.Warn("idempotency fast path unavailable", zap.Error(err))
		return false
	}
	return seen
}

func (s *Service) markProcessed(ctx context.Context, key uuid.UUID) {
	if !s.idemConfig.Enabled || s.idempotency == nil {
		return
	}
	if _, err := s.idempotency.MarkProcessed(ctx, key.String(), s.idemConfig.TTL); err != nil {
		s.logger.Warn("failed to mark idempotency key", zap.Error(err))
	}
}

func saleLineByID(sale *pos.SaleRecord, lineID uuid.UUID) *pos.SaleLineRecord {
	for i := range sale.Lines {
		if sale.Lines[i].ID == lineID {
			return &sale.Lines[i]
		}
	}
	return nil
}
