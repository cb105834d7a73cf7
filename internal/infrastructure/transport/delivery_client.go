package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/possync/backend/internal/domain/shared"
	"github.com/possync/backend/internal/domain/sync"
)

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 4 * 1024 * 1024

// Outcome classifies how the server answered a delivery
type Outcome string

const (
	// OutcomeConfirmed means the server accepted a first-time delivery
	OutcomeConfirmed Outcome = "CONFIRMED"
	// OutcomeReplayed means the server had already processed this key and
	// returned the canonical result again
	OutcomeReplayed Outcome = "REPLAYED"
	// OutcomeRejected means the server refused the operation permanently
	OutcomeRejected Outcome = "REJECTED"
)

// SaleResult is the canonical server identity of an ingested sale
type SaleResult struct {
	ServerID    uuid.UUID
	LocalSaleID uuid.UUID
	// Lines maps local line identities to their server counterparts
	Lines map[uuid.UUID]uuid.UUID
}

// DeliveryResult is the classified response to one delivery attempt.
// Transient failures (network errors, 5xx) are reported as errors instead
// so the caller schedules a retry.
type DeliveryResult struct {
	Outcome Outcome
	// Sale is set for sale deliveries
	Sale *SaleResult
	// RecordID is the server identity for return and swap deliveries
	RecordID uuid.UUID
	// Message carries the server's reason on rejection
	Message string
}

// ClientConfig configures the delivery client
type ClientConfig struct {
	BaseURL  string
	StoreID  uuid.UUID
	DeviceID uuid.UUID
	Timeout  time.Duration
}

// DeliveryClient speaks the sync ingestion API. Every delivery carries the
// operation's identity in the Idempotency-Key header, so resending after an
// ambiguous failure is always safe.
type DeliveryClient struct {
	baseURL    string
	storeID    uuid.UUID
	deviceID   uuid.UUID
	httpClient *http.Client
}

// NewDeliveryClient creates a new DeliveryClient
func NewDeliveryClient(cfg ClientConfig) (*DeliveryClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("delivery client: base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &DeliveryClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		storeID:  cfg.StoreID,
		deviceID: cfg.DeviceID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// DeliverSale sends a sale to the ingestion endpoint
func (c *DeliveryClient) DeliverSale(ctx context.Context, key uuid.UUID, payload sync.SalePayload) (*DeliveryResult, error) {
	lines := make([]SaleLineRequest, 0, len(payload.Lines))
	for _, line := range payload.Lines {
		lines = append(lines, SaleLineRequest{
			LocalLineID: line.LocalLineID,
			ProductID:   line.ProductID,
			ProductCode: line.ProductCode,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Amount:      line.Amount,
		})
	}
	body := SaleRequest{
		LocalSaleID:   payload.LocalSaleID,
		Lines:         lines,
		PaymentMethod: payload.PaymentMethod,
		Total:         payload.Total,
		Currency:      payload.Currency,
	}

	data, status, err := c.post(ctx, "/api/v1/sync/sales", key, body)
	if err != nil {
		return nil, err
	}
	return c.saleResult(data, status)
}

// DeliverReturn sends a return to the ingestion endpoint. The request must
// already reference server identities for the sale and its lines.
func (c *DeliveryClient) DeliverReturn(ctx context.Context, key uuid.UUID, body ReturnRequest) (*DeliveryResult, error) {
	data, status, err := c.post(ctx, "/api/v1/sync/returns", key, body)
	if err != nil {
		return nil, err
	}
	return c.recordResult(data, status)
}

// DeliverSwap sends a swap to the ingestion endpoint
func (c *DeliveryClient) DeliverSwap(ctx context.Context, key uuid.UUID, body SwapRequest) (*DeliveryResult, error) {
	data, status, err := c.post(ctx, "/api/v1/sync/swaps", key, body)
	if err != nil {
		return nil, err
	}
	return c.recordResult(data, status)
}

// LookupSale fetches the canonical record for an idempotency key, used to
// recover server identities when the local cache is missing them.
// Returns shared.ErrNotFound when the server has never seen the key.
func (c *DeliveryClient) LookupSale(ctx context.Context, key uuid.UUID) (*SaleResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/sync/sales/key/"+key.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("delivery client: failed to create request: %w", err)
	}
	c.setHeaders(req, uuid.Nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("delivery client: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, shared.ErrNotFound
	}
	env, err := c.readEnvelope(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("delivery client: lookup failed with status %d", resp.StatusCode)
	}

	var sale SaleResponse
	if err := json.Unmarshal(env.Data, &sale); err != nil {
		return nil, fmt.Errorf("delivery client: failed to parse sale: %w", err)
	}
	return toSaleResult(sale), nil
}

// Ping probes the server's health endpoint. A nil return means the server
// is reachable and its database is up.
func (c *DeliveryClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("delivery client: failed to create request: %w", err)
	}
	c.setHeaders(req, uuid.Nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delivery client: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delivery client: health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *DeliveryClient) post(ctx context.Context, path string, key uuid.UUID, body any) (*envelope, int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("delivery client: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, 0, fmt.Errorf("delivery client: failed to create request: %w", err)
	}
	c.setHeaders(req, key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("delivery client: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, 0, fmt.Errorf("delivery client: server returned status %d", resp.StatusCode)
	}

	env, err := c.readEnvelope(resp)
	if err != nil {
		return nil, 0, err
	}
	return env, resp.StatusCode, nil
}

func (c *DeliveryClient) setHeaders(req *http.Request, key uuid.UUID) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Store-ID", c.storeID.String())
	req.Header.Set("X-Device-ID", c.deviceID.String())
	if key != uuid.Nil {
		req.Header.Set("Idempotency-Key", key.String())
	}
}

func (c *DeliveryClient) readEnvelope(resp *http.Response) (*envelope, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("delivery client: failed to read response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("delivery client: failed to parse response: %w", err)
	}
	return &env, nil
}

func (c *DeliveryClient) saleResult(env *envelope, status int) (*DeliveryResult, error) {
	switch {
	case status == http.StatusCreated || status == http.StatusOK || status == http.StatusConflict:
		var sale SaleResponse
		if err := json.Unmarshal(env.Data, &sale); err != nil {
			return nil, fmt.Errorf("delivery client: failed to parse sale result: %w", err)
		}
		outcome := OutcomeConfirmed
		if status == http.StatusConflict {
			outcome = OutcomeReplayed
		}
		return &DeliveryResult{Outcome: outcome, Sale: toSaleResult(sale)}, nil
	default:
		return rejected(env, status), nil
	}
}

func (c *DeliveryClient) recordResult(env *envelope, status int) (*DeliveryResult, error) {
	switch {
	case status == http.StatusCreated || status == http.StatusOK || status == http.StatusConflict:
		var record RecordResponse
		if err := json.Unmarshal(env.Data, &record); err != nil {
			return nil, fmt.Errorf("delivery client: failed to parse record result: %w", err)
		}
		outcome := OutcomeConfirmed
		if status == http.StatusConflict {
			outcome = OutcomeReplayed
		}
		return &DeliveryResult{Outcome: outcome, RecordID: record.ID}, nil
	default:
		return rejected(env, status), nil
	}
}

func rejected(env *envelope, status int) *DeliveryResult {
	message := fmt.Sprintf("server returned status %d", status)
	if env.Error != nil {
		message = env.Error.Code + ": " + env.Error.Message
	}
	return &DeliveryResult{Outcome: OutcomeRejected, Message: message}
}

func toSaleResult(sale SaleResponse) *SaleResult {
	lines := make(map[uuid.UUID]uuid.UUID, len(sale.Lines))
	for _, line := range sale.Lines {
		lines[line.LocalLineID] = line.ID
	}
	return &SaleResult{
		ServerID:    sale.ID,
		LocalSaleID: sale.LocalSaleID,
		Lines:       lines,
	}
}
