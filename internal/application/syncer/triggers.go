package syncer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Trigger names the reason a reconciliation pass was requested. Triggers
// only schedule work; the pass re-reads all state from the durable stores.
type Trigger string

const (
	// TriggerConnectivityRestored fires when the server becomes reachable
	// again after being offline
	TriggerConnectivityRestored Trigger = "connectivity-restored"
	// TriggerInterval fires on the periodic timer
	TriggerInterval Trigger = "interval"
	// TriggerManual fires on operator request or a freshly enqueued operation
	TriggerManual Trigger = "manual"
	// TriggerOperationConfirmed fires when a delivery succeeds, so
	// operations blocked on it get reconsidered promptly
	TriggerOperationConfirmed Trigger = "operation-confirmed"
	// TriggerPassCompleted fires when a pass finished with work left over
	TriggerPassCompleted Trigger = "pass-completed"
)

// TriggerHub collects pass requests from all trigger sources. The channel
// holds at most one pending request; triggers arriving while a pass is
// already scheduled coalesce into it.
type TriggerHub struct {
	ch     chan Trigger
	logger *zap.Logger
}

// NewTriggerHub creates a new TriggerHub
func NewTriggerHub(logger *zap.Logger) *TriggerHub {
	return &TriggerHub{
		ch:     make(chan Trigger, 1),
		logger: logger,
	}
}

// Request schedules a reconciliation pass. Never blocks.
func (h *TriggerHub) Request(t Trigger) {
	select {
	case h.ch <- t:
		h.logger.Debug("sync pass requested", zap.String("trigger", string(t)))
	default:
		// a pass is already scheduled, this trigger rides along
		h.logger.Debug("sync trigger coalesced", zap.String("trigger", string(t)))
	}
}

// C returns the channel the reconciler run loop consumes
func (h *TriggerHub) C() <-chan Trigger {
	return h.ch
}

// Prober checks whether the sync server is reachable
type Prober interface {
	Ping(ctx context.Context) error
}

// ConnectivityWatcher probes the server and requests a pass on the
// offline-to-online transition. It reports state changes only, so a stable
// connection produces no triggers.
type ConnectivityWatcher struct {
	prober   Prober
	hub      *TriggerHub
	interval time.Duration
	logger   *zap.Logger
}

// NewConnectivityWatcher creates a new ConnectivityWatcher
func NewConnectivityWatcher(prober Prober, hub *TriggerHub, interval time.Duration, logger *zap.Logger) *ConnectivityWatcher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &ConnectivityWatcher{
		prober:   prober,
		hub:      hub,
		interval: interval,
		logger:   logger,
	}
}

// Run probes until the context is cancelled. Blocking; run in a goroutine.
func (w *ConnectivityWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	online := w.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			was := online
			online = w.probe(ctx)
			if online && !was {
				w.logger.Info("server connectivity restored")
				w.hub.Request(TriggerConnectivityRestored)
			}
			if !online && was {
				w.logger.Warn("server unreachable, operating offline")
			}
		}
	}
}

func (w *ConnectivityWatcher) probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()
	return w.prober.Ping(probeCtx) == nil
}
