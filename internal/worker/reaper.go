// Package worker hosts the background sweeps that run alongside the HTTP
// server.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/Cerjho/canteen-orders/internal/application"
	"github.com/Cerjho/canteen-orders/internal/config"
	"github.com/Cerjho/canteen-orders/internal/domain"
)

// Reaper cancels orders whose payment deadline passed and expires stale
// top-up sessions. Every cancellation races the webhook reconciler on the
// same payment_status compare-and-swap, so exactly one of them settles each
// order and the sweep is safe to run concurrently with itself.
type Reaper struct {
	orders    application.OrderRepository
	inventory application.InventoryStore
	txns      application.TransactionRepository
	topups    application.TopupRepository
	gateway   application.GatewayClient
	notifier  application.Notifier
	cfg       config.ReaperConfig
	logger    *slog.Logger

	now func() time.Time
}

func NewReaper(
	orders application.OrderRepository,
	inventory application.InventoryStore,
	txns application.TransactionRepository,
	topups application.TopupRepository,
	gateway application.GatewayClient,
	notifier application.Notifier,
	cfg config.ReaperConfig,
	logger *slog.Logger,
) *Reaper {
	return &Reaper{
		orders:    orders,
		inventory: inventory,
		txns:      txns,
		topups:    topups,
		gateway:   gateway,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Start runs the sweep on a ticker until the context is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info("timeout reaper started",
		"interval", r.cfg.Interval,
		"batch_size", r.cfg.BatchSize,
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("timeout reaper stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep over expired orders and top-ups.
func (r *Reaper) RunOnce(ctx context.Context) {
	now := r.now()
	r.reapOrders(ctx, now)
	r.reapTopups(ctx, now)
}

func (r *Reaper) reapOrders(ctx context.Context, now time.Time) {
	expired, err := r.orders.FindExpired(ctx, now, r.cfg.BatchSize)
	if err != nil {
		r.logger.Error("expired order scan failed", "error", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	var reaped int
	for _, order := range expired {
		if r.reapOrder(ctx, order) {
			reaped++
		}
	}
	r.logger.Info("expired orders reaped",
		"scanned", len(expired),
		"reaped", reaped,
	)
}

// reapOrder cancels one expired order. Losing the compare-and-swap means a
// webhook confirmed or failed the payment between the scan and this write;
// nothing further to do.
func (r *Reaper) reapOrder(ctx context.Context, order *domain.Order) bool {
	won, err := r.orders.TransitionPayment(ctx, order.ID, domain.PaymentAwaiting, domain.PaymentTimeout, domain.OrderCancelled)
	if err != nil {
		r.logger.Error("timeout cancellation write failed", "order_id", order.ID, "error", err)
		return false
	}
	if !won {
		r.logger.Info("order settled before timeout sweep", "order_id", order.ID)
		return false
	}

	for _, it := range order.Items {
		if err := r.inventory.ReleaseStock(ctx, it.ProductID, it.Quantity); err != nil {
			r.logger.Error("failed to release stock for timed-out order",
				"order_id", order.ID,
				"product_id", it.ProductID,
				"quantity", it.Quantity,
				"error", err,
			)
		}
	}
	if _, err := r.txns.SettleByOrder(ctx, order.ID, domain.TxnPayment, domain.TxnFailed, nil); err != nil {
		r.logger.Error("failed to fail payment transaction for timed-out order", "order_id", order.ID, "error", err)
	}

	if order.CheckoutSessionID != nil {
		if err := r.gateway.ExpireCheckoutSession(ctx, *order.CheckoutSessionID); err != nil {
			r.logger.Warn("failed to expire gateway session for timed-out order",
				"order_id", order.ID,
				"checkout_session_id", *order.CheckoutSessionID,
				"error", err,
			)
		}
	}

	order.Status = domain.OrderCancelled
	order.PaymentStatus = domain.PaymentTimeout
	r.notifier.OrderCancelled(ctx, order, "payment window expired")
	r.logger.Info("order cancelled by timeout",
		"order_id", order.ID,
		"payment_due_at", order.PaymentDueAt,
	)
	return true
}

func (r *Reaper) reapTopups(ctx context.Context, now time.Time) {
	expired, err := r.topups.FindExpired(ctx, now, r.cfg.BatchSize)
	if err != nil {
		r.logger.Error("expired topup scan failed", "error", err)
		return
	}
	for _, topup := range expired {
		won, err := r.topups.MarkExpired(ctx, topup.ID)
		if err != nil {
			r.logger.Error("topup expiry write failed", "topup_id", topup.ID, "error", err)
			continue
		}
		if won {
			r.logger.Info("topup session expired", "topup_id", topup.ID)
		}
	}
}
