package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Cerjho/canteen-orders/internal/application"
	"github.com/Cerjho/canteen-orders/internal/domain"
)

// TransitionService guards staff-driven order status changes. Payment-driven
// transitions never pass through here: awaiting_payment -> pending is
// reachable only from the reconciler.
type TransitionService struct {
	orders    application.OrderRepository
	inventory application.InventoryStore
	txns      application.TransactionRepository
	notifier  application.Notifier
	logger    *slog.Logger

	now func() time.Time
}

func NewTransitionService(
	orders application.OrderRepository,
	inventory application.InventoryStore,
	txns application.TransactionRepository,
	notifier application.Notifier,
	logger *slog.Logger,
) *TransitionService {
	return &TransitionService{
		orders:    orders,
		inventory: inventory,
		txns:      txns,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// UpdateStatus applies one staff transition. An order found past its payment
// deadline is expired in place (lazy expiry) and the request rejected with
// the expiry error rather than the transition outcome.
func (s *TransitionService) UpdateStatus(ctx context.Context, orderID string, target domain.OrderStatus) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, application.NewNotFoundError("order")
		}
		return nil, application.NewInternalError(err)
	}

	if order.PaymentExpired(s.now()) {
		s.expireInPlace(ctx, order)
		return nil, application.NewPaymentExpiredError()
	}

	if err := order.CanTransitionTo(target); err != nil {
		return nil, application.NewInvalidTransitionError(err)
	}

	var won bool
	if target == domain.OrderCancelled && order.PaymentStatus == domain.PaymentAwaiting {
		// Cancelling an awaiting order must also close payment_status, or
		// the reaper would later win its own compare-and-swap and release
		// the stock a second time.
		won, err = s.orders.TransitionPayment(ctx, order.ID, domain.PaymentAwaiting, domain.PaymentFailed, domain.OrderCancelled)
		if err == nil && won {
			order.PaymentStatus = domain.PaymentFailed
		}
	} else {
		won, err = s.orders.UpdateStatusFrom(ctx, order.ID, order.Status, target)
	}
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if !won {
		// Lost to a concurrent writer; report against the fresh state.
		current, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return nil, application.NewInternalError(err)
		}
		return nil, application.NewInvalidTransitionError(&domain.InvalidTransitionError{
			From:    current.Status,
			To:      target,
			Allowed: domain.StaffTransitions(current.Status),
		})
	}

	prior := order.Status
	order.Status = target
	if target == domain.OrderCancelled {
		s.releaseCancelled(ctx, order, prior)
		s.notifier.OrderCancelled(ctx, order, "cancelled by staff")
	}

	s.logger.Info("order status updated",
		"order_id", order.ID,
		"from", prior,
		"to", target,
	)
	return order, nil
}

// BulkUpdateStatus moves every order whose current status permits the
// target, silently skipping the rest, and reports how many moved.
// Cancellation is excluded: it has stock and payment side effects that need
// the single-order path.
func (s *TransitionService) BulkUpdateStatus(ctx context.Context, orderIDs []string, target domain.OrderStatus) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, application.NewValidationError("at least one order ID is required")
	}
	if target == domain.OrderCancelled {
		return 0, application.NewValidationError("orders must be cancelled individually")
	}

	var validFrom []domain.OrderStatus
	for _, from := range []domain.OrderStatus{
		domain.OrderAwaitingPayment,
		domain.OrderPending,
		domain.OrderPreparing,
		domain.OrderReady,
	} {
		for _, to := range domain.StaffTransitions(from) {
			if to == target {
				validFrom = append(validFrom, from)
			}
		}
	}
	if len(validFrom) == 0 {
		return 0, application.NewInvalidTransitionError(&domain.InvalidTransitionError{To: target})
	}

	affected, err := s.orders.BulkUpdateStatus(ctx, orderIDs, validFrom, target)
	if err != nil {
		return 0, application.NewInternalError(err)
	}
	s.logger.Info("bulk status update applied",
		"target", target,
		"requested", len(orderIDs),
		"affected", affected,
	)
	return affected, nil
}

// expireInPlace force-cancels an order whose deadline passed before the
// reaper got to it. The compare-and-swap keeps this safe against a
// concurrent reaper sweep or webhook.
func (s *TransitionService) expireInPlace(ctx context.Context, order *domain.Order) {
	won, err := s.orders.TransitionPayment(ctx, order.ID, domain.PaymentAwaiting, domain.PaymentTimeout, domain.OrderCancelled)
	if err != nil {
		s.logger.Error("lazy expiry write failed", "order_id", order.ID, "error", err)
		return
	}
	if !won {
		return
	}
	for _, it := range order.Items {
		if err := s.inventory.ReleaseStock(ctx, it.ProductID, it.Quantity); err != nil {
			s.logger.Error("failed to release stock on lazy expiry",
				"order_id", order.ID,
				"product_id", it.ProductID,
				"error", err,
			)
		}
	}
	if _, err := s.txns.SettleByOrder(ctx, order.ID, domain.TxnPayment, domain.TxnFailed, nil); err != nil {
		s.logger.Error("failed to fail payment transaction on lazy expiry", "order_id", order.ID, "error", err)
	}
	order.Status = domain.OrderCancelled
	order.PaymentStatus = domain.PaymentTimeout
	s.notifier.OrderCancelled(ctx, order, "payment window expired")
	s.logger.Info("order expired during staff transition", "order_id", order.ID)
}

// releaseCancelled returns a cancelled order's reservation and closes its
// pending payment record. Paid orders keep their settled transaction; money
// movement for those goes through the refund flow.
func (s *TransitionService) releaseCancelled(ctx context.Context, order *domain.Order, prior domain.OrderStatus) {
	if order.PaymentStatus == domain.PaymentPaid || order.PaymentStatus == domain.PaymentRefunded {
		s.logger.Warn("paid order cancelled without refund",
			"order_id", order.ID,
			"prior_status", prior,
		)
		return
	}
	for _, it := range order.Items {
		if err := s.inventory.ReleaseStock(ctx, it.ProductID, it.Quantity); err != nil {
			s.logger.Error("failed to release stock on cancellation",
				"order_id", order.ID,
				"product_id", it.ProductID,
				"error", err,
			)
		}
	}
	if _, err := s.txns.SettleByOrder(ctx, order.ID, domain.TxnPayment, domain.TxnFailed, nil); err != nil {
		s.logger.Error("failed to close payment transaction on cancellation", "order_id", order.ID, "error", err)
	}
}
