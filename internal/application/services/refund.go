package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Cerjho/canteen-orders/internal/application"
	"github.com/Cerjho/canteen-orders/internal/domain"
	"github.com/google/uuid"
)

type RefundResult struct {
	OrderID         string
	RefundedAmount  int64
	RefundReference *string
	Estimate        *string
}

// RefundService reverses a settled order: restores inventory, cancels the
// order under an optimistic guard, and returns the money by whichever path
// it arrived.
type RefundService struct {
	orders    application.OrderRepository
	inventory application.InventoryStore
	wallets   application.WalletRepository
	txns      application.TransactionRepository
	gateway   application.GatewayClient
	notifier  application.Notifier
	logger    *slog.Logger

	newID func() string
}

func NewRefundService(
	orders application.OrderRepository,
	inventory application.InventoryStore,
	wallets application.WalletRepository,
	txns application.TransactionRepository,
	gateway application.GatewayClient,
	notifier application.Notifier,
	logger *slog.Logger,
) *RefundService {
	return &RefundService{
		orders:    orders,
		inventory: inventory,
		wallets:   wallets,
		txns:      txns,
		gateway:   gateway,
		notifier:  notifier,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Refund cancels and reverses one order. The MarkRefunded compare-and-swap
// runs before any side effect so concurrent refund requests cannot restore
// stock twice; the loser gets ALREADY_REFUNDED.
func (s *RefundService) Refund(ctx context.Context, orderID, reason string) (*RefundResult, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, application.NewNotFoundError("order")
		}
		return nil, application.NewInternalError(err)
	}
	if order.Status == domain.OrderCancelled {
		return nil, application.NewAlreadyRefundedError()
	}

	won, err := s.orders.MarkRefunded(ctx, order.ID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if !won {
		return nil, application.NewAlreadyRefundedError()
	}
	order.Status = domain.OrderCancelled
	order.PaymentStatus = domain.PaymentRefunded

	// Best effort: a failed restore is logged for manual correction, never
	// a reason to abort a refund that is already committed.
	for _, it := range order.Items {
		if err := s.inventory.ReleaseStock(ctx, it.ProductID, it.Quantity); err != nil {
			s.logger.Error("failed to restore stock during refund",
				"order_id", order.ID,
				"product_id", it.ProductID,
				"quantity", it.Quantity,
				"error", err,
			)
		}
	}

	result := &RefundResult{OrderID: order.ID, RefundedAmount: order.TotalAmount}

	switch {
	case order.PaymentMethod.IsOnline() && order.GatewayPaymentID != nil:
		s.refundOnline(ctx, order, reason, result)
	case order.PaymentMethod == domain.MethodWallet:
		s.refundWallet(ctx, order, reason, result)
	default:
		// Cash settles at the counter; the record is for the audit trail.
		s.recordRefund(ctx, order, reason, domain.TxnCompleted, nil)
		estimate := "refund available at the canteen counter"
		result.Estimate = &estimate
	}

	s.notifier.OrderCancelled(ctx, order, reason)
	s.logger.Info("order refunded",
		"order_id", order.ID,
		"amount", order.TotalAmount,
		"method", order.PaymentMethod,
	)
	return result, nil
}

// refundOnline asks the gateway to return the captured payment. A gateway
// failure does not undo the local refund: the transaction stays pending for
// manual follow-up and the caller gets a turnaround estimate instead of a
// reference.
func (s *RefundService) refundOnline(ctx context.Context, order *domain.Order, reason string, result *RefundResult) {
	refund, err := s.gateway.CreateRefund(ctx, application.GatewayRefundRequest{
		PaymentID: *order.GatewayPaymentID,
		Amount:    order.TotalAmount,
		Reason:    reason,
	})
	if err != nil {
		s.logger.Error("gateway refund failed, recording pending refund",
			"order_id", order.ID,
			"gateway_payment_id", *order.GatewayPaymentID,
			"error", err,
		)
		s.recordRefund(ctx, order, reason, domain.TxnPending, nil)
		estimate := refundEstimate(order.PaymentMethod)
		result.Estimate = &estimate
		return
	}

	txn := s.recordRefund(ctx, order, reason, domain.TxnCompleted, &refund.ID)
	if txn != nil {
		result.RefundReference = &refund.ID
	}
	estimate := refundEstimate(order.PaymentMethod)
	result.Estimate = &estimate
}

// refundWallet re-credits the guardian's balance with one retry against a
// freshly read balance.
func (s *RefundService) refundWallet(ctx context.Context, order *domain.Order, reason string, result *RefundResult) {
	credited := false
	for attempt := 0; attempt < 2; attempt++ {
		wallet, err := s.wallets.FindOrCreate(ctx, order.ParentID)
		if err != nil {
			s.logger.Error("wallet read failed during refund", "order_id", order.ID, "error", err)
			break
		}
		newBalance, err := wallet.CreditedBalance(order.TotalAmount)
		if err != nil {
			s.logger.Error("invalid wallet refund", "order_id", order.ID, "error", err)
			break
		}
		ok, err := s.wallets.CompareAndSetBalance(ctx, order.ParentID, wallet.Balance, newBalance)
		if err != nil {
			s.logger.Error("wallet refund write failed", "order_id", order.ID, "error", err)
			break
		}
		if ok {
			credited = true
			break
		}
		s.logger.Warn("wallet refund lost balance race, retrying", "order_id", order.ID)
	}

	if !credited {
		s.logger.Error("wallet refund could not be credited, manual review required",
			"order_id", order.ID,
			"parent_id", order.ParentID,
			"amount", order.TotalAmount,
		)
		s.recordRefund(ctx, order, reason, domain.TxnPending, nil)
		estimate := "wallet credit pending manual review"
		result.Estimate = &estimate
		return
	}
	s.recordRefund(ctx, order, reason, domain.TxnCompleted, nil)
	estimate := "credited back to wallet immediately"
	result.Estimate = &estimate
}

func (s *RefundService) recordRefund(ctx context.Context, order *domain.Order, reason string, status domain.TransactionStatus, gatewayRefundID *string) *domain.Transaction {
	txn, err := domain.NewTransaction(s.newID(), order.ParentID, &order.ID, domain.TxnRefund, order.TotalAmount, order.PaymentMethod)
	if err != nil {
		s.logger.Error("failed to build refund transaction", "order_id", order.ID, "error", err)
		return nil
	}
	txn.Status = status
	txn.GatewayPaymentID = order.GatewayPaymentID
	txn.GatewayRefundID = gatewayRefundID
	if reason != "" {
		txn.Note = &reason
	}
	if err := s.txns.Create(ctx, txn); err != nil {
		s.logger.Error("failed to record refund transaction", "order_id", order.ID, "error", err)
		return nil
	}
	return txn
}

// refundEstimate is the user-facing turnaround by payment rail.
func refundEstimate(method domain.PaymentMethod) string {
	switch method {
	case domain.MethodGCash, domain.MethodMaya:
		return "expect the refund in your e-wallet within 1-3 business days"
	case domain.MethodCard:
		return "expect the refund on your card statement within 5-10 business days"
	default:
		return "expect the refund within 5 business days"
	}
}
