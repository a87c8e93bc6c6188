package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Cerjho/canteen-orders/internal/application"
	"github.com/Cerjho/canteen-orders/internal/config"
	"github.com/Cerjho/canteen-orders/internal/domain"
	"github.com/google/uuid"
)

// Gateway event types this reconciler acts on. Anything else is ignored.
const (
	EventCheckoutPaid    = "checkout_session.payment.paid"
	EventPaymentPaid     = "payment.paid"
	EventPaymentFailed   = "payment.failed"
	EventPaymentRefunded = "payment.refunded"
)

// WebhookEvent is a gateway event after signature verification, reduced to
// what reconciliation needs.
type WebhookEvent struct {
	ID                string
	Type              string
	CheckoutSessionID string
	PaymentID         string
	Metadata          map[string]string
}

// Outcome tells the HTTP layer what to answer. OutcomeUnresolved still maps
// to 200: the gateway retries non-2xx forever, and a permanently
// unresolvable event must not cause a retry storm.
type Outcome string

const (
	OutcomeProcessed  Outcome = "processed"
	OutcomeIgnored    Outcome = "ignored"
	OutcomeUnresolved Outcome = "unresolved"
)

// ReconcileService advances order and top-up state from asynchronous gateway
// events. Delivery is at-least-once and unordered, so every state-advancing
// step is a test-and-set against the persisted state.
type ReconcileService struct {
	orders    application.OrderRepository
	inventory application.InventoryStore
	wallets   application.WalletRepository
	txns      application.TransactionRepository
	topups    application.TopupRepository
	gateway   application.GatewayClient
	notifier  application.Notifier
	cfg       config.CheckoutConfig
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

func NewReconcileService(
	orders application.OrderRepository,
	inventory application.InventoryStore,
	wallets application.WalletRepository,
	txns application.TransactionRepository,
	topups application.TopupRepository,
	gateway application.GatewayClient,
	notifier application.Notifier,
	cfg config.CheckoutConfig,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		orders:    orders,
		inventory: inventory,
		wallets:   wallets,
		txns:      txns,
		topups:    topups,
		gateway:   gateway,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// ProcessEvent routes a verified gateway event. A returned error means the
// HTTP layer should answer 500 so the gateway retries; every other path
// answers 200.
func (s *ReconcileService) ProcessEvent(ctx context.Context, ev WebhookEvent) (Outcome, error) {
	switch ev.Type {
	case EventCheckoutPaid, EventPaymentPaid:
		return s.handlePaid(ctx, ev)
	case EventPaymentFailed:
		return s.handleFailed(ctx, ev)
	case EventPaymentRefunded:
		return s.handleRefunded(ctx, ev)
	default:
		s.logger.Debug("ignoring webhook event", "event_id", ev.ID, "event_type", ev.Type)
		return OutcomeIgnored, nil
	}
}

func (s *ReconcileService) handlePaid(ctx context.Context, ev WebhookEvent) (Outcome, error) {
	target, err := s.resolve(ctx, ev)
	if err != nil {
		return OutcomeUnresolved, err
	}
	if target == nil {
		s.logUnresolved(ev)
		return OutcomeUnresolved, nil
	}

	if target.topup != nil {
		if err := s.creditTopup(ctx, target.topup, ev.PaymentID); err != nil {
			return OutcomeProcessed, err
		}
		return OutcomeProcessed, nil
	}

	for _, order := range target.orders {
		s.confirmOrderPaid(ctx, order, ev.PaymentID)
	}
	return OutcomeProcessed, nil
}

func (s *ReconcileService) handleFailed(ctx context.Context, ev WebhookEvent) (Outcome, error) {
	target, err := s.resolve(ctx, ev)
	if err != nil {
		return OutcomeUnresolved, err
	}
	if target == nil {
		s.logUnresolved(ev)
		return OutcomeUnresolved, nil
	}

	if target.topup != nil {
		if won, err := s.topups.MarkFailed(ctx, target.topup.ID); err != nil {
			return OutcomeProcessed, err
		} else if won {
			s.logger.Info("topup marked failed from gateway event", "topup_id", target.topup.ID)
		}
		return OutcomeProcessed, nil
	}

	for _, order := range target.orders {
		s.cancelFailedOrder(ctx, order)
	}
	return OutcomeProcessed, nil
}

func (s *ReconcileService) handleRefunded(ctx context.Context, ev WebhookEvent) (Outcome, error) {
	if ev.PaymentID == "" {
		s.logUnresolved(ev)
		return OutcomeUnresolved, nil
	}
	txn, err := s.txns.FindPendingRefundByGatewayPaymentID(ctx, ev.PaymentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Refund already settled or issued outside this system.
			s.logger.Info("no pending refund for gateway event",
				"event_id", ev.ID,
				"gateway_payment_id", ev.PaymentID,
			)
			return OutcomeProcessed, nil
		}
		return OutcomeUnresolved, err
	}
	won, err := s.txns.MarkStatus(ctx, txn.ID, domain.TxnPending, domain.TxnCompleted)
	if err != nil {
		return OutcomeProcessed, err
	}
	if won {
		s.logger.Info("refund confirmed by gateway", "transaction_id", txn.ID)
	}
	return OutcomeProcessed, nil
}

// PollOrderStatus answers a guardian's status poll, first reconciling
// in-line against the gateway when the webhook has not arrived yet.
func (s *ReconcileService) PollOrderStatus(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, application.NewNotFoundError("order")
		}
		return nil, application.NewInternalError(err)
	}

	if order.HasLiveCheckoutSession(s.now()) {
		session, err := s.gateway.GetCheckoutSession(ctx, *order.CheckoutSessionID)
		if err != nil {
			// The stored snapshot still answers the poll.
			s.logger.Warn("gateway poll failed, returning stored status",
				"order_id", order.ID,
				"error", err,
			)
			return order, nil
		}
		if session.Paid {
			siblings := []*domain.Order{order}
			if order.PaymentGroupID != nil {
				if sibs, err := s.orders.FindByPaymentGroup(ctx, *order.PaymentGroupID); err == nil {
					siblings = sibs
				}
			}
			for _, o := range siblings {
				s.confirmOrderPaid(ctx, o, session.PaymentID)
			}
			if refreshed, err := s.orders.FindByID(ctx, orderID); err == nil {
				return refreshed, nil
			}
		}
	}
	return order, nil
}

// PollTopupStatus is the top-up variant of the self-healing poll.
func (s *ReconcileService) PollTopupStatus(ctx context.Context, topupID string) (*domain.TopupSession, error) {
	topup, err := s.topups.FindByID(ctx, topupID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, application.NewNotFoundError("topup session")
		}
		return nil, application.NewInternalError(err)
	}

	if topup.Status == domain.TopupPending && topup.CheckoutSessionID != nil {
		session, err := s.gateway.GetCheckoutSession(ctx, *topup.CheckoutSessionID)
		if err != nil {
			s.logger.Warn("gateway poll failed, returning stored status",
				"topup_id", topup.ID,
				"error", err,
			)
			return topup, nil
		}
		if session.Paid {
			if err := s.creditTopup(ctx, topup, session.PaymentID); err != nil {
				s.logger.Error("in-line topup reconciliation failed", "topup_id", topup.ID, "error", err)
			}
			if refreshed, err := s.topups.FindByID(ctx, topupID); err == nil {
				return refreshed, nil
			}
		}
	}
	return topup, nil
}

// reconcileTarget is the record an event resolved to: either a top-up or a
// set of orders (siblings of one payment group, or a single order).
type reconcileTarget struct {
	orders []*domain.Order
	topup  *domain.TopupSession
}

// resolve maps an event to local records through the fallback chain:
// embedded metadata, then a gateway session fetch to recover metadata, then
// a reverse lookup by session reference. nil with nil error means
// permanently unresolvable.
func (s *ReconcileService) resolve(ctx context.Context, ev WebhookEvent) (*reconcileTarget, error) {
	md := ev.Metadata
	if len(md) == 0 && ev.CheckoutSessionID != "" {
		session, err := s.gateway.GetCheckoutSession(ctx, ev.CheckoutSessionID)
		if err != nil {
			s.logger.Warn("metadata recovery fetch failed",
				"event_id", ev.ID,
				"checkout_session_id", ev.CheckoutSessionID,
				"error", err,
			)
		} else {
			md = session.Metadata
		}
	}

	if topupID := md["topup_id"]; topupID != "" {
		topup, err := s.topups.FindByID(ctx, topupID)
		if err == nil {
			return &reconcileTarget{topup: topup}, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if groupID := md["payment_group_id"]; groupID != "" {
		orders, err := s.orders.FindByPaymentGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		if len(orders) > 0 {
			return &reconcileTarget{orders: orders}, nil
		}
	}
	if orderID := md["order_id"]; orderID != "" {
		order, err := s.orders.FindByID(ctx, orderID)
		if err == nil {
			return &reconcileTarget{orders: []*domain.Order{order}}, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	if ev.CheckoutSessionID != "" {
		orders, err := s.orders.FindByCheckoutSession(ctx, ev.CheckoutSessionID)
		if err != nil {
			return nil, err
		}
		if len(orders) > 0 {
			return &reconcileTarget{orders: orders}, nil
		}
		topup, err := s.topups.FindByCheckoutSession(ctx, ev.CheckoutSessionID)
		if err == nil {
			return &reconcileTarget{topup: topup}, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// confirmOrderPaid is the single confirmation step both the webhook path and
// the poll path go through. The payment_status compare-and-swap makes it
// idempotent under duplicate delivery and safe against the timeout reaper.
func (s *ReconcileService) confirmOrderPaid(ctx context.Context, order *domain.Order, paymentID string) {
	won, err := s.orders.TransitionPayment(ctx, order.ID, domain.PaymentAwaiting, domain.PaymentPaid, domain.OrderPending)
	if err != nil {
		s.logger.Error("payment confirmation write failed", "order_id", order.ID, "error", err)
		return
	}
	if !won {
		// Already confirmed, or the reaper got there first.
		current, err := s.orders.FindByID(ctx, order.ID)
		if err != nil {
			s.logger.Warn("payment confirmation skipped, reread failed", "order_id", order.ID, "error", err)
			return
		}
		if current.PaymentStatus == domain.PaymentTimeout {
			s.logger.Warn("payment received after timeout window",
				"order_id", order.ID,
				"payment_status", current.PaymentStatus,
			)
		} else {
			s.logger.Info("payment confirmation skipped, already settled",
				"order_id", order.ID,
				"payment_status", current.PaymentStatus,
			)
		}
		return
	}

	if paymentID != "" {
		if err := s.orders.SetGatewayPaymentID(ctx, order.ID, paymentID); err != nil {
			s.logger.Error("failed to record gateway payment id", "order_id", order.ID, "error", err)
		}
	}
	var ref *string
	if paymentID != "" {
		ref = &paymentID
	}
	if _, err := s.txns.SettleByOrder(ctx, order.ID, domain.TxnPayment, domain.TxnCompleted, ref); err != nil {
		s.logger.Error("failed to settle payment transaction", "order_id", order.ID, "error", err)
	}

	order.Status = domain.OrderPending
	order.PaymentStatus = domain.PaymentPaid
	s.notifier.OrderPaid(ctx, order)
	s.logger.Info("order payment confirmed",
		"order_id", order.ID,
		"gateway_payment_id", paymentID,
	)
}

func (s *ReconcileService) cancelFailedOrder(ctx context.Context, order *domain.Order) {
	won, err := s.orders.TransitionPayment(ctx, order.ID, domain.PaymentAwaiting, domain.PaymentFailed, domain.OrderCancelled)
	if err != nil {
		s.logger.Error("payment failure write failed", "order_id", order.ID, "error", err)
		return
	}
	if !won {
		s.logger.Info("payment failure skipped, order already settled", "order_id", order.ID)
		return
	}

	for _, it := range order.Items {
		if err := s.inventory.ReleaseStock(ctx, it.ProductID, it.Quantity); err != nil {
			s.logger.Error("failed to release stock for failed payment",
				"order_id", order.ID,
				"product_id", it.ProductID,
				"error", err,
			)
		}
	}
	if _, err := s.txns.SettleByOrder(ctx, order.ID, domain.TxnPayment, domain.TxnFailed, nil); err != nil {
		s.logger.Error("failed to fail payment transaction", "order_id", order.ID, "error", err)
	}

	order.Status = domain.OrderCancelled
	order.PaymentStatus = domain.PaymentFailed
	s.notifier.OrderCancelled(ctx, order, "payment failed")
	s.logger.Info("order cancelled after failed payment", "order_id", order.ID)
}

// creditTopup settles a paid top-up. The MarkPaid compare-and-swap is the
// idempotency gate: only the winner credits the wallet, so duplicate
// deliveries cannot double-credit. A credit that loses every retry
// downgrades the session to failed and leaves a diagnostic transaction;
// money was received and must not be silently lost.
func (s *ReconcileService) creditTopup(ctx context.Context, topup *domain.TopupSession, paymentID string) error {
	won, err := s.topups.MarkPaid(ctx, topup.ID, paymentID, s.now())
	if err != nil {
		return err
	}
	if !won {
		s.logger.Info("topup already settled", "topup_id", topup.ID, "status", topup.Status)
		return nil
	}

	credited := false
	attempts := s.cfg.WalletMaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		wallet, err := s.wallets.FindOrCreate(ctx, topup.ParentID)
		if err != nil {
			s.logger.Error("wallet read failed during topup credit", "topup_id", topup.ID, "error", err)
			break
		}
		newBalance, err := wallet.CreditedBalance(topup.Amount)
		if err != nil {
			s.logger.Error("invalid topup credit", "topup_id", topup.ID, "error", err)
			break
		}
		ok, err := s.wallets.CompareAndSetBalance(ctx, topup.ParentID, wallet.Balance, newBalance)
		if err != nil {
			s.logger.Error("wallet credit write failed", "topup_id", topup.ID, "error", err)
			break
		}
		if ok {
			credited = true
			break
		}
		s.logger.Warn("wallet credit lost balance race, retrying",
			"topup_id", topup.ID,
			"attempt", attempt+1,
		)
	}

	if !credited {
		if _, err := s.topups.MarkFailed(ctx, topup.ID); err != nil {
			s.logger.Error("failed to downgrade uncredited topup", "topup_id", topup.ID, "error", err)
		}
		s.recordTopupDiagnostic(ctx, topup, paymentID)
		s.logger.Error("topup payment received but wallet credit failed, manual review required",
			"topup_id", topup.ID,
			"parent_id", topup.ParentID,
			"amount", topup.Amount,
		)
		return nil
	}

	s.recordTopupCompleted(ctx, topup, paymentID)
	s.notifier.WalletCredited(ctx, topup.ParentID, topup.Amount)
	s.logger.Info("wallet credited from topup",
		"topup_id", topup.ID,
		"parent_id", topup.ParentID,
		"amount", topup.Amount,
	)
	return nil
}

func (s *ReconcileService) recordTopupCompleted(ctx context.Context, topup *domain.TopupSession, paymentID string) {
	txn, err := domain.NewTransaction(s.newID(), topup.ParentID, nil, domain.TxnTopup, topup.Amount, domain.MethodOnline)
	if err != nil {
		s.logger.Error("failed to build topup transaction", "topup_id", topup.ID, "error", err)
		return
	}
	txn.Status = domain.TxnCompleted
	if paymentID != "" {
		txn.GatewayPaymentID = &paymentID
	}
	if err := s.txns.Create(ctx, txn); err != nil {
		s.logger.Error("failed to record topup transaction", "topup_id", topup.ID, "error", err)
	}
}

func (s *ReconcileService) recordTopupDiagnostic(ctx context.Context, topup *domain.TopupSession, paymentID string) {
	txn, err := domain.NewTransaction(s.newID(), topup.ParentID, nil, domain.TxnTopup, topup.Amount, domain.MethodOnline)
	if err != nil {
		s.logger.Error("failed to build diagnostic transaction", "topup_id", topup.ID, "error", err)
		return
	}
	txn.Status = domain.TxnFailed
	note := "payment captured but wallet credit failed; manual review required"
	txn.Note = &note
	if paymentID != "" {
		txn.GatewayPaymentID = &paymentID
	}
	if err := s.txns.Create(ctx, txn); err != nil {
		s.logger.Error("failed to record diagnostic transaction", "topup_id", topup.ID, "error", err)
	}
}

func (s *ReconcileService) logUnresolved(ev WebhookEvent) {
	// Deliberately a 200 for the caller, but loud here: an unresolvable
	// event usually means a metadata or integration bug.
	s.logger.Error("webhook event could not be resolved to any record",
		"event_id", ev.ID,
		"event_type", ev.Type,
		"checkout_session_id", ev.CheckoutSessionID,
		"gateway_payment_id", ev.PaymentID,
		"outcome", OutcomeUnresolved,
	)
}
