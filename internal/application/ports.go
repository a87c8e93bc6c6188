package application

import (
	"context"
	"time"

	"github.com/Cerjho/canteen-orders/internal/domain"
)

// GatewayClient is the port for the hosted-checkout payment provider.
type GatewayClient interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
	CreateRefund(ctx context.Context, req GatewayRefundRequest) (*GatewayRefund, error)
}

// OrderRepository is the port for order persistence. Every mutation that can
// race reports whether it won via its boolean result; zero rows affected
// means the caller lost the compare-and-swap.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	FindByClientOrderID(ctx context.Context, parentID, clientOrderID string) (*domain.Order, error)
	FindByCheckoutSession(ctx context.Context, sessionID string) ([]*domain.Order, error)
	FindByPaymentGroup(ctx context.Context, groupID string) ([]*domain.Order, error)
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Order, error)
	SetCheckoutSession(ctx context.Context, orderID, sessionID string, dueAt time.Time) error
	SetGatewayPaymentID(ctx context.Context, orderID, paymentID string) error
	TransitionPayment(ctx context.Context, orderID string, fromPayment, toPayment domain.PaymentStatus, newStatus domain.OrderStatus) (bool, error)
	UpdateStatusFrom(ctx context.Context, orderID string, from, to domain.OrderStatus) (bool, error)
	BulkUpdateStatus(ctx context.Context, orderIDs []string, validFrom []domain.OrderStatus, to domain.OrderStatus) (int64, error)
	MarkRefunded(ctx context.Context, orderID string) (bool, error)
	Delete(ctx context.Context, orderID string) error
}

// InventoryStore is the port for product lookups and stock mutation. The
// catalog owns the rows; this layer only reads them and applies conditional
// stock updates.
type InventoryStore interface {
	GetProducts(ctx context.Context, productIDs []string) (map[string]*domain.Product, error)
	// ReserveStock conditionally decrements stock by qty, guarded on
	// stock_quantity >= qty. It returns the pre-decrement value so callers
	// can record an exact-value undo, and ok=false when the guard failed.
	ReserveStock(ctx context.Context, productID string, qty int) (prior int, ok bool, err error)
	// SetStock restores an exact value. Used only by checkout rollback.
	SetStock(ctx context.Context, productID string, value int) error
	// ReleaseStock increments stock by qty. Used by cancellation paths.
	ReleaseStock(ctx context.Context, productID string, qty int) error
}

// WalletRepository is the port for stored balances.
type WalletRepository interface {
	FindOrCreate(ctx context.Context, userID string) (*domain.WalletAccount, error)
	// CompareAndSetBalance writes newBalance only if the stored balance still
	// equals oldBalance.
	CompareAndSetBalance(ctx context.Context, userID string, oldBalance, newBalance int64) (bool, error)
}

// TransactionRepository is the port for money-movement records.
type TransactionRepository interface {
	Create(ctx context.Context, txn *domain.Transaction) error
	// SettleByOrder flips the order's pending transaction of the given type
	// to the target status, returning false if no pending row matched.
	SettleByOrder(ctx context.Context, orderID string, typ domain.TransactionType, to domain.TransactionStatus, gatewayPaymentID *string) (bool, error)
	FindPendingRefundByGatewayPaymentID(ctx context.Context, paymentID string) (*domain.Transaction, error)
	MarkStatus(ctx context.Context, id string, from, to domain.TransactionStatus) (bool, error)
	DeleteByOrder(ctx context.Context, orderID string) error
}

// TopupRepository is the port for wallet top-up sessions.
type TopupRepository interface {
	Create(ctx context.Context, session *domain.TopupSession) error
	FindByID(ctx context.Context, id string) (*domain.TopupSession, error)
	FindByCheckoutSession(ctx context.Context, sessionID string) (*domain.TopupSession, error)
	SetCheckoutSession(ctx context.Context, id, sessionID string) error
	MarkPaid(ctx context.Context, id, gatewayPaymentID string, completedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id string) (bool, error)
	MarkExpired(ctx context.Context, id string) (bool, error)
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.TopupSession, error)
}

// CalendarClient validates that a date is orderable (operating days, cutoff
// time, holidays, max-future-days). Owned by the calendar collaborator.
type CalendarClient interface {
	ValidateOrderDate(ctx context.Context, scheduledFor time.Time) error
}

// DirectoryClient answers guardian-student link checks. Owned by the
// directory collaborator.
type DirectoryClient interface {
	IsGuardianOf(ctx context.Context, parentID, studentID string) (bool, error)
}

// Notifier delivers user-facing notifications. Delivery is out of scope;
// implementations must never fail the calling operation.
type Notifier interface {
	OrderPaid(ctx context.Context, order *domain.Order)
	OrderCancelled(ctx context.Context, order *domain.Order, reason string)
	WalletCredited(ctx context.Context, parentID string, amount int64)
}
