package services

import (
	"context"
	"time"

	"github.com/Cerjho/canteen-orders/internal/application"
	"github.com/Cerjho/canteen-orders/internal/domain"
)

// Function-field mocks: tests set only the calls they expect, everything
// else fails loudly through the zero behavior.

type mockOrderRepo struct {
	CreateFn                func(ctx context.Context, order *domain.Order) error
	FindByIDFn              func(ctx context.Context, id string) (*domain.Order, error)
	FindByClientOrderIDFn   func(ctx context.Context, parentID, clientOrderID string) (*domain.Order, error)
	FindByCheckoutSessionFn func(ctx context.Context, sessionID string) ([]*domain.Order, error)
	FindByPaymentGroupFn    func(ctx context.Context, groupID string) ([]*domain.Order, error)
	FindExpiredFn           func(ctx context.Context, now time.Time, limit int) ([]*domain.Order, error)
	SetCheckoutSessionFn    func(ctx context.Context, orderID, sessionID string, dueAt time.Time) error
	SetGatewayPaymentIDFn   func(ctx context.Context, orderID, paymentID string) error
	TransitionPaymentFn     func(ctx context.Context, orderID string, fromPayment, toPayment domain.PaymentStatus, newStatus domain.OrderStatus) (bool, error)
	UpdateStatusFromFn      func(ctx context.Context, orderID string, from, to domain.OrderStatus) (bool, error)
	BulkUpdateStatusFn      func(ctx context.Context, orderIDs []string, validFrom []domain.OrderStatus, to domain.OrderStatus) (int64, error)
	MarkRefundedFn          func(ctx context.Context, orderID string) (bool, error)
	DeleteFn                func(ctx context.Context, orderID string) error
}

func (m *mockOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	return m.CreateFn(ctx, order)
}

func (m *mockOrderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return m.FindByIDFn(ctx, id)
}

func (m *mockOrderRepo) FindByClientOrderID(ctx context.Context, parentID, clientOrderID string) (*domain.Order, error) {
	return m.FindByClientOrderIDFn(ctx, parentID, clientOrderID)
}

func (m *mockOrderRepo) FindByCheckoutSession(ctx context.Context, sessionID string) ([]*domain.Order, error) {
	return m.FindByCheckoutSessionFn(ctx, sessionID)
}

func (m *mockOrderRepo) FindByPaymentGroup(ctx context.Context, groupID string) ([]*domain.Order, error) {
	return m.FindByPaymentGroupFn(ctx, groupID)
}

func (m *mockOrderRepo) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Order, error) {
	return m.FindExpiredFn(ctx, now, limit)
}

func (m *mockOrderRepo) SetCheckoutSession(ctx context.Context, orderID, sessionID string, dueAt time.Time) error {
	return m.SetCheckoutSessionFn(ctx, orderID, sessionID, dueAt)
}

func (m *mockOrderRepo) SetGatewayPaymentID(ctx context.Context, orderID, paymentID string) error {
	return m.SetGatewayPaymentIDFn(ctx, orderID, paymentID)
}

func (m *mockOrderRepo) TransitionPayment(ctx context.Context, orderID string, fromPayment, toPayment domain.PaymentStatus, newStatus domain.OrderStatus) (bool, error) {
	return m.TransitionPaymentFn(ctx, orderID, fromPayment, toPayment, newStatus)
}

func (m *mockOrderRepo) UpdateStatusFrom(ctx context.Context, orderID string, from, to domain.OrderStatus) (bool, error) {
	return m.UpdateStatusFromFn(ctx, orderID, from, to)
}

func (m *mockOrderRepo) BulkUpdateStatus(ctx context.Context, orderIDs []string, validFrom []domain.OrderStatus, to domain.OrderStatus) (int64, error) {
	return m.BulkUpdateStatusFn(ctx, orderIDs, validFrom, to)
}

func (m *mockOrderRepo) MarkRefunded(ctx context.Context, orderID string) (bool, error) {
	return m.MarkRefundedFn(ctx, orderID)
}

func (m *mockOrderRepo) Delete(ctx context.Context, orderID string) error {
	return m.DeleteFn(ctx, orderID)
}

type mockInventory struct {
	GetProductsFn  func(ctx context.Context, productIDs []string) (map[string]*domain.Product, error)
	ReserveStockFn func(ctx context.Context, productID string, qty int) (int, bool, error)
	SetStockFn     func(ctx context.Context, productID string, value int) error
	ReleaseStockFn func(ctx context.Context, productID string, qty int) error
}

func (m *mockInventory) GetProducts(ctx context.Context, productIDs []string) (map[string]*domain.Product, error) {
	return m.GetProductsFn(ctx, productIDs)
}

func (m *mockInventory) ReserveStock(ctx context.Context, productID string, qty int) (int, bool, error) {
	return m.ReserveStockFn(ctx, productID, qty)
}

func (m *mockInventory) SetStock(ctx context.Context, productID string, value int) error {
	return m.SetStockFn(ctx, productID, value)
}

func (m *mockInventory) ReleaseStock(ctx context.Context, productID string, qty int) error {
	return m.ReleaseStockFn(ctx, productID, qty)
}

type mockWalletRepo struct {
	FindOrCreateFn         func(ctx context.Context, userID string) (*domain.WalletAccount, error)
	CompareAndSetBalanceFn func(ctx context.Context, userID string, oldBalance, newBalance int64) (bool, error)
}

func (m *mockWalletRepo) FindOrCreate(ctx context.Context, userID string) (*domain.WalletAccount, error) {
	return m.FindOrCreateFn(ctx, userID)
}

func (m *mockWalletRepo) CompareAndSetBalance(ctx context.Context, userID string, oldBalance, newBalance int64) (bool, error) {
	return m.CompareAndSetBalanceFn(ctx, userID, oldBalance, newBalance)
}

type mockTxnRepo struct {
	CreateFn                             func(ctx context.Context, txn *domain.Transaction) error
	SettleByOrderFn                      func(ctx context.Context, orderID string, typ domain.TransactionType, to domain.TransactionStatus, gatewayPaymentID *string) (bool, error)
	FindPendingRefundByGatewayPaymentFn  func(ctx context.Context, paymentID string) (*domain.Transaction, error)
	MarkStatusFn                         func(ctx context.Context, id string, from, to domain.TransactionStatus) (bool, error)
	DeleteByOrderFn                      func(ctx context.Context, orderID string) error
}

func (m *mockTxnRepo) Create(ctx context.Context, txn *domain.Transaction) error {
	return m.CreateFn(ctx, txn)
}

func (m *mockTxnRepo) SettleByOrder(ctx context.Context, orderID string, typ domain.TransactionType, to domain.TransactionStatus, gatewayPaymentID *string) (bool, error) {
	return m.SettleByOrderFn(ctx, orderID, typ, to, gatewayPaymentID)
}

func (m *mockTxnRepo) FindPendingRefundByGatewayPaymentID(ctx context.Context, paymentID string) (*domain.Transaction, error) {
	return m.FindPendingRefundByGatewayPaymentFn(ctx, paymentID)
}

func (m *mockTxnRepo) MarkStatus(ctx context.Context, id string, from, to domain.TransactionStatus) (bool, error) {
	return m.MarkStatusFn(ctx, id, from, to)
}

func (m *mockTxnRepo) DeleteByOrder(ctx context.Context, orderID string) error {
	return m.DeleteByOrderFn(ctx, orderID)
}

type mockTopupRepo struct {
	CreateFn                func(ctx context.Context, session *domain.TopupSession) error
	FindByIDFn              func(ctx context.Context, id string) (*domain.TopupSession, error)
	FindByCheckoutSessionFn func(ctx context.Context, sessionID string) (*domain.TopupSession, error)
	SetCheckoutSessionFn    func(ctx context.Context, id, sessionID string) error
	MarkPaidFn              func(ctx context.Context, id, gatewayPaymentID string, completedAt time.Time) (bool, error)
	MarkFailedFn            func(ctx context.Context, id string) (bool, error)
	MarkExpiredFn           func(ctx context.Context, id string) (bool, error)
	FindExpiredFn           func(ctx context.Context, now time.Time, limit int) ([]*domain.TopupSession, error)
}

func (m *mockTopupRepo) Create(ctx context.Context, session *domain.TopupSession) error {
	return m.CreateFn(ctx, session)
}

func (m *mockTopupRepo) FindByID(ctx context.Context, id string) (*domain.TopupSession, error) {
	return m.FindByIDFn(ctx, id)
}

func (m *mockTopupRepo) FindByCheckoutSession(ctx context.Context, sessionID string) (*domain.TopupSession, error) {
	return m.FindByCheckoutSessionFn(ctx, sessionID)
}

func (m *mockTopupRepo) SetCheckoutSession(ctx context.Context, id, sessionID string) error {
	return m.SetCheckoutSessionFn(ctx, id, sessionID)
}

func (m *mockTopupRepo) MarkPaid(ctx context.Context, id, gatewayPaymentID string, completedAt time.Time) (bool, error) {
	return m.MarkPaidFn(ctx, id, gatewayPaymentID, completedAt)
}

func (m *mockTopupRepo) MarkFailed(ctx context.Context, id string) (bool, error) {
	return m.MarkFailedFn(ctx, id)
}

func (m *mockTopupRepo) MarkExpired(ctx context.Context, id string) (bool, error) {
	return m.MarkExpiredFn(ctx, id)
}

func (m *mockTopupRepo) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.TopupSession, error) {
	return m.FindExpiredFn(ctx, now, limit)
}

type mockGateway struct {
	CreateCheckoutSessionFn func(ctx context.Context, req application.CheckoutSessionRequest) (*application.CheckoutSession, error)
	GetCheckoutSessionFn    func(ctx context.Context, sessionID string) (*application.CheckoutSession, error)
	ExpireCheckoutSessionFn func(ctx context.Context, sessionID string) error
	CreateRefundFn          func(ctx context.Context, req application.GatewayRefundRequest) (*application.GatewayRefund, error)
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, req application.CheckoutSessionRequest) (*application.CheckoutSession, error) {
	return m.CreateCheckoutSessionFn(ctx, req)
}

func (m *mockGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*application.CheckoutSession, error) {
	return m.GetCheckoutSessionFn(ctx, sessionID)
}

func (m *mockGateway) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	return m.ExpireCheckoutSessionFn(ctx, sessionID)
}

func (m *mockGateway) CreateRefund(ctx context.Context, req application.GatewayRefundRequest) (*application.GatewayRefund, error) {
	return m.CreateRefundFn(ctx, req)
}

type mockCalendar struct {
	ValidateOrderDateFn func(ctx context.Context, scheduledFor time.Time) error
}

func (m *mockCalendar) ValidateOrderDate(ctx context.Context, scheduledFor time.Time) error {
	if m.ValidateOrderDateFn == nil {
		return nil
	}
	return m.ValidateOrderDateFn(ctx, scheduledFor)
}

type mockDirectory struct {
	IsGuardianOfFn func(ctx context.Context, parentID, studentID string) (bool, error)
}

func (m *mockDirectory) IsGuardianOf(ctx context.Context, parentID, studentID string) (bool, error) {
	if m.IsGuardianOfFn == nil {
		return true, nil
	}
	return m.IsGuardianOfFn(ctx, parentID, studentID)
}

type mockNotifier struct {
	paid      []string
	cancelled []string
	credited  []int64
}

func (m *mockNotifier) OrderPaid(_ context.Context, order *domain.Order) {
	m.paid = append(m.paid, order.ID)
}

func (m *mockNotifier) OrderCancelled(_ context.Context, order *domain.Order, _ string) {
	m.cancelled = append(m.cancelled, order.ID)
}

func (m *mockNotifier) WalletCredited(_ context.Context, _ string, amount int64) {
	m.credited = append(m.credited, amount)
}
