package worker

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/Cerjho/canteen-orders/internal/application"
	"github.com/Cerjho/canteen-orders/internal/config"
	"github.com/Cerjho/canteen-orders/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fakes embed the port so only the methods the reaper touches need bodies.

type fakeOrders struct {
	application.OrderRepository
	findExpired       func(ctx context.Context, now time.Time, limit int) ([]*domain.Order, error)
	transitionPayment func(ctx context.Context, orderID string, from, to domain.PaymentStatus, newStatus domain.OrderStatus) (bool, error)
}

func (f *fakeOrders) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Order, error) {
	return f.findExpired(ctx, now, limit)
}

func (f *fakeOrders) TransitionPayment(ctx context.Context, orderID string, from, to domain.PaymentStatus, newStatus domain.OrderStatus) (bool, error) {
	return f.transitionPayment(ctx, orderID, from, to, newStatus)
}

type fakeInventory struct {
	application.InventoryStore
	released map[string]int
}

func (f *fakeInventory) ReleaseStock(_ context.Context, productID string, qty int) error {
	f.released[productID] += qty
	return nil
}

type fakeTxns struct {
	application.TransactionRepository
	settled []string
}

func (f *fakeTxns) SettleByOrder(_ context.Context, orderID string, _ domain.TransactionType, to domain.TransactionStatus, _ *string) (bool, error) {
	if to == domain.TxnFailed {
		f.settled = append(f.settled, orderID)
	}
	return true, nil
}

type fakeTopups struct {
	application.TopupRepository
	expiredSessions []*domain.TopupSession
	marked          []string
}

func (f *fakeTopups) FindExpired(_ context.Context, _ time.Time, _ int) ([]*domain.TopupSession, error) {
	return f.expiredSessions, nil
}

func (f *fakeTopups) MarkExpired(_ context.Context, id string) (bool, error) {
	f.marked = append(f.marked, id)
	return true, nil
}

type fakeGateway struct {
	application.GatewayClient
	expired []string
}

func (f *fakeGateway) ExpireCheckoutSession(_ context.Context, sessionID string) error {
	f.expired = append(f.expired, sessionID)
	return nil
}

type fakeNotifier struct {
	cancelled []string
}

func (f *fakeNotifier) OrderPaid(context.Context, *domain.Order) {}

func (f *fakeNotifier) OrderCancelled(_ context.Context, order *domain.Order, _ string) {
	f.cancelled = append(f.cancelled, order.ID)
}

func (f *fakeNotifier) WalletCredited(context.Context, string, int64) {}

type quietWriter struct{}

func (quietWriter) Write(p []byte) (int, error) { return len(p), nil }

func reaperLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(quietWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func expiredOrder(id string, dueAt time.Time) *domain.Order {
	sessionID := "cs_" + id
	return &domain.Order{
		ID:                id,
		Status:            domain.OrderAwaitingPayment,
		PaymentStatus:     domain.PaymentAwaiting,
		PaymentMethod:     domain.MethodGCash,
		PaymentDueAt:      &dueAt,
		CheckoutSessionID: &sessionID,
		Items: []domain.OrderItem{
			{OrderID: id, ProductID: "prod-a", Quantity: 2, PriceAtOrder: 6500},
		},
	}
}

func TestReaperRunOnce(t *testing.T) {
	cfg := config.ReaperConfig{Interval: time.Minute, BatchSize: 50}
	now := time.Date(2026, 3, 2, 9, 31, 0, 0, time.UTC)

	t.Run("cancels expired orders and releases everything", func(t *testing.T) {
		createdAt := now.Add(-31 * time.Minute)
		order := expiredOrder("order-1", createdAt.Add(30*time.Minute))

		orders := &fakeOrders{
			findExpired: func(_ context.Context, scanNow time.Time, limit int) ([]*domain.Order, error) {
				assert.Equal(t, now, scanNow)
				assert.Equal(t, 50, limit)
				return []*domain.Order{order}, nil
			},
			transitionPayment: func(_ context.Context, orderID string, from, to domain.PaymentStatus, newStatus domain.OrderStatus) (bool, error) {
				assert.Equal(t, domain.PaymentAwaiting, from)
				assert.Equal(t, domain.PaymentTimeout, to)
				assert.Equal(t, domain.OrderCancelled, newStatus)
				return true, nil
			},
		}
		inventory := &fakeInventory{released: map[string]int{}}
		txns := &fakeTxns{}
		topups := &fakeTopups{}
		gateway := &fakeGateway{}
		notifier := &fakeNotifier{}

		r := NewReaper(orders, inventory, txns, topups, gateway, notifier, cfg, reaperLogger())
		r.now = func() time.Time { return now }
		r.RunOnce(context.Background())

		assert.Equal(t, map[string]int{"prod-a": 2}, inventory.released)
		assert.Equal(t, []string{"order-1"}, txns.settled)
		assert.Equal(t, []string{"cs_order-1"}, gateway.expired)
		assert.Equal(t, []string{"order-1"}, notifier.cancelled)
	})

	t.Run("order due exactly now is included in the scan window", func(t *testing.T) {
		// The repository query owns the inclusive boundary; the reaper must
		// pass the sweep time through unmodified.
		var scanTime time.Time
		orders := &fakeOrders{
			findExpired: func(_ context.Context, scanNow time.Time, _ int) ([]*domain.Order, error) {
				scanTime = scanNow
				return nil, nil
			},
		}
		r := NewReaper(orders, &fakeInventory{released: map[string]int{}}, &fakeTxns{}, &fakeTopups{}, &fakeGateway{}, &fakeNotifier{}, cfg, reaperLogger())
		r.now = func() time.Time { return now }
		r.RunOnce(context.Background())

		require.Equal(t, now, scanTime)
	})

	t.Run("lost race leaves the order alone", func(t *testing.T) {
		order := expiredOrder("order-1", now.Add(-time.Minute))
		orders := &fakeOrders{
			findExpired: func(_ context.Context, _ time.Time, _ int) ([]*domain.Order, error) {
				return []*domain.Order{order}, nil
			},
			transitionPayment: func(_ context.Context, _ string, _, _ domain.PaymentStatus, _ domain.OrderStatus) (bool, error) {
				// A webhook confirmed the payment between scan and write.
				return false, nil
			},
		}
		inventory := &fakeInventory{released: map[string]int{}}
		txns := &fakeTxns{}
		gateway := &fakeGateway{}
		notifier := &fakeNotifier{}

		r := NewReaper(orders, inventory, txns, &fakeTopups{}, gateway, notifier, cfg, reaperLogger())
		r.now = func() time.Time { return now }
		r.RunOnce(context.Background())

		assert.Empty(t, inventory.released)
		assert.Empty(t, txns.settled)
		assert.Empty(t, gateway.expired)
		assert.Empty(t, notifier.cancelled)
	})

	t.Run("expires pending topup sessions", func(t *testing.T) {
		orders := &fakeOrders{
			findExpired: func(_ context.Context, _ time.Time, _ int) ([]*domain.Order, error) {
				return nil, nil
			},
		}
		topups := &fakeTopups{
			expiredSessions: []*domain.TopupSession{
				{ID: "topup-1", Status: domain.TopupPending},
				{ID: "topup-2", Status: domain.TopupPending},
			},
		}

		r := NewReaper(orders, &fakeInventory{released: map[string]int{}}, &fakeTxns{}, topups, &fakeGateway{}, &fakeNotifier{}, cfg, reaperLogger())
		r.now = func() time.Time { return now }
		r.RunOnce(context.Background())

		assert.Equal(t, []string{"topup-1", "topup-2"}, topups.marked)
	})
}
