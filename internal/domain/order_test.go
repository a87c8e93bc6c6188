package domain_test

import (
	"testing"
	"time"

	"github.com/Cerjho/canteen-orders/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems() []domain.OrderItem {
	return []domain.OrderItem{
		{ProductID: "prod-a", Quantity: 2, PriceAtOrder: 6500},
		{ProductID: "prod-b", Quantity: 1, PriceAtOrder: 2500},
	}
}

func TestNewOrder(t *testing.T) {
	scheduled := time.Now().Add(24 * time.Hour)

	t.Run("creates online order awaiting payment", func(t *testing.T) {
		order, err := domain.NewOrder("ord-1", "parent-1", "student-1", "client-1", domain.MethodGCash, testItems(), scheduled)

		require.NoError(t, err)
		assert.Equal(t, domain.OrderAwaitingPayment, order.Status)
		assert.Equal(t, domain.PaymentAwaiting, order.PaymentStatus)
		assert.Equal(t, int64(15500), order.TotalAmount)
		assert.Equal(t, "ord-1", order.Items[0].OrderID)
	})

	t.Run("creates wallet order pending", func(t *testing.T) {
		order, err := domain.NewOrder("ord-2", "parent-1", "student-1", "client-2", domain.MethodWallet, testItems(), scheduled)

		require.NoError(t, err)
		assert.Equal(t, domain.OrderPending, order.Status)
		assert.Equal(t, domain.PaymentUnpaid, order.PaymentStatus)
	})

	t.Run("total is sum of snapshot prices", func(t *testing.T) {
		items := []domain.OrderItem{{ProductID: "p", Quantity: 3, PriceAtOrder: 1000}}
		order, err := domain.NewOrder("ord-3", "parent-1", "student-1", "client-3", domain.MethodCash, items, scheduled)

		require.NoError(t, err)
		assert.Equal(t, int64(3000), order.TotalAmount)
	})

	t.Run("rejects empty client order ID", func(t *testing.T) {
		_, err := domain.NewOrder("ord-4", "parent-1", "student-1", "", domain.MethodCash, testItems(), scheduled)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "client order ID is required")
	})

	t.Run("rejects zero quantity", func(t *testing.T) {
		items := []domain.OrderItem{{ProductID: "p", Quantity: 0, PriceAtOrder: 1000}}
		_, err := domain.NewOrder("ord-5", "parent-1", "student-1", "client-5", domain.MethodCash, items, scheduled)

		assert.Error(t, err)
	})

	t.Run("rejects empty item list", func(t *testing.T) {
		_, err := domain.NewOrder("ord-6", "parent-1", "student-1", "client-6", domain.MethodCash, nil, scheduled)

		assert.Error(t, err)
	})
}

func TestOrder_StaffTransitions(t *testing.T) {
	cases := []struct {
		from    domain.OrderStatus
		to      domain.OrderStatus
		allowed bool
	}{
		{domain.OrderAwaitingPayment, domain.OrderCancelled, true},
		{domain.OrderAwaitingPayment, domain.OrderPending, false},
		{domain.OrderAwaitingPayment, domain.OrderPreparing, false},
		{domain.OrderPending, domain.OrderPreparing, true},
		{domain.OrderPending, domain.OrderCancelled, true},
		{domain.OrderPending, domain.OrderReady, false},
		{domain.OrderPreparing, domain.OrderReady, true},
		{domain.OrderPreparing, domain.OrderCancelled, true},
		{domain.OrderPreparing, domain.OrderCompleted, false},
		{domain.OrderReady, domain.OrderCompleted, true},
		{domain.OrderReady, domain.OrderCancelled, true},
		{domain.OrderCompleted, domain.OrderCancelled, false},
		{domain.OrderCancelled, domain.OrderPending, false},
	}

	for _, tc := range cases {
		name := string(tc.from) + " -> " + string(tc.to)
		t.Run(name, func(t *testing.T) {
			order := &domain.Order{Status: tc.from}
			err := order.CanTransitionTo(tc.to)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrInvalidTransition)
			}
		})
	}

	t.Run("rejection reports current status and allowed set", func(t *testing.T) {
		order := &domain.Order{Status: domain.OrderPending}
		err := order.CanTransitionTo(domain.OrderCompleted)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "pending")
		assert.Contains(t, err.Error(), "preparing")
		assert.Contains(t, err.Error(), "cancelled")
	})
}

func TestOrder_PaymentExpired(t *testing.T) {
	now := time.Now()

	t.Run("due in the future is not expired", func(t *testing.T) {
		due := now.Add(10 * time.Minute)
		order := &domain.Order{PaymentStatus: domain.PaymentAwaiting, PaymentDueAt: &due}
		assert.False(t, order.PaymentExpired(now))
	})

	t.Run("due exactly now is expired", func(t *testing.T) {
		due := now
		order := &domain.Order{PaymentStatus: domain.PaymentAwaiting, PaymentDueAt: &due}
		assert.True(t, order.PaymentExpired(now))
	})

	t.Run("past due is expired", func(t *testing.T) {
		due := now.Add(-time.Minute)
		order := &domain.Order{PaymentStatus: domain.PaymentAwaiting, PaymentDueAt: &due}
		assert.True(t, order.PaymentExpired(now))
	})

	t.Run("paid order never expires", func(t *testing.T) {
		due := now.Add(-time.Hour)
		order := &domain.Order{PaymentStatus: domain.PaymentPaid, PaymentDueAt: &due}
		assert.False(t, order.PaymentExpired(now))
	})
}

func TestWalletAccount_Balances(t *testing.T) {
	w := &domain.WalletAccount{UserID: "parent-1", Balance: 20000}

	t.Run("debit within balance", func(t *testing.T) {
		next, err := w.DebitedBalance(15500)
		require.NoError(t, err)
		assert.Equal(t, int64(4500), next)
	})

	t.Run("debit beyond balance", func(t *testing.T) {
		_, err := w.DebitedBalance(20001)
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	})

	t.Run("credit", func(t *testing.T) {
		next, err := w.CreditedBalance(5000)
		require.NoError(t, err)
		assert.Equal(t, int64(25000), next)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		_, err := w.DebitedBalance(0)
		assert.Error(t, err)
		_, err = w.CreditedBalance(-1)
		assert.Error(t, err)
	})
}

func TestTopupSession(t *testing.T) {
	t.Run("created pending", func(t *testing.T) {
		s, err := domain.NewTopupSession("top-1", "parent-1", 10000, time.Now().Add(30*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, domain.TopupPending, s.Status)
		assert.False(t, s.IsTerminal())
	})

	t.Run("terminal states", func(t *testing.T) {
		for _, st := range []domain.TopupStatus{domain.TopupPaid, domain.TopupFailed, domain.TopupExpired} {
			s := &domain.TopupSession{Status: st}
			assert.True(t, s.IsTerminal(), string(st))
		}
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := domain.NewTopupSession("top-2", "parent-1", 0, time.Now())
		assert.Error(t, err)
	})
}
