package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Cerjho/canteen-orders/internal/domain"
	"github.com/Cerjho/canteen-orders/internal/infrastructure/persistence/postgres"
	"github.com/Cerjho/canteen-orders/internal/infrastructure/persistence/postgres/testhelpers"
)

type RepositoriesTestSuite struct {
	suite.Suite
	testDB    *testhelpers.TestDatabase
	orders    *postgres.OrderRepository
	inventory *postgres.InventoryRepository
	wallets   *postgres.WalletRepository
	txns      *postgres.TransactionRepository
	topups    *postgres.TopupRepository
}

func TestRepositoriesSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed tests in short mode")
	}
	suite.Run(t, new(RepositoriesTestSuite))
}

func (suite *RepositoriesTestSuite) SetupSuite() {
	suite.testDB = testhelpers.SetupTestDatabase(suite.T())
	suite.orders = postgres.NewOrderRepository(suite.testDB.DB.Pool)
	suite.inventory = postgres.NewInventoryRepository(suite.testDB.DB.Pool)
	suite.wallets = postgres.NewWalletRepository(suite.testDB.DB.Pool)
	suite.txns = postgres.NewTransactionRepository(suite.testDB.DB.Pool)
	suite.topups = postgres.NewTopupRepository(suite.testDB.DB.Pool)
}

func (suite *RepositoriesTestSuite) TearDownSuite() {
	suite.testDB.Cleanup(suite.T())
}

func (suite *RepositoriesTestSuite) SetupTest() {
	suite.testDB.CleanTables(suite.T())
}

func (suite *RepositoriesTestSuite) seedProduct(id string, stock int) {
	_, err := suite.testDB.DB.Pool.Exec(context.Background(),
		`INSERT INTO products (id, name, price, available, stock_quantity)
		 VALUES ($1, $2, 6500, TRUE, $3)`,
		id, "Chicken Adobo", stock)
	require.NoError(suite.T(), err)
}

func (suite *RepositoriesTestSuite) seedOrder(status domain.OrderStatus, payment domain.PaymentStatus, dueAt *time.Time) *domain.Order {
	t := suite.T()
	order, err := domain.NewOrder(
		uuid.NewString(), "parent-1", "student-1", uuid.NewString(),
		domain.MethodGCash,
		[]domain.OrderItem{{ProductID: "prod-a", Quantity: 2, PriceAtOrder: 6500}},
		time.Now().Add(24*time.Hour),
	)
	require.NoError(t, err)
	order.Status = status
	order.PaymentStatus = payment
	order.PaymentDueAt = dueAt

	require.NoError(t, suite.orders.Create(context.Background(), order))
	return order
}

func (suite *RepositoriesTestSuite) Test_ReserveStock_GuardsAgainstOverdraw() {
	ctx := context.Background()
	t := suite.T()
	suite.seedProduct("prod-a", 3)

	prior, ok, err := suite.inventory.ReserveStock(ctx, "prod-a", 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, prior)

	// only 1 left; the guard must refuse without touching the row
	_, ok, err = suite.inventory.ReserveStock(ctx, "prod-a", 2)
	require.NoError(t, err)
	assert.False(t, ok)

	products, err := suite.inventory.GetProducts(ctx, []string{"prod-a"})
	require.NoError(t, err)
	assert.Equal(t, 1, products["prod-a"].StockQuantity)
}

func (suite *RepositoriesTestSuite) Test_ReserveStock_ConcurrentDecrements() {
	ctx := context.Background()
	t := suite.T()

	const initialStock = 10
	suite.seedProduct("prod-a", initialStock)

	// Fire more demand than stock; the conditional decrement must never let
	// the combined reservations exceed what was there.
	const workers = 25
	var wg sync.WaitGroup
	reserved := make(chan int, workers)

	for i := 0; i < workers; i++ {
		qty := i%3 + 1
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := suite.inventory.ReserveStock(ctx, "prod-a", qty)
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				reserved <- qty
			}
		}()
	}

	wg.Wait()
	close(reserved)

	totalReserved := 0
	for qty := range reserved {
		totalReserved += qty
	}
	assert.LessOrEqual(t, totalReserved, initialStock)

	products, err := suite.inventory.GetProducts(ctx, []string{"prod-a"})
	require.NoError(t, err)
	remaining := products["prod-a"].StockQuantity
	assert.GreaterOrEqual(t, remaining, 0)
	assert.Equal(t, initialStock, totalReserved+remaining)
}

func (suite *RepositoriesTestSuite) Test_ReleaseAndSetStock() {
	ctx := context.Background()
	t := suite.T()
	suite.seedProduct("prod-a", 5)

	require.NoError(t, suite.inventory.ReleaseStock(ctx, "prod-a", 2))
	products, err := suite.inventory.GetProducts(ctx, []string{"prod-a"})
	require.NoError(t, err)
	assert.Equal(t, 7, products["prod-a"].StockQuantity)

	require.NoError(t, suite.inventory.SetStock(ctx, "prod-a", 5))
	products, err = suite.inventory.GetProducts(ctx, []string{"prod-a"})
	require.NoError(t, err)
	assert.Equal(t, 5, products["prod-a"].StockQuantity)
}

func (suite *RepositoriesTestSuite) Test_TransitionPayment_SingleWinner() {
	ctx := context.Background()
	t := suite.T()
	suite.seedProduct("prod-a", 10)
	due := time.Now().Add(30 * time.Minute)
	order := suite.seedOrder(domain.OrderAwaitingPayment, domain.PaymentAwaiting, &due)

	won, err := suite.orders.TransitionPayment(ctx, order.ID,
		domain.PaymentAwaiting, domain.PaymentPaid, domain.OrderPending)
	require.NoError(t, err)
	assert.True(t, won)

	// second attempt sees payment_status already flipped
	won, err = suite.orders.TransitionPayment(ctx, order.ID,
		domain.PaymentAwaiting, domain.PaymentTimeout, domain.OrderCancelled)
	require.NoError(t, err)
	assert.False(t, won)

	stored, err := suite.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, stored.Status)
	assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)
}

func (suite *RepositoriesTestSuite) Test_FindExpired_InclusiveBoundary() {
	ctx := context.Background()
	t := suite.T()
	suite.seedProduct("prod-a", 10)

	now := time.Now().Truncate(time.Microsecond)
	exactlyDue := now
	future := now.Add(time.Minute)
	suite.seedOrder(domain.OrderAwaitingPayment, domain.PaymentAwaiting, &exactlyDue)
	suite.seedOrder(domain.OrderAwaitingPayment, domain.PaymentAwaiting, &future)

	expired, err := suite.orders.FindExpired(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.True(t, expired[0].PaymentDueAt.Equal(exactlyDue))
}

func (suite *RepositoriesTestSuite) Test_MarkRefunded_SingleWinner() {
	ctx := context.Background()
	t := suite.T()
	suite.seedProduct("prod-a", 10)
	order := suite.seedOrder(domain.OrderPending, domain.PaymentPaid, nil)

	won, err := suite.orders.MarkRefunded(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = suite.orders.MarkRefunded(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, won)

	stored, err := suite.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, stored.Status)
	assert.Equal(t, domain.PaymentRefunded, stored.PaymentStatus)
}

func (suite *RepositoriesTestSuite) Test_WalletCompareAndSet() {
	ctx := context.Background()
	t := suite.T()

	account, err := suite.wallets.FindOrCreate(ctx, "parent-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Balance)

	// idempotent: a second call returns the same row
	again, err := suite.wallets.FindOrCreate(ctx, "parent-1")
	require.NoError(t, err)
	assert.Equal(t, account.UserID, again.UserID)

	won, err := suite.wallets.CompareAndSetBalance(ctx, "parent-1", 0, 10000)
	require.NoError(t, err)
	assert.True(t, won)

	// stale expected value loses
	won, err = suite.wallets.CompareAndSetBalance(ctx, "parent-1", 0, 20000)
	require.NoError(t, err)
	assert.False(t, won)

	account, err = suite.wallets.FindOrCreate(ctx, "parent-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), account.Balance)
}

func (suite *RepositoriesTestSuite) Test_SettleByOrder_OnlyPendingRows() {
	ctx := context.Background()
	t := suite.T()
	suite.seedProduct("prod-a", 10)
	order := suite.seedOrder(domain.OrderAwaitingPayment, domain.PaymentAwaiting, nil)

	txn, err := domain.NewTransaction(uuid.NewString(), "parent-1", &order.ID,
		domain.TxnPayment, 13000, domain.MethodGCash)
	require.NoError(t, err)
	require.NoError(t, suite.txns.Create(ctx, txn))

	paymentID := "pay_1"
	settled, err := suite.txns.SettleByOrder(ctx, order.ID,
		domain.TxnPayment, domain.TxnCompleted, &paymentID)
	require.NoError(t, err)
	assert.True(t, settled)

	// duplicate settlement finds no pending row
	settled, err = suite.txns.SettleByOrder(ctx, order.ID,
		domain.TxnPayment, domain.TxnCompleted, &paymentID)
	require.NoError(t, err)
	assert.False(t, settled)
}

func (suite *RepositoriesTestSuite) Test_TopupMarkPaid_Gate() {
	ctx := context.Background()
	t := suite.T()

	session, err := domain.NewTopupSession(uuid.NewString(), "parent-1", 10000, time.Now().Add(30*time.Minute))
	require.NoError(t, err)
	require.NoError(t, suite.topups.Create(ctx, session))

	won, err := suite.topups.MarkPaid(ctx, session.ID, "pay_1", time.Now())
	require.NoError(t, err)
	assert.True(t, won)

	won, err = suite.topups.MarkPaid(ctx, session.ID, "pay_1", time.Now())
	require.NoError(t, err)
	assert.False(t, won)

	// a paid session that could not be credited can still be failed
	won, err = suite.topups.MarkFailed(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, won)

	stored, err := suite.topups.FindByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TopupFailed, stored.Status)
}

func (suite *RepositoriesTestSuite) Test_FindByClientOrderID() {
	ctx := context.Background()
	t := suite.T()
	suite.seedProduct("prod-a", 10)
	order := suite.seedOrder(domain.OrderAwaitingPayment, domain.PaymentAwaiting, nil)

	stored, err := suite.orders.FindByClientOrderID(ctx, order.ParentID, order.ClientOrderID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, int64(6500), stored.Items[0].PriceAtOrder)

	_, err = suite.orders.FindByClientOrderID(ctx, order.ParentID, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
