// Package services implements the order and payment lifecycle operations on
// top of the application ports.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Cerjho/canteen-orders/internal/application"
	"github.com/Cerjho/canteen-orders/internal/config"
	"github.com/Cerjho/canteen-orders/internal/domain"
	"github.com/google/uuid"
)

// CheckoutItem is one requested line. ExpectedPrice is the unit price the
// client displayed; it is compared against the catalog to detect drift, but
// the catalog price is what gets snapshotted.
type CheckoutItem struct {
	ProductID     string
	Quantity      int
	ExpectedPrice int64
}

// CheckoutGroup is one student's order within a checkout. Each group carries
// its own idempotency key.
type CheckoutGroup struct {
	StudentID     string
	ClientOrderID string
	ScheduledFor  time.Time
	Notes         *string
	Items         []CheckoutItem
}

type CheckoutRequest struct {
	ParentID      string
	PaymentMethod domain.PaymentMethod
	Groups        []CheckoutGroup
}

type CheckoutResult struct {
	Orders            []*domain.Order
	CheckoutSessionID string
	CheckoutURL       string
	PaymentGroupID    *string
	PaymentDueAt      time.Time
	TotalAmount       int64
}

type DirectOrderRequest struct {
	ParentID      string
	PaymentMethod domain.PaymentMethod
	Group         CheckoutGroup
}

// CheckoutService composes inventory reservation, order creation and the
// payment gateway into the checkout saga. Nothing here runs inside a store
// transaction: each mutation is individually compensated on failure.
type CheckoutService struct {
	orders    application.OrderRepository
	inventory application.InventoryStore
	wallets   application.WalletRepository
	txns      application.TransactionRepository
	gateway   application.GatewayClient
	calendar  application.CalendarClient
	directory application.DirectoryClient
	notifier  application.Notifier
	cfg       config.CheckoutConfig
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

func NewCheckoutService(
	orders application.OrderRepository,
	inventory application.InventoryStore,
	wallets application.WalletRepository,
	txns application.TransactionRepository,
	gateway application.GatewayClient,
	calendar application.CalendarClient,
	directory application.DirectoryClient,
	notifier application.Notifier,
	cfg config.CheckoutConfig,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		orders:    orders,
		inventory: inventory,
		wallets:   wallets,
		txns:      txns,
		gateway:   gateway,
		calendar:  calendar,
		directory: directory,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// CreateCheckout creates one or more orders paid through a single hosted
// checkout session. Batched groups share a payment group id and the
// gateway's per-transaction fee.
func (s *CheckoutService) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if !req.PaymentMethod.IsOnline() {
		return nil, application.NewValidationError("payment method must be an online method for hosted checkout")
	}
	if err := s.validateRequest(ctx, req.ParentID, req.Groups); err != nil {
		return nil, err
	}

	// Idempotent replay by client_order_id: a live session is returned
	// unchanged, any other prior state is a duplicate.
	if result, err := s.replayExisting(ctx, req); result != nil || err != nil {
		return result, err
	}

	products, demand, err := s.validateCatalog(ctx, req.Groups)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, g := range req.Groups {
		for _, it := range g.Items {
			total += products[it.ProductID].Price * int64(it.Quantity)
		}
	}
	if total < s.cfg.MinimumAmount {
		return nil, application.NewMinimumAmountError(s.cfg.MinimumAmount)
	}

	comp := newCompensation(s.logger)

	if err := s.reserveDemand(ctx, comp, products, demand); err != nil {
		return nil, err
	}

	now := s.now()
	dueAt := now.Add(s.cfg.PaymentWindow)
	var groupID *string
	if len(req.Groups) > 1 {
		id := s.newID()
		groupID = &id
	}

	orders, err := s.createOrders(ctx, comp, req, products, groupID, dueAt)
	if err != nil {
		comp.run(ctx)
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, s.buildSessionRequest(req, products, demand, orders, groupID))
	if err != nil {
		s.logger.Error("checkout session creation failed, reversing checkout",
			"parent_id", req.ParentID,
			"error", err,
		)
		comp.run(ctx)
		return nil, application.NewPaymentUnavailableError(err)
	}

	for _, o := range orders {
		if err := s.orders.SetCheckoutSession(ctx, o.ID, session.ID, dueAt); err != nil {
			s.expireSession(ctx, session.ID)
			comp.run(ctx)
			return nil, application.NewInternalError(err)
		}
		o.CheckoutSessionID = &session.ID
		o.PaymentDueAt = &dueAt
	}

	s.logger.Info("checkout created",
		"parent_id", req.ParentID,
		"orders", len(orders),
		"checkout_session_id", session.ID,
		"total_amount", total,
	)

	return &CheckoutResult{
		Orders:            orders,
		CheckoutSessionID: session.ID,
		CheckoutURL:       session.CheckoutURL,
		PaymentGroupID:    groupID,
		PaymentDueAt:      dueAt,
		TotalAmount:       total,
	}, nil
}

// RetryCheckout creates a fresh gateway session for an order whose previous
// payment attempt failed or went stale, preserving the order id. Stock is
// re-reserved when a prior cancellation released it.
func (s *CheckoutService) RetryCheckout(ctx context.Context, parentID, orderID string) (*CheckoutResult, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, application.NewNotFoundError("order")
		}
		return nil, application.NewInternalError(err)
	}
	if order.ParentID != parentID {
		return nil, application.NewForbiddenError("order belongs to another guardian")
	}

	now := s.now()
	if order.HasLiveCheckoutSession(now) {
		session, err := s.gateway.GetCheckoutSession(ctx, *order.CheckoutSessionID)
		if err != nil {
			return nil, application.NewPaymentUnavailableError(err)
		}
		return &CheckoutResult{
			Orders:            []*domain.Order{order},
			CheckoutSessionID: session.ID,
			CheckoutURL:       session.CheckoutURL,
			PaymentGroupID:    order.PaymentGroupID,
			PaymentDueAt:      *order.PaymentDueAt,
			TotalAmount:       order.TotalAmount,
		}, nil
	}

	stillHolding := order.Status == domain.OrderAwaitingPayment && order.PaymentStatus == domain.PaymentAwaiting
	revivable := order.PaymentStatus == domain.PaymentFailed || order.PaymentStatus == domain.PaymentTimeout
	if !stillHolding && !revivable {
		return nil, application.NewValidationError("order is no longer payable")
	}

	comp := newCompensation(s.logger)

	if revivable {
		// Cancellation returned the stock; take it again and move the
		// order back to awaiting before a new session is created.
		if err := s.reserveOrderItems(ctx, comp, order); err != nil {
			return nil, err
		}
		won, err := s.orders.TransitionPayment(ctx, order.ID, order.PaymentStatus, domain.PaymentAwaiting, domain.OrderAwaitingPayment)
		if err != nil {
			comp.run(ctx)
			return nil, application.NewInternalError(err)
		}
		if !won {
			comp.run(ctx)
			return nil, application.NewDuplicateOrderError()
		}
		prior := order.PaymentStatus
		comp.add("revert payment revival", func(ctx context.Context) error {
			_, err := s.orders.TransitionPayment(ctx, order.ID, domain.PaymentAwaiting, prior, domain.OrderCancelled)
			return err
		})

		txn, err := domain.NewTransaction(s.newID(), order.ParentID, &order.ID, domain.TxnPayment, order.TotalAmount, order.PaymentMethod)
		if err != nil {
			comp.run(ctx)
			return nil, application.NewInternalError(err)
		}
		if err := s.txns.Create(ctx, txn); err != nil {
			comp.run(ctx)
			return nil, application.NewInternalError(err)
		}
	}

	dueAt := now.Add(s.cfg.PaymentWindow)
	session, err := s.gateway.CreateCheckoutSession(ctx, application.CheckoutSessionRequest{
		LineItems:          s.orderLineItems(ctx, order),
		PaymentMethodTypes: []string{string(order.PaymentMethod)},
		ReferenceNumber:    order.ID,
		Description:        "Canteen order payment retry",
		Metadata: map[string]string{
			"type":      "order",
			"order_id":  order.ID,
			"parent_id": order.ParentID,
		},
	})
	if err != nil {
		comp.run(ctx)
		return nil, application.NewPaymentUnavailableError(err)
	}

	if err := s.orders.SetCheckoutSession(ctx, order.ID, session.ID, dueAt); err != nil {
		s.expireSession(ctx, session.ID)
		comp.run(ctx)
		return nil, application.NewInternalError(err)
	}
	order.Status = domain.OrderAwaitingPayment
	order.PaymentStatus = domain.PaymentAwaiting
	order.CheckoutSessionID = &session.ID
	order.PaymentDueAt = &dueAt

	s.logger.Info("checkout retried",
		"order_id", order.ID,
		"checkout_session_id", session.ID,
	)

	return &CheckoutResult{
		Orders:            []*domain.Order{order},
		CheckoutSessionID: session.ID,
		CheckoutURL:       session.CheckoutURL,
		PaymentGroupID:    order.PaymentGroupID,
		PaymentDueAt:      dueAt,
		TotalAmount:       order.TotalAmount,
	}, nil
}

// CreateDirectOrder is the cash/wallet sibling of CreateCheckout: no gateway
// session, wallet orders settle immediately via a balance compare-and-swap.
func (s *CheckoutService) CreateDirectOrder(ctx context.Context, req DirectOrderRequest) (*domain.Order, error) {
	if req.PaymentMethod.IsOnline() {
		return nil, application.NewValidationError("use hosted checkout for online payment methods")
	}
	groups := []CheckoutGroup{req.Group}
	if err := s.validateRequest(ctx, req.ParentID, groups); err != nil {
		return nil, err
	}

	existing, err := s.orders.FindByClientOrderID(ctx, req.ParentID, req.Group.ClientOrderID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, application.NewInternalError(err)
	}
	if existing != nil {
		return nil, application.NewDuplicateOrderError()
	}

	products, demand, err := s.validateCatalog(ctx, groups)
	if err != nil {
		return nil, err
	}

	comp := newCompensation(s.logger)
	if err := s.reserveDemand(ctx, comp, products, demand); err != nil {
		return nil, err
	}

	orders, err := s.createOrders(ctx, comp, CheckoutRequest{
		ParentID:      req.ParentID,
		PaymentMethod: req.PaymentMethod,
		Groups:        groups,
	}, products, nil, time.Time{})
	if err != nil {
		comp.run(ctx)
		return nil, err
	}
	order := orders[0]

	if req.PaymentMethod == domain.MethodWallet {
		if err := s.debitWallet(ctx, req.ParentID, order.TotalAmount); err != nil {
			comp.run(ctx)
			return nil, err
		}
		if _, err := s.txns.SettleByOrder(ctx, order.ID, domain.TxnPayment, domain.TxnCompleted, nil); err != nil {
			s.logger.Error("failed to settle wallet payment transaction", "order_id", order.ID, "error", err)
		}
		if _, err := s.orders.TransitionPayment(ctx, order.ID, domain.PaymentUnpaid, domain.PaymentPaid, domain.OrderPending); err != nil {
			s.logger.Error("failed to mark wallet order paid", "order_id", order.ID, "error", err)
		} else {
			order.PaymentStatus = domain.PaymentPaid
		}
		s.notifier.OrderPaid(ctx, order)
	}

	s.logger.Info("direct order created",
		"order_id", order.ID,
		"payment_method", order.PaymentMethod,
		"total_amount", order.TotalAmount,
	)
	return order, nil
}

func (s *CheckoutService) validateRequest(ctx context.Context, parentID string, groups []CheckoutGroup) error {
	if parentID == "" {
		return application.NewValidationError("parent ID is required")
	}
	if len(groups) == 0 {
		return application.NewValidationError("at least one order group is required")
	}
	for _, g := range groups {
		if g.StudentID == "" || g.ClientOrderID == "" {
			return application.NewValidationError("student ID and client order ID are required")
		}
		if len(g.Items) == 0 {
			return application.NewValidationError("each order requires at least one item")
		}
		for _, it := range g.Items {
			if it.Quantity <= 0 {
				return application.NewValidationError("item quantity must be positive")
			}
		}

		linked, err := s.directory.IsGuardianOf(ctx, parentID, g.StudentID)
		if err != nil {
			return application.NewInternalError(err)
		}
		if !linked {
			return application.NewForbiddenError(fmt.Sprintf("student %s is not linked to this guardian", g.StudentID))
		}
		if err := s.calendar.ValidateOrderDate(ctx, g.ScheduledFor); err != nil {
			if _, ok := application.IsServiceError(err); ok {
				return err
			}
			return application.NewValidationError(err.Error())
		}
	}
	return nil
}

// replayExisting implements client_order_id idempotency. A non-nil result
// means the previous checkout is still payable and its session is handed
// back unchanged.
func (s *CheckoutService) replayExisting(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	for _, g := range req.Groups {
		existing, err := s.orders.FindByClientOrderID(ctx, req.ParentID, g.ClientOrderID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, application.NewInternalError(err)
		}

		if !existing.HasLiveCheckoutSession(s.now()) {
			return nil, application.NewDuplicateOrderError()
		}

		session, err := s.gateway.GetCheckoutSession(ctx, *existing.CheckoutSessionID)
		if err != nil {
			return nil, application.NewPaymentUnavailableError(err)
		}
		siblings := []*domain.Order{existing}
		if existing.PaymentGroupID != nil {
			if siblings, err = s.orders.FindByPaymentGroup(ctx, *existing.PaymentGroupID); err != nil {
				return nil, application.NewInternalError(err)
			}
		}
		var total int64
		for _, o := range siblings {
			total += o.TotalAmount
		}
		s.logger.Info("checkout replayed from existing session",
			"client_order_id", g.ClientOrderID,
			"checkout_session_id", session.ID,
		)
		return &CheckoutResult{
			Orders:            siblings,
			CheckoutSessionID: session.ID,
			CheckoutURL:       session.CheckoutURL,
			PaymentGroupID:    existing.PaymentGroupID,
			PaymentDueAt:      *existing.PaymentDueAt,
			TotalAmount:       total,
		}, nil
	}
	return nil, nil
}

// validateCatalog loads every referenced product, checks availability, price
// drift and observable stock, and returns the per-product aggregated demand.
func (s *CheckoutService) validateCatalog(ctx context.Context, groups []CheckoutGroup) (map[string]*domain.Product, map[string]int, error) {
	demand := make(map[string]int)
	for _, g := range groups {
		for _, it := range g.Items {
			demand[it.ProductID] += it.Quantity
		}
	}
	ids := make([]string, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}

	products, err := s.inventory.GetProducts(ctx, ids)
	if err != nil {
		return nil, nil, application.NewInternalError(err)
	}

	for _, g := range groups {
		for _, it := range g.Items {
			p, ok := products[it.ProductID]
			if !ok {
				return nil, nil, application.NewNotFoundError("product " + it.ProductID)
			}
			if !p.Available {
				return nil, nil, application.NewProductUnavailableError(p.Name)
			}
			if drift := p.Price - it.ExpectedPrice; drift > s.cfg.PriceEpsilon || -drift > s.cfg.PriceEpsilon {
				return nil, nil, application.NewPriceMismatchError(p.Name)
			}
		}
	}
	for id, qty := range demand {
		if p := products[id]; p.StockQuantity < qty {
			return nil, nil, application.NewInsufficientStockError(p.Name, qty, p.StockQuantity)
		}
	}
	return products, demand, nil
}

// reserveDemand applies one conditional decrement per product, in a stable
// order, registering an exact-value restore for each success. A guard loss
// after the observable-stock check means a concurrent depletion.
func (s *CheckoutService) reserveDemand(ctx context.Context, comp *compensation, products map[string]*domain.Product, demand map[string]int) error {
	ids := make([]string, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		qty := demand[id]
		prior, ok, err := s.inventory.ReserveStock(ctx, id, qty)
		if err != nil {
			comp.run(ctx)
			return application.NewInternalError(err)
		}
		if !ok {
			comp.run(ctx)
			return application.NewStockUpdateFailedError(products[id].Name)
		}
		productID, priorValue := id, prior
		comp.add("restore stock "+productID, func(ctx context.Context) error {
			return s.inventory.SetStock(ctx, productID, priorValue)
		})
	}
	return nil
}

func (s *CheckoutService) reserveOrderItems(ctx context.Context, comp *compensation, order *domain.Order) error {
	demand := make(map[string]int)
	for _, it := range order.Items {
		demand[it.ProductID] += it.Quantity
	}
	ids := make([]string, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	products, err := s.inventory.GetProducts(ctx, ids)
	if err != nil {
		return application.NewInternalError(err)
	}
	for _, id := range ids {
		p, ok := products[id]
		if !ok {
			return application.NewNotFoundError("product " + id)
		}
		if !p.Available {
			return application.NewProductUnavailableError(p.Name)
		}
	}
	return s.reserveDemand(ctx, comp, products, demand)
}

// createOrders persists one order per group with snapshotted catalog prices,
// plus its pending payment transaction. Every row registers its deletion as
// compensation.
func (s *CheckoutService) createOrders(ctx context.Context, comp *compensation, req CheckoutRequest, products map[string]*domain.Product, groupID *string, dueAt time.Time) ([]*domain.Order, error) {
	orders := make([]*domain.Order, 0, len(req.Groups))
	for _, g := range req.Groups {
		items := make([]domain.OrderItem, 0, len(g.Items))
		for _, it := range g.Items {
			items = append(items, domain.OrderItem{
				ProductID:    it.ProductID,
				Quantity:     it.Quantity,
				PriceAtOrder: products[it.ProductID].Price,
			})
		}
		order, err := domain.NewOrder(s.newID(), req.ParentID, g.StudentID, g.ClientOrderID, req.PaymentMethod, items, g.ScheduledFor)
		if err != nil {
			return nil, application.NewValidationError(err.Error())
		}
		order.Notes = g.Notes
		order.PaymentGroupID = groupID
		if req.PaymentMethod.IsOnline() {
			due := dueAt
			order.PaymentDueAt = &due
		}

		if err := s.orders.Create(ctx, order); err != nil {
			return nil, application.NewInternalError(err)
		}
		orderID := order.ID
		comp.add("delete order "+orderID, func(ctx context.Context) error {
			return s.orders.Delete(ctx, orderID)
		})

		txn, err := domain.NewTransaction(s.newID(), req.ParentID, &order.ID, domain.TxnPayment, order.TotalAmount, req.PaymentMethod)
		if err != nil {
			return nil, application.NewInternalError(err)
		}
		if err := s.txns.Create(ctx, txn); err != nil {
			return nil, application.NewInternalError(err)
		}
		comp.add("delete transactions "+orderID, func(ctx context.Context) error {
			return s.txns.DeleteByOrder(ctx, orderID)
		})

		orders = append(orders, order)
	}
	return orders, nil
}

// buildSessionRequest merges duplicate products across the batch into single
// line items so the gateway charges one fee for the whole group.
func (s *CheckoutService) buildSessionRequest(req CheckoutRequest, products map[string]*domain.Product, demand map[string]int, orders []*domain.Order, groupID *string) application.CheckoutSessionRequest {
	ids := make([]string, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	lineItems := make([]application.LineItem, 0, len(ids))
	for _, id := range ids {
		p := products[id]
		lineItems = append(lineItems, application.LineItem{
			Name:     p.Name,
			Amount:   p.Price,
			Currency: "PHP",
			Quantity: demand[id],
		})
	}

	metadata := map[string]string{
		"type":      "order",
		"parent_id": req.ParentID,
	}
	reference := orders[0].ID
	if groupID != nil {
		metadata["payment_group_id"] = *groupID
		reference = *groupID
	} else {
		metadata["order_id"] = orders[0].ID
	}

	return application.CheckoutSessionRequest{
		LineItems:          lineItems,
		PaymentMethodTypes: []string{string(req.PaymentMethod)},
		ReferenceNumber:    reference,
		Description:        fmt.Sprintf("Canteen order for %d student(s)", len(orders)),
		Metadata:           metadata,
	}
}

// debitWallet applies the balance compare-and-swap with bounded retries
// against a freshly re-read balance.
func (s *CheckoutService) debitWallet(ctx context.Context, parentID string, amount int64) error {
	attempts := s.cfg.WalletMaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		wallet, err := s.wallets.FindOrCreate(ctx, parentID)
		if err != nil {
			return application.NewInternalError(err)
		}
		newBalance, err := wallet.DebitedBalance(amount)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientFunds) {
				return application.NewInsufficientFundsError(wallet.Balance, amount)
			}
			return application.NewValidationError(err.Error())
		}
		won, err := s.wallets.CompareAndSetBalance(ctx, parentID, wallet.Balance, newBalance)
		if err != nil {
			return application.NewInternalError(err)
		}
		if won {
			return nil
		}
		s.logger.Warn("wallet debit lost balance race, retrying",
			"parent_id", parentID,
			"attempt", attempt+1,
		)
	}
	return application.NewInternalError(errors.New("wallet debit exceeded retry budget"))
}

func (s *CheckoutService) expireSession(ctx context.Context, sessionID string) {
	if err := s.gateway.ExpireCheckoutSession(ctx, sessionID); err != nil {
		s.logger.Warn("failed to expire orphaned checkout session",
			"checkout_session_id", sessionID,
			"error", err,
		)
	}
}

// orderLineItems rebuilds gateway line items from an order's snapshotted
// prices. Catalog names are looked up for display; a lookup miss falls back
// to the product id.
func (s *CheckoutService) orderLineItems(ctx context.Context, order *domain.Order) []application.LineItem {
	ids := make([]string, 0, len(order.Items))
	for _, it := range order.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.inventory.GetProducts(ctx, ids)
	if err != nil {
		s.logger.Warn("product name lookup failed for retry line items", "error", err)
		products = map[string]*domain.Product{}
	}

	items := make([]application.LineItem, 0, len(order.Items))
	for _, it := range order.Items {
		name := it.ProductID
		if p, ok := products[it.ProductID]; ok {
			name = p.Name
		}
		items = append(items, application.LineItem{
			Name:     name,
			Amount:   it.PriceAtOrder,
			Currency: "PHP",
			Quantity: it.Quantity,
		})
	}
	return items
}
