// Package domain encodes the order, payment and wallet entities and their
// lifecycle rules.
package domain

import (
	"errors"
	"slices"
	"time"
)

// OrderStatus represents where an order is in the fulfillment lifecycle.
type OrderStatus string

const (
	OrderAwaitingPayment OrderStatus = "awaiting_payment"
	OrderPending         OrderStatus = "pending"
	OrderPreparing       OrderStatus = "preparing"
	OrderReady           OrderStatus = "ready"
	OrderCompleted       OrderStatus = "completed"
	OrderCancelled       OrderStatus = "cancelled"
)

// PaymentStatus represents where an order's payment is, independently of
// fulfillment. It is the column every optimistic lock races on.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentAwaiting PaymentStatus = "awaiting_payment"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentTimeout  PaymentStatus = "timeout"
	PaymentRefunded PaymentStatus = "refunded"
)

// PaymentMethod is how the guardian chose to pay.
type PaymentMethod string

const (
	MethodCash   PaymentMethod = "cash"
	MethodWallet PaymentMethod = "wallet"
	MethodGCash  PaymentMethod = "gcash"
	MethodMaya   PaymentMethod = "paymaya"
	MethodCard   PaymentMethod = "card"

	// MethodOnline records a gateway settlement whose concrete rail is not
	// known locally, e.g. wallet top-ups where the guardian picks the rail
	// on the hosted page.
	MethodOnline PaymentMethod = "online"
)

// IsOnline reports whether the method settles through the payment gateway.
func (m PaymentMethod) IsOnline() bool {
	switch m {
	case MethodGCash, MethodMaya, MethodCard, MethodOnline:
		return true
	default:
		return false
	}
}

type Order struct {
	ID            string
	ParentID      string
	StudentID     string
	ClientOrderID string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod
	TotalAmount   int64

	PaymentDueAt      *time.Time
	CheckoutSessionID *string
	GatewayPaymentID  *string
	PaymentGroupID    *string

	ScheduledFor time.Time
	Notes        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Items []OrderItem
}

// OrderItem is a priced line of an order. PriceAtOrder is snapshotted at
// creation and never recomputed from the catalog.
type OrderItem struct {
	OrderID      string
	ProductID    string
	Quantity     int
	PriceAtOrder int64
}

// NewOrder builds an order in its initial state for the given method:
// awaiting_payment for online methods, pending for cash/wallet.
func NewOrder(id, parentID, studentID, clientOrderID string, method PaymentMethod, items []OrderItem, scheduledFor time.Time) (*Order, error) {
	if id == "" {
		return nil, errors.New("order ID is required")
	}
	if parentID == "" {
		return nil, errors.New("parent ID is required")
	}
	if studentID == "" {
		return nil, errors.New("student ID is required")
	}
	if clientOrderID == "" {
		return nil, errors.New("client order ID is required")
	}
	if len(items) == 0 {
		return nil, errors.New("order requires at least one item")
	}

	var total int64
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, errors.New("item quantity must be positive")
		}
		if it.PriceAtOrder < 0 {
			return nil, errors.New("item price cannot be negative")
		}
		total += it.PriceAtOrder * int64(it.Quantity)
	}

	now := time.Now()
	o := &Order{
		ID:            id,
		ParentID:      parentID,
		StudentID:     studentID,
		ClientOrderID: clientOrderID,
		PaymentMethod: method,
		TotalAmount:   total,
		ScheduledFor:  scheduledFor,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items:         items,
	}
	for i := range o.Items {
		o.Items[i].OrderID = id
	}

	if method.IsOnline() {
		o.Status = OrderAwaitingPayment
		o.PaymentStatus = PaymentAwaiting
	} else {
		o.Status = OrderPending
		o.PaymentStatus = PaymentUnpaid
	}
	return o, nil
}

// StaffTransitions returns the statuses staff may move an order to from the
// given status. awaiting_payment -> pending is deliberately absent: that edge
// is reachable only through a recorded payment confirmation.
func StaffTransitions(from OrderStatus) []OrderStatus {
	switch from {
	case OrderAwaitingPayment:
		return []OrderStatus{OrderCancelled}
	case OrderPending:
		return []OrderStatus{OrderPreparing, OrderCancelled}
	case OrderPreparing:
		return []OrderStatus{OrderReady, OrderCancelled}
	case OrderReady:
		return []OrderStatus{OrderCompleted, OrderCancelled}
	default:
		return nil
	}
}

// CanTransitionTo validates a staff-driven transition. It returns an
// InvalidTransitionError carrying the current status and the allowed set.
func (o *Order) CanTransitionTo(target OrderStatus) error {
	allowed := StaffTransitions(o.Status)
	if slices.Contains(allowed, target) {
		return nil
	}
	return &InvalidTransitionError{From: o.Status, To: target, Allowed: allowed}
}

// IsTerminal reports whether the order can no longer change state.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderCompleted || o.Status == OrderCancelled
}

// PaymentExpired reports whether the payment deadline has passed. The
// boundary is inclusive: an order due exactly at now is expired.
func (o *Order) PaymentExpired(now time.Time) bool {
	return o.PaymentStatus == PaymentAwaiting &&
		o.PaymentDueAt != nil &&
		!o.PaymentDueAt.After(now)
}

// HasLiveCheckoutSession reports whether the order still has a gateway
// session a guardian could be redirected back to.
func (o *Order) HasLiveCheckoutSession(now time.Time) bool {
	return o.Status == OrderAwaitingPayment &&
		o.CheckoutSessionID != nil &&
		!o.PaymentExpired(now)
}
