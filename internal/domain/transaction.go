package domain

import (
	"errors"
	"time"
)

// TransactionType classifies a money movement.
type TransactionType string

const (
	TxnPayment TransactionType = "payment"
	TxnTopup   TransactionType = "topup"
	TxnRefund  TransactionType = "refund"
)

// TransactionStatus is the settlement state of a money movement.
type TransactionStatus string

const (
	TxnPending   TransactionStatus = "pending"
	TxnCompleted TransactionStatus = "completed"
	TxnFailed    TransactionStatus = "failed"
)

// Transaction records one money movement. Each order gets exactly one
// "payment" transaction, created pending at checkout and flipped by
// reconciliation; refunds are separate "refund" rows.
type Transaction struct {
	ID       string
	ParentID string
	OrderID  *string
	Type     TransactionType
	Amount   int64
	Method   PaymentMethod
	Status   TransactionStatus

	GatewayPaymentID *string
	GatewayRefundID  *string
	Note             *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewTransaction(id, parentID string, orderID *string, typ TransactionType, amount int64, method PaymentMethod) (*Transaction, error) {
	if id == "" {
		return nil, errors.New("transaction ID is required")
	}
	if parentID == "" {
		return nil, errors.New("parent ID is required")
	}
	if amount <= 0 {
		return nil, errors.New("transaction amount must be positive")
	}
	now := time.Now()
	return &Transaction{
		ID:        id,
		ParentID:  parentID,
		OrderID:   orderID,
		Type:      typ,
		Amount:    amount,
		Method:    method,
		Status:    TxnPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
