package domain

import (
	"errors"
	"time"
)

// WalletAccount is a guardian's stored balance in centavos. The balance is
// only ever mutated by compare-and-swap on a previously read value, so the
// struct carries no mutation helpers beyond arithmetic checks.
type WalletAccount struct {
	UserID    string
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DebitedBalance returns the balance after a debit, or ErrInsufficientFunds
// if it would go negative.
func (w *WalletAccount) DebitedBalance(amount int64) (int64, error) {
	if amount <= 0 {
		return 0, errors.New("debit amount must be positive")
	}
	if w.Balance < amount {
		return 0, ErrInsufficientFunds
	}
	return w.Balance - amount, nil
}

// CreditedBalance returns the balance after a credit.
func (w *WalletAccount) CreditedBalance(amount int64) (int64, error) {
	if amount <= 0 {
		return 0, errors.New("credit amount must be positive")
	}
	return w.Balance + amount, nil
}

// TopupStatus is the lifecycle state of a wallet top-up session.
type TopupStatus string

const (
	TopupPending TopupStatus = "pending"
	TopupPaid    TopupStatus = "paid"
	TopupFailed  TopupStatus = "failed"
	TopupExpired TopupStatus = "expired"
)

// TopupSession tracks one gateway checkout that, when paid, credits a
// guardian's wallet.
type TopupSession struct {
	ID       string
	ParentID string
	Amount   int64
	Status   TopupStatus

	CheckoutSessionID *string
	GatewayPaymentID  *string

	ExpiresAt   time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

func NewTopupSession(id, parentID string, amount int64, expiresAt time.Time) (*TopupSession, error) {
	if id == "" {
		return nil, errors.New("topup session ID is required")
	}
	if parentID == "" {
		return nil, errors.New("parent ID is required")
	}
	if amount <= 0 {
		return nil, errors.New("topup amount must be positive")
	}
	return &TopupSession{
		ID:        id,
		ParentID:  parentID,
		Amount:    amount,
		Status:    TopupPending,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// IsTerminal reports whether the session can no longer change state.
func (t *TopupSession) IsTerminal() bool {
	switch t.Status {
	case TopupPaid, TopupFailed, TopupExpired:
		return true
	default:
		return false
	}
}
