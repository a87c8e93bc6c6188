package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Cerjho/canteen-orders/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTransactionNotFound = fmt.Errorf("transaction %w", domain.ErrNotFound)

type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, parent_id, order_id, type, amount, method, status,
			gateway_payment_id, gateway_refund_id, note, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	m := txnToDBModel(txn)
	_, err := r.db.Exec(ctx, query,
		m.ID, m.ParentID, m.OrderID, m.Type, m.Amount, m.Method, m.Status,
		m.GatewayPaymentID, m.GatewayRefundID, m.Note, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// SettleByOrder flips the order's pending transaction of the given type to
// the target status, stamping the gateway payment id when one is known.
// False means no pending row matched, which on a duplicate webhook is the
// normal idempotent outcome.
func (r *TransactionRepository) SettleByOrder(ctx context.Context, orderID string, typ domain.TransactionType, to domain.TransactionStatus, gatewayPaymentID *string) (bool, error) {
	query := `
		UPDATE transactions
		SET status = $3,
		    gateway_payment_id = COALESCE($4, gateway_payment_id),
		    updated_at = now()
		WHERE order_id = $1 AND type = $2 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, orderID, string(typ), string(to), gatewayPaymentID)
	if err != nil {
		return false, fmt.Errorf("failed to settle transaction: %w", err)
	}
	return tag.RowsAffected() >= 1, nil
}

// FindPendingRefundByGatewayPaymentID locates the refund record awaiting
// gateway confirmation for the given payment.
func (r *TransactionRepository) FindPendingRefundByGatewayPaymentID(ctx context.Context, paymentID string) (*domain.Transaction, error) {
	query := `
		SELECT id, parent_id, order_id, type, amount, method, status,
		       gateway_payment_id, gateway_refund_id, note, created_at, updated_at
		FROM transactions
		WHERE gateway_payment_id = $1 AND type = 'refund' AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`
	var m TransactionModel
	err := r.db.QueryRow(ctx, query, paymentID).Scan(
		&m.ID, &m.ParentID, &m.OrderID, &m.Type, &m.Amount, &m.Method, &m.Status,
		&m.GatewayPaymentID, &m.GatewayRefundID, &m.Note, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find pending refund: %w", err)
	}
	return txnToDomain(m), nil
}

func (r *TransactionRepository) MarkStatus(ctx context.Context, id string, from, to domain.TransactionStatus) (bool, error) {
	query := `
		UPDATE transactions
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`
	tag, err := r.db.Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("failed to mark transaction status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteByOrder removes transaction rows for an order. Only the checkout
// rollback path uses this.
func (r *TransactionRepository) DeleteByOrder(ctx context.Context, orderID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("failed to delete transactions: %w", err)
	}
	return nil
}
