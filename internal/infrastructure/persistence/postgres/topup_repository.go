package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Cerjho/canteen-orders/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTopupNotFound = fmt.Errorf("topup session %w", domain.ErrNotFound)

const topupColumns = `
	id, parent_id, amount, status, checkout_session_id,
	gateway_payment_id, expires_at, completed_at, created_at
	`

type TopupRepository struct {
	db *pgxpool.Pool
}

func NewTopupRepository(db *pgxpool.Pool) *TopupRepository {
	return &TopupRepository{db: db}
}

func (r *TopupRepository) Create(ctx context.Context, session *domain.TopupSession) error {
	query := `
		INSERT INTO topup_sessions (
			id, parent_id, amount, status, checkout_session_id,
			gateway_payment_id, expires_at, completed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		session.ID, session.ParentID, session.Amount, string(session.Status),
		session.CheckoutSessionID, session.GatewayPaymentID,
		session.ExpiresAt, session.CompletedAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create topup session: %w", err)
	}
	return nil
}

func (r *TopupRepository) FindByID(ctx context.Context, id string) (*domain.TopupSession, error) {
	query := `SELECT` + topupColumns + `FROM topup_sessions WHERE id = $1`
	return scanTopup(r.db.QueryRow(ctx, query, id))
}

func (r *TopupRepository) FindByCheckoutSession(ctx context.Context, sessionID string) (*domain.TopupSession, error) {
	query := `SELECT` + topupColumns + `FROM topup_sessions WHERE checkout_session_id = $1`
	return scanTopup(r.db.QueryRow(ctx, query, sessionID))
}

func (r *TopupRepository) SetCheckoutSession(ctx context.Context, id, sessionID string) error {
	query := `UPDATE topup_sessions SET checkout_session_id = $2 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, sessionID)
	if err != nil {
		return fmt.Errorf("failed to set topup checkout session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTopupNotFound
	}
	return nil
}

// MarkPaid settles a pending top-up. The status guard makes a duplicate
// webhook a no-op: only the first confirmation credits the wallet.
func (r *TopupRepository) MarkPaid(ctx context.Context, id, gatewayPaymentID string, completedAt time.Time) (bool, error) {
	query := `
		UPDATE topup_sessions
		SET status = 'paid', gateway_payment_id = $2, completed_at = $3
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, id, gatewayPaymentID, completedAt)
	if err != nil {
		return false, fmt.Errorf("failed to mark topup paid: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed also accepts the paid state: a confirmed payment whose wallet
// credit ultimately lost every retry is downgraded to failed for manual
// review rather than reported as credited.
func (r *TopupRepository) MarkFailed(ctx context.Context, id string) (bool, error) {
	query := `UPDATE topup_sessions SET status = 'failed' WHERE id = $1 AND status IN ('pending', 'paid')`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark topup failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TopupRepository) MarkExpired(ctx context.Context, id string) (bool, error) {
	query := `UPDATE topup_sessions SET status = 'expired' WHERE id = $1 AND status = 'pending'`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark topup expired: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FindExpired selects pending top-ups whose deadline has passed, inclusive.
func (r *TopupRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.TopupSession, error) {
	query := `SELECT` + topupColumns + `
		FROM topup_sessions
		WHERE status = 'pending' AND expires_at <= $1
		ORDER BY expires_at ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query expired topups: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.TopupSession, error) {
		var m TopupModel
		err := row.Scan(
			&m.ID, &m.ParentID, &m.Amount, &m.Status, &m.CheckoutSessionID,
			&m.GatewayPaymentID, &m.ExpiresAt, &m.CompletedAt, &m.CreatedAt,
		)
		return topupToDomain(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan expired topups: %w", err)
	}
	return sessions, nil
}

func scanTopup(row pgx.Row) (*domain.TopupSession, error) {
	var m TopupModel
	err := row.Scan(
		&m.ID, &m.ParentID, &m.Amount, &m.Status, &m.CheckoutSessionID,
		&m.GatewayPaymentID, &m.ExpiresAt, &m.CompletedAt, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTopupNotFound
		}
		return nil, fmt.Errorf("failed to scan topup session: %w", err)
	}
	return topupToDomain(m), nil
}
