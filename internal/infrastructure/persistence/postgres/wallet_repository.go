package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Cerjho/canteen-orders/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WalletRepository struct {
	db *pgxpool.Pool
}

func NewWalletRepository(db *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{db: db}
}

// FindOrCreate returns the user's wallet, creating a zero-balance row on
// first touch. The upsert makes concurrent first touches converge on one row.
func (r *WalletRepository) FindOrCreate(ctx context.Context, userID string) (*domain.WalletAccount, error) {
	query := `
		INSERT INTO wallet_accounts (user_id, balance, created_at, updated_at)
		VALUES ($1, 0, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, balance, created_at, updated_at
	`
	var m WalletModel
	err := r.db.QueryRow(ctx, query, userID).Scan(&m.UserID, &m.Balance, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("wallet upsert returned no row for %s", userID)
		}
		return nil, fmt.Errorf("failed to find or create wallet: %w", err)
	}
	return walletToDomain(m), nil
}

// CompareAndSetBalance writes newBalance only while the stored balance still
// equals oldBalance. False means another writer moved the balance first and
// the caller must re-read and retry.
func (r *WalletRepository) CompareAndSetBalance(ctx context.Context, userID string, oldBalance, newBalance int64) (bool, error) {
	query := `
		UPDATE wallet_accounts
		SET balance = $3, updated_at = now()
		WHERE user_id = $1 AND balance = $2
	`
	tag, err := r.db.Exec(ctx, query, userID, oldBalance, newBalance)
	if err != nil {
		return false, fmt.Errorf("failed to update wallet balance: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
