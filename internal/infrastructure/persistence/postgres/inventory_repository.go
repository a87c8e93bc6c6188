package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Cerjho/canteen-orders/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type InventoryRepository struct {
	db *pgxpool.Pool
}

func NewInventoryRepository(db *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// GetProducts loads the requested products keyed by id. Missing ids are
// simply absent from the map; the caller decides whether that is an error.
func (r *InventoryRepository) GetProducts(ctx context.Context, productIDs []string) (map[string]*domain.Product, error) {
	query := `
		SELECT id, name, price, available, stock_quantity
		FROM products WHERE id = ANY($1)
	`
	rows, err := r.db.Query(ctx, query, productIDs)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Product, error) {
		var m ProductModel
		err := row.Scan(&m.ID, &m.Name, &m.Price, &m.Available, &m.StockQuantity)
		return productToDomain(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	out := make(map[string]*domain.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// ReserveStock decrements stock only while enough remains. The RETURNING
// value is the post-decrement quantity, so the pre-decrement value handed
// back for undo records is returned+qty. ok=false means the guard lost:
// either not enough stock or the product does not exist.
func (r *InventoryRepository) ReserveStock(ctx context.Context, productID string, qty int) (int, bool, error) {
	query := `
		UPDATE products
		SET stock_quantity = stock_quantity - $2
		WHERE id = $1 AND stock_quantity >= $2
		RETURNING stock_quantity
	`
	var remaining int
	err := r.db.QueryRow(ctx, query, productID, qty).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to reserve stock: %w", err)
	}
	return remaining + qty, true, nil
}

// SetStock writes an exact quantity. Only checkout rollback uses this, to
// restore the value ReserveStock reported.
func (r *InventoryRepository) SetStock(ctx context.Context, productID string, value int) error {
	query := `UPDATE products SET stock_quantity = $2 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, productID, value)
	if err != nil {
		return fmt.Errorf("failed to set stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s not found", productID)
	}
	return nil
}

// ReleaseStock returns reserved units to the pool additively, so concurrent
// sales since the reservation are never clobbered.
func (r *InventoryRepository) ReleaseStock(ctx context.Context, productID string, qty int) error {
	query := `UPDATE products SET stock_quantity = stock_quantity + $2 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, productID, qty)
	if err != nil {
		return fmt.Errorf("failed to release stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s not found", productID)
	}
	return nil
}
