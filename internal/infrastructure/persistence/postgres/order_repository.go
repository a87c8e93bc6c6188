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

var ErrOrderNotFound = fmt.Errorf("order %w", domain.ErrNotFound)

const orderColumns = `
	id, parent_id, student_id, client_order_id, status, payment_status,
	payment_method, total_amount, payment_due_at, checkout_session_id,
	gateway_payment_id, payment_group_id, scheduled_for, notes,
	created_at, updated_at
	`

type OrderRepository struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order and its items. Item rows are written after the
// order row; a failure between the two is cleaned up by the caller's
// rollback path, which deletes by order id.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (
			id, parent_id, student_id, client_order_id, status, payment_status,
			payment_method, total_amount, payment_due_at, checkout_session_id,
			gateway_payment_id, payment_group_id, scheduled_for, notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	m := orderToDBModel(order)
	_, err := r.db.Exec(ctx, query,
		m.ID, m.ParentID, m.StudentID, m.ClientOrderID, m.Status, m.PaymentStatus,
		m.PaymentMethod, m.TotalAmount, m.PaymentDueAt, m.CheckoutSessionID,
		m.GatewayPaymentID, m.PaymentGroupID, m.ScheduledFor, m.Notes,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, quantity, price_at_order)
		VALUES ($1, $2, $3, $4)
	`
	for _, it := range order.Items {
		if _, err := r.db.Exec(ctx, itemQuery, it.OrderID, it.ProductID, it.Quantity, it.PriceAtOrder); err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}
	return nil
}

// FindByID retrieves an order with its items.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT` + orderColumns + `FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// FindByClientOrderID retrieves a guardian's order by its idempotency key.
func (r *OrderRepository) FindByClientOrderID(ctx context.Context, parentID, clientOrderID string) (*domain.Order, error) {
	query := `SELECT` + orderColumns + `FROM orders WHERE parent_id = $1 AND client_order_id = $2`

	order, err := scanOrder(r.db.QueryRow(ctx, query, parentID, clientOrderID))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// FindByCheckoutSession retrieves all orders attached to a gateway session.
// Batched orders share a session through their payment group.
func (r *OrderRepository) FindByCheckoutSession(ctx context.Context, sessionID string) ([]*domain.Order, error) {
	query := `SELECT` + orderColumns + `FROM orders WHERE checkout_session_id = $1 ORDER BY created_at`
	return r.queryOrders(ctx, query, sessionID)
}

// FindByPaymentGroup retrieves every sibling order of a batched payment.
func (r *OrderRepository) FindByPaymentGroup(ctx context.Context, groupID string) ([]*domain.Order, error) {
	query := `SELECT` + orderColumns + `FROM orders WHERE payment_group_id = $1 ORDER BY created_at`
	return r.queryOrders(ctx, query, groupID)
}

// FindExpired selects orders whose payment deadline has passed. The boundary
// is inclusive: due exactly at now counts as expired.
func (r *OrderRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Order, error) {
	query := `SELECT` + orderColumns + `
		FROM orders
		WHERE payment_status = 'awaiting_payment'
		  AND payment_due_at <= $1
		ORDER BY payment_due_at ASC
		LIMIT $2
	`
	return r.queryOrders(ctx, query, now, limit)
}

// SetCheckoutSession persists the gateway session reference and deadline.
func (r *OrderRepository) SetCheckoutSession(ctx context.Context, orderID, sessionID string, dueAt time.Time) error {
	query := `
		UPDATE orders
		SET checkout_session_id = $2, payment_due_at = $3, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, orderID, sessionID, dueAt)
	if err != nil {
		return fmt.Errorf("failed to set checkout session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) SetGatewayPaymentID(ctx context.Context, orderID, paymentID string) error {
	query := `UPDATE orders SET gateway_payment_id = $2, updated_at = now() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, orderID, paymentID)
	if err != nil {
		return fmt.Errorf("failed to set gateway payment id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// TransitionPayment is the optimistic lock every payment-state writer races
// on. The write succeeds only if payment_status still equals fromPayment;
// zero rows affected means another writer won.
func (r *OrderRepository) TransitionPayment(ctx context.Context, orderID string, fromPayment, toPayment domain.PaymentStatus, newStatus domain.OrderStatus) (bool, error) {
	query := `
		UPDATE orders
		SET status = $4, payment_status = $3, updated_at = now()
		WHERE id = $1 AND payment_status = $2
	`
	tag, err := r.db.Exec(ctx, query, orderID, string(fromPayment), string(toPayment), string(newStatus))
	if err != nil {
		return false, fmt.Errorf("failed to transition payment status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateStatusFrom applies a staff transition guarded on the current status.
func (r *OrderRepository) UpdateStatusFrom(ctx context.Context, orderID string, from, to domain.OrderStatus) (bool, error) {
	query := `
		UPDATE orders
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`
	tag, err := r.db.Exec(ctx, query, orderID, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// BulkUpdateStatus moves every listed order whose current status is in
// validFrom. Non-matching ids are skipped silently; the affected count is
// reported to the caller.
func (r *OrderRepository) BulkUpdateStatus(ctx context.Context, orderIDs []string, validFrom []domain.OrderStatus, to domain.OrderStatus) (int64, error) {
	from := make([]string, len(validFrom))
	for i, s := range validFrom {
		from[i] = string(s)
	}
	query := `
		UPDATE orders
		SET status = $3, updated_at = now()
		WHERE id = ANY($1) AND status = ANY($2)
	`
	tag, err := r.db.Exec(ctx, query, orderIDs, from, string(to))
	if err != nil {
		return 0, fmt.Errorf("failed to bulk update order status: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MarkRefunded cancels an order with refunded payment status, guarded on the
// order not already being cancelled. The loser of a concurrent refund race
// sees zero rows affected.
func (r *OrderRepository) MarkRefunded(ctx context.Context, orderID string) (bool, error) {
	query := `
		UPDATE orders
		SET status = 'cancelled', payment_status = 'refunded', updated_at = now()
		WHERE id = $1 AND status <> 'cancelled'
	`
	tag, err := r.db.Exec(ctx, query, orderID)
	if err != nil {
		return false, fmt.Errorf("failed to mark order refunded: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes an order and its items. Only the checkout rollback path
// uses this, before the order has ever been visible to the guardian.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("failed to delete order items: %w", err)
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

func (r *OrderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Order, error) {
		var m OrderModel
		err := row.Scan(
			&m.ID, &m.ParentID, &m.StudentID, &m.ClientOrderID, &m.Status, &m.PaymentStatus,
			&m.PaymentMethod, &m.TotalAmount, &m.PaymentDueAt, &m.CheckoutSessionID,
			&m.GatewayPaymentID, &m.PaymentGroupID, &m.ScheduledFor, &m.Notes,
			&m.CreatedAt, &m.UpdatedAt,
		)
		return orderToDomain(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}
	for _, o := range orders {
		if err := r.loadItems(ctx, o); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, order *domain.Order) error {
	query := `
		SELECT order_id, product_id, quantity, price_at_order
		FROM order_items WHERE order_id = $1
	`
	rows, err := r.db.Query(ctx, query, order.ID)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OrderItem, error) {
		var m OrderItemModel
		err := row.Scan(&m.OrderID, &m.ProductID, &m.Quantity, &m.PriceAtOrder)
		return itemToDomain(m), err
	})
	if err != nil {
		return fmt.Errorf("scan order items: %w", err)
	}
	order.Items = items
	return nil
}

// scanOrder converts a database row into a domain Order.
// Returns ErrOrderNotFound if the row doesn't exist.
func scanOrder(row pgx.Row) (*domain.Order, error) {
	var m OrderModel
	err := row.Scan(
		&m.ID, &m.ParentID, &m.StudentID, &m.ClientOrderID, &m.Status, &m.PaymentStatus,
		&m.PaymentMethod, &m.TotalAmount, &m.PaymentDueAt, &m.CheckoutSessionID,
		&m.GatewayPaymentID, &m.PaymentGroupID, &m.ScheduledFor, &m.Notes,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	return orderToDomain(m), nil
}
