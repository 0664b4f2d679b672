package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cantina/pos-backoffice/internal/domain/order"
)

const (
	getOrderSQL = `SELECT id, table_id, operator_id, status, subtotal, tax_amount,
		total_amount, merged_into_id, cancel_reason, created_at, submitted_at,
		preparing_at, ready_at, served_at, paid_at, cancelled_at
		FROM orders WHERE id = $1`

	getOrderItemsSQL = `SELECT id, order_id, product_id, product_name, quantity,
		unit_price, status, created_at
		FROM order_items WHERE order_id = $1 ORDER BY created_at, id`

	createOrderSQL = `INSERT INTO orders (id, table_id, operator_id, status,
		subtotal, tax_amount, total_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	updateOrderSQL = `UPDATE orders SET status = $2, subtotal = $3,
		tax_amount = $4, total_amount = $5, merged_into_id = $6,
		cancel_reason = $7, submitted_at = $8, preparing_at = $9,
		ready_at = $10, served_at = $11, paid_at = $12, cancelled_at = $13
		WHERE id = $1`

	insertItemSQL = `INSERT INTO order_items (id, order_id, product_id,
		product_name, quantity, unit_price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	updateItemQuantitySQL = `UPDATE order_items SET quantity = $2 WHERE id = $1`

	deleteItemSQL = `DELETE FROM order_items WHERE id = $1`

	moveItemsSQL = `UPDATE order_items SET order_id = $2
		WHERE order_id = $1 AND id = ANY($3)`

	setItemsStatusSQL = `UPDATE order_items SET status = $2 WHERE order_id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Get returns the order with its items.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	q := querierFrom(ctx, r.pool)

	rows, err := q.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	itemRows, err := q.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", id, err)
	}
	return &o, nil
}

// Create persists a new order header and any items already attached.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	q := querierFrom(ctx, r.pool)
	_, err := q.Exec(ctx, createOrderSQL,
		o.ID, o.TableID, o.OperatorID, o.Status,
		o.Subtotal, o.TaxAmount, o.TotalAmount, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	for i := range o.Items {
		if err := r.InsertItem(ctx, &o.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

// Update persists the order header fields.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	tag, err := querierFrom(ctx, r.pool).Exec(ctx, updateOrderSQL,
		o.ID, o.Status, o.Subtotal, o.TaxAmount, o.TotalAmount,
		o.MergedIntoID, o.CancelReason, o.SubmittedAt, o.PreparingAt,
		o.ReadyAt, o.ServedAt, o.PaidAt, o.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// InsertItem persists a new line item.
func (r *OrderRepository) InsertItem(ctx context.Context, item *order.Item) error {
	_, err := querierFrom(ctx, r.pool).Exec(ctx, insertItemSQL,
		item.ID, item.OrderID, item.ProductID, item.ProductName,
		item.Quantity, item.UnitPrice, item.Status, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting item %q: %w", item.ID, err)
	}
	return nil
}

// UpdateItemQuantity changes a line quantity.
func (r *OrderRepository) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error {
	_, err := querierFrom(ctx, r.pool).Exec(ctx, updateItemQuantitySQL, itemID, quantity)
	if err != nil {
		return fmt.Errorf("updating item %q quantity: %w", itemID, err)
	}
	return nil
}

// DeleteItem removes a line item.
func (r *OrderRepository) DeleteItem(ctx context.Context, itemID string) error {
	_, err := querierFrom(ctx, r.pool).Exec(ctx, deleteItemSQL, itemID)
	if err != nil {
		return fmt.Errorf("deleting item %q: %w", itemID, err)
	}
	return nil
}

// MoveItems reassigns the given items to another order.
func (r *OrderRepository) MoveItems(ctx context.Context, fromOrderID, toOrderID string, itemIDs []string) error {
	_, err := querierFrom(ctx, r.pool).Exec(ctx, moveItemsSQL, fromOrderID, toOrderID, itemIDs)
	if err != nil {
		return fmt.Errorf("moving items from order %q: %w", fromOrderID, err)
	}
	return nil
}

// SetItemsStatus updates the kitchen-tracking status of all items on an order.
func (r *OrderRepository) SetItemsStatus(ctx context.Context, orderID string, status order.Status) error {
	_, err := querierFrom(ctx, r.pool).Exec(ctx, setItemsStatusSQL, orderID, status)
	if err != nil {
		return fmt.Errorf("updating item statuses for order %q: %w", orderID, err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.TableID, &o.OperatorID, &o.Status, &o.Subtotal,
		&o.TaxAmount, &o.TotalAmount, &o.MergedIntoID, &o.CancelReason,
		&o.CreatedAt, &o.SubmittedAt, &o.PreparingAt, &o.ReadyAt,
		&o.ServedAt, &o.PaidAt, &o.CancelledAt,
	)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var item order.Item
	err := row.Scan(
		&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
		&item.Quantity, &item.UnitPrice, &item.Status, &item.CreatedAt,
	)
	return item, err
}
