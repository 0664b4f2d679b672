package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cantina/pos-backoffice/internal/domain/invoice"
)

const (
	invoiceColumns = `id, order_id, invoice_number, subtotal, discount_type,
		discount_value, discount_amount, discount_reason, tax_amount,
		total_amount, status, cancel_reason, created_at, paid_at, cancelled_at`

	getInvoiceSQL = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	getInvoiceByOrderSQL = `SELECT ` + invoiceColumns + ` FROM invoices WHERE order_id = $1`

	createInvoiceSQL = `INSERT INTO invoices (id, order_id, invoice_number,
		subtotal, discount_type, discount_value, discount_amount,
		discount_reason, tax_amount, total_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	updateInvoiceSQL = `UPDATE invoices SET discount_type = $2,
		discount_value = $3, discount_amount = $4, discount_reason = $5,
		tax_amount = $6, total_amount = $7, status = $8, cancel_reason = $9,
		paid_at = $10, cancelled_at = $11
		WHERE id = $1`

	// Atomic increment-and-read; the sequence restarts at 1 on the first
	// invoice of each calendar day.
	nextInvoiceSeqSQL = `INSERT INTO invoice_sequences (day, value)
		VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET value = invoice_sequences.value + 1
		RETURNING value`
)

var (
	_ invoice.Repository     = (*InvoiceRepository)(nil)
	_ invoice.SequenceSource = (*InvoiceRepository)(nil)
)

// InvoiceRepository implements invoice.Repository and the day-scoped
// invoice-number sequence backed by PostgreSQL.
type InvoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository returns an InvoiceRepository that uses the given pool.
func NewInvoiceRepository(pool *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

// GetByID returns the invoice with the given id.
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.get(ctx, getInvoiceSQL, id)
}

// GetByOrderID returns the invoice derived from the given order.
func (r *InvoiceRepository) GetByOrderID(ctx context.Context, orderID string) (*invoice.Invoice, error) {
	return r.get(ctx, getInvoiceByOrderSQL, orderID)
}

func (r *InvoiceRepository) get(ctx context.Context, sql, arg string) (*invoice.Invoice, error) {
	rows, err := querierFrom(ctx, r.pool).Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting invoice %q: %w", arg, err)
	}
	inv, err := pgx.CollectExactlyOneRow(rows, scanInvoice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invoice.ErrNotFound
		}
		return nil, fmt.Errorf("getting invoice %q: %w", arg, err)
	}
	return &inv, nil
}

// Create inserts the invoice. A unique violation on the invoice number maps
// to invoice.ErrNumberTaken so the deriver can retry with a fresh sequence;
// a violation on order_id maps to invoice.ErrExists so the deriver returns
// the invoice the concurrent winner created.
func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	q := querierFrom(ctx, r.pool)
	exec := func(q querier) error {
		_, err := q.Exec(ctx, createInvoiceSQL,
			inv.ID, inv.OrderID, inv.Number, inv.Subtotal, inv.DiscountType,
			inv.DiscountValue, inv.DiscountAmount, inv.DiscountReason,
			inv.TaxAmount, inv.TotalAmount, inv.Status, inv.CreatedAt,
		)
		return err
	}

	var err error
	if tx, ok := q.(pgx.Tx); ok {
		// Inside a unit of work a unique violation would abort the whole
		// transaction and poison the retry. The savepoint (pgx nested
		// Begin) confines the failure to this insert.
		var inner pgx.Tx
		inner, err = tx.Begin(ctx)
		if err != nil {
			return fmt.Errorf("creating invoice %q: %w", inv.Number, err)
		}
		if err = exec(inner); err != nil {
			_ = inner.Rollback(ctx)
		} else {
			err = inner.Commit(ctx)
		}
	} else {
		err = exec(q)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "invoices_order_id_key" {
				return invoice.ErrExists
			}
			return invoice.ErrNumberTaken
		}
		return fmt.Errorf("creating invoice %q: %w", inv.Number, err)
	}
	return nil
}

// Update persists all mutable invoice fields in one statement.
func (r *InvoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	tag, err := querierFrom(ctx, r.pool).Exec(ctx, updateInvoiceSQL,
		inv.ID, inv.DiscountType, inv.DiscountValue, inv.DiscountAmount,
		inv.DiscountReason, inv.TaxAmount, inv.TotalAmount, inv.Status,
		inv.CancelReason, inv.PaidAt, inv.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("updating invoice %q: %w", inv.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return invoice.ErrNotFound
	}
	return nil
}

// Next returns the next invoice sequence number for the given day via an
// atomic upsert, never read-then-increment.
func (r *InvoiceRepository) Next(ctx context.Context, day time.Time) (int, error) {
	var value int
	err := querierFrom(ctx, r.pool).
		QueryRow(ctx, nextInvoiceSeqSQL, day.Format("2006-01-02")).
		Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("advancing invoice sequence: %w", err)
	}
	return value, nil
}

func scanInvoice(row pgx.CollectableRow) (invoice.Invoice, error) {
	var inv invoice.Invoice
	err := row.Scan(
		&inv.ID, &inv.OrderID, &inv.Number, &inv.Subtotal, &inv.DiscountType,
		&inv.DiscountValue, &inv.DiscountAmount, &inv.DiscountReason,
		&inv.TaxAmount, &inv.TotalAmount, &inv.Status, &inv.CancelReason,
		&inv.CreatedAt, &inv.PaidAt, &inv.CancelledAt,
	)
	return inv, err
}
