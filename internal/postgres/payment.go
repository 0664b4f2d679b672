package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cantina/pos-backoffice/internal/domain/payment"
)

const (
	getMethodSQL = `SELECT id, name, active, created_at
		FROM payment_methods WHERE id = $1`

	listMethodsSQL = `SELECT id, name, active, created_at
		FROM payment_methods ORDER BY name`

	transactionColumns = `id, invoice_id, method_id, amount, reference_number,
		notes, status, refunds_transaction_id, processed_by, processed_at`

	getTransactionSQL = `SELECT ` + transactionColumns + `
		FROM payment_transactions WHERE id = $1`

	listTransactionsSQL = `SELECT ` + transactionColumns + `
		FROM payment_transactions WHERE invoice_id = $1
		ORDER BY processed_at, id`

	insertTransactionSQL = `INSERT INTO payment_transactions (id, invoice_id,
		method_id, amount, reference_number, notes, status,
		refunds_transaction_id, processed_by, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	setTransactionStatusSQL = `UPDATE payment_transactions SET status = $2 WHERE id = $1`

	// Signed sum: refund rows are negative, so this is the net paid amount.
	totalPaidSQL = `SELECT COALESCE(SUM(amount), 0)
		FROM payment_transactions WHERE invoice_id = $1`

	refundedAmountSQL = `SELECT COALESCE(-SUM(amount), 0)
		FROM payment_transactions WHERE refunds_transaction_id = $1`

	// Exclusive lock on the invoice row; serializes balance recomputation
	// across concurrent charges and refunds.
	lockInvoiceSQL = `SELECT id, total_amount, status = 'cancelled'
		FROM invoices WHERE id = $1 FOR UPDATE`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// GetMethod returns the payment method with the given id.
func (r *PaymentRepository) GetMethod(ctx context.Context, id string) (*payment.Method, error) {
	var m payment.Method
	err := querierFrom(ctx, r.pool).QueryRow(ctx, getMethodSQL, id).
		Scan(&m.ID, &m.Name, &m.Active, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrMethodNotFound
		}
		return nil, fmt.Errorf("getting payment method %q: %w", id, err)
	}
	return &m, nil
}

// ListMethods returns all payment methods.
func (r *PaymentRepository) ListMethods(ctx context.Context) ([]payment.Method, error) {
	rows, err := querierFrom(ctx, r.pool).Query(ctx, listMethodsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing payment methods: %w", err)
	}
	methods, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (payment.Method, error) {
		var m payment.Method
		err := row.Scan(&m.ID, &m.Name, &m.Active, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing payment methods: %w", err)
	}
	return methods, nil
}

// GetTransaction returns the ledger entry with the given id.
func (r *PaymentRepository) GetTransaction(ctx context.Context, id string) (*payment.Transaction, error) {
	rows, err := querierFrom(ctx, r.pool).Query(ctx, getTransactionSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting transaction %q: %w", id, err)
	}
	tx, err := pgx.CollectExactlyOneRow(rows, scanTransaction)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("getting transaction %q: %w", id, err)
	}
	return &tx, nil
}

// ListByInvoice returns all ledger entries for the invoice, oldest first.
func (r *PaymentRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]payment.Transaction, error) {
	rows, err := querierFrom(ctx, r.pool).Query(ctx, listTransactionsSQL, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions for invoice %q: %w", invoiceID, err)
	}
	txs, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("listing transactions for invoice %q: %w", invoiceID, err)
	}
	return txs, nil
}

// Insert appends a ledger entry.
func (r *PaymentRepository) Insert(ctx context.Context, tx *payment.Transaction) error {
	_, err := querierFrom(ctx, r.pool).Exec(ctx, insertTransactionSQL,
		tx.ID, tx.InvoiceID, tx.MethodID, tx.Amount, tx.Reference, tx.Notes,
		tx.Status, tx.RefundsTransactionID, tx.ProcessedBy, tx.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting transaction %q: %w", tx.ID, err)
	}
	return nil
}

// SetStatus updates a transaction's status.
func (r *PaymentRepository) SetStatus(ctx context.Context, txID string, status payment.Status) error {
	tag, err := querierFrom(ctx, r.pool).Exec(ctx, setTransactionStatusSQL, txID, status)
	if err != nil {
		return fmt.Errorf("updating transaction %q status: %w", txID, err)
	}
	if tag.RowsAffected() == 0 {
		return payment.ErrNotFound
	}
	return nil
}

// TotalPaid returns the signed sum of all ledger entries for the invoice.
func (r *PaymentRepository) TotalPaid(ctx context.Context, invoiceID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := querierFrom(ctx, r.pool).QueryRow(ctx, totalPaidSQL, invoiceID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing payments for invoice %q: %w", invoiceID, err)
	}
	return total, nil
}

// RefundedAmount returns the positive total refunded against a charge.
func (r *PaymentRepository) RefundedAmount(ctx context.Context, txID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := querierFrom(ctx, r.pool).QueryRow(ctx, refundedAmountSQL, txID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing refunds for transaction %q: %w", txID, err)
	}
	return total, nil
}

// LockInvoice reads the invoice balance under an exclusive row lock.
func (r *PaymentRepository) LockInvoice(ctx context.Context, invoiceID string) (*payment.InvoiceBalance, error) {
	var bal payment.InvoiceBalance
	err := querierFrom(ctx, r.pool).QueryRow(ctx, lockInvoiceSQL, invoiceID).
		Scan(&bal.ID, &bal.TotalAmount, &bal.Cancelled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("locking invoice %q: %w", invoiceID, err)
	}
	return &bal, nil
}

func scanTransaction(row pgx.CollectableRow) (payment.Transaction, error) {
	var tx payment.Transaction
	err := row.Scan(
		&tx.ID, &tx.InvoiceID, &tx.MethodID, &tx.Amount, &tx.Reference,
		&tx.Notes, &tx.Status, &tx.RefundsTransactionID, &tx.ProcessedBy,
		&tx.ProcessedAt,
	)
	return tx, err
}
