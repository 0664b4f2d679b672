package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Tolerance is the fixed 0.01 currency-unit allowance applied to every
// monetary comparison on the ledger. It absorbs rounding drift between
// split payments, refunds and the invoice total, and is part of the
// external reconciliation contract.
var Tolerance = decimal.RequireFromString("0.01")

// Status enumerates transaction states. A charge stays completed until its
// refunds exhaust it, at which point it flips to refunded. Refund rows are
// themselves completed negative-amount entries and never change state.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
)

// Method is a tender type (cash, card, voucher). Inactive methods reject
// new charges.
type Method struct {
	ID        string
	Name      string
	Active    bool
	CreatedAt time.Time
}

// Transaction is one append-only ledger entry against an invoice. Amount is
// positive for a charge and negative for a refund; a refund references the
// charge it reverses.
type Transaction struct {
	ID                   string
	InvoiceID            string
	MethodID             string
	Amount               decimal.Decimal
	Reference            string
	Notes                string
	Status               Status
	RefundsTransactionID *string
	ProcessedBy          string
	ProcessedAt          time.Time
}

// InvoiceBalance is the slice of invoice state the ledger needs for
// reconciliation, read under an exclusive row lock.
type InvoiceBalance struct {
	ID          string
	TotalAmount decimal.Decimal
	Cancelled   bool
}

var (
	// ErrNotFound is returned when the referenced transaction does not exist.
	ErrNotFound = errors.New("transaction not found")
	// ErrInvoiceNotFound is returned when the target invoice does not exist.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrMethodNotFound is returned when the payment method does not exist.
	ErrMethodNotFound = errors.New("payment method not found")
	// ErrMethodUnavailable is returned when the payment method is inactive.
	ErrMethodUnavailable = errors.New("payment method unavailable")
	// ErrAmountNotPositive is returned for zero or negative charge amounts.
	ErrAmountNotPositive = errors.New("amount must be positive")
	// ErrInvoiceClosed is returned when charging a cancelled invoice.
	ErrInvoiceClosed = errors.New("invoice is cancelled")
	// ErrSplitMismatch is returned when a split payment's amounts do not sum
	// to the remaining balance within the tolerance.
	ErrSplitMismatch = errors.New("split amounts must sum to the remaining balance")
	// ErrNotRefundable is returned when the referenced transaction is not a
	// charge (refund rows cannot themselves be refunded).
	ErrNotRefundable = errors.New("transaction is not a refundable charge")
	// ErrAlreadyRefunded is returned when refunding a charge whose status
	// already flipped to refunded.
	ErrAlreadyRefunded = errors.New("transaction is fully refunded")
)

// OverPaymentError indicates a charge exceeding the remaining balance by
// more than the tolerance.
type OverPaymentError struct {
	Amount    decimal.Decimal
	Remaining decimal.Decimal
}

func (e *OverPaymentError) Error() string {
	return fmt.Sprintf("charge %s exceeds remaining balance %s", e.Amount, e.Remaining)
}

// OverRefundError indicates a refund exceeding the charge's unrefunded
// amount.
type OverRefundError struct {
	Amount     decimal.Decimal
	Refundable decimal.Decimal
}

func (e *OverRefundError) Error() string {
	return fmt.Sprintf("refund %s exceeds refundable amount %s", e.Amount, e.Refundable)
}

// Repository defines persistence operations for the payment ledger.
// LockInvoice must acquire an exclusive lock on the invoice row so that
// concurrent charges serialize before recomputing balances.
type Repository interface {
	GetMethod(ctx context.Context, id string) (*Method, error)
	ListMethods(ctx context.Context) ([]Method, error)
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]Transaction, error)
	Insert(ctx context.Context, tx *Transaction) error
	SetStatus(ctx context.Context, txID string, status Status) error
	// TotalPaid sums all signed transaction amounts for the invoice.
	// Refund rows are negative, so the result is the net paid amount.
	TotalPaid(ctx context.Context, invoiceID string) (decimal.Decimal, error)
	// RefundedAmount returns the positive total refunded against a charge.
	RefundedAmount(ctx context.Context, txID string) (decimal.Decimal, error)
	LockInvoice(ctx context.Context, invoiceID string) (*InvoiceBalance, error)
}

// UnitOfWork executes fn as one failure-atomic unit against the backing
// store. Nested calls join the enclosing unit.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(ctx context.Context) error) error
}
