package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status enumerates invoice settlement states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPartial   Status = "partial"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// DiscountType is the closed set of legal discount shapes. Promotion and
// loyalty engines upstream reduce to exactly one of these.
type DiscountType string

const (
	DiscountNone       DiscountType = "none"
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Invoice is a billing snapshot derived from exactly one order. Once paid it
// is immutable.
type Invoice struct {
	ID             string
	OrderID        string
	Number         string
	Subtotal       decimal.Decimal
	DiscountType   DiscountType
	DiscountValue  decimal.Decimal
	DiscountAmount decimal.Decimal
	DiscountReason string
	TaxAmount      decimal.Decimal
	TotalAmount    decimal.Decimal
	Status         Status
	CancelReason   string
	CreatedAt      time.Time
	PaidAt         *time.Time
	CancelledAt    *time.Time
}

var (
	// ErrNotFound is returned when the referenced invoice does not exist.
	ErrNotFound = errors.New("invoice not found")
	// ErrDiscountApplied is returned when a second discount is attempted;
	// at most one non-cancelled discount may apply per invoice.
	ErrDiscountApplied = errors.New("invoice already has a discount")
	// ErrClosed is returned when mutating a paid or cancelled invoice.
	ErrClosed = errors.New("invoice is closed to changes")
	// ErrHasPayments is returned when cancelling an invoice that has a
	// positive net paid amount on the ledger.
	ErrHasPayments = errors.New("invoice has recorded payments")
	// ErrEmptyReason is returned when cancelling without a reason.
	ErrEmptyReason = errors.New("cancellation reason required")
	// ErrNumberTaken signals an invoice number collision; callers retry with
	// a fresh sequence value.
	ErrNumberTaken = errors.New("invoice number already taken")
	// ErrExists signals that a concurrent creation already derived the
	// invoice for the order; callers fetch and return that invoice.
	ErrExists = errors.New("invoice already exists for order")
	// ErrPercentOutOfRange is returned for percentage discounts above 100
	// or below zero.
	ErrPercentOutOfRange = errors.New("percentage discount must be between 0 and 100")
	// ErrDiscountNotPositive is returned for fixed discounts with a
	// non-positive value.
	ErrDiscountNotPositive = errors.New("discount value must be positive")
	// ErrDiscountTooLarge is returned when the discount would drive the
	// payable amount to zero or below.
	ErrDiscountTooLarge = errors.New("discount must be smaller than the subtotal")
	// ErrInvalidDiscountType is returned for discount types other than
	// percentage or fixed.
	ErrInvalidDiscountType = errors.New("discount type must be percentage or fixed")
)

// FormatNumber renders the external invoice-number contract
// PREFIX-YYYYMMDD-NNNN. The format is bit-exact for printed receipts and
// reconciliation reports.
func FormatNumber(prefix string, day time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, day.Format("20060102"), seq)
}

// SequenceSource hands out the next invoice sequence number for a calendar
// day. Implementations must increment atomically; the sequence restarts at 1
// on the first invoice of each day.
type SequenceSource interface {
	Next(ctx context.Context, day time.Time) (int, error)
}

// PaymentSummer reports the reconciled net paid amount for an invoice.
type PaymentSummer interface {
	TotalPaid(ctx context.Context, invoiceID string) (decimal.Decimal, error)
}

// Repository defines persistence operations for invoices. Update persists
// all mutable fields in one statement so discount application is atomic.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Invoice, error)
	GetByOrderID(ctx context.Context, orderID string) (*Invoice, error)
	// Create inserts the invoice, returning ErrNumberTaken when the
	// generated number lost a uniqueness race and ErrExists when the order
	// already has an invoice. Neither failure may abort a surrounding
	// transaction; the deriver recovers from both.
	Create(ctx context.Context, inv *Invoice) error
	Update(ctx context.Context, inv *Invoice) error
}
