package invoice

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/cantina/pos-backoffice/internal/domain/order"
)

// numberRetries bounds the retry loop around invoice-number generation.
// A retry only happens when a concurrent creation claimed the same number.
const numberRetries = 3

// DeriverConfig holds the invoice numbering policy.
type DeriverConfig struct {
	// NumberPrefix is the PREFIX segment of PREFIX-YYYYMMDD-NNNN.
	// Defaults to "INV".
	NumberPrefix string
}

// Deriver computes invoice snapshots from orders and enforces their
// immutability rules. Invoices are created lazily on first access and frozen
// once paid.
type Deriver struct {
	repo     Repository
	orders   order.Repository
	payments PaymentSummer
	seq      SequenceSource
	prefix   string
	now      func() time.Time
}

// NewDeriver creates a Deriver with the required dependencies.
func NewDeriver(cfg DeriverConfig, repo Repository, orders order.Repository, payments PaymentSummer, seq SequenceSource) *Deriver {
	prefix := cfg.NumberPrefix
	if prefix == "" {
		prefix = "INV"
	}
	return &Deriver{
		repo:     repo,
		orders:   orders,
		payments: payments,
		seq:      seq,
		prefix:   prefix,
		now:      time.Now,
	}
}

// GetByID returns the invoice with the given id.
func (d *Deriver) GetByID(ctx context.Context, id string) (*Invoice, error) {
	return d.repo.GetByID(ctx, id)
}

// GetOrCreate returns the invoice for the order, deriving one from the
// order's current totals on first access. Idempotent: repeated calls return
// the same invoice unchanged.
func (d *Deriver) GetOrCreate(ctx context.Context, orderID string) (*Invoice, error) {
	inv, err := d.repo.GetByOrderID(ctx, orderID)
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "lookup invoice")
	}

	o, err := d.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := d.now()
	for attempt := 0; ; attempt++ {
		seq, err := d.seq.Next(ctx, now)
		if err != nil {
			return nil, errors.Wrap(err, "next invoice sequence")
		}
		inv = &Invoice{
			ID:           uuid.New().String(),
			OrderID:      o.ID,
			Number:       FormatNumber(d.prefix, now, seq),
			Subtotal:     o.Subtotal,
			DiscountType: DiscountNone,
			TaxAmount:    o.TaxAmount,
			TotalAmount:  o.TotalAmount,
			Status:       StatusPending,
			CreatedAt:    now,
		}
		err = d.repo.Create(ctx, inv)
		if err == nil {
			return inv, nil
		}
		// A concurrent first access already derived the invoice; return the
		// winner's row instead of retrying a doomed insert.
		if errors.Is(err, ErrExists) {
			return d.repo.GetByOrderID(ctx, orderID)
		}
		if errors.Is(err, ErrNumberTaken) && attempt < numberRetries {
			continue
		}
		return nil, errors.Wrap(err, "create invoice")
	}
}

// ApplyDiscount applies exactly one discount directive to an open invoice
// and rederives tax and total from the discounted subtotal. The four
// discount fields, tax and total persist in a single update.
func (d *Deriver) ApplyDiscount(ctx context.Context, invoiceID string, disc Discount, reason string) (*Invoice, error) {
	inv, err := d.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == StatusPaid || inv.Status == StatusCancelled {
		return nil, ErrClosed
	}
	if inv.DiscountAmount.IsPositive() {
		return nil, ErrDiscountApplied
	}

	amount, err := disc.Amount(inv.Subtotal)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThanOrEqual(inv.Subtotal) {
		return nil, ErrDiscountTooLarge
	}

	discounted := inv.Subtotal.Sub(amount)
	inv.DiscountType = disc.Type
	inv.DiscountValue = disc.Value
	inv.DiscountAmount = amount
	inv.DiscountReason = reason
	inv.TaxAmount = discounted.Mul(order.TaxRate).Round(2)
	inv.TotalAmount = discounted.Add(inv.TaxAmount)

	if err := d.repo.Update(ctx, inv); err != nil {
		return nil, errors.Wrap(err, "update invoice")
	}
	return inv, nil
}

// Cancel voids an invoice that has no money against it. Fails with ErrClosed
// for paid invoices and ErrHasPayments when the ledger reports a positive
// net paid amount.
func (d *Deriver) Cancel(ctx context.Context, invoiceID, reason string) (*Invoice, error) {
	if reason == "" {
		return nil, ErrEmptyReason
	}
	inv, err := d.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == StatusCancelled {
		return inv, nil
	}
	if inv.Status == StatusPaid {
		return nil, ErrClosed
	}
	paid, err := d.payments.TotalPaid(ctx, invoiceID)
	if err != nil {
		return nil, errors.Wrap(err, "total paid")
	}
	if paid.IsPositive() {
		return nil, ErrHasPayments
	}

	now := d.now()
	inv.Status = StatusCancelled
	inv.CancelReason = reason
	inv.CancelledAt = &now
	if err := d.repo.Update(ctx, inv); err != nil {
		return nil, errors.Wrap(err, "update invoice")
	}
	return inv, nil
}

// MarkPaid records full settlement. Legal from pending or partial.
func (d *Deriver) MarkPaid(ctx context.Context, invoiceID string) (*Invoice, error) {
	inv, err := d.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == StatusPaid {
		return inv, nil
	}
	if inv.Status == StatusCancelled {
		return nil, ErrClosed
	}
	now := d.now()
	inv.Status = StatusPaid
	inv.PaidAt = &now
	if err := d.repo.Update(ctx, inv); err != nil {
		return nil, errors.Wrap(err, "update invoice")
	}
	return inv, nil
}

// MarkPartial records partial settlement. Legal from pending (first partial
// payment) and from paid (a refund reopened the balance).
func (d *Deriver) MarkPartial(ctx context.Context, invoiceID string) (*Invoice, error) {
	inv, err := d.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == StatusPartial {
		return inv, nil
	}
	if inv.Status == StatusCancelled {
		return nil, ErrClosed
	}
	inv.Status = StatusPartial
	inv.PaidAt = nil
	if err := d.repo.Update(ctx, inv); err != nil {
		return nil, errors.Wrap(err, "update invoice")
	}
	return inv, nil
}
