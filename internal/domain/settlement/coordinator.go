// Package settlement orchestrates invoice derivation, payment recording and
// order/table release as one failure-atomic unit of work.
package settlement

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/cantina/pos-backoffice/internal/domain/invoice"
	"github.com/cantina/pos-backoffice/internal/domain/order"
	"github.com/cantina/pos-backoffice/internal/domain/payment"
)

// UnitOfWork executes fn as one failure-atomic unit against the backing
// store. Nested calls join the enclosing unit.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(ctx context.Context) error) error
}

// Coordinator drives the settlement chain: derive the invoice, record the
// payment, reconcile, and on full settlement close the order and free its
// table. If any step fails nothing persists.
type Coordinator struct {
	orders   *order.Ledger
	invoices *invoice.Deriver
	payments *payment.Ledger
	uow      UnitOfWork
}

// NewCoordinator creates a settlement Coordinator.
func NewCoordinator(orders *order.Ledger, invoices *invoice.Deriver, payments *payment.Ledger, uow UnitOfWork) *Coordinator {
	return &Coordinator{
		orders:   orders,
		invoices: invoices,
		payments: payments,
		uow:      uow,
	}
}

// PaymentRequest holds the input for settling (part of) an order.
type PaymentRequest struct {
	OrderID     string
	MethodID    string
	Amount      decimal.Decimal
	Reference   string
	Notes       string
	ProcessedBy string
}

// Result reports the settlement state after a payment or refund.
type Result struct {
	Invoice          *invoice.Invoice
	Transactions     []payment.Transaction
	TotalPaid        decimal.Decimal
	RemainingBalance decimal.Decimal
	FullySettled     bool
}

// ProcessPayment derives the invoice on first payment, records one charge,
// and reconciles: a fully settled invoice flips to paid, the order is marked
// paid and its table released; otherwise the invoice flips to partial.
func (c *Coordinator) ProcessPayment(ctx context.Context, req PaymentRequest) (*Result, error) {
	var out *Result
	err := c.uow.Within(ctx, func(ctx context.Context) error {
		inv, err := c.invoices.GetOrCreate(ctx, req.OrderID)
		if err != nil {
			return err
		}
		res, err := c.payments.Charge(ctx, payment.ChargeRequest{
			InvoiceID:   inv.ID,
			MethodID:    req.MethodID,
			Amount:      req.Amount,
			Reference:   req.Reference,
			Notes:       req.Notes,
			ProcessedBy: req.ProcessedBy,
		})
		if err != nil {
			return err
		}
		inv, err = c.reconcileCharge(ctx, inv, req.OrderID, res.TotalPaid, res.FullySettled)
		if err != nil {
			return err
		}
		out = &Result{
			Invoice:          inv,
			Transactions:     []payment.Transaction{*res.Transaction},
			TotalPaid:        res.TotalPaid,
			RemainingBalance: inv.TotalAmount.Sub(res.TotalPaid),
			FullySettled:     res.FullySettled,
		}
		return nil
	})
	return out, err
}

// ProcessSplitPayment settles an order with multiple tenders in one atomic
// batch; the amounts must cover the full remaining balance.
func (c *Coordinator) ProcessSplitPayment(ctx context.Context, orderID string, entries []payment.SplitEntry, processedBy string) (*Result, error) {
	var out *Result
	err := c.uow.Within(ctx, func(ctx context.Context) error {
		inv, err := c.invoices.GetOrCreate(ctx, orderID)
		if err != nil {
			return err
		}
		res, err := c.payments.SplitCharge(ctx, inv.ID, entries, processedBy)
		if err != nil {
			return err
		}
		inv, err = c.reconcileCharge(ctx, inv, orderID, res.TotalPaid, res.FullySettled)
		if err != nil {
			return err
		}
		out = &Result{
			Invoice:          inv,
			Transactions:     res.Transactions,
			TotalPaid:        res.TotalPaid,
			RemainingBalance: inv.TotalAmount.Sub(res.TotalPaid),
			FullySettled:     res.FullySettled,
		}
		return nil
	})
	return out, err
}

// ProcessRefund records a refund and rederives the invoice status: a paid
// invoice with money handed back reopens as partial. The order stays closed
// and the table stays released; order and invoice statuses reconcile
// independently once an order is served.
func (c *Coordinator) ProcessRefund(ctx context.Context, txID string, amount decimal.Decimal, reason, processedBy string) (*Result, error) {
	var out *Result
	err := c.uow.Within(ctx, func(ctx context.Context) error {
		res, err := c.payments.Refund(ctx, txID, amount, reason, processedBy)
		if err != nil {
			return err
		}
		inv, err := c.invoices.GetByID(ctx, res.Original.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status == invoice.StatusPaid && res.TotalPaid.LessThan(inv.TotalAmount) {
			inv, err = c.invoices.MarkPartial(ctx, inv.ID)
			if err != nil {
				return errors.Wrap(err, "reopen invoice")
			}
		}
		out = &Result{
			Invoice:          inv,
			Transactions:     []payment.Transaction{*res.Refund},
			TotalPaid:        res.TotalPaid,
			RemainingBalance: inv.TotalAmount.Sub(res.TotalPaid),
			FullySettled:     res.TotalPaid.GreaterThanOrEqual(inv.TotalAmount),
		}
		return nil
	})
	return out, err
}

// reconcileCharge applies the invoice and order side effects of a recorded
// charge.
func (c *Coordinator) reconcileCharge(ctx context.Context, inv *invoice.Invoice, orderID string, totalPaid decimal.Decimal, settled bool) (*invoice.Invoice, error) {
	if settled {
		inv, err := c.invoices.MarkPaid(ctx, inv.ID)
		if err != nil {
			return nil, errors.Wrap(err, "mark invoice paid")
		}
		if _, err := c.orders.MarkPaid(ctx, orderID); err != nil {
			return nil, err
		}
		return inv, nil
	}
	inv, err := c.invoices.MarkPartial(ctx, inv.ID)
	if err != nil {
		return nil, errors.Wrap(err, "mark invoice partial")
	}
	return inv, nil
}
