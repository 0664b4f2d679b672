package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger records charges and refunds against invoices and exposes the
// reconciled totals. Every mutation locks the target invoice first, so two
// concurrent payments can never both validate against a stale balance.
type Ledger struct {
	repo Repository
	uow  UnitOfWork
	now  func() time.Time
}

// NewLedger creates a payment Ledger.
func NewLedger(repo Repository, uow UnitOfWork) *Ledger {
	return &Ledger{repo: repo, uow: uow, now: time.Now}
}

// TotalPaid returns the net paid amount for the invoice: charges minus
// their refunds.
func (l *Ledger) TotalPaid(ctx context.Context, invoiceID string) (decimal.Decimal, error) {
	return l.repo.TotalPaid(ctx, invoiceID)
}

// ListByInvoice returns all ledger entries for the invoice, oldest first.
func (l *Ledger) ListByInvoice(ctx context.Context, invoiceID string) ([]Transaction, error) {
	return l.repo.ListByInvoice(ctx, invoiceID)
}

// ListMethods returns all configured payment methods.
func (l *Ledger) ListMethods(ctx context.Context) ([]Method, error) {
	return l.repo.ListMethods(ctx)
}

// ChargeRequest holds the input for recording a single payment.
type ChargeRequest struct {
	InvoiceID   string
	MethodID    string
	Amount      decimal.Decimal
	Reference   string
	Notes       string
	ProcessedBy string
}

// ChargeResult reports the ledger state after a successful charge.
type ChargeResult struct {
	Transaction  *Transaction
	TotalPaid    decimal.Decimal
	FullySettled bool
}

// Charge appends one completed transaction. The charge may exceed the
// remaining balance by at most Tolerance; within that allowance the recorded
// amount is clamped to the remaining balance so the ledger never outgrows
// the invoice total.
func (l *Ledger) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	var out *ChargeResult
	err := l.uow.Within(ctx, func(ctx context.Context) error {
		res, err := l.charge(ctx, req)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

// charge performs the validated append. Callers must hold the unit of work.
func (l *Ledger) charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrAmountNotPositive
	}
	method, err := l.repo.GetMethod(ctx, req.MethodID)
	if err != nil {
		return nil, err
	}
	if !method.Active {
		return nil, ErrMethodUnavailable
	}

	bal, err := l.repo.LockInvoice(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if bal.Cancelled {
		return nil, ErrInvoiceClosed
	}
	paid, err := l.repo.TotalPaid(ctx, req.InvoiceID)
	if err != nil {
		return nil, errors.Wrap(err, "total paid")
	}

	remaining := bal.TotalAmount.Sub(paid)
	if req.Amount.GreaterThan(remaining.Add(Tolerance)) {
		return nil, &OverPaymentError{Amount: req.Amount, Remaining: remaining}
	}
	amount := req.Amount.Round(2)
	if amount.GreaterThan(remaining) {
		amount = remaining
	}
	// A settled invoice has nothing left to clamp against; tolerance absorbs
	// rounding on a real balance, it does not admit zero-amount rows.
	if !amount.IsPositive() {
		return nil, &OverPaymentError{Amount: req.Amount, Remaining: remaining}
	}

	tx := &Transaction{
		ID:          uuid.New().String(),
		InvoiceID:   req.InvoiceID,
		MethodID:    req.MethodID,
		Amount:      amount,
		Reference:   req.Reference,
		Notes:       req.Notes,
		Status:      StatusCompleted,
		ProcessedBy: req.ProcessedBy,
		ProcessedAt: l.now(),
	}
	if err := l.repo.Insert(ctx, tx); err != nil {
		return nil, errors.Wrap(err, "insert transaction")
	}

	newPaid := paid.Add(amount)
	return &ChargeResult{
		Transaction:  tx,
		TotalPaid:    newPaid,
		FullySettled: newPaid.GreaterThanOrEqual(bal.TotalAmount),
	}, nil
}

// SplitEntry is one leg of a split payment.
type SplitEntry struct {
	MethodID  string
	Amount    decimal.Decimal
	Reference string
}

// SplitResult reports the ledger state after a successful split charge.
type SplitResult struct {
	Transactions []Transaction
	TotalPaid    decimal.Decimal
	FullySettled bool
}

// SplitCharge records one charge per entry as a single atomic batch. The
// entry amounts must sum to the remaining balance within Tolerance; on any
// failure no entry is recorded.
func (l *Ledger) SplitCharge(ctx context.Context, invoiceID string, entries []SplitEntry, processedBy string) (*SplitResult, error) {
	if len(entries) == 0 {
		return nil, ErrAmountNotPositive
	}
	var out *SplitResult
	err := l.uow.Within(ctx, func(ctx context.Context) error {
		bal, err := l.repo.LockInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if bal.Cancelled {
			return ErrInvoiceClosed
		}
		paid, err := l.repo.TotalPaid(ctx, invoiceID)
		if err != nil {
			return errors.Wrap(err, "total paid")
		}
		remaining := bal.TotalAmount.Sub(paid)

		sum := decimal.Zero
		for _, e := range entries {
			if !e.Amount.IsPositive() {
				return ErrAmountNotPositive
			}
			sum = sum.Add(e.Amount)
		}
		if sum.Sub(remaining).Abs().GreaterThan(Tolerance) {
			return ErrSplitMismatch
		}

		txs := make([]Transaction, 0, len(entries))
		for _, e := range entries {
			method, err := l.repo.GetMethod(ctx, e.MethodID)
			if err != nil {
				return err
			}
			if !method.Active {
				return ErrMethodUnavailable
			}
			amount := e.Amount.Round(2)
			if amount.GreaterThan(remaining) {
				amount = remaining
			}
			if !amount.IsPositive() {
				return &OverPaymentError{Amount: e.Amount, Remaining: remaining}
			}
			tx := Transaction{
				ID:          uuid.New().String(),
				InvoiceID:   invoiceID,
				MethodID:    e.MethodID,
				Amount:      amount,
				Reference:   e.Reference,
				Status:      StatusCompleted,
				ProcessedBy: processedBy,
				ProcessedAt: l.now(),
			}
			if err := l.repo.Insert(ctx, &tx); err != nil {
				return errors.Wrap(err, "insert transaction")
			}
			remaining = remaining.Sub(amount)
			paid = paid.Add(amount)
			txs = append(txs, tx)
		}

		out = &SplitResult{
			Transactions: txs,
			TotalPaid:    paid,
			FullySettled: paid.GreaterThanOrEqual(bal.TotalAmount),
		}
		return nil
	})
	return out, err
}

// RefundResult reports the ledger state after a successful refund.
type RefundResult struct {
	Refund    *Transaction
	Original  *Transaction
	TotalPaid decimal.Decimal
}

// Refund appends a negative-amount transaction reversing part or all of a
// charge. The original charge is never mutated in place; its status flips to
// refunded once the unrefunded remainder falls within Tolerance of zero.
func (l *Ledger) Refund(ctx context.Context, txID string, amount decimal.Decimal, reason, processedBy string) (*RefundResult, error) {
	if !amount.IsPositive() {
		return nil, ErrAmountNotPositive
	}
	var out *RefundResult
	err := l.uow.Within(ctx, func(ctx context.Context) error {
		orig, err := l.repo.GetTransaction(ctx, txID)
		if err != nil {
			return err
		}
		if !orig.Amount.IsPositive() {
			return ErrNotRefundable
		}
		if orig.Status != StatusCompleted {
			return ErrAlreadyRefunded
		}

		// Serialize against concurrent charges and refunds on the invoice.
		if _, err := l.repo.LockInvoice(ctx, orig.InvoiceID); err != nil {
			return err
		}
		refunded, err := l.repo.RefundedAmount(ctx, orig.ID)
		if err != nil {
			return errors.Wrap(err, "refunded amount")
		}
		refundable := orig.Amount.Sub(refunded)
		if amount.GreaterThan(refundable) {
			return &OverRefundError{Amount: amount, Refundable: refundable}
		}

		refund := &Transaction{
			ID:                   uuid.New().String(),
			InvoiceID:            orig.InvoiceID,
			MethodID:             orig.MethodID,
			Amount:               amount.Round(2).Neg(),
			Notes:                reason,
			Status:               StatusCompleted,
			RefundsTransactionID: &orig.ID,
			ProcessedBy:          processedBy,
			ProcessedAt:          l.now(),
		}
		if err := l.repo.Insert(ctx, refund); err != nil {
			return errors.Wrap(err, "insert refund")
		}

		if refundable.Sub(amount).LessThanOrEqual(Tolerance) {
			if err := l.repo.SetStatus(ctx, orig.ID, StatusRefunded); err != nil {
				return errors.Wrap(err, "flip original to refunded")
			}
			orig.Status = StatusRefunded
		}

		paid, err := l.repo.TotalPaid(ctx, orig.InvoiceID)
		if err != nil {
			return errors.Wrap(err, "total paid")
		}
		out = &RefundResult{Refund: refund, Original: orig, TotalPaid: paid}
		return nil
	})
	return out, err
}
