package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cantina/pos-backoffice/internal/domain/table"
)

// LedgerConfig holds policy knobs for the order ledger.
type LedgerConfig struct {
	// PaidFrom lists the statuses from which MarkPaid is legal.
	// Defaults to {ready, served}.
	PaidFrom []Status
}

// Ledger owns the order aggregate and its status state machine. All table
// occupancy side effects route through the table registry, and every
// multi-row mutation runs inside the injected unit of work.
type Ledger struct {
	repo     Repository
	tables   *table.Registry
	uow      UnitOfWork
	paidFrom map[Status]bool
	now      func() time.Time
}

// NewLedger creates an order Ledger with the required dependencies.
func NewLedger(cfg LedgerConfig, repo Repository, tables *table.Registry, uow UnitOfWork) *Ledger {
	paidFrom := cfg.PaidFrom
	if len(paidFrom) == 0 {
		paidFrom = []Status{StatusReady, StatusServed}
	}
	set := make(map[Status]bool, len(paidFrom))
	for _, s := range paidFrom {
		set[s] = true
	}
	return &Ledger{
		repo:     repo,
		tables:   tables,
		uow:      uow,
		paidFrom: set,
		now:      time.Now,
	}
}

// CreateRequest holds the input for opening a new order.
type CreateRequest struct {
	TableID    *string
	OperatorID string
}

// Create opens a pending order with zero totals. The table, when bound, is
// not occupied until the order is submitted.
func (l *Ledger) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	o := &Order{
		ID:          uuid.New().String(),
		TableID:     req.TableID,
		OperatorID:  req.OperatorID,
		Status:      StatusPending,
		Subtotal:    decimal.Zero,
		TaxAmount:   decimal.Zero,
		TotalAmount: decimal.Zero,
		CreatedAt:   l.now(),
	}
	if err := l.repo.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// Get returns the order with its items.
func (l *Ledger) Get(ctx context.Context, id string) (*Order, error) {
	return l.repo.Get(ctx, id)
}

// AddItemRequest holds the input for adding a line item.
type AddItemRequest struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// AddItem appends a line item to a pending order and recomputes totals.
func (l *Ledger) AddItem(ctx context.Context, orderID string, req AddItemRequest) (*Order, error) {
	if req.Quantity <= 0 {
		return nil, &InvalidQuantityError{Quantity: req.Quantity}
	}
	var out *Order
	err := l.uow.Within(ctx, func(ctx context.Context) error {
		o, err := l.repo.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusPending {
			return &InvalidStateError{Op: "add item to", Status: o.Status}
		}
		item := Item{
			ID:          uuid.New().String(),
			OrderID:     o.ID,
			ProductID:   req.ProductID,
			ProductName: req.ProductName,
			Quantity:    req.Quantity,
			UnitPrice:   req.UnitPrice.Round(2),
			Status:      StatusPending,
			CreatedAt:   l.now(),
		}
		if err := l.repo.InsertItem(ctx, &item); err != nil {
			return errors.Wrap(err, "insert item")
		}
		o.Items = append(o.Items, item)
		o.Recompute()
		if err := l.repo.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update totals")
		}
		out = o
		return nil
	})
	return out, err
}

// UpdateItemQuantity changes a line quantity on a pending order.
// A quantity of zero removes the line.
func (l *Ledger) UpdateItemQuantity(ctx context.Context, orderID, itemID string, quantity int) (*Order, error) {
	if quantity < 0 {
		return nil, &InvalidQuantityError{Quantity: quantity}
	}
	var out *Order
	err := l.uow.Within(ctx, func(ctx context.Context) error {
		o, err := l.repo.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusPending {
			return &InvalidStateError{Op: "edit items on", Status: o.Status}
		}
		idx := -1
		for i := range o.Items {
			if o.Items[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return &ItemNotFoundError{ItemID: itemID}
		}
		if quantity == 0 {
			if err := l.repo.DeleteItem(ctx, itemID); err != nil {
				return errors.Wrap(err, "delete item")
			}
			o.Items = append(o.Items[:idx], o.Items[idx+1:]...)
		} else {
			if err := l.repo.UpdateItemQuantity(ctx, itemID, quantity); err != nil {
				return errors.Wrap(err, "update item quantity")
			}
			o.Items[idx].Quantity = quantity
		}
		o.Recompute()
		if err := l.repo.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update totals")
		}
		out = o
		return nil
	})
	return out, err
}

// RemoveItem deletes a line item from a pending order.
func (l *Ledger) RemoveItem(ctx context.Context, orderID, itemID string) (*Order, error) {
	return l.UpdateItemQuantity(ctx, orderID, itemID, 0)
}

// Submit confirms a pending order and occupies its table when one is bound.
// Fails with ErrEmptyOrder when the order has no items; the occupancy
// conflict from a lost table race propagates as table.ErrNotAvailable.
func (l *Ledger) Submit(ctx context.Context, orderID string) (*Order, error) {
	var out *Order
	err := l.uow.Within(ctx, func(ctx context.Context) error {
		o, err := l.repo.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusPending {
			return &IllegalTransitionError{From: o.Status, To: StatusConfirmed}
		}
		if len(o.Items) == 0 {
			return ErrEmptyOrder
		}
		now := l.now()
		o.Status = StatusConfirmed
		o.SubmittedAt = &now
		if err := l.repo.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		if err := l.repo.SetItemsStatus(ctx, o.ID, StatusConfirmed); err != nil {
			return errors.Wrap(err, "update item statuses")
		}
		if o.TableID != nil {
			if err := l.tables.Occupy(ctx, *o.TableID, o.ID); err != nil {
				return err
			}
		}
		out = o
		return nil
	})
	return out, err
}

// Advance moves the order along the kitchen chain
// confirmed -> preparing -> ready -> served, stamping the matching timestamp
// exactly once. Re-advancing to the current status is a no-op so kitchen
// retries stay idempotent.
func (l *Ledger) Advance(ctx context.Context, orderID string, next Status) (*Order, error) {
	var out *Order
	err := l.uow.Within(ctx, func(ctx context.Context) error {
		o, err := l.repo.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if !kitchenStatuses[next] {
			return &IllegalTransitionError{From: o.Status, To: next}
		}
		if o.Status == next {
			out = o
			return nil
		}
		if !o.Status.CanTransition(next) {
			return &IllegalTransitionError{From: o.Status, To: next}
		}
		now := l.now()
		o.Status = next
		l.stamp(o, next, now)
		if err := l.repo.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		if err := l.repo.SetItemsStatus(ctx, o.ID, next); err != nil {
			return errors.Wrap(err, "update item statuses")
		}
		out = o
		return nil
	})
	return out, err
}

// Cancel soft-cancels the order, releases its table and cascades the
// cancellation to all line items. Served, paid and merged orders cannot be
// cancelled; cancelling an already-cancelled order is a no-op.
func (l *Ledger) Cancel(ctx context.Context, orderID, reason string) (*Order, error) {
	if reason == "" {
		return nil, ErrEmptyReason
	}
	var out *Order
	err := l.uow.Within(ctx, func(ctx context.Context) error {
		o, err := l.repo.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status == StatusCancelled {
			out = o
			return nil
		}
		if !o.Status.Cancellable() {
			return &InvalidStateError{Op: "cancel", Status: o.Status}
		}
		now := l.now()
		o.Status = StatusCancelled
		o.CancelReason = reason
		o.CancelledAt = &now
		if err := l.repo.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		if err := l.repo.SetItemsStatus(ctx, o.ID, StatusCancelled); err != nil {
			return errors.Wrap(err, "cancel items")
		}
		// Conditional on the binding: a pending order never occupied its
		// table, and another order may hold it by now.
		if o.TableID != nil {
			if err := l.tables.Release(ctx, *o.TableID, o.ID); err != nil {
				return err
			}
		}
		out = o
		return nil
	})
	return out, err
}

// MarkPaid closes the order after full settlement and releases its table.
// Only the settlement coordinator calls this; the preceding status must be
// in the configured PaidFrom set.
func (l *Ledger) MarkPaid(ctx context.Context, orderID string) (*Order, error) {
	var out *Order
	err := l.uow.Within(ctx, func(ctx context.Context) error {
		o, err := l.repo.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if !l.paidFrom[o.Status] {
			return &IllegalTransitionError{From: o.Status, To: StatusPaid}
		}
		now := l.now()
		o.Status = StatusPaid
		o.PaidAt = &now
		if err := l.repo.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		if o.TableID != nil {
			if err := l.tables.Release(ctx, *o.TableID, o.ID); err != nil {
				return err
			}
		}
		out = o
		return nil
	})
	return out, err
}

// Merge absorbs the secondary order into the primary: items move over,
// primary totals are recomputed, and the secondary becomes a terminal merged
// stub holding a back-reference. The secondary's table binding is untouched.
func (l *Ledger) Merge(ctx context.Context, primaryID, secondaryID string) (*Order, error) {
	if primaryID == secondaryID {
		return nil, errors.New("cannot merge an order into itself")
	}
	var out *Order
	err := l.uow.Within(ctx, func(ctx context.Context) error {
		primary, err := l.repo.Get(ctx, primaryID)
		if err != nil {
			return err
		}
		secondary, err := l.repo.Get(ctx, secondaryID)
		if err != nil {
			return err
		}
		if primary.Status.Terminal() {
			return &InvalidStateError{Op: "merge into", Status: primary.Status}
		}
		if secondary.Status.Terminal() {
			return &InvalidStateError{Op: "merge", Status: secondary.Status}
		}

		itemIDs := make([]string, len(secondary.Items))
		for i, item := range secondary.Items {
			itemIDs[i] = item.ID
		}
		if len(itemIDs) > 0 {
			if err := l.repo.MoveItems(ctx, secondary.ID, primary.ID, itemIDs); err != nil {
				return errors.Wrap(err, "move items")
			}
		}
		primary.Items = append(primary.Items, secondary.Items...)
		primary.Recompute()
		if err := l.repo.Update(ctx, primary); err != nil {
			return errors.Wrap(err, "update primary")
		}

		secondary.Items = nil
		secondary.Recompute()
		secondary.Status = StatusMerged
		secondary.MergedIntoID = &primary.ID
		if err := l.repo.Update(ctx, secondary); err != nil {
			return errors.Wrap(err, "update secondary")
		}
		out = primary
		return nil
	})
	return out, err
}

// Split moves the named items onto a new order that inherits the source
// order's table, operator, status and kitchen timestamps, then recomputes
// totals on both sides.
func (l *Ledger) Split(ctx context.Context, orderID string, itemIDs []string) (*Order, error) {
	if len(itemIDs) == 0 {
		return nil, errors.New("no items to split")
	}
	var out *Order
	err := l.uow.Within(ctx, func(ctx context.Context) error {
		o, err := l.repo.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status.Terminal() {
			return &InvalidStateError{Op: "split", Status: o.Status}
		}

		byID := make(map[string]int, len(o.Items))
		for i := range o.Items {
			byID[o.Items[i].ID] = i
		}
		moved := make([]Item, 0, len(itemIDs))
		for _, id := range itemIDs {
			i, ok := byID[id]
			if !ok {
				return &ItemNotFoundError{ItemID: id}
			}
			moved = append(moved, o.Items[i])
		}

		split := &Order{
			ID:          uuid.New().String(),
			TableID:     o.TableID,
			OperatorID:  o.OperatorID,
			Status:      o.Status,
			CreatedAt:   l.now(),
			SubmittedAt: o.SubmittedAt,
			PreparingAt: o.PreparingAt,
			ReadyAt:     o.ReadyAt,
			ServedAt:    o.ServedAt,
		}
		if err := l.repo.Create(ctx, split); err != nil {
			return errors.Wrap(err, "create split order")
		}
		if err := l.repo.MoveItems(ctx, o.ID, split.ID, itemIDs); err != nil {
			return errors.Wrap(err, "move items")
		}

		remaining := o.Items[:0]
		for i := range o.Items {
			if _, gone := sliceIndex(itemIDs, o.Items[i].ID); !gone {
				remaining = append(remaining, o.Items[i])
			}
		}
		o.Items = remaining
		o.Recompute()
		if err := l.repo.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update source order")
		}

		for i := range moved {
			moved[i].OrderID = split.ID
		}
		split.Items = moved
		split.Recompute()
		if err := l.repo.Update(ctx, split); err != nil {
			return errors.Wrap(err, "update split order")
		}
		out = split
		return nil
	})
	return out, err
}

// stamp sets the timestamp matching the target status, at most once.
func (l *Ledger) stamp(o *Order, status Status, now time.Time) {
	switch status {
	case StatusPreparing:
		if o.PreparingAt == nil {
			o.PreparingAt = &now
		}
	case StatusReady:
		if o.ReadyAt == nil {
			o.ReadyAt = &now
		}
	case StatusServed:
		if o.ServedAt == nil {
			o.ServedAt = &now
		}
	}
}

func sliceIndex(ids []string, id string) (int, bool) {
	for i, v := range ids {
		if v == id {
			return i, true
		}
	}
	return 0, false
}
