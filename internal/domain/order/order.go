package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TaxRate is the fixed 15% tax applied to every order and invoice subtotal.
// It is part of the external receipt contract and must not change shape.
var TaxRate = decimal.RequireFromString("0.15")

// Order represents one dine-in or takeaway tab together with its line items.
// Subtotal, TaxAmount and TotalAmount are derived by Recompute and never
// hand-edited.
type Order struct {
	ID           string
	TableID      *string
	OperatorID   string
	Status       Status
	Subtotal     decimal.Decimal
	TaxAmount    decimal.Decimal
	TotalAmount  decimal.Decimal
	Items        []Item
	MergedIntoID *string
	CancelReason string
	CreatedAt    time.Time
	SubmittedAt  *time.Time
	PreparingAt  *time.Time
	ReadyAt      *time.Time
	ServedAt     *time.Time
	PaidAt       *time.Time
	CancelledAt  *time.Time
}

// Item is a single order line. UnitPrice is snapshotted when the item is
// added; later catalog price changes do not affect existing orders.
type Item struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Status      Status
	CreatedAt   time.Time
}

// LineTotal returns quantity times the snapshotted unit price.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Recompute rederives the monetary totals from the line items:
// subtotal is the sum of line totals, tax is 15% of the subtotal, and
// total = subtotal + tax. All three are rounded to currency precision.
func (o *Order) Recompute() {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	o.Subtotal = subtotal.Round(2)
	o.TaxAmount = subtotal.Mul(TaxRate).Round(2)
	o.TotalAmount = o.Subtotal.Add(o.TaxAmount)
}

// Sentinel errors for order operations.
var (
	ErrNotFound    = fmt.Errorf("order not found")
	ErrEmptyOrder  = fmt.Errorf("order has no items")
	ErrEmptyReason = fmt.Errorf("cancellation reason required")
)

// IllegalTransitionError indicates a status change that does not follow the
// order state graph.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal order transition %s -> %s", e.From, e.To)
}

// InvalidStateError indicates an operation that is not legal for the order's
// current status.
type InvalidStateError struct {
	Op     string
	Status Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s order in status %s", e.Op, e.Status)
}

// ItemNotFoundError indicates an item id that does not belong to the order.
type ItemNotFoundError struct {
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %s not found on order", e.ItemID)
}

// InvalidQuantityError indicates a negative line quantity.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must not be negative, got %d", e.Quantity)
}

// Repository defines persistence operations for orders. Mutations called
// inside a unit of work must observe the surrounding transaction.
type Repository interface {
	Get(ctx context.Context, id string) (*Order, error)
	Create(ctx context.Context, o *Order) error
	// Update persists the order header: status, totals, timestamps,
	// merge back-reference and cancellation reason.
	Update(ctx context.Context, o *Order) error
	InsertItem(ctx context.Context, item *Item) error
	UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error
	DeleteItem(ctx context.Context, itemID string) error
	// MoveItems reassigns the given items from one order to another.
	MoveItems(ctx context.Context, fromOrderID, toOrderID string, itemIDs []string) error
	// SetItemsStatus updates the kitchen-tracking status of all items on an order.
	SetItemsStatus(ctx context.Context, orderID string, status Status) error
}

// UnitOfWork executes fn as one failure-atomic unit against the backing
// store. Nested calls join the enclosing unit.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(ctx context.Context) error) error
}
