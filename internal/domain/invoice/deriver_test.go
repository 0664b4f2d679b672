package invoice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cantina/pos-backoffice/internal/domain/order"
)

// --- Mock implementations ---

type memInvoiceRepo struct {
	mu      sync.Mutex
	byID    map[string]*Invoice
	byOrder map[string]*Invoice
	numbers map[string]bool
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{
		byID:    make(map[string]*Invoice),
		byOrder: make(map[string]*Invoice),
		numbers: make(map[string]bool),
	}
}

func (m *memInvoiceRepo) GetByID(_ context.Context, id string) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memInvoiceRepo) GetByOrderID(_ context.Context, orderID string) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.byOrder[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memInvoiceRepo) Create(_ context.Context, inv *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byOrder[inv.OrderID]; ok {
		return ErrExists
	}
	if m.numbers[inv.Number] {
		return ErrNumberTaken
	}
	cp := *inv
	m.byID[inv.ID] = &cp
	m.byOrder[inv.OrderID] = &cp
	m.numbers[inv.Number] = true
	return nil
}

func (m *memInvoiceRepo) Update(_ context.Context, inv *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[inv.ID]; !ok {
		return ErrNotFound
	}
	cp := *inv
	m.byID[inv.ID] = &cp
	m.byOrder[inv.OrderID] = &cp
	return nil
}

// raceInvoiceRepo loses the first-creation race: the winner's row lands
// between the caller's lookup and its own insert.
type raceInvoiceRepo struct {
	*memInvoiceRepo
	winner *Invoice
}

func (r *raceInvoiceRepo) Create(ctx context.Context, inv *Invoice) error {
	if r.winner != nil {
		w := r.winner
		r.winner = nil
		if err := r.memInvoiceRepo.Create(ctx, w); err != nil {
			return err
		}
	}
	return r.memInvoiceRepo.Create(ctx, inv)
}

// mockOrderRepo serves Get only; the deriver never mutates orders.
type mockOrderRepo struct {
	orders map[string]*order.Order
}

func (m *mockOrderRepo) Get(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) Create(context.Context, *order.Order) error         { return nil }
func (m *mockOrderRepo) Update(context.Context, *order.Order) error         { return nil }
func (m *mockOrderRepo) InsertItem(context.Context, *order.Item) error      { return nil }
func (m *mockOrderRepo) UpdateItemQuantity(context.Context, string, int) error { return nil }
func (m *mockOrderRepo) DeleteItem(context.Context, string) error           { return nil }
func (m *mockOrderRepo) MoveItems(context.Context, string, string, []string) error {
	return nil
}
func (m *mockOrderRepo) SetItemsStatus(context.Context, string, order.Status) error {
	return nil
}

type mockSeq struct {
	next  int
	calls int
}

func (m *mockSeq) Next(context.Context, time.Time) (int, error) {
	m.calls++
	m.next++
	return m.next, nil
}

type mockSummer struct {
	paid decimal.Decimal
}

func (m *mockSummer) TotalPaid(context.Context, string) (decimal.Decimal, error) {
	return m.paid, nil
}

// --- Helpers ---

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	day, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return day
}

func testOrder(id string) *order.Order {
	return &order.Order{
		ID:          id,
		OperatorID:  "op-1",
		Status:      order.StatusServed,
		Subtotal:    decimal.RequireFromString("200.00"),
		TaxAmount:   decimal.RequireFromString("30.00"),
		TotalAmount: decimal.RequireFromString("230.00"),
	}
}

func newTestDeriver(t *testing.T, orders ...*order.Order) (*Deriver, *memInvoiceRepo, *mockSummer) {
	t.Helper()
	repo := newMemInvoiceRepo()
	byID := make(map[string]*order.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	summer := &mockSummer{paid: decimal.Zero}
	d := NewDeriver(DeriverConfig{}, repo, &mockOrderRepo{orders: byID}, summer, &mockSeq{})
	d.now = func() time.Time { return mustDate(t, "2025-03-07") }
	return d, repo, summer
}

// --- Tests ---

func TestGetOrCreate_DerivesFromOrder(t *testing.T) {
	d, _, _ := newTestDeriver(t, testOrder("o1"))

	inv, err := d.GetOrCreate(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", inv.OrderID)
	assert.Equal(t, "INV-20250307-0001", inv.Number)
	assert.Equal(t, StatusPending, inv.Status)
	assert.Equal(t, DiscountNone, inv.DiscountType)
	assert.True(t, decimal.RequireFromString("200.00").Equal(inv.Subtotal))
	assert.True(t, decimal.RequireFromString("30.00").Equal(inv.TaxAmount))
	assert.True(t, decimal.RequireFromString("230.00").Equal(inv.TotalAmount))
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	d, _, _ := newTestDeriver(t, testOrder("o1"))
	ctx := context.Background()

	first, err := d.GetOrCreate(ctx, "o1")
	require.NoError(t, err)
	second, err := d.GetOrCreate(ctx, "o1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Number, second.Number)
	assert.Equal(t, 1, d.seq.(*mockSeq).calls, "sequence must not be consumed twice")
}

func TestGetOrCreate_OrderMissing(t *testing.T) {
	d, _, _ := newTestDeriver(t)
	_, err := d.GetOrCreate(context.Background(), "missing")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestGetOrCreate_RetriesOnNumberCollision(t *testing.T) {
	d, repo, _ := newTestDeriver(t, testOrder("o1"))
	ctx := context.Background()

	// Another till already claimed today's first number.
	require.NoError(t, repo.Create(ctx, &Invoice{
		ID:      "other",
		OrderID: "other-order",
		Number:  "INV-20250307-0001",
		Status:  StatusPending,
	}))

	inv, err := d.GetOrCreate(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "INV-20250307-0002", inv.Number)
}

func TestGetOrCreate_ConcurrentFirstAccess(t *testing.T) {
	repo := &raceInvoiceRepo{
		memInvoiceRepo: newMemInvoiceRepo(),
		winner: &Invoice{
			ID:      "winner",
			OrderID: "o1",
			Number:  "INV-20250307-0001",
			Status:  StatusPending,
		},
	}
	orders := &mockOrderRepo{orders: map[string]*order.Order{"o1": testOrder("o1")}}
	d := NewDeriver(DeriverConfig{}, repo, orders, &mockSummer{paid: decimal.Zero}, &mockSeq{})
	d.now = func() time.Time { return mustDate(t, "2025-03-07") }

	// Losing the insert to a concurrent first access must hand back the
	// winner's invoice, not burn the retry budget on doomed inserts.
	inv, err := d.GetOrCreate(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "winner", inv.ID)
	assert.Equal(t, "INV-20250307-0001", inv.Number)
}

func TestApplyDiscount_Percentage(t *testing.T) {
	d, _, _ := newTestDeriver(t, testOrder("o1"))
	ctx := context.Background()

	inv, err := d.GetOrCreate(ctx, "o1")
	require.NoError(t, err)

	inv, err = d.ApplyDiscount(ctx, inv.ID, Discount{
		Type:  DiscountPercentage,
		Value: decimal.NewFromInt(10),
	}, "loyalty tier 2")
	require.NoError(t, err)

	assert.Equal(t, DiscountPercentage, inv.DiscountType)
	assert.Equal(t, "loyalty tier 2", inv.DiscountReason)
	assert.True(t, decimal.RequireFromString("20.00").Equal(inv.DiscountAmount), "discount %s", inv.DiscountAmount)
	// Tax rederives from the discounted subtotal: 15% of 180.00.
	assert.True(t, decimal.RequireFromString("27.00").Equal(inv.TaxAmount), "tax %s", inv.TaxAmount)
	assert.True(t, decimal.RequireFromString("207.00").Equal(inv.TotalAmount), "total %s", inv.TotalAmount)
	// The original subtotal stays untouched for the receipt.
	assert.True(t, decimal.RequireFromString("200.00").Equal(inv.Subtotal))
}

func TestApplyDiscount_OnlyOnce(t *testing.T) {
	d, _, _ := newTestDeriver(t, testOrder("o1"))
	ctx := context.Background()

	inv, err := d.GetOrCreate(ctx, "o1")
	require.NoError(t, err)

	_, err = d.ApplyDiscount(ctx, inv.ID, Discount{Type: DiscountFixed, Value: decimal.NewFromInt(5)}, "first")
	require.NoError(t, err)

	_, err = d.ApplyDiscount(ctx, inv.ID, Discount{Type: DiscountFixed, Value: decimal.NewFromInt(5)}, "second")
	require.ErrorIs(t, err, ErrDiscountApplied)
}

func TestApplyDiscount_TooLarge(t *testing.T) {
	d, _, _ := newTestDeriver(t, testOrder("o1"))
	ctx := context.Background()

	inv, err := d.GetOrCreate(ctx, "o1")
	require.NoError(t, err)

	_, err = d.ApplyDiscount(ctx, inv.ID, Discount{
		Type:  DiscountFixed,
		Value: decimal.RequireFromString("200.00"),
	}, "comp")
	require.ErrorIs(t, err, ErrDiscountTooLarge)
}

func TestApplyDiscount_ClosedInvoice(t *testing.T) {
	d, _, _ := newTestDeriver(t, testOrder("o1"))
	ctx := context.Background()

	inv, err := d.GetOrCreate(ctx, "o1")
	require.NoError(t, err)
	_, err = d.MarkPaid(ctx, inv.ID)
	require.NoError(t, err)

	_, err = d.ApplyDiscount(ctx, inv.ID, Discount{Type: DiscountFixed, Value: decimal.NewFromInt(5)}, "late")
	require.ErrorIs(t, err, ErrClosed)
}

func TestCancel(t *testing.T) {
	d, _, _ := newTestDeriver(t, testOrder("o1"))
	ctx := context.Background()

	inv, err := d.GetOrCreate(ctx, "o1")
	require.NoError(t, err)

	_, err = d.Cancel(ctx, inv.ID, "")
	require.ErrorIs(t, err, ErrEmptyReason)

	inv, err = d.Cancel(ctx, inv.ID, "wrong table")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, inv.Status)
	assert.Equal(t, "wrong table", inv.CancelReason)
	require.NotNil(t, inv.CancelledAt)

	// Cancelling again is a no-op.
	again, err := d.Cancel(ctx, inv.ID, "twice")
	require.NoError(t, err)
	assert.Equal(t, "wrong table", again.CancelReason)
}

func TestCancel_WithPayments(t *testing.T) {
	d, _, summer := newTestDeriver(t, testOrder("o1"))
	ctx := context.Background()

	inv, err := d.GetOrCreate(ctx, "o1")
	require.NoError(t, err)

	summer.paid = decimal.RequireFromString("50.00")
	_, err = d.Cancel(ctx, inv.ID, "void")
	require.ErrorIs(t, err, ErrHasPayments)
}

func TestCancel_Paid(t *testing.T) {
	d, _, _ := newTestDeriver(t, testOrder("o1"))
	ctx := context.Background()

	inv, err := d.GetOrCreate(ctx, "o1")
	require.NoError(t, err)
	_, err = d.MarkPaid(ctx, inv.ID)
	require.NoError(t, err)

	_, err = d.Cancel(ctx, inv.ID, "too late")
	require.ErrorIs(t, err, ErrClosed)
}

func TestMarkPaidMarkPartial(t *testing.T) {
	d, _, _ := newTestDeriver(t, testOrder("o1"))
	ctx := context.Background()

	inv, err := d.GetOrCreate(ctx, "o1")
	require.NoError(t, err)

	inv, err = d.MarkPartial(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, inv.Status)
	assert.Nil(t, inv.PaidAt)

	inv, err = d.MarkPaid(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, inv.Status)
	require.NotNil(t, inv.PaidAt)

	// MarkPaid is idempotent.
	again, err := d.MarkPaid(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.PaidAt, again.PaidAt)

	// A refund can reopen a paid invoice as partial.
	inv, err = d.MarkPartial(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, inv.Status)
	assert.Nil(t, inv.PaidAt)
}

func TestMarkPaid_Cancelled(t *testing.T) {
	d, _, _ := newTestDeriver(t, testOrder("o1"))
	ctx := context.Background()

	inv, err := d.GetOrCreate(ctx, "o1")
	require.NoError(t, err)
	_, err = d.Cancel(ctx, inv.ID, "void")
	require.NoError(t, err)

	_, err = d.MarkPaid(ctx, inv.ID)
	require.ErrorIs(t, err, ErrClosed)
	_, err = d.MarkPartial(ctx, inv.ID)
	require.ErrorIs(t, err, ErrClosed)
}
