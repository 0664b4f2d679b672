package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cantina/pos-backoffice/internal/domain/invoice"
)

type invoiceResponse struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	Number         string          `json:"number"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountType   string          `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	DiscountReason string          `json:"discount_reason,omitempty"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Status         string          `json:"status"`
	CancelReason   string          `json:"cancel_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
}

func toInvoiceResponse(inv *invoice.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:             inv.ID,
		OrderID:        inv.OrderID,
		Number:         inv.Number,
		Subtotal:       inv.Subtotal,
		DiscountType:   string(inv.DiscountType),
		DiscountValue:  inv.DiscountValue,
		DiscountAmount: inv.DiscountAmount,
		DiscountReason: inv.DiscountReason,
		TaxAmount:      inv.TaxAmount,
		TotalAmount:    inv.TotalAmount,
		Status:         string(inv.Status),
		CancelReason:   inv.CancelReason,
		CreatedAt:      inv.CreatedAt,
		PaidAt:         inv.PaidAt,
		CancelledAt:    inv.CancelledAt,
	}
}

type invoiceDetailResponse struct {
	invoiceResponse
	TotalPaid    decimal.Decimal       `json:"total_paid"`
	Transactions []transactionResponse `json:"transactions"`
}

// GetOrderInvoice returns the invoice for an order, deriving it from the
// order's current totals on first access.
func (h *Handler) GetOrderInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.GetOrCreate(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

// GetInvoice returns an invoice together with its payment ledger, for
// receipt rendering.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	inv, err := h.invoices.GetByID(ctx, r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	txs, err := h.payments.ListByInvoice(ctx, inv.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	paid, err := h.payments.TotalPaid(ctx, inv.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := invoiceDetailResponse{
		invoiceResponse: toInvoiceResponse(inv),
		TotalPaid:       paid,
		Transactions:    make([]transactionResponse, len(txs)),
	}
	for i, tx := range txs {
		resp.Transactions[i] = toTransactionResponse(tx)
	}
	writeJSON(w, http.StatusOK, resp)
}

type applyDiscountRequest struct {
	Type   string          `json:"type"`
	Value  decimal.Decimal `json:"value"`
	Reason string          `json:"reason"`
}

// ApplyDiscount applies a single discount directive to an open invoice.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req applyDiscountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	inv, err := h.invoices.ApplyDiscount(r.Context(), r.PathValue("id"), invoice.Discount{
		Type:  invoice.DiscountType(req.Type),
		Value: req.Value,
	}, req.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

// CancelInvoice voids an invoice that has no money against it.
func (h *Handler) CancelInvoice(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	inv, err := h.invoices.Cancel(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}
