// Package handler exposes the order, invoice, payment and table operations
// over HTTP. Handlers stay thin: decode the request, call the domain
// component, map the result or error back to JSON.
package handler

import (
	"net/http"

	"github.com/cantina/pos-backoffice/internal/domain/invoice"
	"github.com/cantina/pos-backoffice/internal/domain/order"
	"github.com/cantina/pos-backoffice/internal/domain/payment"
	"github.com/cantina/pos-backoffice/internal/domain/settlement"
	"github.com/cantina/pos-backoffice/internal/domain/table"
)

// Handler wires the HTTP surface to the domain components.
type Handler struct {
	tables      *table.Registry
	orders      *order.Ledger
	invoices    *invoice.Deriver
	payments    *payment.Ledger
	settlements *settlement.Coordinator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	tables *table.Registry,
	orders *order.Ledger,
	invoices *invoice.Deriver,
	payments *payment.Ledger,
	settlements *settlement.Coordinator,
) *Handler {
	return &Handler{
		tables:      tables,
		orders:      orders,
		invoices:    invoices,
		payments:    payments,
		settlements: settlements,
	}
}

// Routes registers all API endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.CreateOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("POST /api/orders/{id}/items", h.AddOrderItem)
	mux.HandleFunc("PATCH /api/orders/{id}/items/{itemID}", h.UpdateOrderItem)
	mux.HandleFunc("DELETE /api/orders/{id}/items/{itemID}", h.RemoveOrderItem)
	mux.HandleFunc("POST /api/orders/{id}/submit", h.SubmitOrder)
	mux.HandleFunc("POST /api/orders/{id}/advance", h.AdvanceOrder)
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.CancelOrder)
	mux.HandleFunc("POST /api/orders/{id}/merge", h.MergeOrders)
	mux.HandleFunc("POST /api/orders/{id}/split", h.SplitOrder)

	mux.HandleFunc("GET /api/orders/{id}/invoice", h.GetOrderInvoice)
	mux.HandleFunc("GET /api/invoices/{id}", h.GetInvoice)
	mux.HandleFunc("POST /api/invoices/{id}/discount", h.ApplyDiscount)
	mux.HandleFunc("POST /api/invoices/{id}/cancel", h.CancelInvoice)

	mux.HandleFunc("POST /api/orders/{id}/payments", h.ProcessPayment)
	mux.HandleFunc("POST /api/orders/{id}/payments/split", h.ProcessSplitPayment)
	mux.HandleFunc("POST /api/transactions/{id}/refund", h.RefundTransaction)
	mux.HandleFunc("GET /api/payment-methods", h.ListPaymentMethods)

	mux.HandleFunc("GET /api/tables", h.ListTables)
	mux.HandleFunc("POST /api/tables/{id}/release", h.ReleaseTable)
}
