package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cantina/pos-backoffice/internal/domain/payment"
	"github.com/cantina/pos-backoffice/internal/domain/settlement"
)

type transactionResponse struct {
	ID                   string          `json:"id"`
	InvoiceID            string          `json:"invoice_id"`
	MethodID             string          `json:"method_id"`
	Amount               decimal.Decimal `json:"amount"`
	Reference            string          `json:"reference,omitempty"`
	Notes                string          `json:"notes,omitempty"`
	Status               string          `json:"status"`
	RefundsTransactionID *string         `json:"refunds_transaction_id,omitempty"`
	ProcessedBy          string          `json:"processed_by"`
	ProcessedAt          time.Time       `json:"processed_at"`
}

func toTransactionResponse(tx payment.Transaction) transactionResponse {
	return transactionResponse{
		ID:                   tx.ID,
		InvoiceID:            tx.InvoiceID,
		MethodID:             tx.MethodID,
		Amount:               tx.Amount,
		Reference:            tx.Reference,
		Notes:                tx.Notes,
		Status:               string(tx.Status),
		RefundsTransactionID: tx.RefundsTransactionID,
		ProcessedBy:          tx.ProcessedBy,
		ProcessedAt:          tx.ProcessedAt,
	}
}

type settlementResponse struct {
	Invoice          invoiceResponse       `json:"invoice"`
	Transactions     []transactionResponse `json:"transactions"`
	TotalPaid        decimal.Decimal       `json:"total_paid"`
	RemainingBalance decimal.Decimal       `json:"remaining_balance"`
	FullySettled     bool                  `json:"fully_settled"`
}

func toSettlementResponse(res *settlement.Result) settlementResponse {
	txs := make([]transactionResponse, len(res.Transactions))
	for i, tx := range res.Transactions {
		txs[i] = toTransactionResponse(tx)
	}
	return settlementResponse{
		Invoice:          toInvoiceResponse(res.Invoice),
		Transactions:     txs,
		TotalPaid:        res.TotalPaid,
		RemainingBalance: res.RemainingBalance,
		FullySettled:     res.FullySettled,
	}
}

type processPaymentRequest struct {
	MethodID    string          `json:"method_id"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference"`
	Notes       string          `json:"notes"`
	ProcessedBy string          `json:"processed_by"`
}

// ProcessPayment settles part or all of an order with a single tender.
func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req processPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.MethodID == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "method_id required")
		return
	}
	res, err := h.settlements.ProcessPayment(r.Context(), settlement.PaymentRequest{
		OrderID:     r.PathValue("id"),
		MethodID:    req.MethodID,
		Amount:      req.Amount,
		Reference:   req.Reference,
		Notes:       req.Notes,
		ProcessedBy: req.ProcessedBy,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponse(res))
}

type splitPaymentEntry struct {
	MethodID  string          `json:"method_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

type splitPaymentRequest struct {
	Entries     []splitPaymentEntry `json:"entries"`
	ProcessedBy string              `json:"processed_by"`
}

// ProcessSplitPayment settles the full remaining balance with multiple
// tenders in one atomic batch.
func (h *Handler) ProcessSplitPayment(w http.ResponseWriter, r *http.Request) {
	var req splitPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if len(req.Entries) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_body", "entries required")
		return
	}
	entries := make([]payment.SplitEntry, len(req.Entries))
	for i, e := range req.Entries {
		entries[i] = payment.SplitEntry{
			MethodID:  e.MethodID,
			Amount:    e.Amount,
			Reference: e.Reference,
		}
	}
	res, err := h.settlements.ProcessSplitPayment(r.Context(), r.PathValue("id"), entries, req.ProcessedBy)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponse(res))
}

type refundRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
	ProcessedBy string          `json:"processed_by"`
}

// RefundTransaction reverses part or all of a charge.
func (h *Handler) RefundTransaction(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	res, err := h.settlements.ProcessRefund(r.Context(), r.PathValue("id"), req.Amount, req.Reason, req.ProcessedBy)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponse(res))
}

type methodResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// ListPaymentMethods returns all configured payment methods.
func (h *Handler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.payments.ListMethods(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	resp := make([]methodResponse, len(methods))
	for i, m := range methods {
		resp[i] = methodResponse{ID: m.ID, Name: m.Name, Active: m.Active}
	}
	writeJSON(w, http.StatusOK, resp)
}
