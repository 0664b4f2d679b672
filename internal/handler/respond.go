package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/cantina/pos-backoffice/internal/domain/invoice"
	"github.com/cantina/pos-backoffice/internal/domain/order"
	"github.com/cantina/pos-backoffice/internal/domain/payment"
	"github.com/cantina/pos-backoffice/internal/domain/table"
)

// maxBodyBytes caps request bodies; no legal payload comes close.
const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the {code, message} error payload.
func writeError(w http.ResponseWriter, status int, code, message string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("code")
	e.Str(code)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// respondError maps a domain error to an HTTP error response. Unknown errors
// are logged and reported as 500 without leaking internals.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapError(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, status, code, "internal error")
		return
	}
	writeError(w, status, code, err.Error())
}

// mapError translates domain errors into HTTP status codes and stable error
// codes. Validation failures are 400, missing entities 404, state conflicts
// 409, and business-rule rejections on otherwise valid requests 422.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, invoice.ErrNotFound),
		errors.Is(err, table.ErrNotFound),
		errors.Is(err, payment.ErrNotFound),
		errors.Is(err, payment.ErrInvoiceNotFound),
		errors.Is(err, payment.ErrMethodNotFound):
		return http.StatusNotFound, "not_found"

	case errors.Is(err, order.ErrEmptyReason),
		errors.Is(err, invoice.ErrEmptyReason):
		return http.StatusBadRequest, "reason_required"
	case errors.Is(err, payment.ErrAmountNotPositive):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, invoice.ErrPercentOutOfRange),
		errors.Is(err, invoice.ErrDiscountNotPositive),
		errors.Is(err, invoice.ErrDiscountTooLarge),
		errors.Is(err, invoice.ErrInvalidDiscountType):
		return http.StatusBadRequest, "invalid_discount"

	case errors.Is(err, table.ErrNotAvailable):
		return http.StatusConflict, "table_not_available"
	case errors.Is(err, invoice.ErrDiscountApplied):
		return http.StatusConflict, "discount_applied"
	case errors.Is(err, invoice.ErrClosed),
		errors.Is(err, payment.ErrInvoiceClosed):
		return http.StatusConflict, "invoice_closed"
	case errors.Is(err, invoice.ErrHasPayments):
		return http.StatusConflict, "invoice_has_payments"
	case errors.Is(err, invoice.ErrNumberTaken):
		return http.StatusConflict, "invoice_number_taken"
	case errors.Is(err, payment.ErrMethodUnavailable):
		return http.StatusConflict, "method_unavailable"
	case errors.Is(err, payment.ErrNotRefundable),
		errors.Is(err, payment.ErrAlreadyRefunded):
		return http.StatusConflict, "not_refundable"

	case errors.Is(err, order.ErrEmptyOrder):
		return http.StatusUnprocessableEntity, "empty_order"
	case errors.Is(err, payment.ErrSplitMismatch):
		return http.StatusUnprocessableEntity, "split_mismatch"
	}

	var (
		transitionErr *order.IllegalTransitionError
		stateErr      *order.InvalidStateError
		itemErr       *order.ItemNotFoundError
		quantityErr   *order.InvalidQuantityError
		overPayErr    *payment.OverPaymentError
		overRefErr    *payment.OverRefundError
	)
	switch {
	case errors.As(err, &transitionErr):
		return http.StatusConflict, "illegal_transition"
	case errors.As(err, &stateErr):
		return http.StatusConflict, "invalid_state"
	case errors.As(err, &itemErr):
		return http.StatusNotFound, "item_not_found"
	case errors.As(err, &quantityErr):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.As(err, &overPayErr):
		return http.StatusUnprocessableEntity, "over_payment"
	case errors.As(err, &overRefErr):
		return http.StatusUnprocessableEntity, "over_refund"
	}

	return http.StatusInternalServerError, "internal"
}
