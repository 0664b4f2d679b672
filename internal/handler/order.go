package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cantina/pos-backoffice/internal/domain/order"
)

type orderItemResponse struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Status      string          `json:"status"`
}

type orderResponse struct {
	ID           string              `json:"id"`
	TableID      *string             `json:"table_id,omitempty"`
	OperatorID   string              `json:"operator_id"`
	Status       string              `json:"status"`
	Subtotal     decimal.Decimal     `json:"subtotal"`
	TaxAmount    decimal.Decimal     `json:"tax_amount"`
	TotalAmount  decimal.Decimal     `json:"total_amount"`
	Items        []orderItemResponse `json:"items"`
	MergedIntoID *string             `json:"merged_into_id,omitempty"`
	CancelReason string              `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	SubmittedAt  *time.Time          `json:"submitted_at,omitempty"`
	ServedAt     *time.Time          `json:"served_at,omitempty"`
	PaidAt       *time.Time          `json:"paid_at,omitempty"`
	CancelledAt  *time.Time          `json:"cancelled_at,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal(),
			Status:      string(item.Status),
		}
	}
	return orderResponse{
		ID:           o.ID,
		TableID:      o.TableID,
		OperatorID:   o.OperatorID,
		Status:       string(o.Status),
		Subtotal:     o.Subtotal,
		TaxAmount:    o.TaxAmount,
		TotalAmount:  o.TotalAmount,
		Items:        items,
		MergedIntoID: o.MergedIntoID,
		CancelReason: o.CancelReason,
		CreatedAt:    o.CreatedAt,
		SubmittedAt:  o.SubmittedAt,
		ServedAt:     o.ServedAt,
		PaidAt:       o.PaidAt,
		CancelledAt:  o.CancelledAt,
	}
}

type createOrderRequest struct {
	TableID    *string `json:"table_id"`
	OperatorID string  `json:"operator_id"`
}

// CreateOrder opens a new pending order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.OperatorID == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "operator_id required")
		return
	}
	o, err := h.orders.Create(r.Context(), order.CreateRequest{
		TableID:    req.TableID,
		OperatorID: req.OperatorID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// GetOrder returns an order with its items.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type addItemRequest struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// AddOrderItem appends a line item to a pending order.
func (h *Handler) AddOrderItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "product_id required")
		return
	}
	o, err := h.orders.AddItem(r.Context(), r.PathValue("id"), order.AddItemRequest{
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateOrderItem changes a line quantity; zero removes the line.
func (h *Handler) UpdateOrderItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	o, err := h.orders.UpdateItemQuantity(r.Context(), r.PathValue("id"), r.PathValue("itemID"), req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// RemoveOrderItem deletes a line item from a pending order.
func (h *Handler) RemoveOrderItem(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.RemoveItem(r.Context(), r.PathValue("id"), r.PathValue("itemID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// SubmitOrder confirms a pending order and occupies its table.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Submit(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type advanceOrderRequest struct {
	Status string `json:"status"`
}

// AdvanceOrder moves the order along the kitchen chain.
func (h *Handler) AdvanceOrder(w http.ResponseWriter, r *http.Request) {
	var req advanceOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	o, err := h.orders.Advance(r.Context(), r.PathValue("id"), order.Status(req.Status))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder soft-cancels the order and releases its table.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	o, err := h.orders.Cancel(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type mergeOrdersRequest struct {
	SecondaryOrderID string `json:"secondary_order_id"`
}

// MergeOrders absorbs the secondary order into this one.
func (h *Handler) MergeOrders(w http.ResponseWriter, r *http.Request) {
	var req mergeOrdersRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.SecondaryOrderID == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "secondary_order_id required")
		return
	}
	if req.SecondaryOrderID == r.PathValue("id") {
		writeError(w, http.StatusBadRequest, "invalid_body", "cannot merge an order into itself")
		return
	}
	o, err := h.orders.Merge(r.Context(), r.PathValue("id"), req.SecondaryOrderID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type splitOrderRequest struct {
	ItemIDs []string `json:"item_ids"`
}

// SplitOrder moves the named items onto a new order and returns it.
func (h *Handler) SplitOrder(w http.ResponseWriter, r *http.Request) {
	var req splitOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if len(req.ItemIDs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_body", "item_ids required")
		return
	}
	o, err := h.orders.Split(r.Context(), r.PathValue("id"), req.ItemIDs)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}
