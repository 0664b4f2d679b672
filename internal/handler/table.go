package handler

import (
	"net/http"

	"github.com/cantina/pos-backoffice/internal/domain/table"
)

type tableResponse struct {
	ID             string  `json:"id"`
	Number         int     `json:"number"`
	Status         string  `json:"status"`
	CurrentOrderID *string `json:"current_order_id,omitempty"`
}

func toTableResponse(t table.Table) tableResponse {
	return tableResponse{
		ID:             t.ID,
		Number:         t.Number,
		Status:         string(t.Status),
		CurrentOrderID: t.CurrentOrderID,
	}
}

// ListTables returns all dining tables with their occupancy state.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.tables.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReleaseTable frees a table outside the normal order flow, for manual
// cleanup. Releasing an available table succeeds without effect.
func (h *Handler) ReleaseTable(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.tables.ForceRelease(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	t, err := h.tables.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(*t))
}
