//go:build integration

package integration

import (
	"net/http"
	"regexp"
	"testing"
)

var invoiceNumberPattern = regexp.MustCompile(`^INV-\d{8}-\d{4}$`)

func TestOrderLifecycle_FullSettlement(t *testing.T) {
	order := servedOrder(t, "table-1",
		itemRequest{ProductID: "ribeye-steak", ProductName: "Ribeye Steak", Quantity: 2, UnitPrice: 40},
		itemRequest{ProductID: "house-red", ProductName: "House Red", Quantity: 1, UnitPrice: 20},
	)
	// 100.00 + 15% tax
	if order.TotalAmount != 115 {
		t.Fatalf("total: got %v, want 115", order.TotalAmount)
	}
	if order.Status != "served" {
		t.Fatalf("status: got %q, want served", order.Status)
	}

	if tbl := getTable(t, "table-1"); tbl.Status != "occupied" {
		t.Fatalf("table status: got %q, want occupied", tbl.Status)
	}

	resp := doGet(t, "/api/orders/"+order.ID+"/invoice")
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		t.Fatalf("derive invoice: got %d", resp.StatusCode)
	}
	inv := decodeJSON[invoiceResponse](t, resp)
	resp.Body.Close()

	if !invoiceNumberPattern.MatchString(inv.Number) {
		t.Errorf("invoice number %q does not match expected format", inv.Number)
	}
	if inv.TotalAmount != 115 {
		t.Errorf("invoice total: got %v, want 115", inv.TotalAmount)
	}

	resp = doPost(t, "/api/orders/"+order.ID+"/payments", map[string]any{
		"method_id":    methodID(t, "cash"),
		"amount":       115,
		"processed_by": "op-integration",
	})
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		t.Fatalf("process payment: got %d", resp.StatusCode)
	}
	settlement := decodeJSON[settlementResponse](t, resp)
	resp.Body.Close()

	if !settlement.FullySettled {
		t.Error("expected fully settled")
	}
	if settlement.TotalPaid != 115 {
		t.Errorf("total paid: got %v, want 115", settlement.TotalPaid)
	}
	if settlement.Invoice.Status != "paid" {
		t.Errorf("invoice status: got %q, want paid", settlement.Invoice.Status)
	}

	resp = doGet(t, "/api/orders/"+order.ID)
	paid := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if paid.Status != "paid" {
		t.Errorf("order status: got %q, want paid", paid.Status)
	}

	if tbl := getTable(t, "table-1"); tbl.Status != "available" {
		t.Errorf("table status after settlement: got %q, want available", tbl.Status)
	}
}

func TestOrderLifecycle_ItemEdits(t *testing.T) {
	order := createOrder(t, "",
		itemRequest{ProductID: "espresso", ProductName: "Espresso", Quantity: 2, UnitPrice: 3.5},
	)
	itemID := order.Items[0].ID

	resp := doPost(t, "/api/orders/"+order.ID+"/items", itemRequest{
		ProductID: "croissant", ProductName: "Croissant", Quantity: 1, UnitPrice: 4,
	})
	order = decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if len(order.Items) != 2 {
		t.Fatalf("items: got %d, want 2", len(order.Items))
	}
	// 7.00 + 4.00
	if order.Subtotal != 11 {
		t.Errorf("subtotal: got %v, want 11", order.Subtotal)
	}

	req, _ := http.NewRequest(http.MethodPatch, baseURL+"/api/orders/"+order.ID+"/items/"+itemID,
		jsonBody(t, map[string]any{"quantity": 4}))
	req.Header.Set("Content-Type", "application/json")
	patchResp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("patch item: %v", err)
	}
	order = decodeJSON[orderResponse](t, patchResp)
	patchResp.Body.Close()
	// 14.00 + 4.00
	if order.Subtotal != 18 {
		t.Errorf("subtotal after quantity change: got %v, want 18", order.Subtotal)
	}

	req, _ = http.NewRequest(http.MethodDelete, baseURL+"/api/orders/"+order.ID+"/items/"+itemID, nil)
	delResp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("delete item: %v", err)
	}
	order = decodeJSON[orderResponse](t, delResp)
	delResp.Body.Close()
	if len(order.Items) != 1 {
		t.Errorf("items after delete: got %d, want 1", len(order.Items))
	}
	if order.Subtotal != 4 {
		t.Errorf("subtotal after delete: got %v, want 4", order.Subtotal)
	}
}

func TestOrderLifecycle_Cancel(t *testing.T) {
	order := createOrder(t, "table-2",
		itemRequest{ProductID: "espresso", ProductName: "Espresso", Quantity: 1, UnitPrice: 3.5},
	)
	resp := doPost(t, "/api/orders/"+order.ID+"/submit", map[string]any{})
	resp.Body.Close()

	resp = doPost(t, "/api/orders/"+order.ID+"/cancel", map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		resp.Body.Close()
		t.Fatalf("cancel without reason: got %d, want 400", resp.StatusCode)
	}
	body := decodeJSON[errorResponse](t, resp)
	resp.Body.Close()
	if body.Code != "reason_required" {
		t.Errorf("error code: got %q, want reason_required", body.Code)
	}

	resp = doPost(t, "/api/orders/"+order.ID+"/cancel", map[string]any{"reason": "guest left"})
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		t.Fatalf("cancel: got %d", resp.StatusCode)
	}
	cancelled := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if cancelled.Status != "cancelled" {
		t.Errorf("status: got %q, want cancelled", cancelled.Status)
	}

	if tbl := getTable(t, "table-2"); tbl.Status != "available" {
		t.Errorf("table status after cancel: got %q, want available", tbl.Status)
	}
}

func TestSubmit_EmptyOrder(t *testing.T) {
	order := createOrder(t, "")

	resp := doPost(t, "/api/orders/"+order.ID+"/submit", map[string]any{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if body := decodeJSON[errorResponse](t, resp); body.Code != "empty_order" {
		t.Errorf("error code: got %q, want empty_order", body.Code)
	}
}

func TestSubmit_TableConflict(t *testing.T) {
	first := createOrder(t, "table-3",
		itemRequest{ProductID: "espresso", ProductName: "Espresso", Quantity: 1, UnitPrice: 3.5},
	)
	resp := doPost(t, "/api/orders/"+first.ID+"/submit", map[string]any{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first submit: got %d", resp.StatusCode)
	}

	second := createOrder(t, "table-3",
		itemRequest{ProductID: "espresso", ProductName: "Espresso", Quantity: 1, UnitPrice: 3.5},
	)
	resp = doPost(t, "/api/orders/"+second.ID+"/submit", map[string]any{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if body := decodeJSON[errorResponse](t, resp); body.Code != "table_not_available" {
		t.Errorf("error code: got %q, want table_not_available", body.Code)
	}
}

func TestAdvance_IllegalTransition(t *testing.T) {
	order := createOrder(t, "",
		itemRequest{ProductID: "espresso", ProductName: "Espresso", Quantity: 1, UnitPrice: 3.5},
	)

	// Pending orders cannot enter the kitchen chain without a submit.
	resp := doPost(t, "/api/orders/"+order.ID+"/advance", map[string]any{"status": "preparing"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if body := decodeJSON[errorResponse](t, resp); body.Code != "illegal_transition" {
		t.Errorf("error code: got %q, want illegal_transition", body.Code)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	resp := doGet(t, "/api/orders/no-such-order")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if body := decodeJSON[errorResponse](t, resp); body.Code != "not_found" {
		t.Errorf("error code: got %q, want not_found", body.Code)
	}
}
