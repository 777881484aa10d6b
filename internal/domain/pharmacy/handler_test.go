package pharmacy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_RecordSale(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc, 10)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/pharmacy/sales", strings.NewReader(`{"medicineId":"amox","quantity":2,"paymentMethod":"cash"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.RecordSale(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var sl Sale
	if err := json.Unmarshal(rec.Body.Bytes(), &sl); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sl.Total.String() != "30" || sl.PaymentMethod != MethodCash {
		t.Errorf("unexpected sale %+v", sl)
	}
}

func TestHandler_RecordSale_Insufficient(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc, 10)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/pharmacy/sales", strings.NewReader(`{"medicineId":"pcm","quantity":9,"paymentMethod":"Cash"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.RecordSale(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_ListSales_DefaultsToToday(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc, 10)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/pharmacy/sales", nil), rec)

	if err := h.ListSales(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Total int                    `json:"total"`
		Meta  map[string]interface{} `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 0 || body.Meta["revenue"] != "0" {
		t.Errorf("expected no sales today, got %+v", body)
	}
}

func TestHandler_LowStock(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc, 10)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/pharmacy/inventory/low", nil), rec)

	if err := h.LowStock(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var list []Item
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 low lines, got %d", len(list))
	}
}

func TestHandler_ExportItems(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc, 10)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/pharmacy/inventory/export?search=amox", nil), rec)

	if err := h.ExportItems(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Header().Get(echo.HeaderContentDisposition), "pharmacy_inventory_") {
		t.Errorf("unexpected disposition %q", rec.Header().Get(echo.HeaderContentDisposition))
	}
}
