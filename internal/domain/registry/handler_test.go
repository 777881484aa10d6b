package registry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_ListAmbulance(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc, 10)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/registry/ambulance?day=all", nil), rec)

	if err := h.List(Ambulance)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data  []map[string]interface{} `json:"data"`
		Total int                      `json:"total"`
		Meta  map[string]interface{}   `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 3 || body.Meta["total_charges"] != "3500" {
		t.Errorf("unexpected body %+v", body)
	}
	if body.Data[0]["id"] != "amb1" || body.Data[0]["pickupLocation"] != "Kisumu" {
		t.Errorf("expected flat records, got %+v", body.Data[0])
	}
}

func TestHandler_CreateBirthRecord(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc, 10)
	e := echo.New()
	body := `{"childName":"Baby Neema","idNumber":"998","phone":"0711","birthWeight":"2.9"}`
	req := httptest.NewRequest(http.MethodPost, "/registry/birthrecords", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(BirthRecords)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_CreateUnknownField(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc, 10)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/registry/ambulance", strings.NewReader(`{"name":"A","driver":"B"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.Create(Ambulance)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_ExportEmptyDay(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc, 10)
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/registry/appointments/export", nil), httptest.NewRecorder())

	err := h.Export(Appointments)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
