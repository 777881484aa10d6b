package ward

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func jsonContext(e *echo.Echo, method, body string, rec *httptest.ResponseRecorder) echo.Context {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return e.NewContext(req, rec)
}

func TestHandler_ListStays(t *testing.T) {
	svc, _ := newTestService(t, false)
	h := NewHandler(svc, 10)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ward/stays?admission_date=2025-01-01", nil), rec)

	if err := h.ListStays(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data []StayView             `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].ID != "w1" {
		t.Errorf("expected w1 only, got %+v", body.Data)
	}
	if body.Meta["total"] != "800" {
		t.Errorf("expected total 800 in meta, got %v", body.Meta["total"])
	}
}

func TestHandler_Admit(t *testing.T) {
	svc, _ := newTestService(t, false)
	h := NewHandler(svc, 10)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := jsonContext(e, http.MethodPost, `{"patientName":"Amina","admissionDate":"2025-01-05","charges":"750"}`, rec)

	if err := h.Admit(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_Admit_Invalid(t *testing.T) {
	svc, _ := newTestService(t, false)
	h := NewHandler(svc, 10)
	e := echo.New()
	c := jsonContext(e, http.MethodPost, `{"admissionDate":"2025-01-05"}`, httptest.NewRecorder())

	err := h.Admit(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_AppendEntry(t *testing.T) {
	svc, _ := newTestService(t, false)
	h := NewHandler(svc, 10)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := jsonContext(e, http.MethodPost, `{"section":"additionalCharges","entry":{"date":"2025-01-02","charge":"meals","amount":150}}`, rec)
	c.SetParamNames("id")
	c.SetParamValues("w1")

	if err := h.AppendEntry(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var l struct {
		Stay struct {
			Total string `json:"total"`
		} `json:"stay"`
		Rows []map[string]interface{} `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &l); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if l.Stay.Total != "950" || len(l.Rows) != 2 {
		t.Errorf("unexpected ledger %+v", l)
	}
	charge, _ := l.Rows[0]["charge"].(map[string]interface{})
	if charge["section"] != "additionalCharges" {
		t.Errorf("expected charge back reference, got %v", l.Rows[0])
	}
}

func TestHandler_AppendEntry_UnknownSection(t *testing.T) {
	svc, _ := newTestService(t, false)
	h := NewHandler(svc, 10)
	e := echo.New()
	c := jsonContext(e, http.MethodPost, `{"section":"vitals","entry":{"date":"2025-01-02"}}`, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("w1")

	err := h.AppendEntry(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_EditEntry(t *testing.T) {
	svc, _ := newTestService(t, false)
	h := NewHandler(svc, 10)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := jsonContext(e, http.MethodPut,
		`{"section":"dailyNotes","old":{"date":"2025-01-01","note":"ok"},"new":{"date":"2025-01-01","note":"improving"}}`, rec)
	c.SetParamNames("id")
	c.SetParamValues("w1")

	if err := h.EditEntry(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "improving") {
		t.Errorf("expected edited note in ledger, got %s", rec.Body.String())
	}
}

func TestHandler_DeleteEntry_NotFound(t *testing.T) {
	svc, _ := newTestService(t, false)
	h := NewHandler(svc, 10)
	e := echo.New()
	c := jsonContext(e, http.MethodDelete, `{"section":"dailyNotes","entry":{"date":"2025-01-01","note":"nope"}}`, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("w1")

	err := h.DeleteEntry(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_Discharge(t *testing.T) {
	svc, _ := newTestService(t, false)
	h := NewHandler(svc, 10)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := jsonContext(e, http.MethodPost, `{"dischargeDate":"2025-01-03"}`, rec)
	c.SetParamNames("id")
	c.SetParamValues("w1")

	if err := h.Discharge(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var v StayView
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.DischargeDate != "2025-01-03" {
		t.Errorf("expected discharge date set, got %q", v.DischargeDate)
	}
}

func TestHandler_ExportStays(t *testing.T) {
	svc, _ := newTestService(t, false)
	h := NewHandler(svc, 10)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ward/stays/export", nil), rec)

	if err := h.ExportStays(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cd := rec.Header().Get(echo.HeaderContentDisposition)
	if !strings.Contains(cd, "ward_records_") {
		t.Errorf("unexpected content disposition %q", cd)
	}
}
