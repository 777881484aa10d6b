package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
	"github.com/DBEST-EZRA/HMIS/internal/platform/filter"
	"github.com/DBEST-EZRA/HMIS/internal/platform/listview"
	"github.com/DBEST-EZRA/HMIS/internal/platform/store"
)

func strPtr(s string) *string { return &s }

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	mem.Seed(store.Patients, store.Record{ID: "p1", CreatedAt: "2025-06-01T09:00:00.000Z",
		Fields: store.F("fullName", "Alice", "idNumber", "111", "fee", "200", "charges", "500", "paymentStatus", "paid")})
	mem.Seed(store.Patients, store.Record{ID: "p2", CreatedAt: "2025-06-01T11:00:00.000Z",
		Fields: store.F("fullName", "Brian", "idNumber", "222", "labCharges", "150")})
	mem.Seed(store.Patients, store.Record{ID: "p3", CreatedAt: "2025-06-02T08:00:00.000Z",
		Fields: store.F("fullName", "Carol", "idNumber", "333", "fee", "200")})
	svc := NewService(mem, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC) }
	return svc, mem
}

func query(spec filter.Spec) listview.Query {
	q := listview.Query{Filter: spec}
	q.Page.Size, q.Page.Index = 10, 1
	return q
}

func TestBillOf_AppliesDisplayDefaults(t *testing.T) {
	b, err := BillOf(store.Record{ID: "x", Fields: store.F("fullName", "X", "labCharges", float64(80))})
	if err != nil {
		t.Fatalf("BillOf: %v", err)
	}
	if b.Fee != "200" || b.Charges != "500" {
		t.Errorf("expected display defaults, got fee=%q charges=%q", b.Fee, b.Charges)
	}
	if b.LabCharges != "80" {
		t.Errorf("expected numeric lab charges rendered as 80, got %q", b.LabCharges)
	}
	if b.PaymentStatus != StatusUnpaid {
		t.Errorf("expected unpaid default, got %q", b.PaymentStatus)
	}
	if b.Total.String() != "80" {
		t.Errorf("expected total 80 from stored values only, got %s", b.Total)
	}
}

func TestList_DefaultsToToday(t *testing.T) {
	svc, _ := newTestService(t)
	q := query(filter.Spec{}).WithDefaultDate(svc.Today())

	bp, err := svc.List(context.Background(), q, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(bp.Bills) != 2 {
		t.Fatalf("expected 2 bills for 2025-06-01, got %d", len(bp.Bills))
	}
	if bp.Summary.Count != 2 || bp.Summary.Paid != 1 || bp.Summary.Unpaid != 1 {
		t.Errorf("unexpected summary %+v", bp.Summary)
	}
	if bp.Summary.Total.String() != "850" {
		t.Errorf("expected grand total 850, got %s", bp.Summary.Total)
	}
}

func TestList_StatusFilter(t *testing.T) {
	svc, _ := newTestService(t)
	bp, err := svc.List(context.Background(), query(filter.Spec{}), "unpaid")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(bp.Bills) != 2 || bp.Bills[0].ID != "p2" || bp.Bills[1].ID != "p3" {
		t.Errorf("unexpected unpaid bills %+v", bp.Bills)
	}

	if _, err := svc.List(context.Background(), query(filter.Spec{}), "refunded"); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for unknown status, got %v", err)
	}
}

func TestUpdateCharges(t *testing.T) {
	svc, mem := newTestService(t)
	b, err := svc.UpdateCharges(context.Background(), "p2", ChargeUpdate{
		PharmacyCharges: strPtr("90"),
		Fee:             strPtr("200"),
		PaymentMethod:   strPtr("Mpesa"),
		PaymentStatus:   strPtr("paid"),
	})
	if err != nil {
		t.Fatalf("UpdateCharges: %v", err)
	}
	if b.Total.String() != "440" {
		t.Errorf("expected total 440, got %s", b.Total)
	}
	rec, _ := mem.Get(context.Background(), store.Patients, "p2")
	if rec.Fields.String("paymentMethod") != "mpesa" {
		t.Errorf("expected normalized payment method, got %q", rec.Fields.String("paymentMethod"))
	}
	if rec.Fields.String("fullName") != "Brian" {
		t.Error("partial update must keep other fields")
	}
	if rec.CreatedAt != "2025-06-01T11:00:00.000Z" {
		t.Errorf("createdAt must never change, got %s", rec.CreatedAt)
	}
}

func TestUpdateCharges_Validation(t *testing.T) {
	svc, mem := newTestService(t)
	tests := []struct {
		name string
		u    ChargeUpdate
	}{
		{"non numeric", ChargeUpdate{LabCharges: strPtr("abc")}},
		{"negative", ChargeUpdate{Fee: strPtr("-5")}},
		{"bad method", ChargeUpdate{PaymentMethod: strPtr("cheque")}},
		{"bad status", ChargeUpdate{PaymentStatus: strPtr("done")}},
		{"multiple without description", ChargeUpdate{PaymentMethod: strPtr("multiple")}},
		{"empty", ChargeUpdate{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.UpdateCharges(context.Background(), "p1", tt.u); !apperr.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
	rec, _ := mem.Get(context.Background(), store.Patients, "p1")
	if rec.Fields.String("paymentStatus") != "paid" {
		t.Error("rejected updates must not write")
	}
}

func TestUpdateCharges_MultipleWithDescription(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.UpdateCharges(context.Background(), "p1", ChargeUpdate{
		PaymentMethod:      strPtr("multiple"),
		AccountDescription: strPtr("2000 mpesa, 1000 cash"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateCharges_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.UpdateCharges(context.Background(), "missing", ChargeUpdate{Fee: strPtr("1")})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExportRows(t *testing.T) {
	svc, _ := newTestService(t)
	rows, err := svc.ExportRows(context.Background(), query(filter.Spec{Search: "carol"}), "")
	if err != nil {
		t.Fatalf("ExportRows: %v", err)
	}
	if len(rows) != 1 || rows[0].String("Full Name") != "Carol" || rows[0].String("Total") != "200" {
		t.Errorf("unexpected rows %v", rows)
	}
}
