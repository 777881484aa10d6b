package patient

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
	mem.SetClock(func() time.Time { return time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC) })
	mem.Seed(store.Patients, store.Record{ID: "p1", CreatedAt: "2025-03-10T07:00:00.000Z",
		Fields: store.F("fullName", "Achieng Odhiambo", "idNumber", "3012", "assignee", "Dr. Joe")})
	mem.Seed(store.Patients, store.Record{ID: "p2", CreatedAt: "2025-03-09T09:00:00.000Z",
		Fields: store.F("fullName", "Kamau Njoroge", "assignee", "Dr. Joe", "fee", "300")})
	mem.Seed(store.Patients, store.Record{ID: "p3", CreatedAt: "2025-03-10T10:00:00.000Z",
		Fields: store.F("fullName", "Wafula", "assignee", "Dr. Kim")})
	svc := NewService(mem, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	return svc, mem
}

func query(spec filter.Spec) listview.Query {
	q := listview.Query{Filter: spec}
	q.Page.Size, q.Page.Index = 10, 1
	return q
}

func TestRegister(t *testing.T) {
	svc, mem := newTestService(t)
	v, err := svc.Register(context.Background(), Registration{
		FullName: "  Mary Atieno ",
		Phone:    "0712345678",
		Age:      "34",
		Assignee: "Dr. Kim",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if v.FullName != "Mary Atieno" || v.PaymentStatus != "unpaid" {
		t.Errorf("unexpected patient %+v", v.Patient)
	}
	if v.CreatedAt != "2025-03-10T08:30:00.000Z" {
		t.Errorf("expected store-assigned createdAt, got %q", v.CreatedAt)
	}
	rec, _ := mem.Get(context.Background(), store.Patients, v.ID)
	want := []string{"fullName", "phone", "age", "assignee", "paymentStatus"}
	got := rec.Fields.Names()
	if len(got) != len(want) {
		t.Fatalf("expected fields %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Register(context.Background(), Registration{Phone: "1"}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for missing name, got %v", err)
	}
	if _, err := svc.Register(context.Background(), Registration{FullName: "A", Age: "thirty"}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for age, got %v", err)
	}
}

func TestViewOf_FeeDefault(t *testing.T) {
	v, err := ViewOf(store.Record{ID: "x", Fields: store.F("fullName", "X", "charges", "400")})
	if err != nil {
		t.Fatalf("ViewOf: %v", err)
	}
	if v.Fee != "200" {
		t.Errorf("expected fee default 200, got %q", v.Fee)
	}
	if v.Total.String() != "400" {
		t.Errorf("expected total 400, got %s", v.Total)
	}
}

func TestListAssigned(t *testing.T) {
	svc, _ := newTestService(t)
	p, err := svc.ListAssigned(context.Background(), "Dr. Joe", query(filter.Spec{Date: "2025-03-10"}))
	if err != nil {
		t.Fatalf("ListAssigned: %v", err)
	}
	if len(p.Patients) != 1 || p.Patients[0].ID != "p1" {
		t.Errorf("expected only p1 today for Dr. Joe, got %+v", p.Patients)
	}

	p, err = svc.ListAssigned(context.Background(), "Dr. Joe", query(filter.Spec{}))
	if err != nil {
		t.Fatalf("ListAssigned: %v", err)
	}
	if len(p.Patients) != 2 {
		t.Errorf("expected both of Dr. Joe's patients, got %d", len(p.Patients))
	}

	if _, err := svc.ListAssigned(context.Background(), " ", query(filter.Spec{})); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for blank assignee, got %v", err)
	}
}

func TestList_Search(t *testing.T) {
	svc, _ := newTestService(t)
	p, err := svc.List(context.Background(), query(filter.Spec{Search: "njoroge"}))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(p.Patients) != 1 || p.Patients[0].ID != "p2" {
		t.Errorf("expected p2, got %+v", p.Patients)
	}
}

func TestDeskUpdates(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	if _, err := svc.UpdateClinical(ctx, "p1", ClinicalUpdate{Notes: strPtr("fever"), Charges: strPtr("500"), Fee: strPtr("200")}); err != nil {
		t.Fatalf("UpdateClinical: %v", err)
	}
	if _, err := svc.UpdateLab(ctx, "p1", LabUpdate{TestResult: strPtr("negative"), LabCharges: strPtr("150")}); err != nil {
		t.Fatalf("UpdateLab: %v", err)
	}
	v, err := svc.UpdatePharmacy(ctx, "p1", PharmacyUpdate{Drugs: strPtr("amoxicillin"), PharmacyCharges: strPtr("80")})
	if err != nil {
		t.Fatalf("UpdatePharmacy: %v", err)
	}
	if v.Total.String() != "930" {
		t.Errorf("expected total 930, got %s", v.Total)
	}
	rec, _ := mem.Get(ctx, store.Patients, "p1")
	if rec.Fields.String("notes") != "fever" || rec.Fields.String("testResult") != "negative" {
		t.Errorf("expected every desk's fields kept, got %v", rec.Fields)
	}
	if rec.CreatedAt != "2025-03-10T07:00:00.000Z" {
		t.Errorf("createdAt must never change, got %s", rec.CreatedAt)
	}
}

func TestDeskUpdates_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.UpdateLab(ctx, "p1", LabUpdate{LabCharges: strPtr("a lot")}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := svc.UpdatePharmacy(ctx, "p1", PharmacyUpdate{}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for empty update, got %v", err)
	}
	if _, err := svc.UpdateClinical(ctx, "nope", ClinicalUpdate{Notes: strPtr("x")}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExportRows(t *testing.T) {
	svc, _ := newTestService(t)
	rows, err := svc.ExportRows(context.Background(), query(filter.Spec{Date: "2025-03-10"}))
	if err != nil {
		t.Fatalf("ExportRows: %v", err)
	}
	if len(rows) != 2 || rows[0].String("id") != "p1" {
		t.Errorf("unexpected rows %v", rows)
	}
}
