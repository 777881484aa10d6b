package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
)

func TestSchema_Check(t *testing.T) {
	sc := Schemas[PharmacyInventory]
	tests := []struct {
		name    string
		fields  Fields
		wantErr bool
	}{
		{"complete", F("medicineName", "Amoxil", "quantity", "20", "price", 15), false},
		{"thousands separator", F("medicineName", "Amoxil", "price", "1,250"), false},
		{"blank numeric", F("medicineName", "Amoxil", "price", " "), false},
		{"missing required", F("quantity", "20"), true},
		{"blank required", F("medicineName", "  ", "quantity", "20"), true},
		{"non-numeric", F("medicineName", "Amoxil", "quantity", "twenty"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sc.Check(tt.fields)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !apperr.IsValidation(err) {
				t.Errorf("expected a validation error, got %T", err)
			}
		})
	}
}

func TestSchema_CheckPartial(t *testing.T) {
	sc := Schemas[Ward]
	if err := sc.CheckPartial(F("charges", "300")); err != nil {
		t.Errorf("expected a partial without required fields to pass, got %v", err)
	}
	if err := sc.CheckPartial(F("patientName", "")); !apperr.IsValidation(err) {
		t.Errorf("expected blanking a required field to fail, got %v", err)
	}
	if err := sc.CheckPartial(F("charges", "abc")); !apperr.IsValidation(err) {
		t.Errorf("expected a non-numeric charge to fail, got %v", err)
	}
}

func TestValidated_RejectsBeforeWriting(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	s := Validated(mem, Schemas)

	if _, err := s.Add(ctx, Ward, F("patientName", "Jane")); !apperr.IsValidation(err) {
		t.Fatalf("expected missing admissionDate to fail, got %v", err)
	}
	all, _ := mem.GetAll(ctx, Ward)
	if len(all) != 0 {
		t.Fatalf("expected nothing written, got %d records", len(all))
	}

	id, err := s.Add(ctx, Ward, F("patientName", "Jane", "admissionDate", "2025-03-01"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Update(ctx, Ward, id, F("admissionDate", "")); !apperr.IsValidation(err) {
		t.Errorf("expected blanking admissionDate to fail, got %v", err)
	}

	unchecked, err := s.Add(ctx, "scratch", F("anything", "goes"))
	if err != nil || unchecked == "" {
		t.Errorf("expected collections without a schema to pass through, got %v", err)
	}
}

func TestValidated_TransactChecksMutations(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	mem.Seed(PharmacyInventory, Record{ID: "amox", Fields: F("medicineName", "Amoxil", "quantity", "20")})
	s := Validated(mem, Schemas)

	err := s.Transact(ctx,
		AddOp{Collection: Sales, Fields: F("medicineId", "amox", "quantity", 2)},
		MutateOp{Collection: PharmacyInventory, ID: "amox", Apply: func(r *Record) error {
			r.Fields.Set("quantity", "lots")
			return nil
		}},
	)
	if !apperr.IsValidation(err) {
		t.Fatalf("expected the mutated record to be checked, got %v", err)
	}
	sales, _ := mem.GetAll(ctx, Sales)
	item, _ := mem.Get(ctx, PharmacyInventory, "amox")
	if len(sales) != 0 || item.Fields.String("quantity") != "20" {
		t.Errorf("expected no writes, got %d sales and quantity %q", len(sales), item.Fields.String("quantity"))
	}

	err = s.Transact(ctx, AddOp{Collection: Sales, Fields: F("quantity", 2)})
	if !apperr.IsValidation(err) {
		t.Errorf("expected a sale without medicineId to fail, got %v", err)
	}

	err = s.Transact(ctx, MutateOp{Collection: PharmacyInventory, ID: "missing", Apply: func(*Record) error { return nil }})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound through the wrapper, got %v", err)
	}
}
