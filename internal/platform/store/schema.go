package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
)

// Schema describes the shape a collection's documents must have at the
// store boundary.
type Schema struct {
	// Required fields must be present and non-blank on insert, and may not be
	// blanked by an update.
	Required []string
	// Numeric fields, when present and non-blank, must parse as numbers.
	// Thousands separators are allowed.
	Numeric []string
}

// Check validates a full document.
func (s Schema) Check(f Fields) error {
	for _, name := range s.Required {
		if !f.Has(name) {
			return apperr.Required(name)
		}
	}
	return s.checkNumeric(f)
}

// CheckPartial validates an update: only the fields it carries are checked.
func (s Schema) CheckPartial(f Fields) error {
	for _, name := range s.Required {
		if _, present := f.Get(name); present && !f.Has(name) {
			return apperr.Invalid(name, "cannot be blank")
		}
	}
	return s.checkNumeric(f)
}

func (s Schema) checkNumeric(f Fields) error {
	for _, name := range s.Numeric {
		v, ok := f.Get(name)
		if !ok {
			continue
		}
		if _, isNum := numeric(v); isNum {
			continue
		}
		str := strings.TrimSpace(Stringify(v))
		if str == "" {
			continue
		}
		if _, err := strconv.ParseFloat(strings.ReplaceAll(str, ",", ""), 64); err != nil {
			return apperr.Invalid(name, "must be a number, got %q", str)
		}
	}
	return nil
}

// Schemas are the boundary rules of the hospital collections.
var Schemas = map[string]Schema{
	Patients: {
		Required: []string{"fullName"},
		Numeric:  []string{"pharmacyCharges", "labCharges", "fee", "charges"},
	},
	Ward: {
		Required: []string{"patientName", "admissionDate"},
		Numeric:  []string{"charges"},
	},
	PharmacyInventory: {
		Required: []string{"medicineName"},
		Numeric:  []string{"quantity", "price", "reorderLevel"},
	},
	Sales: {
		Required: []string{"medicineId", "quantity"},
		Numeric:  []string{"quantity", "price", "total"},
	},
	Attendance: {
		Required: []string{"name", "timestamp"},
	},
	Users: {
		Required: []string{"name", "email", "role"},
		Numeric:  []string{"salary"},
	},
	Accounts: {
		Required: []string{"email", "role", "passwordHash"},
	},
	Appointments: {
		Required: []string{"name", "date"},
	},
	BirthRecords: {
		Required: []string{"childName"},
		Numeric:  []string{"birthWeight"},
	},
	Ambulance: {
		Required: []string{"name"},
		Numeric:  []string{"charges"},
	},
}

// validated checks writes against per-collection schemas before handing
// them to the wrapped store.
type validated struct {
	Store
	schemas map[string]Schema
}

// Validated wraps s so that every write is checked against schemas.
// Collections without a schema pass through unchecked.
func Validated(s Store, schemas map[string]Schema) Store {
	return &validated{Store: s, schemas: schemas}
}

func (v *validated) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	if sc, ok := v.schemas[collection]; ok {
		if err := sc.Check(fields); err != nil {
			return "", err
		}
	}
	return v.Store.Add(ctx, collection, fields)
}

func (v *validated) Update(ctx context.Context, collection, id string, partial Fields) error {
	if sc, ok := v.schemas[collection]; ok {
		if err := sc.CheckPartial(partial); err != nil {
			return err
		}
	}
	return v.Store.Update(ctx, collection, id, partial)
}

func (v *validated) Transact(ctx context.Context, ops ...Op) error {
	checked := make([]Op, len(ops))
	for i, op := range ops {
		switch o := op.(type) {
		case AddOp:
			if sc, ok := v.schemas[o.Collection]; ok {
				if err := sc.Check(o.Fields); err != nil {
					return err
				}
			}
		case UpdateOp:
			if sc, ok := v.schemas[o.Collection]; ok {
				if err := sc.CheckPartial(o.Fields); err != nil {
					return err
				}
			}
		case MutateOp:
			if sc, ok := v.schemas[o.Collection]; ok {
				apply := o.Apply
				o.Apply = func(r *Record) error {
					if err := apply(r); err != nil {
						return err
					}
					return sc.Check(r.Fields)
				}
				op = o
			}
		}
		checked[i] = op
	}
	return v.Store.Transact(ctx, checked...)
}
