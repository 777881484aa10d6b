package billing

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
	"github.com/DBEST-EZRA/HMIS/internal/platform/store"
)

// AdditionalChargesField holds the ordered sequence of ad-hoc charges on a
// record. Each entry contributes its "amount".
const AdditionalChargesField = "additionalCharges"

// ChargeField is one money field of a record. Default is shown when the
// stored value is empty; it never enters the sum.
type ChargeField struct {
	Name    string
	Label   string
	Default string
}

// Column is a non-money field copied into export rows.
type Column struct {
	Name    string
	Label   string
	Default string
}

// Profile selects the charge fields that make up a record's total and how
// the record is laid out in export rows.
type Profile struct {
	Name              string
	Lead              []Column
	Fields            []ChargeField
	IncludeAdditional bool
	Trail             []Column
}

var (
	// AccountsProfile is the accounts desk view of an outpatient visit.
	AccountsProfile = Profile{
		Name: "accounts",
		Lead: []Column{
			{Name: "fullName", Label: "Full Name"},
			{Name: "idNumber", Label: "ID Number"},
			{Name: "phone", Label: "Phone"},
		},
		Fields: []ChargeField{
			{Name: "pharmacyCharges", Label: "Pharmacy Charges"},
			{Name: "labCharges", Label: "Lab Charges"},
			{Name: "fee", Label: "Consultation Fee", Default: "200"},
			{Name: "charges", Label: "Clinical Charges", Default: "500"},
		},
		Trail: []Column{
			{Name: "paymentMethod", Label: "Payment Method"},
			{Name: "paymentStatus", Label: "Payment Status"},
			{Name: "accountDescription", Label: "Account Description"},
		},
	}

	// ClinicalProfile is the clinician's view: no clinical charge default.
	ClinicalProfile = Profile{
		Name: "clinical",
		Lead: []Column{
			{Name: "fullName", Label: "Full Name"},
			{Name: "idNumber", Label: "ID Number"},
		},
		Fields: []ChargeField{
			{Name: "pharmacyCharges", Label: "Pharmacy Charges"},
			{Name: "labCharges", Label: "Lab Charges"},
			{Name: "fee", Label: "Consultation Fee", Default: "200"},
			{Name: "charges", Label: "Clinical Charges"},
		},
	}

	// WardProfile totals an inpatient stay: base charge plus every
	// additional charge.
	WardProfile = Profile{
		Name: "ward",
		Lead: []Column{
			{Name: "inpatientNumber", Label: "Inpatient No"},
			{Name: "patientName", Label: "Patient Name"},
			{Name: "phone", Label: "Phone"},
			{Name: "idNumber", Label: "ID Number"},
			{Name: "age", Label: "Age"},
			{Name: "sex", Label: "Sex"},
			{Name: "reason", Label: "Reason"},
			{Name: "admissionDate", Label: "Admission Date"},
			{Name: "dischargeDate", Label: "Discharge Date"},
		},
		Fields: []ChargeField{
			{Name: "charges", Label: "Charges"},
		},
		IncludeAdditional: true,
	}
)

// ParseAmount reads a money value. Strings may carry surrounding blanks and
// thousands separators; anything that is not a finite number is zero.
// Commas are always separators and trailing junk is not ignored: "1,000"
// reads as 1000 and "12abc" as 0.
func ParseAmount(v interface{}) decimal.Decimal {
	switch t := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return t
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if s == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(t)
	case float32:
		return ParseAmount(float64(t))
	case int:
		return decimal.NewFromInt(int64(t))
	case int32:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	case json.Number:
		return ParseAmount(t.String())
	}
	return decimal.Zero
}

// ValidateAmount checks a money value entered by a user. Blank is allowed;
// anything else must be a non-negative number.
func ValidateAmount(field, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(v, ",", ""))
	if err != nil {
		return apperr.Invalid(field, "must be a number, got %q", v)
	}
	if d.IsNegative() {
		return apperr.Invalid(field, "cannot be negative")
	}
	return nil
}

// AdditionalTotal sums the amount of every entry of an additionalCharges
// sequence. Entries without a usable amount count as zero.
func AdditionalTotal(v interface{}) decimal.Decimal {
	list, ok := v.([]interface{})
	if !ok {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, item := range list {
		var amount interface{}
		switch e := item.(type) {
		case map[string]interface{}:
			amount = e["amount"]
		case store.Fields:
			amount, _ = e.Get("amount")
		}
		sum = sum.Add(ParseAmount(amount))
	}
	return sum
}

// ComputeTotal sums the profile's charge fields of a record, numeric-or-zero,
// plus its additional charges when the profile includes them. It is always
// derived from the inputs; a stored total field is never consulted.
func ComputeTotal(r store.Record, p Profile) decimal.Decimal {
	sum := decimal.Zero
	for _, f := range p.Fields {
		v, _ := r.Fields.Get(f.Name)
		sum = sum.Add(ParseAmount(v))
	}
	if p.IncludeAdditional {
		v, _ := r.Fields.Get(AdditionalChargesField)
		sum = sum.Add(AdditionalTotal(v))
	}
	return sum
}

// Display returns the stored value of a charge field, or its default when
// the stored value is empty.
func Display(r store.Record, f ChargeField) string {
	if s := strings.TrimSpace(r.Fields.String(f.Name)); s != "" {
		return s
	}
	return f.Default
}

// Rows flattens records into export rows: lead columns, each charge field's
// display value, the additional charges total, the computed Total, then
// the trailing columns.
func Rows(records []store.Record, p Profile) []store.Fields {
	rows := make([]store.Fields, 0, len(records))
	for _, r := range records {
		row := make(store.Fields, 0, len(p.Lead)+len(p.Fields)+len(p.Trail)+2)
		for _, c := range p.Lead {
			row = append(row, store.Field{Name: c.Label, Value: column(r, c)})
		}
		for _, f := range p.Fields {
			row = append(row, store.Field{Name: f.Label, Value: Display(r, f)})
		}
		if p.IncludeAdditional {
			v, _ := r.Fields.Get(AdditionalChargesField)
			row = append(row, store.Field{Name: "Additional Charges", Value: AdditionalTotal(v).String()})
		}
		row = append(row, store.Field{Name: "Total", Value: ComputeTotal(r, p).String()})
		for _, c := range p.Trail {
			row = append(row, store.Field{Name: c.Label, Value: column(r, c)})
		}
		rows = append(rows, row)
	}
	return rows
}

func column(r store.Record, c Column) string {
	v, ok := r.Value(c.Name)
	if !ok {
		return c.Default
	}
	if s := store.Stringify(v); s != "" {
		return s
	}
	return c.Default
}

// Sum totals a record set under a profile.
func Sum(records []store.Record, p Profile) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(ComputeTotal(r, p))
	}
	return total
}
