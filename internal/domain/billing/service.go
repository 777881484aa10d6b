package billing

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
	"github.com/DBEST-EZRA/HMIS/internal/platform/listview"
	"github.com/DBEST-EZRA/HMIS/internal/platform/store"
)

type Service struct {
	store  store.Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(s store.Store, logger zerolog.Logger) *Service {
	return &Service{store: s, logger: logger, now: time.Now}
}

// Today is the default date filter of the accounts desk.
func (s *Service) Today() string {
	return s.now().UTC().Format("2006-01-02")
}

// BillOf decodes a patients record into a bill. Display defaults fill empty
// charge fields; the total is computed from stored values only.
func BillOf(r store.Record) (Bill, error) {
	var v Visit
	if err := store.Decode(r, &v); err != nil {
		return Bill{}, err
	}
	fields := AccountsProfile.Fields
	v.PharmacyCharges = Display(r, fields[0])
	v.LabCharges = Display(r, fields[1])
	v.Fee = Display(r, fields[2])
	v.Charges = Display(r, fields[3])
	if v.PaymentStatus == "" {
		v.PaymentStatus = StatusUnpaid
	}
	return Bill{Visit: v, Total: ComputeTotal(r, AccountsProfile)}, nil
}

func statusOf(r store.Record) string {
	if st := strings.ToLower(strings.TrimSpace(r.Fields.String("paymentStatus"))); st != "" {
		return st
	}
	return StatusUnpaid
}

// Summarize counts bills by payment status and totals them.
func Summarize(records []store.Record, p Profile) Summary {
	sum := Summary{Count: len(records), Total: decimal.Zero}
	for _, r := range records {
		switch statusOf(r) {
		case StatusPaid:
			sum.Paid++
		case StatusPartial:
			sum.Partial++
		default:
			sum.Unpaid++
		}
		sum.Total = sum.Total.Add(ComputeTotal(r, p))
	}
	return sum
}

// BillPage is one page of the accounts desk.
type BillPage struct {
	Result  listview.Result
	Bills   []Bill
	Summary Summary
}

func (s *Service) matching(ctx context.Context, q listview.Query, status string) ([]store.Record, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != "" && status != "all" && !paymentStatuses[status] {
		return nil, apperr.Invalid("status", "must be one of paid, unpaid, partial")
	}
	recs, err := s.store.GetAll(ctx, store.Patients)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", store.Patients).Msg("list bills failed")
		return nil, err
	}
	if status == "" || status == "all" {
		return recs, nil
	}
	out := recs[:0]
	for _, r := range recs {
		if statusOf(r) == status {
			out = append(out, r)
		}
	}
	return out, nil
}

// List returns the requested page of bills and a summary over every bill
// matching the filter.
func (s *Service) List(ctx context.Context, q listview.Query, status string) (*BillPage, error) {
	recs, err := s.matching(ctx, q, status)
	if err != nil {
		return nil, err
	}
	res := q.Run(recs)
	bills := make([]Bill, 0, len(res.Page.Items))
	for _, r := range res.Page.Items {
		b, err := BillOf(r)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return &BillPage{Result: res, Bills: bills, Summary: Summarize(res.Matched, AccountsProfile)}, nil
}

// Get returns one bill.
func (s *Service) Get(ctx context.Context, id string) (*Bill, error) {
	r, err := s.store.Get(ctx, store.Patients, id)
	if err != nil {
		return nil, err
	}
	b, err := BillOf(r)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func validateAmount(field string, v *string) error {
	if v == nil {
		return nil
	}
	return ValidateAmount(field, *v)
}

// Validate checks a charge update before it is written.
func (u ChargeUpdate) Validate() error {
	amounts := []struct {
		name string
		v    *string
	}{
		{"pharmacyCharges", u.PharmacyCharges},
		{"labCharges", u.LabCharges},
		{"fee", u.Fee},
		{"charges", u.Charges},
	}
	for _, a := range amounts {
		if err := validateAmount(a.name, a.v); err != nil {
			return err
		}
	}
	if u.PaymentMethod != nil && *u.PaymentMethod != "" && !paymentMethods[strings.ToLower(*u.PaymentMethod)] {
		return apperr.Invalid("paymentMethod", "must be one of cash, mpesa, sha, multiple")
	}
	if u.PaymentStatus != nil && !paymentStatuses[strings.ToLower(*u.PaymentStatus)] {
		return apperr.Invalid("paymentStatus", "must be one of paid, unpaid, partial")
	}
	if u.PaymentMethod != nil && strings.EqualFold(*u.PaymentMethod, MethodMultiple) &&
		(u.AccountDescription == nil || strings.TrimSpace(*u.AccountDescription) == "") {
		return apperr.Invalid("accountDescription", "is required when paying with multiple methods")
	}
	return nil
}

func (u ChargeUpdate) fields() store.Fields {
	var f store.Fields
	set := func(name string, v *string, lower bool) {
		if v == nil {
			return
		}
		val := strings.TrimSpace(*v)
		if lower {
			val = strings.ToLower(val)
		}
		f.Set(name, val)
	}
	set("pharmacyCharges", u.PharmacyCharges, false)
	set("labCharges", u.LabCharges, false)
	set("fee", u.Fee, false)
	set("charges", u.Charges, false)
	set("paymentMethod", u.PaymentMethod, true)
	set("paymentStatus", u.PaymentStatus, true)
	set("accountDescription", u.AccountDescription, false)
	return f
}

// UpdateCharges writes charges and payment details of a visit and returns
// the recomputed bill.
func (s *Service) UpdateCharges(ctx context.Context, id string, u ChargeUpdate) (*Bill, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	fields := u.fields()
	if len(fields) == 0 {
		return nil, apperr.Invalid("", "no fields to update")
	}
	if err := s.store.Update(ctx, store.Patients, id, fields); err != nil {
		s.logger.Error().Err(err).Str("patient_id", id).Msg("update charges failed")
		return nil, err
	}
	s.logger.Info().Str("patient_id", id).Strs("fields", fields.Names()).Msg("charges updated")
	return s.Get(ctx, id)
}

// ExportRows returns the export rows of every bill matching the filter.
func (s *Service) ExportRows(ctx context.Context, q listview.Query, status string) ([]store.Fields, error) {
	recs, err := s.matching(ctx, q, status)
	if err != nil {
		return nil, err
	}
	return Rows(q.Run(recs).Matched, AccountsProfile), nil
}
