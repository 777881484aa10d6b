package ward

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/DBEST-EZRA/HMIS/internal/domain/billing"
	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
	"github.com/DBEST-EZRA/HMIS/internal/platform/listview"
	"github.com/DBEST-EZRA/HMIS/internal/platform/store"
)

type Service struct {
	store           store.Store
	logger          zerolog.Logger
	now             func() time.Time
	lockOnDischarge bool
}

// NewService builds the ward service. With lockOnDischarge set, a
// discharged stay rejects ledger changes.
func NewService(s store.Store, logger zerolog.Logger, lockOnDischarge bool) *Service {
	return &Service{store: s, logger: logger, now: time.Now, lockOnDischarge: lockOnDischarge}
}

func (s *Service) today() string {
	return s.now().UTC().Format("2006-01-02")
}

func asMap(v interface{}) interface{} {
	if f, ok := v.(store.Fields); ok {
		return f.Map()
	}
	return v
}

func (st *Stay) add(e Entry) {
	switch t := e.(type) {
	case Note:
		st.DailyNotes = append(st.DailyNotes, t)
	case Observation:
		st.Observations = append(st.Observations, t)
	case LabRequest:
		st.LabRequests = append(st.LabRequests, t)
	case Medication:
		st.Medications = append(st.Medications, t)
	case Charge:
		st.AdditionalCharges = append(st.AdditionalCharges, t)
	}
}

// StayOf decodes a ward record. Ledger items that are not entry objects
// are left out of the typed view but stay untouched in storage.
func StayOf(r store.Record) (Stay, error) {
	base := store.Record{ID: r.ID, CreatedAt: r.CreatedAt, Fields: r.Fields.Clone()}
	for _, sec := range Sections {
		base.Fields.Delete(sec)
	}
	var st Stay
	if err := store.Decode(base, &st); err != nil {
		return Stay{}, err
	}
	st.DailyNotes = []Note{}
	st.Observations = []Observation{}
	st.LabRequests = []LabRequest{}
	st.Medications = []Medication{}
	st.AdditionalCharges = []Charge{}
	for _, sec := range Sections {
		for _, item := range rawList(r, sec) {
			e, err := DecodeEntry(sec, asMap(item))
			if err != nil {
				continue
			}
			st.add(e)
		}
	}
	return st, nil
}

// ViewOf decodes a ward record together with its bill.
func ViewOf(r store.Record) (StayView, error) {
	st, err := StayOf(r)
	if err != nil {
		return StayView{}, err
	}
	extra, _ := r.Fields.Get(billing.AdditionalChargesField)
	return StayView{Stay: st, Additional: billing.AdditionalTotal(extra), Total: Total(r)}, nil
}

func rawList(r store.Record, section string) []interface{} {
	v, _ := r.Fields.Get(section)
	list, _ := v.([]interface{})
	return list
}

func indexOf(r store.Record, e Entry) int {
	for i, item := range rawList(r, e.Section()) {
		got, err := DecodeEntry(e.Section(), asMap(item))
		if err == nil && got == e {
			return i
		}
	}
	return -1
}

func validDate(field, v string) error {
	if !dateRe.MatchString(v) {
		return apperr.Invalid(field, "must be YYYY-MM-DD, got %q", v)
	}
	return nil
}

// Validate checks an admission before it is written.
func (a Admission) Validate() error {
	if strings.TrimSpace(a.PatientName) == "" {
		return apperr.Required("patientName")
	}
	if err := validDate("admissionDate", strings.TrimSpace(a.AdmissionDate)); err != nil {
		return err
	}
	return billing.ValidateAmount("charges", a.Charges)
}

// Admit opens a stay. An inpatient number is generated when none is given.
func (s *Service) Admit(ctx context.Context, a Admission) (*StayView, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	ip := strings.TrimSpace(a.InpatientNumber)
	if ip == "" {
		ip = fmt.Sprintf("IP-%d", s.now().UnixMilli())
	}
	fields := store.F(
		"inpatientNumber", ip,
		"patientName", strings.TrimSpace(a.PatientName),
		"phone", strings.TrimSpace(a.Phone),
		"idNumber", strings.TrimSpace(a.IDNumber),
		"age", strings.TrimSpace(a.Age),
		"sex", strings.TrimSpace(a.Sex),
		"reason", strings.TrimSpace(a.Reason),
		"admissionDate", strings.TrimSpace(a.AdmissionDate),
		"dischargeDate", "",
		"charges", strings.TrimSpace(a.Charges),
	)
	for _, sec := range Sections {
		fields.Set(sec, []interface{}{})
	}
	id, err := s.store.Add(ctx, store.Ward, fields)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", store.Ward).Msg("admit failed")
		return nil, err
	}
	s.logger.Info().Str("stay_id", id).Str("inpatient_number", ip).Msg("patient admitted")
	return s.Get(ctx, id)
}

// Get returns one stay with its bill.
func (s *Service) Get(ctx context.Context, id string) (*StayView, error) {
	r, err := s.store.Get(ctx, store.Ward, id)
	if err != nil {
		return nil, err
	}
	v, err := ViewOf(r)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (u StayUpdate) fields() (store.Fields, error) {
	var f store.Fields
	set := func(name string, v *string) {
		if v != nil {
			f.Set(name, strings.TrimSpace(*v))
		}
	}
	if u.PatientName != nil && strings.TrimSpace(*u.PatientName) == "" {
		return nil, apperr.Required("patientName")
	}
	if u.AdmissionDate != nil {
		if err := validDate("admissionDate", strings.TrimSpace(*u.AdmissionDate)); err != nil {
			return nil, err
		}
	}
	if u.Charges != nil {
		if err := billing.ValidateAmount("charges", *u.Charges); err != nil {
			return nil, err
		}
	}
	set("patientName", u.PatientName)
	set("phone", u.Phone)
	set("idNumber", u.IDNumber)
	set("age", u.Age)
	set("sex", u.Sex)
	set("reason", u.Reason)
	set("admissionDate", u.AdmissionDate)
	set("charges", u.Charges)
	if len(f) == 0 {
		return nil, apperr.Invalid("", "no fields to update")
	}
	return f, nil
}

// Update changes admission details of a stay.
func (s *Service) Update(ctx context.Context, id string, u StayUpdate) (*StayView, error) {
	fields, err := u.fields()
	if err != nil {
		return nil, err
	}
	err = s.store.Transact(ctx, store.MutateOp{
		Collection: store.Ward,
		ID:         id,
		Apply: func(r *store.Record) error {
			r.Fields = r.Fields.Merge(fields)
			admitted, discharged := r.Fields.String("admissionDate"), r.Fields.String("dischargeDate")
			if discharged != "" && admitted > discharged {
				return apperr.Invalid("admissionDate", "cannot be after the discharge date %s", discharged)
			}
			return nil
		},
	})
	if err != nil {
		s.logger.Error().Err(err).Str("stay_id", id).Msg("update stay failed")
		return nil, err
	}
	return s.Get(ctx, id)
}

// Discharge closes a stay on the given date, today when empty.
func (s *Service) Discharge(ctx context.Context, id, date string) (*StayView, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		date = s.today()
	}
	if err := validDate("dischargeDate", date); err != nil {
		return nil, err
	}
	err := s.store.Transact(ctx, store.MutateOp{
		Collection: store.Ward,
		ID:         id,
		Apply: func(r *store.Record) error {
			if prev := r.Fields.String("dischargeDate"); prev != "" {
				return apperr.Invalid("dischargeDate", "stay was already discharged on %s", prev)
			}
			if admitted := r.Fields.String("admissionDate"); date < admitted {
				return apperr.Invalid("dischargeDate", "cannot be before the admission date %s", admitted)
			}
			r.Fields.Set("dischargeDate", date)
			return nil
		},
	})
	if err != nil {
		s.logger.Error().Err(err).Str("stay_id", id).Msg("discharge failed")
		return nil, err
	}
	s.logger.Info().Str("stay_id", id).Str("discharge_date", date).Msg("patient discharged")
	return s.Get(ctx, id)
}

// Delete removes a stay and its ledger.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, store.Ward, id); err != nil {
		s.logger.Error().Err(err).Str("stay_id", id).Msg("delete stay failed")
		return err
	}
	return nil
}

// StayPage is one page of ward stays.
type StayPage struct {
	Result listview.Result
	Stays  []StayView
	Total  decimal.Decimal
}

func (s *Service) matching(ctx context.Context, admissionDate string) ([]store.Record, error) {
	admissionDate = strings.TrimSpace(admissionDate)
	if admissionDate != "" {
		if err := validDate("admissionDate", admissionDate); err != nil {
			return nil, err
		}
		recs, err := s.store.GetWhere(ctx, store.Ward, store.Where("admissionDate", store.Eq, admissionDate))
		if err != nil {
			s.logger.Error().Err(err).Str("collection", store.Ward).Msg("list stays failed")
		}
		return recs, err
	}
	recs, err := s.store.GetAll(ctx, store.Ward)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", store.Ward).Msg("list stays failed")
	}
	return recs, err
}

// List pages the stays matching the filter and, when given, the admission
// date. Total is the bill over every matching stay.
func (s *Service) List(ctx context.Context, q listview.Query, admissionDate string) (*StayPage, error) {
	recs, err := s.matching(ctx, admissionDate)
	if err != nil {
		return nil, err
	}
	res := q.Run(recs)
	stays := make([]StayView, 0, len(res.Page.Items))
	for _, r := range res.Page.Items {
		v, err := ViewOf(r)
		if err != nil {
			return nil, err
		}
		stays = append(stays, v)
	}
	return &StayPage{Result: res, Stays: stays, Total: billing.Sum(res.Matched, billing.WardProfile)}, nil
}

// ExportRows returns the export rows of every stay matching the filter.
func (s *Service) ExportRows(ctx context.Context, q listview.Query, admissionDate string) ([]store.Fields, error) {
	recs, err := s.matching(ctx, admissionDate)
	if err != nil {
		return nil, err
	}
	return billing.Rows(q.Run(recs).Matched, billing.WardProfile), nil
}

// Ledger is a stay with its date-merged ledger.
type Ledger struct {
	Stay StayView    `json:"stay"`
	Rows []MergedRow `json:"rows"`
}

// Ledger returns the merged ledger of a stay.
func (s *Service) Ledger(ctx context.Context, id string) (*Ledger, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rows := MergeByDate(v.Stay)
	if rows == nil {
		rows = []MergedRow{}
	}
	return &Ledger{Stay: *v, Rows: rows}, nil
}

func (s *Service) checkOpen(r *store.Record) error {
	if !s.lockOnDischarge {
		return nil
	}
	if d := r.Fields.String("dischargeDate"); d != "" {
		return apperr.Invalid("dischargeDate", "stay was discharged on %s, its ledger is closed", d)
	}
	return nil
}

// checkFree rejects e when another entry of its kind already holds its
// date. skip is the index of an entry being replaced, or -1. Additional
// charges are exempt: a day may carry several, and each is billed.
func checkFree(r *store.Record, e Entry, skip int) error {
	if e.Section() == SectionCharges {
		return nil
	}
	for i, item := range rawList(*r, e.Section()) {
		if i == skip {
			continue
		}
		got, err := DecodeEntry(e.Section(), asMap(item))
		if err == nil && got.EntryDate() == e.EntryDate() {
			return apperr.Invalid("date", "a %s already exists for %s, edit it instead", e.Kind(), e.EntryDate())
		}
	}
	return nil
}

func (s *Service) mutateLedger(ctx context.Context, id, action string, apply func(*store.Record) error) (*Ledger, error) {
	err := s.store.Transact(ctx, store.MutateOp{
		Collection: store.Ward,
		ID:         id,
		Apply: func(r *store.Record) error {
			if err := s.checkOpen(r); err != nil {
				return err
			}
			return apply(r)
		},
	})
	if err != nil {
		s.logger.Error().Err(err).Str("stay_id", id).Str("action", action).Msg("ledger write failed")
		return nil, err
	}
	s.logger.Info().Str("stay_id", id).Str("action", action).Msg("ledger updated")
	return s.Ledger(ctx, id)
}

// AppendEntry adds an entry to its section. A second entry of the same
// kind on one date is rejected, except for additional charges.
func (s *Service) AppendEntry(ctx context.Context, id string, e Entry) (*Ledger, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return s.mutateLedger(ctx, id, "append", func(r *store.Record) error {
		if err := checkFree(r, e, -1); err != nil {
			return err
		}
		r.Fields.Set(e.Section(), append(rawList(*r, e.Section()), e.fields()))
		return nil
	})
}

// EditEntry replaces the first entry equal to old with next. Removal and
// append happen in one store mutation. The date clash check applies only
// when the entry moves to another date, so stays that already hold
// several same-day entries of a kind can still have each one corrected.
func (s *Service) EditEntry(ctx context.Context, id string, old, next Entry) (*Ledger, error) {
	if old.Section() != next.Section() {
		return nil, apperr.Invalid("section", "cannot move a %s entry to %s", old.Kind(), next.Section())
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return s.mutateLedger(ctx, id, "edit", func(r *store.Record) error {
		i := indexOf(*r, old)
		if i < 0 {
			return fmt.Errorf("%s entry on %s: %w", old.Kind(), old.EntryDate(), apperr.ErrNotFound)
		}
		if next.EntryDate() != old.EntryDate() {
			if err := checkFree(r, next, i); err != nil {
				return err
			}
		}
		list := rawList(*r, old.Section())
		kept := make([]interface{}, 0, len(list))
		kept = append(kept, list[:i]...)
		kept = append(kept, list[i+1:]...)
		r.Fields.Set(old.Section(), append(kept, next.fields()))
		return nil
	})
}

// DeleteEntry removes the first entry equal to e.
func (s *Service) DeleteEntry(ctx context.Context, id string, e Entry) (*Ledger, error) {
	return s.mutateLedger(ctx, id, "delete", func(r *store.Record) error {
		i := indexOf(*r, e)
		if i < 0 {
			return fmt.Errorf("%s entry on %s: %w", e.Kind(), e.EntryDate(), apperr.ErrNotFound)
		}
		list := rawList(*r, e.Section())
		kept := make([]interface{}, 0, len(list)-1)
		kept = append(kept, list[:i]...)
		kept = append(kept, list[i+1:]...)
		r.Fields.Set(e.Section(), kept)
		return nil
	})
}
