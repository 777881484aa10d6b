package patient

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/DBEST-EZRA/HMIS/internal/domain/billing"
	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
	"github.com/DBEST-EZRA/HMIS/internal/platform/export"
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

// Today is the default date filter of the clinician queue.
func (s *Service) Today() string {
	return s.now().UTC().Format("2006-01-02")
}

// ViewOf decodes a patients record. The consultation fee shows its default
// when empty; the total only counts stored values.
func ViewOf(r store.Record) (View, error) {
	var p Patient
	if err := store.Decode(r, &p); err != nil {
		return View{}, err
	}
	p.Fee = billing.Display(r, billing.ClinicalProfile.Fields[2])
	return View{Patient: p, Total: billing.ComputeTotal(r, billing.ClinicalProfile)}, nil
}

func views(records []store.Record) ([]View, error) {
	out := make([]View, 0, len(records))
	for _, r := range records {
		v, err := ViewOf(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Validate checks a registration before it is written.
func (r Registration) Validate() error {
	if strings.TrimSpace(r.FullName) == "" {
		return apperr.Required("fullName")
	}
	if age := strings.TrimSpace(r.Age); age != "" {
		if err := billing.ValidateAmount("age", age); err != nil {
			return err
		}
	}
	return nil
}

func (r Registration) trimmed() Registration {
	return Registration{
		FullName:  strings.TrimSpace(r.FullName),
		IDNumber:  strings.TrimSpace(r.IDNumber),
		Phone:     strings.TrimSpace(r.Phone),
		Age:       strings.TrimSpace(r.Age),
		Sex:       strings.TrimSpace(r.Sex),
		Residence: strings.TrimSpace(r.Residence),
		Reason:    strings.TrimSpace(r.Reason),
		Assignee:  strings.TrimSpace(r.Assignee),
	}
}

// Register records a new visit at reception. New visits start unpaid.
func (s *Service) Register(ctx context.Context, reg Registration) (*View, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	fields, err := store.Encode(reg.trimmed())
	if err != nil {
		return nil, err
	}
	fields.Set("paymentStatus", billing.StatusUnpaid)
	id, err := s.store.Add(ctx, store.Patients, fields)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", store.Patients).Msg("register patient failed")
		return nil, err
	}
	s.logger.Info().Str("patient_id", id).Str("assignee", reg.Assignee).Msg("patient registered")
	return s.Get(ctx, id)
}

// Get returns one patient.
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	r, err := s.store.Get(ctx, store.Patients, id)
	if err != nil {
		return nil, err
	}
	v, err := ViewOf(r)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Page is one page of patients.
type Page struct {
	Result   listview.Result
	Patients []View
}

func (s *Service) page(q listview.Query, recs []store.Record) (*Page, error) {
	res := q.Run(recs)
	vs, err := views(res.Page.Items)
	if err != nil {
		return nil, err
	}
	return &Page{Result: res, Patients: vs}, nil
}

// List pages every patient matching the filter.
func (s *Service) List(ctx context.Context, q listview.Query) (*Page, error) {
	recs, err := s.store.GetAll(ctx, store.Patients)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", store.Patients).Msg("list patients failed")
		return nil, err
	}
	return s.page(q, recs)
}

// ListAssigned pages the queue of one clinician.
func (s *Service) ListAssigned(ctx context.Context, assignee string, q listview.Query) (*Page, error) {
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return nil, apperr.Required("assignee")
	}
	recs, err := s.store.GetWhere(ctx, store.Patients, store.Where("assignee", store.Eq, assignee))
	if err != nil {
		s.logger.Error().Err(err).Str("assignee", assignee).Msg("list assigned patients failed")
		return nil, err
	}
	return s.page(q, recs)
}

type update struct {
	name  string
	value *string
	money bool
}

func (s *Service) apply(ctx context.Context, id, desk string, updates []update) (*View, error) {
	var f store.Fields
	for _, u := range updates {
		if u.value == nil {
			continue
		}
		v := strings.TrimSpace(*u.value)
		if u.money {
			if err := billing.ValidateAmount(u.name, v); err != nil {
				return nil, err
			}
		}
		f.Set(u.name, v)
	}
	if len(f) == 0 {
		return nil, apperr.Invalid("", "no fields to update")
	}
	if err := s.store.Update(ctx, store.Patients, id, f); err != nil {
		s.logger.Error().Err(err).Str("patient_id", id).Str("desk", desk).Msg("update patient failed")
		return nil, err
	}
	s.logger.Info().Str("patient_id", id).Str("desk", desk).Strs("fields", f.Names()).Msg("patient updated")
	return s.Get(ctx, id)
}

// UpdateClinical saves the clinician's consultation.
func (s *Service) UpdateClinical(ctx context.Context, id string, u ClinicalUpdate) (*View, error) {
	return s.apply(ctx, id, "clinical", []update{
		{"notes", u.Notes, false},
		{"symptoms", u.Symptoms, false},
		{"recommendedTest", u.RecommendedTest, false},
		{"testResult", u.TestResult, false},
		{"drugs", u.Drugs, false},
		{"injection", u.Injection, false},
		{"charges", u.Charges, true},
		{"fee", u.Fee, true},
	})
}

// UpdateLab saves the laboratory result and charges.
func (s *Service) UpdateLab(ctx context.Context, id string, u LabUpdate) (*View, error) {
	return s.apply(ctx, id, "lab", []update{
		{"recommendedTest", u.RecommendedTest, false},
		{"testResult", u.TestResult, false},
		{"labCharges", u.LabCharges, true},
	})
}

// UpdatePharmacy saves what was dispensed and its charges.
func (s *Service) UpdatePharmacy(ctx context.Context, id string, u PharmacyUpdate) (*View, error) {
	return s.apply(ctx, id, "pharmacy", []update{
		{"drugs", u.Drugs, false},
		{"pharmacyCharges", u.PharmacyCharges, true},
	})
}

// Delete removes a patient record.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, store.Patients, id); err != nil {
		s.logger.Error().Err(err).Str("patient_id", id).Msg("delete patient failed")
		return err
	}
	return nil
}

// ExportRows returns every patient matching the filter with all stored
// fields.
func (s *Service) ExportRows(ctx context.Context, q listview.Query) ([]store.Fields, error) {
	recs, err := s.store.GetAll(ctx, store.Patients)
	if err != nil {
		return nil, err
	}
	return export.Records(q.Run(recs).Matched), nil
}
