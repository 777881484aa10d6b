package registry

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/DBEST-EZRA/HMIS/internal/domain/billing"
	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
	"github.com/DBEST-EZRA/HMIS/internal/platform/auth"
	"github.com/DBEST-EZRA/HMIS/internal/platform/export"
	"github.com/DBEST-EZRA/HMIS/internal/platform/listview"
	"github.com/DBEST-EZRA/HMIS/internal/platform/store"
)

// AllDays disables the day view of a register.
const AllDays = "all"

var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

type Service struct {
	store  store.Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(s store.Store, logger zerolog.Logger) *Service {
	return &Service{store: s, logger: logger, now: time.Now}
}

func (s *Service) Today() string {
	return s.now().UTC().Format("2006-01-02")
}

// clean checks a write against the register and returns its fields in
// register order. Partial writes skip the required check for absent fields.
func (k Kind) clean(in map[string]interface{}, partial bool) (store.Fields, error) {
	names := make([]string, 0, len(in))
	for name := range in {
		if !k.accepts(name) {
			return nil, apperr.Invalid(name, "is not a %s field", k.Name)
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return k.position(names[i]) < k.position(names[j]) })

	var out store.Fields
	for _, name := range names {
		v := strings.TrimSpace(store.Stringify(in[name]))
		if v == "" && k.required(name) {
			if partial {
				return nil, apperr.Invalid(name, "cannot be blank")
			}
			return nil, apperr.Required(name)
		}
		if v != "" {
			switch {
			case contains(k.Numeric, name):
				if err := billing.ValidateAmount(name, v); err != nil {
					return nil, err
				}
			case contains(k.Dates, name):
				if !dateRe.MatchString(v) {
					return nil, apperr.Invalid(name, "must be YYYY-MM-DD, got %q", v)
				}
			case contains(k.Times, name):
				if !timeRe.MatchString(v) {
					return nil, apperr.Invalid(name, "must be HH:MM, got %q", v)
				}
			}
		}
		out.Set(name, v)
	}
	if !partial {
		for _, name := range k.Required {
			if !out.Has(name) {
				return nil, apperr.Required(name)
			}
		}
	}
	return out, nil
}

func (k Kind) position(field string) int {
	for i, f := range k.Fields {
		if f == field {
			return i
		}
	}
	return len(k.Fields)
}

// Create adds a record to the register. A register with a day view files
// undated records under today.
func (s *Service) Create(ctx context.Context, k Kind, in map[string]interface{}) (store.Record, error) {
	if k.DayField != "" && strings.TrimSpace(store.Stringify(in[k.DayField])) == "" {
		dated := make(map[string]interface{}, len(in)+1)
		for name, v := range in {
			dated[name] = v
		}
		dated[k.DayField] = s.Today()
		in = dated
	}
	fields, err := k.clean(in, false)
	if err != nil {
		return store.Record{}, err
	}
	id, err := s.store.Add(ctx, k.Collection, fields)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", k.Collection).Msg("create record failed")
		return store.Record{}, err
	}
	s.logger.Info().Str("collection", k.Collection).Str("record_id", id).Msg("record created")
	return s.store.Get(ctx, k.Collection, id)
}

func (s *Service) Get(ctx context.Context, k Kind, id string) (store.Record, error) {
	return s.store.Get(ctx, k.Collection, id)
}

// Update merges the given fields into a record.
func (s *Service) Update(ctx context.Context, k Kind, id string, in map[string]interface{}) (store.Record, error) {
	fields, err := k.clean(in, true)
	if err != nil {
		return store.Record{}, err
	}
	if len(fields) == 0 {
		return store.Record{}, apperr.Invalid("", "no fields to update")
	}
	if err := s.store.Update(ctx, k.Collection, id, fields); err != nil {
		s.logger.Error().Err(err).Str("collection", k.Collection).Str("record_id", id).Msg("update record failed")
		return store.Record{}, err
	}
	return s.store.Get(ctx, k.Collection, id)
}

func (s *Service) Delete(ctx context.Context, k Kind, id string) error {
	if err := s.store.Delete(ctx, k.Collection, id); err != nil {
		s.logger.Error().Err(err).Str("collection", k.Collection).Str("record_id", id).Msg("delete record failed")
		return err
	}
	return nil
}

// matching loads the records of one day, or every record when day is
// AllDays or the register has no day view.
func (s *Service) matching(ctx context.Context, k Kind, day string) ([]store.Record, error) {
	if k.DayField == "" || day == AllDays {
		return s.store.GetAll(ctx, k.Collection)
	}
	if day == "" {
		day = s.Today()
	}
	if !dateRe.MatchString(day) {
		return nil, apperr.Invalid("day", "must be YYYY-MM-DD or %q, got %q", AllDays, day)
	}
	return s.store.GetWhere(ctx, k.Collection, store.Where(k.DayField, store.Eq, day))
}

// Page is one page of a register. Charges is set for registers with a
// charges field and covers every matching record.
type Page struct {
	Result  listview.Result
	Charges *decimal.Decimal
}

func (s *Service) List(ctx context.Context, k Kind, day string, q listview.Query) (*Page, error) {
	recs, err := s.matching(ctx, k, day)
	if err != nil {
		if !apperr.IsValidation(err) {
			s.logger.Error().Err(err).Str("collection", k.Collection).Msg("list records failed")
		}
		return nil, err
	}
	p := &Page{Result: q.Run(recs)}
	if k.ChargesField != "" {
		total := decimal.Zero
		for _, r := range p.Result.Matched {
			v, _ := r.Fields.Get(k.ChargesField)
			total = total.Add(billing.ParseAmount(v))
		}
		p.Charges = &total
	}
	return p, nil
}

// Export returns the register rows matching the day and filter.
func (s *Service) Export(ctx context.Context, k Kind, day string, q listview.Query) ([]store.Fields, error) {
	recs, err := s.matching(ctx, k, day)
	if err != nil {
		return nil, err
	}
	return export.Records(q.Run(recs).Matched), nil
}

// Attendants lists the staff an appointment can be booked with: everyone
// whose role signs in to the clinical, laboratory or admin dashboards.
func (s *Service) Attendants(ctx context.Context) ([]string, error) {
	recs, err := s.store.GetAll(ctx, store.Users)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, r := range recs {
		role, ok := auth.CanonicalRole(r.Fields.String("role"))
		if !ok {
			continue
		}
		switch role {
		case auth.RoleClinician, auth.RoleLab, auth.RoleAdmin:
			if name := r.Fields.String("name"); name != "" {
				out = append(out, name)
			}
		}
	}
	return out, nil
}
