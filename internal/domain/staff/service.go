package staff

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/DBEST-EZRA/HMIS/internal/domain/billing"
	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
	"github.com/DBEST-EZRA/HMIS/internal/platform/auth"
	"github.com/DBEST-EZRA/HMIS/internal/platform/export"
	"github.com/DBEST-EZRA/HMIS/internal/platform/listview"
	"github.com/DBEST-EZRA/HMIS/internal/platform/store"
)

// AccountIssuer builds the insert for a new sign-in account.
// *auth.Identity implements it.
type AccountIssuer interface {
	AccountOp(ctx context.Context, in auth.NewAccount) (store.AddOp, error)
}

type Service struct {
	store           store.Store
	accounts        AccountIssuer
	defaultPassword string
	logger          zerolog.Logger
	now             func() time.Time
}

func NewService(s store.Store, accounts AccountIssuer, defaultPassword string, logger zerolog.Logger) *Service {
	return &Service{store: s, accounts: accounts, defaultPassword: defaultPassword, logger: logger, now: time.Now}
}

func EmployeeOf(r store.Record) (Employee, error) {
	var e Employee
	if err := store.Decode(r, &e); err != nil {
		return e, err
	}
	if dash, err := auth.Route(e.Role); err == nil {
		e.Dashboard = string(dash)
	}
	return e, nil
}

func EntryOf(r store.Record) (Entry, error) {
	var e Entry
	err := store.Decode(r, &e)
	return e, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks a new employee.
func (in EmployeeInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Required("name")
	}
	if strings.TrimSpace(in.Email) == "" {
		return apperr.Required("email")
	}
	if strings.TrimSpace(in.Role) == "" {
		return apperr.Required("role")
	}
	return billing.ValidateAmount("salary", in.Salary)
}

func (in EmployeeInput) trimmed() EmployeeInput {
	return EmployeeInput{
		Name:           strings.TrimSpace(in.Name),
		Email:          normalizeEmail(in.Email),
		Role:           strings.ToLower(strings.TrimSpace(in.Role)),
		Qualification:  strings.TrimSpace(in.Qualification),
		Specialization: strings.TrimSpace(in.Specialization),
		Salary:         strings.TrimSpace(in.Salary),
	}
}

// CreateEmployee adds an employee and their sign-in account, which starts
// with the default password. Both records are written in one transaction.
func (s *Service) CreateEmployee(ctx context.Context, in EmployeeInput) (*Employee, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	in = in.trimmed()
	acct, err := s.accounts.AccountOp(ctx, auth.NewAccount{
		Email:    in.Email,
		Name:     in.Name,
		Role:     in.Role,
		Password: s.defaultPassword,
	})
	if err != nil {
		return nil, err
	}
	enc, err := store.Encode(in)
	if err != nil {
		return nil, err
	}
	id := store.NewID()
	fields := append(store.F("uid", acct.ID), enc...)
	if err := s.store.Transact(ctx, acct, store.AddOp{Collection: store.Users, ID: id, Fields: fields}); err != nil {
		s.logger.Error().Err(err).Str("email", in.Email).Msg("create employee failed")
		return nil, err
	}
	if _, routed := auth.CanonicalRole(in.Role); !routed {
		s.logger.Info().Str("employee_id", id).Str("role", in.Role).Msg("employee role has no dashboard")
	}
	s.logger.Info().Str("employee_id", id).Str("role", in.Role).Msg("employee created")
	return s.GetEmployee(ctx, id)
}

func (s *Service) GetEmployee(ctx context.Context, id string) (*Employee, error) {
	r, err := s.store.Get(ctx, store.Users, id)
	if err != nil {
		return nil, err
	}
	e, err := EmployeeOf(r)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (u EmployeeUpdate) fields() (store.Fields, error) {
	var f store.Fields
	for _, req := range []struct {
		name string
		v    *string
	}{{"name", u.Name}, {"email", u.Email}, {"role", u.Role}} {
		if req.v != nil && strings.TrimSpace(*req.v) == "" {
			return nil, apperr.Invalid(req.name, "cannot be blank")
		}
	}
	if u.Salary != nil {
		if err := billing.ValidateAmount("salary", *u.Salary); err != nil {
			return nil, err
		}
	}
	if u.Name != nil {
		f.Set("name", strings.TrimSpace(*u.Name))
	}
	if u.Email != nil {
		f.Set("email", normalizeEmail(*u.Email))
	}
	if u.Role != nil {
		f.Set("role", strings.ToLower(strings.TrimSpace(*u.Role)))
	}
	if u.Qualification != nil {
		f.Set("qualification", strings.TrimSpace(*u.Qualification))
	}
	if u.Specialization != nil {
		f.Set("specialization", strings.TrimSpace(*u.Specialization))
	}
	if u.Salary != nil {
		f.Set("salary", strings.TrimSpace(*u.Salary))
	}
	if len(f) == 0 {
		return nil, apperr.Invalid("", "no fields to update")
	}
	return f, nil
}

// UpdateEmployee edits an employee. Name, email and role changes are
// carried to the linked account in the same transaction.
func (s *Service) UpdateEmployee(ctx context.Context, id string, u EmployeeUpdate) (*Employee, error) {
	f, err := u.fields()
	if err != nil {
		return nil, err
	}
	cur, err := s.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}

	ops := []store.Op{store.UpdateOp{Collection: store.Users, ID: id, Fields: f}}
	if cur.UID != "" {
		var acct store.Fields
		for _, name := range []string{"name", "email", "role"} {
			if v, ok := f.Get(name); ok {
				acct.Set(name, v)
			}
		}
		if email := acct.String("email"); email != "" && email != cur.Email {
			taken, err := s.store.GetWhere(ctx, store.Accounts, store.Where("email", store.Eq, email))
			if err != nil {
				return nil, err
			}
			for _, r := range taken {
				if r.ID != cur.UID {
					return nil, apperr.Invalid("email", "is already registered")
				}
			}
		}
		if len(acct) > 0 {
			linked, err := s.accountExists(ctx, cur.UID)
			if err != nil {
				return nil, err
			}
			if linked {
				ops = append(ops, store.UpdateOp{Collection: store.Accounts, ID: cur.UID, Fields: acct})
			}
		}
	}
	if err := s.store.Transact(ctx, ops...); err != nil {
		s.logger.Error().Err(err).Str("employee_id", id).Msg("update employee failed")
		return nil, err
	}
	return s.GetEmployee(ctx, id)
}

func (s *Service) accountExists(ctx context.Context, uid string) (bool, error) {
	_, err := s.store.Get(ctx, store.Accounts, uid)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperr.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// DeleteEmployee removes the employee and revokes their sign-in account.
func (s *Service) DeleteEmployee(ctx context.Context, id string) error {
	cur, err := s.GetEmployee(ctx, id)
	if err != nil {
		return err
	}
	ops := []store.Op{store.DeleteOp{Collection: store.Users, ID: id}}
	if cur.UID != "" {
		linked, err := s.accountExists(ctx, cur.UID)
		if err != nil {
			return err
		}
		if linked {
			ops = append(ops, store.DeleteOp{Collection: store.Accounts, ID: cur.UID})
		}
	}
	if err := s.store.Transact(ctx, ops...); err != nil {
		s.logger.Error().Err(err).Str("employee_id", id).Msg("delete employee failed")
		return err
	}
	s.logger.Info().Str("employee_id", id).Msg("employee deleted")
	return nil
}

// EmployeePage is one page of the staff list.
type EmployeePage struct {
	Result    listview.Result
	Employees []Employee
}

func (s *Service) ListEmployees(ctx context.Context, q listview.Query) (*EmployeePage, error) {
	recs, err := s.store.GetAll(ctx, store.Users)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", store.Users).Msg("list employees failed")
		return nil, err
	}
	res := q.Run(recs)
	out := make([]Employee, 0, len(res.Page.Items))
	for _, r := range res.Page.Items {
		e, err := EmployeeOf(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return &EmployeePage{Result: res, Employees: out}, nil
}

// ExportEmployees returns the staff rows matching the filter.
func (s *Service) ExportEmployees(ctx context.Context, q listview.Query) ([]store.Fields, error) {
	recs, err := s.store.GetAll(ctx, store.Users)
	if err != nil {
		return nil, err
	}
	return export.Records(q.Run(recs).Matched), nil
}

var clockRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Validate checks an attendance line.
func (in EntryInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Required("name")
	}
	if strings.TrimSpace(in.CheckIn) == "" {
		return apperr.Required("checkIn")
	}
	if !clockRe.MatchString(strings.TrimSpace(in.CheckIn)) {
		return apperr.Invalid("checkIn", "must be HH:MM, got %q", in.CheckIn)
	}
	if out := strings.TrimSpace(in.CheckOut); out != "" && !clockRe.MatchString(out) {
		return apperr.Invalid("checkOut", "must be HH:MM, got %q", in.CheckOut)
	}
	return nil
}

// RecordAttendance adds an attendance line stamped with the current time.
func (s *Service) RecordAttendance(ctx context.Context, in EntryInput) (*Entry, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	id, err := s.store.Add(ctx, store.Attendance, store.F(
		"name", strings.TrimSpace(in.Name),
		"checkIn", strings.TrimSpace(in.CheckIn),
		"checkOut", strings.TrimSpace(in.CheckOut),
		"timestamp", store.FormatTime(s.now()),
	))
	if err != nil {
		s.logger.Error().Err(err).Str("collection", store.Attendance).Msg("record attendance failed")
		return nil, err
	}
	return s.GetAttendance(ctx, id)
}

func (s *Service) GetAttendance(ctx context.Context, id string) (*Entry, error) {
	r, err := s.store.Get(ctx, store.Attendance, id)
	if err != nil {
		return nil, err
	}
	e, err := EntryOf(r)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateAttendance corrects a line. The timestamp is kept, so the line stays
// on the day it was recorded.
func (s *Service) UpdateAttendance(ctx context.Context, id string, in EntryInput) (*Entry, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	err := s.store.Update(ctx, store.Attendance, id, store.F(
		"name", strings.TrimSpace(in.Name),
		"checkIn", strings.TrimSpace(in.CheckIn),
		"checkOut", strings.TrimSpace(in.CheckOut),
	))
	if err != nil {
		s.logger.Error().Err(err).Str("entry_id", id).Msg("update attendance failed")
		return nil, err
	}
	return s.GetAttendance(ctx, id)
}

// dayWindow returns the first and last millisecond of the UTC day offset
// days before now.
func dayWindow(now time.Time, offset int) (time.Time, time.Time) {
	d := now.UTC().AddDate(0, 0, -offset)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24*time.Hour - time.Millisecond)
}

// AttendanceDay returns the attendance sheet offset days back from today,
// with per-employee counts over the whole roster.
func (s *Service) AttendanceDay(ctx context.Context, offset int) (*Day, error) {
	if offset < 0 {
		return nil, apperr.Invalid("offset", "cannot be negative")
	}
	start, end := dayWindow(s.now(), offset)
	recs, err := s.store.GetWhere(ctx, store.Attendance,
		store.Where("timestamp", store.Ge, store.FormatTime(start)),
		store.Where("timestamp", store.Le, store.FormatTime(end)),
	)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", store.Attendance).Msg("attendance day query failed")
		return nil, err
	}
	roster, err := s.store.GetAll(ctx, store.Users)
	if err != nil {
		return nil, err
	}

	day := &Day{Date: start.Format("2006-01-02"), Entries: make([]Entry, 0, len(recs)), Counts: map[string]int{}}
	for _, r := range roster {
		if name := r.Fields.String("name"); name != "" {
			day.Counts[name] = 0
		}
	}
	for _, r := range recs {
		e, err := EntryOf(r)
		if err != nil {
			return nil, err
		}
		day.Entries = append(day.Entries, e)
		if e.CheckIn != "" {
			day.Counts[e.Name]++
		}
	}
	return day, nil
}
