package staff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
	"github.com/DBEST-EZRA/HMIS/internal/platform/auth"
	"github.com/DBEST-EZRA/HMIS/internal/platform/filter"
	"github.com/DBEST-EZRA/HMIS/internal/platform/listview"
	"github.com/DBEST-EZRA/HMIS/internal/platform/store"
)

const testPassword = "12345678"

var testNow = time.Date(2025, 5, 20, 14, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *auth.Identity, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	mem.SetClock(func() time.Time { return testNow })
	mem.Seed(store.Users, store.Record{ID: "u-grace", CreatedAt: "2025-01-10T08:00:00.000Z", Fields: store.F(
		"name", "Grace", "email", "grace@example.com", "role", "nurse")})
	mem.Seed(store.Users, store.Record{ID: "u-otieno", CreatedAt: "2025-02-10T08:00:00.000Z", Fields: store.F(
		"name", "Otieno", "email", "otieno@example.com", "role", "security")})
	mem.Seed(store.Attendance, store.Record{ID: "a1", CreatedAt: "2025-05-20T06:01:00.000Z", Fields: store.F(
		"name", "Grace", "checkIn", "06:00", "checkOut", "", "timestamp", "2025-05-20T06:01:00.000Z")})
	mem.Seed(store.Attendance, store.Record{ID: "a2", CreatedAt: "2025-05-19T23:59:59.999Z", Fields: store.F(
		"name", "Otieno", "checkIn", "18:00", "checkOut", "23:59", "timestamp", "2025-05-19T23:59:59.999Z")})
	mem.Seed(store.Attendance, store.Record{ID: "a3", CreatedAt: "2025-05-19T00:00:00.000Z", Fields: store.F(
		"name", "Grace", "checkIn", "07:00", "checkOut", "15:00", "timestamp", "2025-05-19T00:00:00.000Z")})
	id := auth.NewIdentity(mem, auth.JWTConfig{SigningKey: []byte("staff-test-key"), Issuer: "hmis-test"}, zerolog.Nop())
	svc := NewService(mem, id, testPassword, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc, id, mem
}

func query(spec filter.Spec) listview.Query {
	q := listview.Query{Filter: spec}
	q.Page.Size, q.Page.Index = 10, 1
	return q
}

func TestCreateEmployee_CreatesAccount(t *testing.T) {
	svc, id, _ := newTestService(t)
	e, err := svc.CreateEmployee(context.Background(), EmployeeInput{
		Name: "Dr. Wanjiru", Email: " Wanjiru@Example.com ", Role: "Doctor", Qualification: "MBChB", Salary: "150,000",
	})
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	if e.UID == "" || e.Email != "wanjiru@example.com" || e.Role != "doctor" || e.Dashboard != string(auth.DashboardClinician) {
		t.Errorf("unexpected employee %+v", e)
	}

	sess, err := id.SignIn(context.Background(), "wanjiru@example.com", testPassword)
	if err != nil {
		t.Fatalf("expected the new employee to sign in with the default password: %v", err)
	}
	if sess.UserID != e.UID {
		t.Errorf("expected session for account %s, got %s", e.UID, sess.UserID)
	}
}

func TestCreateEmployee_RoleWithoutDashboard(t *testing.T) {
	svc, id, _ := newTestService(t)
	e, err := svc.CreateEmployee(context.Background(), EmployeeInput{Name: "Kamau", Email: "kamau@example.com", Role: "cleaner"})
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	if e.Dashboard != "" {
		t.Errorf("expected no dashboard, got %q", e.Dashboard)
	}
	if _, err := id.SignIn(context.Background(), "kamau@example.com", testPassword); !errors.Is(err, apperr.ErrUnknownRole) {
		t.Errorf("expected ErrUnknownRole, got %v", err)
	}
}

func TestCreateEmployee_Rejections(t *testing.T) {
	svc, _, mem := newTestService(t)
	ctx := context.Background()
	if _, err := svc.CreateEmployee(ctx, EmployeeInput{Name: "A", Email: "a@example.com", Role: "nurse", Salary: "lots"}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for salary, got %v", err)
	}
	if _, err := svc.CreateEmployee(ctx, EmployeeInput{Name: "A", Role: "nurse"}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for email, got %v", err)
	}
	if _, err := svc.CreateEmployee(ctx, EmployeeInput{Name: "A", Email: "a@example.com", Role: "nurse"}); err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	if _, err := svc.CreateEmployee(ctx, EmployeeInput{Name: "B", Email: "A@example.com", Role: "lab"}); !apperr.IsValidation(err) {
		t.Errorf("expected duplicate email to be rejected, got %v", err)
	}
	users, _ := mem.GetAll(ctx, store.Users)
	accounts, _ := mem.GetAll(ctx, store.Accounts)
	if len(users) != 3 || len(accounts) != 1 {
		t.Errorf("expected 3 users and 1 account, got %d and %d", len(users), len(accounts))
	}
}

func TestUpdateEmployee_SyncsAccount(t *testing.T) {
	svc, id, mem := newTestService(t)
	ctx := context.Background()
	e, err := svc.CreateEmployee(ctx, EmployeeInput{Name: "Achieng", Email: "achieng@example.com", Role: "receptionist"})
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	role := "Accountant"
	if _, err := svc.UpdateEmployee(ctx, e.ID, EmployeeUpdate{Role: &role}); err != nil {
		t.Fatalf("UpdateEmployee: %v", err)
	}
	acct, _ := mem.Get(ctx, store.Accounts, e.UID)
	if acct.Fields.String("role") != "accountant" {
		t.Errorf("expected account role accountant, got %q", acct.Fields.String("role"))
	}
	sess, err := id.SignIn(ctx, "achieng@example.com", testPassword)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if sess.Dashboard != auth.DashboardAccounts {
		t.Errorf("expected accounts dashboard, got %s", sess.Dashboard)
	}

	if _, err := svc.CreateEmployee(ctx, EmployeeInput{Name: "Other", Email: "other@example.com", Role: "lab"}); err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	taken := "other@example.com"
	if _, err := svc.UpdateEmployee(ctx, e.ID, EmployeeUpdate{Email: &taken}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for a taken email, got %v", err)
	}
	blank := " "
	if _, err := svc.UpdateEmployee(ctx, e.ID, EmployeeUpdate{Name: &blank}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for a blank name, got %v", err)
	}
}

func TestUpdateEmployee_WithoutAccount(t *testing.T) {
	svc, _, _ := newTestService(t)
	salary := "30000"
	e, err := svc.UpdateEmployee(context.Background(), "u-otieno", EmployeeUpdate{Salary: &salary})
	if err != nil {
		t.Fatalf("UpdateEmployee: %v", err)
	}
	if e.Salary != "30000" {
		t.Errorf("expected salary 30000, got %q", e.Salary)
	}
}

func TestDeleteEmployee_RevokesAccount(t *testing.T) {
	svc, id, mem := newTestService(t)
	ctx := context.Background()
	e, err := svc.CreateEmployee(ctx, EmployeeInput{Name: "Musa", Email: "musa@example.com", Role: "pharmacist"})
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	if err := svc.DeleteEmployee(ctx, e.ID); err != nil {
		t.Fatalf("DeleteEmployee: %v", err)
	}
	if _, err := mem.Get(ctx, store.Accounts, e.UID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected account removed, got %v", err)
	}
	if _, err := id.SignIn(ctx, "musa@example.com", testPassword); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Errorf("expected sign-in to fail, got %v", err)
	}
	if err := svc.DeleteEmployee(ctx, e.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListEmployees(t *testing.T) {
	svc, _, _ := newTestService(t)
	ep, err := svc.ListEmployees(context.Background(), query(filter.Spec{Search: "security"}))
	if err != nil {
		t.Fatalf("ListEmployees: %v", err)
	}
	if len(ep.Employees) != 1 || ep.Employees[0].ID != "u-otieno" {
		t.Errorf("expected Otieno only, got %+v", ep.Employees)
	}
}

func TestAttendanceDay(t *testing.T) {
	svc, _, _ := newTestService(t)
	today, err := svc.AttendanceDay(context.Background(), 0)
	if err != nil {
		t.Fatalf("AttendanceDay: %v", err)
	}
	if today.Date != "2025-05-20" || len(today.Entries) != 1 || today.Entries[0].ID != "a1" {
		t.Errorf("unexpected sheet %+v", today)
	}
	if today.Counts["Grace"] != 1 || today.Counts["Otieno"] != 0 {
		t.Errorf("unexpected counts %+v", today.Counts)
	}

	// Both window edges are inclusive.
	yesterday, err := svc.AttendanceDay(context.Background(), 1)
	if err != nil {
		t.Fatalf("AttendanceDay: %v", err)
	}
	if len(yesterday.Entries) != 2 || yesterday.Counts["Grace"] != 1 || yesterday.Counts["Otieno"] != 1 {
		t.Errorf("unexpected sheet %+v", yesterday)
	}

	if _, err := svc.AttendanceDay(context.Background(), -1); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestRecordAndUpdateAttendance(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	e, err := svc.RecordAttendance(ctx, EntryInput{Name: "Otieno", CheckIn: "08:15"})
	if err != nil {
		t.Fatalf("RecordAttendance: %v", err)
	}
	if e.Timestamp != "2025-05-20T14:30:00.000Z" {
		t.Errorf("unexpected timestamp %q", e.Timestamp)
	}

	svc.now = func() time.Time { return testNow.Add(48 * time.Hour) }
	e, err = svc.UpdateAttendance(ctx, e.ID, EntryInput{Name: "Otieno", CheckIn: "08:15", CheckOut: "17:00"})
	if err != nil {
		t.Fatalf("UpdateAttendance: %v", err)
	}
	if e.CheckOut != "17:00" || e.Timestamp != "2025-05-20T14:30:00.000Z" {
		t.Errorf("expected checkout set and timestamp kept, got %+v", e)
	}

	for _, in := range []EntryInput{
		{CheckIn: "08:00"},
		{Name: "Grace"},
		{Name: "Grace", CheckIn: "8am"},
		{Name: "Grace", CheckIn: "08:00", CheckOut: "25:00"},
	} {
		if _, err := svc.RecordAttendance(ctx, in); !apperr.IsValidation(err) {
			t.Errorf("%+v: expected validation error, got %v", in, err)
		}
	}
}
