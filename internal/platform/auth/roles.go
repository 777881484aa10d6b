package auth

import (
	"strings"

	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
)

// Dashboard is a routed workspace. Every role that can sign in maps to
// exactly one.
type Dashboard string

const (
	DashboardLaboratory Dashboard = "laboratory"
	DashboardClinician  Dashboard = "clinician"
	DashboardPharmacy   Dashboard = "pharmacy"
	DashboardReception  Dashboard = "reception"
	DashboardAdmin      Dashboard = "admin"
	DashboardXray       Dashboard = "xray"
	DashboardAccounts   Dashboard = "accounts"
	DashboardEmergency  Dashboard = "emergency"
)

// Canonical role names used in route guards.
const (
	RoleAdmin     = "admin"
	RoleLab       = "lab"
	RoleClinician = "clinician"
	RolePharmacy  = "pharmacy"
	RoleReception = "reception"
	RoleXray      = "xray"
	RoleAccounts  = "accounts"
	RoleEmergency = "emergency"
)

// roleAliases folds staff job titles onto the canonical role of the
// dashboard they work from.
var roleAliases = map[string]string{
	"admin":            RoleAdmin,
	"administrator":    RoleAdmin,
	"lab":              RoleLab,
	"laboratory":       RoleLab,
	"clinician":        RoleClinician,
	"doctor":           RoleClinician,
	"clinical officer": RoleClinician,
	"nurse":            RoleClinician,
	"dentist":          RoleClinician,
	"physiotherapist":  RoleClinician,
	"pharmacy":         RolePharmacy,
	"pharmacist":       RolePharmacy,
	"reception":        RoleReception,
	"receptionist":     RoleReception,
	"xray":             RoleXray,
	"radiology":        RoleXray,
	"accounts":         RoleAccounts,
	"accountant":       RoleAccounts,
	"emergency":        RoleEmergency,
}

var dashboards = map[string]Dashboard{
	RoleAdmin:     DashboardAdmin,
	RoleLab:       DashboardLaboratory,
	RoleClinician: DashboardClinician,
	RolePharmacy:  DashboardPharmacy,
	RoleReception: DashboardReception,
	RoleXray:      DashboardXray,
	RoleAccounts:  DashboardAccounts,
	RoleEmergency: DashboardEmergency,
}

// CanonicalRole maps a stored role or job title to its canonical name. The
// second result is false for roles without a dashboard.
func CanonicalRole(role string) (string, bool) {
	r, ok := roleAliases[strings.ToLower(strings.TrimSpace(role))]
	return r, ok
}

// Route returns the dashboard for a role. Roles without one yield
// apperr.ErrUnknownRole so the caller can tell the user to contact an
// administrator.
func Route(role string) (Dashboard, error) {
	canonical, ok := CanonicalRole(role)
	if !ok {
		return "", apperr.ErrUnknownRole
	}
	return dashboards[canonical], nil
}
