// Package registry keeps the front-desk registers that are plain flat
// documents: appointments, birth records and ambulance runs. Each register
// is described by a Kind and served by the same handlers.
package registry

import (
	"github.com/DBEST-EZRA/HMIS/internal/platform/auth"
	"github.com/DBEST-EZRA/HMIS/internal/platform/store"
)

// Kind describes one register.
type Kind struct {
	// Name is the route segment.
	Name       string
	Collection string
	// Sheet titles the export.
	Sheet string
	// Fields are the accepted fields, in storage order.
	Fields   []string
	Required []string
	Numeric  []string
	// Dates hold YYYY-MM-DD values; Times hold HH:MM values.
	Dates []string
	Times []string
	// DayField selects the register's day view. Empty means the register is
	// browsed by creation date only.
	DayField string
	// ChargesField, when set, is totalled over every matching record.
	ChargesField string
	Roles        []string
}

var (
	Appointments = Kind{
		Name:       "appointments",
		Collection: store.Appointments,
		Sheet:      "Appointments",
		Fields:     []string{"name", "email", "phone", "idNumber", "date", "time", "attendedBy"},
		Required:   []string{"name", "date"},
		Dates:      []string{"date"},
		Times:      []string{"time"},
		DayField:   "date",
		Roles:      []string{auth.RoleReception, auth.RoleAdmin},
	}
	BirthRecords = Kind{
		Name:       "birthrecords",
		Collection: store.BirthRecords,
		Sheet:      "Birth Records",
		Fields:     []string{"childName", "fathersName", "mothersName", "birthWeight", "birthDate", "idNumber", "phone"},
		Required:   []string{"childName", "idNumber", "phone"},
		Numeric:    []string{"birthWeight"},
		Dates:      []string{"birthDate"},
		Roles:      []string{auth.RoleReception, auth.RoleAdmin},
	}
	Ambulance = Kind{
		Name:         "ambulance",
		Collection:   store.Ambulance,
		Sheet:        "Ambulance",
		Fields:       []string{"name", "phone", "idNumber", "case", "pickupLocation", "charges", "date"},
		Required:     []string{"name"},
		Numeric:      []string{"charges"},
		Dates:        []string{"date"},
		DayField:     "date",
		ChargesField: "charges",
		Roles:        []string{auth.RoleEmergency, auth.RoleReception, auth.RoleAdmin},
	}
)

// Kinds lists every register.
var Kinds = []Kind{Appointments, BirthRecords, Ambulance}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (k Kind) accepts(field string) bool  { return contains(k.Fields, field) }
func (k Kind) required(field string) bool { return contains(k.Required, field) }
