package ward

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"

	"github.com/DBEST-EZRA/HMIS/internal/domain/billing"
	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
)

// Kind names one of the five ledger entry variants.
type Kind string

const (
	KindNote        Kind = "note"
	KindObservation Kind = "observation"
	KindRequest     Kind = "request"
	KindMedication  Kind = "medication"
	KindCharge      Kind = "charge"
)

// Ledger sections on a ward record, in merge order.
const (
	SectionNotes        = "dailyNotes"
	SectionObservations = "observations"
	SectionLabRequests  = "labRequests"
	SectionMedications  = "medications"
	SectionCharges      = billing.AdditionalChargesField
)

// Sections lists the ledger sections in the order they are merged.
var Sections = []string{
	SectionNotes,
	SectionObservations,
	SectionLabRequests,
	SectionMedications,
	SectionCharges,
}

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Entry is one dated ledger entry. Implementations are comparable structs,
// so == is structural equality.
type Entry interface {
	Kind() Kind
	Section() string
	EntryDate() string
	Validate() error
	fields() map[string]interface{}
}

type Note struct {
	Date string `json:"date" mapstructure:"date"`
	Note string `json:"note" mapstructure:"note"`
}

type Observation struct {
	Date        string `json:"date" mapstructure:"date"`
	Observation string `json:"observation" mapstructure:"observation"`
}

type LabRequest struct {
	Date    string `json:"date" mapstructure:"date"`
	Request string `json:"request" mapstructure:"request"`
}

type Medication struct {
	Date       string `json:"date" mapstructure:"date"`
	Medication string `json:"medication" mapstructure:"medication"`
}

// Charge is an additional charge. Amount is kept as entered; it is summed
// numeric-or-zero by the billing engine.
type Charge struct {
	Date   string `json:"date" mapstructure:"date"`
	Charge string `json:"charge" mapstructure:"charge"`
	Amount string `json:"amount" mapstructure:"amount"`
}

func (Note) Kind() Kind        { return KindNote }
func (Observation) Kind() Kind { return KindObservation }
func (LabRequest) Kind() Kind  { return KindRequest }
func (Medication) Kind() Kind  { return KindMedication }
func (Charge) Kind() Kind      { return KindCharge }

func (Note) Section() string        { return SectionNotes }
func (Observation) Section() string { return SectionObservations }
func (LabRequest) Section() string  { return SectionLabRequests }
func (Medication) Section() string  { return SectionMedications }
func (Charge) Section() string      { return SectionCharges }

func (e Note) EntryDate() string        { return e.Date }
func (e Observation) EntryDate() string { return e.Date }
func (e LabRequest) EntryDate() string  { return e.Date }
func (e Medication) EntryDate() string  { return e.Date }
func (e Charge) EntryDate() string      { return e.Date }

func validateText(date, field, text string) error {
	if !dateRe.MatchString(date) {
		return apperr.Invalid("date", "must be YYYY-MM-DD, got %q", date)
	}
	if strings.TrimSpace(text) == "" {
		return apperr.Required(field)
	}
	return nil
}

func (e Note) Validate() error        { return validateText(e.Date, "note", e.Note) }
func (e Observation) Validate() error { return validateText(e.Date, "observation", e.Observation) }
func (e LabRequest) Validate() error  { return validateText(e.Date, "request", e.Request) }
func (e Medication) Validate() error  { return validateText(e.Date, "medication", e.Medication) }

func (e Charge) Validate() error {
	if err := validateText(e.Date, "charge", e.Charge); err != nil {
		return err
	}
	if strings.TrimSpace(e.Amount) == "" {
		return apperr.Required("amount")
	}
	return billing.ValidateAmount("amount", e.Amount)
}

func (e Note) fields() map[string]interface{} {
	return map[string]interface{}{"date": e.Date, "note": e.Note}
}

func (e Observation) fields() map[string]interface{} {
	return map[string]interface{}{"date": e.Date, "observation": e.Observation}
}

func (e LabRequest) fields() map[string]interface{} {
	return map[string]interface{}{"date": e.Date, "request": e.Request}
}

func (e Medication) fields() map[string]interface{} {
	return map[string]interface{}{"date": e.Date, "medication": e.Medication}
}

func (e Charge) fields() map[string]interface{} {
	return map[string]interface{}{"date": e.Date, "charge": e.Charge, "amount": e.Amount}
}

// DecodeEntry reads a stored or submitted entry of the given section.
// Numbers are accepted where text is expected, so a stored amount of 300
// and "300" decode to the same entry.
func DecodeEntry(section string, raw interface{}) (Entry, error) {
	var out Entry
	switch section {
	case SectionNotes:
		var e Note
		if err := weakDecode(raw, &e); err != nil {
			return nil, err
		}
		out = e
	case SectionObservations:
		var e Observation
		if err := weakDecode(raw, &e); err != nil {
			return nil, err
		}
		out = e
	case SectionLabRequests:
		var e LabRequest
		if err := weakDecode(raw, &e); err != nil {
			return nil, err
		}
		out = e
	case SectionMedications:
		var e Medication
		if err := weakDecode(raw, &e); err != nil {
			return nil, err
		}
		out = e
	case SectionCharges:
		var e Charge
		if err := weakDecode(raw, &e); err != nil {
			return nil, err
		}
		out = e
	default:
		return nil, apperr.Invalid("section", "unknown ledger section %q", section)
	}
	return out, nil
}

func weakDecode(raw, out interface{}) error {
	if _, ok := raw.(map[string]interface{}); !ok {
		return apperr.Invalid("entry", "must be an object, got %T", raw)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decode ledger entry: %w", err)
	}
	return nil
}

// Stay is an inpatient admission with its ledger.
type Stay struct {
	ID              string `json:"id"`
	InpatientNumber string `json:"inpatientNumber"`
	PatientName     string `json:"patientName"`
	Phone           string `json:"phone,omitempty"`
	IDNumber        string `json:"idNumber,omitempty"`
	Age             string `json:"age,omitempty"`
	Sex             string `json:"sex,omitempty"`
	Reason          string `json:"reason,omitempty"`
	AdmissionDate   string `json:"admissionDate"`
	DischargeDate   string `json:"dischargeDate,omitempty"`
	Charges         string `json:"charges,omitempty"`
	CreatedAt       string `json:"createdAt"`

	DailyNotes        []Note        `json:"dailyNotes"`
	Observations      []Observation `json:"observations"`
	LabRequests       []LabRequest  `json:"labRequests"`
	Medications       []Medication  `json:"medications"`
	AdditionalCharges []Charge      `json:"additionalCharges"`
}

// Discharged reports whether the stay has a discharge date.
func (s Stay) Discharged() bool {
	return strings.TrimSpace(s.DischargeDate) != ""
}

// Entries returns a section's entries in stored order.
func (s Stay) Entries(section string) []Entry {
	var out []Entry
	switch section {
	case SectionNotes:
		for _, e := range s.DailyNotes {
			out = append(out, e)
		}
	case SectionObservations:
		for _, e := range s.Observations {
			out = append(out, e)
		}
	case SectionLabRequests:
		for _, e := range s.LabRequests {
			out = append(out, e)
		}
	case SectionMedications:
		for _, e := range s.Medications {
			out = append(out, e)
		}
	case SectionCharges:
		for _, e := range s.AdditionalCharges {
			out = append(out, e)
		}
	}
	return out
}

// StayView is a stay with its computed bill.
type StayView struct {
	Stay
	Additional decimal.Decimal `json:"additionalTotal"`
	Total      decimal.Decimal `json:"total"`
}

// Admission is the input of Admit.
type Admission struct {
	InpatientNumber string `json:"inpatientNumber"`
	PatientName     string `json:"patientName"`
	Phone           string `json:"phone"`
	IDNumber        string `json:"idNumber"`
	Age             string `json:"age"`
	Sex             string `json:"sex"`
	Reason          string `json:"reason"`
	AdmissionDate   string `json:"admissionDate"`
	Charges         string `json:"charges"`
}

// StayUpdate changes admission details. Ledger sections are edited through
// the entry operations only.
type StayUpdate struct {
	PatientName   *string `json:"patientName"`
	Phone         *string `json:"phone"`
	IDNumber      *string `json:"idNumber"`
	Age           *string `json:"age"`
	Sex           *string `json:"sex"`
	Reason        *string `json:"reason"`
	AdmissionDate *string `json:"admissionDate"`
	Charges       *string `json:"charges"`
}

// EntryRequest carries an entry in the wire shape {section, entry}.
type EntryRequest struct {
	Section string                 `json:"section"`
	Entry   map[string]interface{} `json:"entry"`
}

// Parse decodes and validates the entry.
func (r EntryRequest) Parse() (Entry, error) {
	if r.Entry == nil {
		return nil, apperr.Required("entry")
	}
	e, err := DecodeEntry(r.Section, r.Entry)
	if err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// EditRequest replaces Old with New in the same section.
type EditRequest struct {
	Section string                 `json:"section"`
	Old     map[string]interface{} `json:"old"`
	New     map[string]interface{} `json:"new"`
}
