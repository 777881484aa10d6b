package patient

import "github.com/shopspring/decimal"

// Patient is an outpatient visit in the patients collection. Every desk
// writes its own slice of fields onto the same record.
type Patient struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName"`
	IDNumber  string `json:"idNumber,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Age       string `json:"age,omitempty"`
	Sex       string `json:"sex,omitempty"`
	Residence string `json:"residence,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Assignee  string `json:"assignee,omitempty"`

	// Clinician
	Notes           string `json:"notes,omitempty"`
	Symptoms        string `json:"symptoms,omitempty"`
	RecommendedTest string `json:"recommendedTest,omitempty"`
	TestResult      string `json:"testResult,omitempty"`
	Drugs           string `json:"drugs,omitempty"`
	Injection       string `json:"injection,omitempty"`
	Charges         string `json:"charges,omitempty"`
	Fee             string `json:"fee,omitempty"`

	// Lab and pharmacy
	LabCharges      string `json:"labCharges,omitempty"`
	PharmacyCharges string `json:"pharmacyCharges,omitempty"`

	PaymentStatus string `json:"paymentStatus,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

// View is a patient with the clinical total of the visit.
type View struct {
	Patient
	Total decimal.Decimal `json:"total"`
}

// Registration is what reception captures for a new visit.
type Registration struct {
	FullName  string `json:"fullName"`
	IDNumber  string `json:"idNumber,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Age       string `json:"age,omitempty"`
	Sex       string `json:"sex,omitempty"`
	Residence string `json:"residence,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Assignee  string `json:"assignee,omitempty"`
}

// ClinicalUpdate is the clinician's consultation form.
type ClinicalUpdate struct {
	Notes           *string `json:"notes"`
	Symptoms        *string `json:"symptoms"`
	RecommendedTest *string `json:"recommendedTest"`
	TestResult      *string `json:"testResult"`
	Drugs           *string `json:"drugs"`
	Injection       *string `json:"injection"`
	Charges         *string `json:"charges"`
	Fee             *string `json:"fee"`
}

// LabUpdate is the laboratory form.
type LabUpdate struct {
	RecommendedTest *string `json:"recommendedTest"`
	TestResult      *string `json:"testResult"`
	LabCharges      *string `json:"labCharges"`
}

// PharmacyUpdate is the dispensing form.
type PharmacyUpdate struct {
	Drugs           *string `json:"drugs"`
	PharmacyCharges *string `json:"pharmacyCharges"`
}
