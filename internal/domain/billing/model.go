package billing

import (
	"github.com/shopspring/decimal"
)

// Payment methods accepted at the accounts desk.
const (
	MethodCash     = "cash"
	MethodMpesa    = "mpesa"
	MethodSHA      = "sha"
	MethodMultiple = "multiple"
)

// Payment statuses of a visit. A visit without one is unpaid.
const (
	StatusPaid    = "paid"
	StatusUnpaid  = "unpaid"
	StatusPartial = "partial"
)

var (
	paymentMethods  = map[string]bool{MethodCash: true, MethodMpesa: true, MethodSHA: true, MethodMultiple: true}
	paymentStatuses = map[string]bool{StatusPaid: true, StatusUnpaid: true, StatusPartial: true}
)

// Visit is the billing-relevant shape of a patients record.
type Visit struct {
	ID                 string `json:"id"`
	FullName           string `json:"fullName"`
	IDNumber           string `json:"idNumber"`
	Phone              string `json:"phone"`
	PharmacyCharges    string `json:"pharmacyCharges"`
	LabCharges         string `json:"labCharges"`
	Fee                string `json:"fee"`
	Charges            string `json:"charges"`
	PaymentMethod      string `json:"paymentMethod"`
	PaymentStatus      string `json:"paymentStatus"`
	AccountDescription string `json:"accountDescription"`
	CreatedAt          string `json:"createdAt"`
}

// Bill is a visit with display defaults applied and its computed total.
type Bill struct {
	Visit
	Total decimal.Decimal `json:"total"`
}

// ChargeUpdate is a partial update of a visit's charges and payment. Nil
// fields are left untouched.
type ChargeUpdate struct {
	PharmacyCharges    *string `json:"pharmacyCharges"`
	LabCharges         *string `json:"labCharges"`
	Fee                *string `json:"fee"`
	Charges            *string `json:"charges"`
	PaymentMethod      *string `json:"paymentMethod"`
	PaymentStatus      *string `json:"paymentStatus"`
	AccountDescription *string `json:"accountDescription"`
}

// Summary describes a set of bills.
type Summary struct {
	Count   int             `json:"count"`
	Paid    int             `json:"paid"`
	Unpaid  int             `json:"unpaid"`
	Partial int             `json:"partial"`
	Total   decimal.Decimal `json:"total"`
}
