package pharmacy

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Payment methods accepted at the pharmacy counter, in display case.
const (
	MethodCash     = "Cash"
	MethodMpesa    = "Mpesa"
	MethodSHA      = "SHA"
	MethodMultiple = "Multiple"
)

var paymentMethods = map[string]string{
	"cash":     MethodCash,
	"mpesa":    MethodMpesa,
	"sha":      MethodSHA,
	"multiple": MethodMultiple,
}

// CanonicalMethod returns the display form of a payment method.
func CanonicalMethod(m string) (string, bool) {
	c, ok := paymentMethods[strings.ToLower(strings.TrimSpace(m))]
	return c, ok
}

// Item is a stock line in the pharmacy inventory.
type Item struct {
	ID            string `json:"id"`
	MedicineName  string `json:"medicineName"`
	BatchNo       string `json:"batchNo,omitempty"`
	Category      string `json:"category,omitempty"`
	Quantity      int    `json:"quantity"`
	Unit          string `json:"unit,omitempty"`
	Expiry        string `json:"expiry,omitempty"`
	Dosage        string `json:"dosage,omitempty"`
	Price         string `json:"price"`
	ReorderLevel  int    `json:"reorderLevel"`
	PrescribedFor string `json:"prescribedFor,omitempty"`
	Barcode       string `json:"barcode,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

// Low reports whether the item is at or below its reorder level.
func (i Item) Low() bool {
	return i.Quantity <= i.ReorderLevel
}

// ItemInput creates an inventory line.
type ItemInput struct {
	MedicineName  string `json:"medicineName"`
	BatchNo       string `json:"batchNo,omitempty"`
	Category      string `json:"category,omitempty"`
	Quantity      int    `json:"quantity"`
	Unit          string `json:"unit,omitempty"`
	Expiry        string `json:"expiry,omitempty"`
	Dosage        string `json:"dosage,omitempty"`
	Price         string `json:"price"`
	ReorderLevel  int    `json:"reorderLevel"`
	PrescribedFor string `json:"prescribedFor,omitempty"`
	Barcode       string `json:"barcode,omitempty"`
}

// ItemUpdate changes an inventory line; nil fields are left alone.
type ItemUpdate struct {
	MedicineName  *string `json:"medicineName"`
	BatchNo       *string `json:"batchNo"`
	Category      *string `json:"category"`
	Quantity      *int    `json:"quantity"`
	Unit          *string `json:"unit"`
	Expiry        *string `json:"expiry"`
	Dosage        *string `json:"dosage"`
	Price         *string `json:"price"`
	ReorderLevel  *int    `json:"reorderLevel"`
	PrescribedFor *string `json:"prescribedFor"`
	Barcode       *string `json:"barcode"`
}

// Sale is one counter sale. Name and price are copied from the inventory
// line at the time of sale.
type Sale struct {
	ID            string          `json:"id"`
	MedicineID    string          `json:"medicineId"`
	MedicineName  string          `json:"medicineName"`
	PrescribedFor string          `json:"prescribedFor,omitempty"`
	Quantity      int             `json:"quantity"`
	Price         string          `json:"price"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"paymentMethod"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     string          `json:"createdAt"`
}

// SaleInput records a sale.
type SaleInput struct {
	MedicineID    string `json:"medicineId"`
	Quantity      int    `json:"quantity"`
	PaymentMethod string `json:"paymentMethod"`
	Description   string `json:"description"`
}

// SaleUpdate corrects the payment details of a sale. Quantities are not
// editable after the stock has moved.
type SaleUpdate struct {
	PaymentMethod *string `json:"paymentMethod"`
	Description   *string `json:"description"`
}
