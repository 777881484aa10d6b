package pharmacy

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

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

// Today is the default date of the sales list.
func (s *Service) Today() string {
	return s.now().UTC().Format("2006-01-02")
}

func ItemOf(r store.Record) (Item, error) {
	var it Item
	err := store.Decode(r, &it)
	return it, err
}

func SaleOf(r store.Record) (Sale, error) {
	var sl Sale
	err := store.Decode(r, &sl)
	return sl, err
}

func items(records []store.Record) ([]Item, error) {
	out := make([]Item, 0, len(records))
	for _, r := range records {
		it, err := ItemOf(r)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// Validate checks a new inventory line.
func (in ItemInput) Validate() error {
	if strings.TrimSpace(in.MedicineName) == "" {
		return apperr.Required("medicineName")
	}
	if in.Quantity < 0 {
		return apperr.Invalid("quantity", "cannot be negative")
	}
	if in.ReorderLevel < 0 {
		return apperr.Invalid("reorderLevel", "cannot be negative")
	}
	if strings.TrimSpace(in.Price) == "" {
		return apperr.Required("price")
	}
	return billing.ValidateAmount("price", in.Price)
}

// CreateItem adds an inventory line.
func (s *Service) CreateItem(ctx context.Context, in ItemInput) (*Item, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	in.MedicineName = strings.TrimSpace(in.MedicineName)
	in.Price = strings.TrimSpace(in.Price)
	fields, err := store.Encode(in)
	if err != nil {
		return nil, err
	}
	id, err := s.store.Add(ctx, store.PharmacyInventory, fields)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", store.PharmacyInventory).Msg("create item failed")
		return nil, err
	}
	s.logger.Info().Str("item_id", id).Str("medicine", in.MedicineName).Int("quantity", in.Quantity).Msg("inventory item added")
	return s.GetItem(ctx, id)
}

func (s *Service) GetItem(ctx context.Context, id string) (*Item, error) {
	r, err := s.store.Get(ctx, store.PharmacyInventory, id)
	if err != nil {
		return nil, err
	}
	it, err := ItemOf(r)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (u ItemUpdate) fields() (store.Fields, error) {
	var f store.Fields
	str := func(name string, v *string) {
		if v != nil {
			f.Set(name, strings.TrimSpace(*v))
		}
	}
	if u.MedicineName != nil && strings.TrimSpace(*u.MedicineName) == "" {
		return nil, apperr.Invalid("medicineName", "cannot be blank")
	}
	if u.Quantity != nil && *u.Quantity < 0 {
		return nil, apperr.Invalid("quantity", "cannot be negative")
	}
	if u.ReorderLevel != nil && *u.ReorderLevel < 0 {
		return nil, apperr.Invalid("reorderLevel", "cannot be negative")
	}
	if u.Price != nil {
		if strings.TrimSpace(*u.Price) == "" {
			return nil, apperr.Invalid("price", "cannot be blank")
		}
		if err := billing.ValidateAmount("price", *u.Price); err != nil {
			return nil, err
		}
	}
	str("medicineName", u.MedicineName)
	str("batchNo", u.BatchNo)
	str("category", u.Category)
	if u.Quantity != nil {
		f.Set("quantity", *u.Quantity)
	}
	str("unit", u.Unit)
	str("expiry", u.Expiry)
	str("dosage", u.Dosage)
	str("price", u.Price)
	if u.ReorderLevel != nil {
		f.Set("reorderLevel", *u.ReorderLevel)
	}
	str("prescribedFor", u.PrescribedFor)
	str("barcode", u.Barcode)
	if len(f) == 0 {
		return nil, apperr.Invalid("", "no fields to update")
	}
	return f, nil
}

// UpdateItem edits an inventory line.
func (s *Service) UpdateItem(ctx context.Context, id string, u ItemUpdate) (*Item, error) {
	f, err := u.fields()
	if err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, store.PharmacyInventory, id, f); err != nil {
		s.logger.Error().Err(err).Str("item_id", id).Msg("update item failed")
		return nil, err
	}
	return s.GetItem(ctx, id)
}

func (s *Service) DeleteItem(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, store.PharmacyInventory, id); err != nil {
		s.logger.Error().Err(err).Str("item_id", id).Msg("delete item failed")
		return err
	}
	return nil
}

// ItemPage is one page of the inventory.
type ItemPage struct {
	Result listview.Result
	Items  []Item
	Low    int
}

// ListItems pages the inventory matching the filter. Low counts matching
// lines at or below their reorder level.
func (s *Service) ListItems(ctx context.Context, q listview.Query) (*ItemPage, error) {
	recs, err := s.store.GetAll(ctx, store.PharmacyInventory)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", store.PharmacyInventory).Msg("list inventory failed")
		return nil, err
	}
	res := q.Run(recs)
	page, err := items(res.Page.Items)
	if err != nil {
		return nil, err
	}
	all, err := items(res.Matched)
	if err != nil {
		return nil, err
	}
	low := 0
	for _, it := range all {
		if it.Low() {
			low++
		}
	}
	return &ItemPage{Result: res, Items: page, Low: low}, nil
}

// LowStock lists every line at or below its reorder level, emptiest first.
func (s *Service) LowStock(ctx context.Context) ([]Item, error) {
	recs, err := s.store.GetAll(ctx, store.PharmacyInventory)
	if err != nil {
		return nil, err
	}
	all, err := items(recs)
	if err != nil {
		return nil, err
	}
	out := []Item{}
	for _, it := range all {
		if it.Low() {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Quantity < out[j].Quantity })
	return out, nil
}

// ExportItems returns the inventory rows matching the filter.
func (s *Service) ExportItems(ctx context.Context, q listview.Query) ([]store.Fields, error) {
	recs, err := s.store.GetAll(ctx, store.PharmacyInventory)
	if err != nil {
		return nil, err
	}
	return export.Records(q.Run(recs).Matched), nil
}

func checkPayment(method, description string) (string, error) {
	m, ok := CanonicalMethod(method)
	if !ok {
		return "", apperr.Invalid("paymentMethod", "must be one of Cash, Mpesa, SHA, Multiple")
	}
	if m == MethodMultiple && strings.TrimSpace(description) == "" {
		return "", apperr.Invalid("description", "is required when paying with multiple methods")
	}
	return m, nil
}

// RecordSale sells from an inventory line. The stock decrement and the sale
// are written in one transaction: either both land or neither does.
func (s *Service) RecordSale(ctx context.Context, in SaleInput) (*Sale, error) {
	if strings.TrimSpace(in.MedicineID) == "" {
		return nil, apperr.Required("medicineId")
	}
	if in.Quantity <= 0 {
		return nil, apperr.Invalid("quantity", "must be greater than zero")
	}
	method, err := checkPayment(in.PaymentMethod, in.Description)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.GetItem(ctx, in.MedicineID)
	if err != nil {
		return nil, err
	}

	saleID := store.NewID()
	total := billing.ParseAmount(snapshot.Price).Mul(decimal.NewFromInt(int64(in.Quantity)))
	err = s.store.Transact(ctx,
		store.MutateOp{
			Collection: store.PharmacyInventory,
			ID:         in.MedicineID,
			Apply: func(r *store.Record) error {
				cur, err := ItemOf(*r)
				if err != nil {
					return err
				}
				if cur.Price != snapshot.Price {
					return apperr.Invalid("price", "changed while recording the sale, please retry")
				}
				if cur.Quantity <= 0 {
					return apperr.Invalid("quantity", "%s is out of stock", cur.MedicineName)
				}
				if in.Quantity > cur.Quantity {
					return apperr.Invalid("quantity", "insufficient stock: %d %s available", cur.Quantity, cur.Unit)
				}
				r.Fields.Set("quantity", cur.Quantity-in.Quantity)
				return nil
			},
		},
		store.AddOp{
			Collection: store.Sales,
			ID:         saleID,
			Fields: store.F(
				"medicineId", in.MedicineID,
				"medicineName", snapshot.MedicineName,
				"prescribedFor", snapshot.PrescribedFor,
				"quantity", in.Quantity,
				"price", snapshot.Price,
				"total", total.String(),
				"paymentMethod", method,
				"description", strings.TrimSpace(in.Description),
			),
		},
	)
	if err != nil {
		s.logger.Error().Err(err).Str("item_id", in.MedicineID).Int("quantity", in.Quantity).Msg("record sale failed")
		return nil, err
	}
	s.logger.Info().Str("sale_id", saleID).Str("item_id", in.MedicineID).Int("quantity", in.Quantity).
		Str("total", total.String()).Msg("sale recorded")
	return s.GetSale(ctx, saleID)
}

func (s *Service) GetSale(ctx context.Context, id string) (*Sale, error) {
	r, err := s.store.Get(ctx, store.Sales, id)
	if err != nil {
		return nil, err
	}
	sl, err := SaleOf(r)
	if err != nil {
		return nil, err
	}
	return &sl, nil
}

// UpdateSale corrects the payment method or description of a sale.
func (s *Service) UpdateSale(ctx context.Context, id string, u SaleUpdate) (*Sale, error) {
	if u.PaymentMethod == nil && u.Description == nil {
		return nil, apperr.Invalid("", "no fields to update")
	}
	err := s.store.Transact(ctx, store.MutateOp{
		Collection: store.Sales,
		ID:         id,
		Apply: func(r *store.Record) error {
			method, desc := r.Fields.String("paymentMethod"), r.Fields.String("description")
			if u.PaymentMethod != nil {
				method = *u.PaymentMethod
			}
			if u.Description != nil {
				desc = strings.TrimSpace(*u.Description)
			}
			m, err := checkPayment(method, desc)
			if err != nil {
				return err
			}
			r.Fields.Set("paymentMethod", m)
			r.Fields.Set("description", desc)
			return nil
		},
	})
	if err != nil {
		s.logger.Error().Err(err).Str("sale_id", id).Msg("update sale failed")
		return nil, err
	}
	return s.GetSale(ctx, id)
}

// SalePage is one page of sales with the revenue of every matching sale.
type SalePage struct {
	Result  listview.Result
	Sales   []Sale
	Revenue decimal.Decimal
}

// ListSales pages sales matching the filter, normally one day.
func (s *Service) ListSales(ctx context.Context, q listview.Query) (*SalePage, error) {
	recs, err := s.store.GetAll(ctx, store.Sales)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", store.Sales).Msg("list sales failed")
		return nil, err
	}
	res := q.Run(recs)
	sales := make([]Sale, 0, len(res.Page.Items))
	for _, r := range res.Page.Items {
		sl, err := SaleOf(r)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sl)
	}
	revenue := decimal.Zero
	for _, r := range res.Matched {
		v, _ := r.Fields.Get("total")
		revenue = revenue.Add(billing.ParseAmount(v))
	}
	return &SalePage{Result: res, Sales: sales, Revenue: revenue}, nil
}
