package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFields_JSONKeepsOrder(t *testing.T) {
	f := F("zeta", "z", "alpha", 1.5, "notes", []interface{}{"a", "b"})
	raw, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"z","alpha":1.5,"notes":["a","b"]}`, string(raw))

	var back Fields
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, []string{"zeta", "alpha", "notes"}, back.Names())
}

func TestFields_MergeDoesNotAlias(t *testing.T) {
	base := F("name", "Jane", "dailyNotes", []interface{}{"day one"})
	merged := base.Merge(F("name", "Janet"))

	notes, _ := merged.Get("dailyNotes")
	notes.([]interface{})[0] = "changed"

	assert.Equal(t, "Jane", base.String("name"))
	orig, _ := base.Get("dailyNotes")
	assert.Equal(t, "day one", orig.([]interface{})[0])
	assert.Equal(t, "Janet", merged.String("name"))
}

func TestRecord_JSONIsFlat(t *testing.T) {
	r := Record{ID: "p1", CreatedAt: "2025-03-01T08:00:00.000Z", Fields: F("fullName", "Jane", "id", "shadow")}
	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"p1","fullName":"Jane","createdAt":"2025-03-01T08:00:00.000Z"}`, string(raw))

	var back Record
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "p1", back.ID)
	assert.Equal(t, "2025-03-01T08:00:00.000Z", back.CreatedAt)
	assert.Equal(t, []string{"fullName"}, back.Fields.Names())
}

func TestRecord_SearchText(t *testing.T) {
	r := Record{
		ID:        "p1",
		CreatedAt: "2025-03-01T08:00:00.000Z",
		Fields:    F("fullName", "Jane Doe", "fee", 300, "meta", map[string]interface{}{"b": 2, "a": "x"}),
	}
	assert.Equal(t, `p1 Jane Doe 300 {"a":"x","b":2} 2025-03-01T08:00:00.000Z`, r.SearchText())
}

func TestStringify(t *testing.T) {
	at := time.Date(2025, 3, 1, 11, 0, 0, 0, time.FixedZone("EAT", 3*3600))
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{true, "true"},
		{float64(1500), "1500"},
		{2.5, "2.5"},
		{42, "42"},
		{at, "2025-03-01T08:00:00.000Z"},
		{[]interface{}{"a", 1.0}, `["a",1]`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Stringify(tt.in))
	}
}

func TestPredicate_Match(t *testing.T) {
	r := Record{ID: "r1", CreatedAt: "2025-05-20T10:00:00.000Z", Fields: F("qty", "12", "status", "admitted", "price", "n/a")}

	assert.True(t, Where("qty", Gt, 5).Match(r), "numeric comparison")
	assert.False(t, Where("qty", Gt, "5").Match(r), "lexical comparison")
	assert.True(t, Where("status", Eq, "admitted").Match(r))
	assert.True(t, Where("createdAt", Ge, "2025-05-20T00:00:00.000Z").Match(r))
	assert.True(t, Where("id", Eq, "r1").Match(r))
	assert.False(t, Where("price", Ge, 0).Match(r), "non-numeric values never match numeric predicates")
	assert.False(t, Where("missing", Ne, "x").Match(r), "absent fields never match")
}

func TestParseOperator(t *testing.T) {
	op, err := ParseOperator(">=")
	require.NoError(t, err)
	assert.Equal(t, Ge, op)

	_, err = ParseOperator("~")
	assert.Error(t, err)
}

type saleDoc struct {
	ID         string          `json:"id"`
	MedicineID string          `json:"medicineId"`
	Quantity   int             `json:"quantity"`
	Total      decimal.Decimal `json:"total"`
	Note       string          `json:"note,omitempty"`
	Lines      []saleLine      `json:"lines,omitempty"`
	CreatedAt  string          `json:"createdAt"`
}

type saleLine struct {
	Item string `json:"item"`
}

func TestDecode(t *testing.T) {
	r := Record{
		ID:        "s1",
		CreatedAt: "2025-04-01T09:00:00.000Z",
		Fields:    F("medicineId", "amox", "quantity", "3", "total", "1,500.50", "extra", "ignored"),
	}
	var doc saleDoc
	require.NoError(t, Decode(r, &doc))
	assert.Equal(t, "s1", doc.ID)
	assert.Equal(t, "2025-04-01T09:00:00.000Z", doc.CreatedAt)
	assert.Equal(t, 3, doc.Quantity)
	assert.True(t, decimal.RequireFromString("1500.50").Equal(doc.Total))

	var bad saleDoc
	require.NoError(t, Decode(Record{ID: "s2", Fields: F("total", "n/a")}, &bad))
	assert.True(t, bad.Total.IsZero(), "unparseable money decodes as zero")
}

func TestEncode(t *testing.T) {
	doc := saleDoc{
		ID:         "ignored",
		MedicineID: "amox",
		Quantity:   3,
		Total:      decimal.NewFromInt(45),
		Lines:      []saleLine{{Item: "strip"}},
		CreatedAt:  "ignored",
	}
	f, err := Encode(&doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"medicineId", "quantity", "total", "lines"}, f.Names())
	assert.Equal(t, "45", f.String("total"))
	lines, _ := f.Get("lines")
	assert.Equal(t, []interface{}{map[string]interface{}{"item": "strip"}}, lines)

	_, err = Encode("not a struct")
	assert.Error(t, err)
}
