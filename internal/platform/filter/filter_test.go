package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DBEST-EZRA/HMIS/internal/platform/store"
)

func rec(id, createdAt string, kv ...interface{}) store.Record {
	return store.Record{ID: id, CreatedAt: createdAt, Fields: store.F(kv...)}
}

func sample() []store.Record {
	return []store.Record{
		rec("p1", "2025-06-01T10:00:00Z", "fullName", "Alice Wanjiru", "residence", "Nairobi", "age", "34"),
		rec("p2", "2025-06-02T09:00:00Z", "fullName", "Brian Otieno", "residence", "Kisumu", "age", float64(51)),
		rec("p3", "2024-12-31T23:59:59.000Z", "fullName", "Carol Njeri", "residence", "Nakuru"),
		rec("p4", "", "fullName", "Dan Kamau", "residence", "Nairobi"),
		rec("p5", "2025-01-15T08:00:00.000Z", "fullName", "Esther", "drugs", []interface{}{"amoxicillin", "paracetamol"}),
	}
}

func ids(rs []store.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestApply_ExactDate(t *testing.T) {
	records := []store.Record{
		rec("a", "2025-06-01T10:00:00Z", "fullName", "A"),
		rec("b", "2025-06-02T09:00:00Z", "fullName", "B"),
	}
	got := Apply(records, Spec{Date: "2025-06-01"})
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Fields.String("fullName"))
}

func TestApply_EmptySpecKeepsEverything(t *testing.T) {
	records := sample()
	got := Apply(records, Spec{Search: "", Date: "all", Month: "all", Year: "all"})
	assert.Equal(t, ids(records), ids(got))
}

func TestApply_SearchIsCaseInsensitive(t *testing.T) {
	got := Apply(sample(), Spec{Search: "NAIROBI"})
	assert.Equal(t, []string{"p1", "p4"}, ids(got))
}

func TestApply_SearchCoversIDAndNumbers(t *testing.T) {
	assert.Equal(t, []string{"p3"}, ids(Apply(sample(), Spec{Search: "p3"})))
	assert.Equal(t, []string{"p2"}, ids(Apply(sample(), Spec{Search: "51"})))
}

func TestApply_SearchCoversNestedValues(t *testing.T) {
	assert.Equal(t, []string{"p5"}, ids(Apply(sample(), Spec{Search: "paracetamol"})))
}

func TestApply_SearchSpansAdjacentFields(t *testing.T) {
	// Values are joined with single spaces in insertion order.
	assert.Equal(t, []string{"p1"}, ids(Apply(sample(), Spec{Search: "wanjiru nairobi"})))
}

func TestApply_MonthAndYear(t *testing.T) {
	assert.Equal(t, []string{"p1", "p2"}, ids(Apply(sample(), Spec{Month: "06"})))
	assert.Equal(t, []string{"p1", "p2", "p5"}, ids(Apply(sample(), Spec{Year: "2025"})))
	assert.Equal(t, []string{"p5"}, ids(Apply(sample(), Spec{Month: "1", Year: "2025"})))
	assert.Empty(t, Apply(sample(), Spec{Month: "12", Year: "2025"}))
}

func TestApply_MissingCreatedAtFailsDatePredicates(t *testing.T) {
	records := []store.Record{rec("x", "", "fullName", "No Date")}
	assert.Len(t, Apply(records, Spec{Search: "no date"}), 1)
	assert.Empty(t, Apply(records, Spec{Date: "2025-06-01"}))
	assert.Empty(t, Apply(records, Spec{Month: "06"}))
	assert.Empty(t, Apply(records, Spec{Year: "2025"}))
}

func TestApply_UnparsableCreatedAtFailsDatePredicates(t *testing.T) {
	records := []store.Record{rec("x", "yesterday", "fullName", "X")}
	assert.Empty(t, Apply(records, Spec{Year: "2025"}))
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	records := sample()
	before := ids(records)
	_ = Apply(records, Spec{Search: "nairobi"})
	assert.Equal(t, before, ids(records))
}

func specs() []Spec {
	return []Spec{
		{},
		{Search: "nairobi"},
		{Search: "a"},
		{Date: "2025-06-01"},
		{Month: "06"},
		{Year: "2025"},
		{Search: "n", Year: "2025"},
		{Search: "zzz"},
		{Month: "12", Year: "2024"},
	}
}

func TestApply_Idempotent(t *testing.T) {
	records := sample()
	for _, s := range specs() {
		once := Apply(records, s)
		twice := Apply(once, s)
		assert.Equal(t, ids(once), ids(twice), "spec %+v", s)
	}
}

func TestApply_Monotonic(t *testing.T) {
	records := sample()
	narrowings := []struct{ wide, narrow Spec }{
		{Spec{}, Spec{Search: "n"}},
		{Spec{Search: "n"}, Spec{Search: "n", Year: "2025"}},
		{Spec{Year: "2025"}, Spec{Year: "2025", Month: "06"}},
		{Spec{Year: "2025", Month: "06"}, Spec{Year: "2025", Month: "06", Date: "2025-06-02"}},
		{Spec{Search: "nairobi"}, Spec{Search: "nairobi", Date: "2025-06-01"}},
	}
	for _, n := range narrowings {
		assert.LessOrEqual(t, len(Apply(records, n.narrow)), len(Apply(records, n.wide)), "%+v -> %+v", n.wide, n.narrow)
	}
}

func TestYears(t *testing.T) {
	assert.Equal(t, []string{"2025", "2024"}, Years(sample()))
	assert.Empty(t, Years(nil))
}

func TestSpec_Validate(t *testing.T) {
	assert.NoError(t, Spec{Date: "2025-06-01", Month: "6", Year: "2025"}.Validate())
	assert.NoError(t, Spec{Date: "all", Month: "all", Year: "all"}.Validate())

	err := Spec{Date: "06/01/2025"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "date")

	require.Error(t, Spec{Month: "13"}.Validate())
	require.Error(t, Spec{Year: "25"}.Validate())
}

func TestSpec_Key(t *testing.T) {
	a := Spec{Search: " Nairobi ", Month: "6", Year: "all"}
	b := Spec{Search: "nairobi", Month: "06"}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), Spec{Search: "nairobi"}.Key())
	assert.True(t, Spec{Date: "all"}.IsZero())
	assert.False(t, b.IsZero())
}
