package ward

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/DBEST-EZRA/HMIS/internal/domain/billing"
	"github.com/DBEST-EZRA/HMIS/internal/platform/store"
)

// Ref points back at the stored entry a ledger cell came from. Section and
// Entry together identify the entry for edit and delete.
type Ref struct {
	Section string `json:"section"`
	Entry   Entry  `json:"entry"`
}

// MergedRow is one date of the ledger with at most one entry of each kind.
// Hidden holds same-kind entries of the date that a later entry replaced.
type MergedRow struct {
	Date        string `json:"date"`
	Note        *Ref   `json:"note,omitempty"`
	Observation *Ref   `json:"observation,omitempty"`
	Request     *Ref   `json:"request,omitempty"`
	Medication  *Ref   `json:"medication,omitempty"`
	Charge      *Ref   `json:"charge,omitempty"`
	Hidden      []Ref  `json:"hidden,omitempty"`
	Collapsed   int    `json:"collapsed"`
}

func (r *MergedRow) cell(k Kind) **Ref {
	switch k {
	case KindNote:
		return &r.Note
	case KindObservation:
		return &r.Observation
	case KindRequest:
		return &r.Request
	case KindMedication:
		return &r.Medication
	default:
		return &r.Charge
	}
}

// Cells returns the visible cells of the row in section order.
func (r MergedRow) Cells() []Ref {
	var out []Ref
	for _, c := range []*Ref{r.Note, r.Observation, r.Request, r.Medication, r.Charge} {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// MergeByDate folds the five ledger sections of a stay into one row per
// distinct date. Sections are walked in order and within a section entries
// in stored order; a later entry of the same kind on the same date wins.
// Rows are sorted by date, most recent first, ties in first-seen order.
func MergeByDate(s Stay) []MergedRow {
	index := make(map[string]int)
	var rows []MergedRow
	for _, section := range Sections {
		for _, e := range s.Entries(section) {
			date := e.EntryDate()
			i, ok := index[date]
			if !ok {
				i = len(rows)
				index[date] = i
				rows = append(rows, MergedRow{Date: date})
			}
			cell := rows[i].cell(e.Kind())
			if *cell != nil {
				rows[i].Hidden = append(rows[i].Hidden, **cell)
				rows[i].Collapsed++
			}
			*cell = &Ref{Section: section, Entry: e}
		}
	}
	sort.SliceStable(rows, func(a, b int) bool {
		return rows[a].Date > rows[b].Date
	})
	return rows
}

// Total is the stay's bill: base charges plus every additional charge.
func Total(r store.Record) decimal.Decimal {
	return billing.ComputeTotal(r, billing.WardProfile)
}
