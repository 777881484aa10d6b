// Package filter narrows a record set by free-text search and by the
// date, month and year of each record's createdAt timestamp.
package filter

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
	"github.com/DBEST-EZRA/HMIS/internal/platform/store"
)

// All is the selector value meaning "no constraint".
const All = "all"

// Spec is a filter specification. Empty and "all" fields impose no
// constraint.
type Spec struct {
	Search string `json:"search,omitempty"`
	Date   string `json:"date,omitempty"`
	Month  string `json:"month,omitempty"`
	Year   string `json:"year,omitempty"`
}

var (
	dateRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	monthRe = regexp.MustCompile(`^(0[1-9]|1[0-2])$`)
	yearRe  = regexp.MustCompile(`^\d{4}$`)
)

func active(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, All)
}

// Normalize returns s with whitespace trimmed, the search lower-cased, "all"
// mapped to empty and a one-digit month zero-padded.
func (s Spec) Normalize() Spec {
	clean := func(v string) string {
		if !active(v) {
			return ""
		}
		return strings.TrimSpace(v)
	}
	out := Spec{
		Search: strings.ToLower(clean(s.Search)),
		Date:   clean(s.Date),
		Month:  clean(s.Month),
		Year:   clean(s.Year),
	}
	if len(out.Month) == 1 && out.Month[0] >= '1' && out.Month[0] <= '9' {
		out.Month = "0" + out.Month
	}
	return out
}

// Validate rejects malformed date selectors.
func (s Spec) Validate() error {
	n := s.Normalize()
	if n.Date != "" && !dateRe.MatchString(n.Date) {
		return apperr.Invalid("date", "must be YYYY-MM-DD, got %q", n.Date)
	}
	if n.Month != "" && !monthRe.MatchString(n.Month) {
		return apperr.Invalid("month", "must be 01-12, got %q", n.Month)
	}
	if n.Year != "" && !yearRe.MatchString(n.Year) {
		return apperr.Invalid("year", "must be a 4-digit year, got %q", n.Year)
	}
	return nil
}

// IsZero reports whether s imposes no constraint at all.
func (s Spec) IsZero() bool {
	return s.Normalize() == Spec{}
}

// Key fingerprints the normalized spec. Two specs select the same records
// exactly when their keys are equal.
func (s Spec) Key() string {
	n := s.Normalize()
	sum := sha1.Sum([]byte(fmt.Sprintf("%s\x00%s\x00%s\x00%s", n.Search, n.Date, n.Month, n.Year)))
	return hex.EncodeToString(sum[:6])
}

// Match reports whether a single record satisfies every active predicate.
func (s Spec) Match(r store.Record) bool {
	return s.Normalize().match(r)
}

func (s Spec) match(r store.Record) bool {
	if s.Search != "" && !strings.Contains(strings.ToLower(r.SearchText()), s.Search) {
		return false
	}
	if s.Date == "" && s.Month == "" && s.Year == "" {
		return true
	}
	year, month, ok := datePart(r.CreatedAt)
	if !ok {
		return false
	}
	if s.Date != "" && !strings.HasPrefix(r.CreatedAt, s.Date) {
		return false
	}
	if s.Month != "" && month != s.Month {
		return false
	}
	if s.Year != "" && year != s.Year {
		return false
	}
	return true
}

// Apply returns the records matching spec in their original order. The input
// slice is not modified.
func Apply(records []store.Record, spec Spec) []store.Record {
	n := spec.Normalize()
	out := make([]store.Record, 0, len(records))
	for _, r := range records {
		if n.match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Years lists the distinct createdAt years of records, newest first.
func Years(records []store.Record) []string {
	seen := make(map[string]struct{})
	years := []string{}
	for _, r := range records {
		y, _, ok := datePart(r.CreatedAt)
		if !ok {
			continue
		}
		if _, dup := seen[y]; dup {
			continue
		}
		seen[y] = struct{}{}
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(years)))
	return years
}

// datePart extracts the 4-digit year and 2-digit month from the ISO date
// portion of a createdAt value.
func datePart(createdAt string) (year, month string, ok bool) {
	if len(createdAt) < 10 || !dateRe.MatchString(createdAt[:10]) {
		return "", "", false
	}
	return createdAt[:4], createdAt[5:7], true
}
