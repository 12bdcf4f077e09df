// Package filter applies the structured predicates of a query to catalog
// records before ranking.
//
// Predicates are ANDed; an unset dimension matches everything. The price
// bounds are asymmetric on purpose: PriceMin is exclusive and PriceMax is
// inclusive, which is what the UI price bands ("< 500", "500-1500", "> 1500")
// were built on. A price of exactly 500 therefore falls in neither the first
// nor the second band.
package filter

import (
	"math"
	"strings"

	"github.com/knoguchi/dinerag/internal/apperr"
	"github.com/knoguchi/dinerag/internal/catalog"
)

// Filters holds the optional predicates of a query. Nil pointers and an empty
// Cuisines slice mean "no constraint".
type Filters struct {
	Locality  string
	PriceMin  *int
	PriceMax  *int
	MinRating *float64
	Cuisines  []string
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }

// Validate rejects structurally invalid values.
func (f Filters) Validate() error {
	if f.PriceMin != nil && *f.PriceMin < 0 {
		return apperr.InvalidFilter("price_min must not be negative, got %d", *f.PriceMin)
	}
	if f.PriceMax != nil && *f.PriceMax < 0 {
		return apperr.InvalidFilter("price_max must not be negative, got %d", *f.PriceMax)
	}
	if f.MinRating != nil {
		r := *f.MinRating
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return apperr.InvalidFilter("min_rating must be a finite number")
		}
		if r < 0 || r > catalog.MaxRating {
			return apperr.InvalidFilter("min_rating must be between 0 and %g, got %g", catalog.MaxRating, r)
		}
	}
	return nil
}

// Apply returns the records matching f, preserving their relative order.
func Apply(records []*catalog.Record, f Filters) []*catalog.Record {
	m := f.compile()
	out := make([]*catalog.Record, 0, len(records))
	for _, rec := range records {
		if m.match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// matcher is Filters with its strings lowercased once per query.
type matcher struct {
	locality  string
	priceMin  *int
	priceMax  *int
	minRating *float64
	cuisines  []string
}

func (f Filters) compile() matcher {
	terms := cuisineTerms(f.Cuisines)
	for i := range terms {
		terms[i] = strings.ToLower(terms[i])
	}
	return matcher{
		locality:  strings.ToLower(strings.TrimSpace(f.Locality)),
		priceMin:  f.PriceMin,
		priceMax:  f.PriceMax,
		minRating: f.MinRating,
		cuisines:  terms,
	}
}

func (m matcher) match(rec *catalog.Record) bool {
	if m.locality != "" && !strings.Contains(strings.ToLower(rec.Location), m.locality) {
		return false
	}
	if m.priceMax != nil && rec.PriceForTwo > *m.priceMax {
		return false
	}
	if m.priceMin != nil && rec.PriceForTwo <= *m.priceMin {
		return false
	}
	if m.minRating != nil && rec.Rating < *m.minRating {
		return false
	}
	if len(m.cuisines) > 0 && !matchesAnyCuisine(rec.Cuisines, m.cuisines) {
		return false
	}
	return true
}

// matchesAnyCuisine is true when some record cuisine contains some requested
// term, case-insensitively. Substring matching tolerates naming variance
// ("Italian" matches "South Italian") at the cost of occasional false positives.
func matchesAnyCuisine(cuisines, terms []string) bool {
	for _, term := range terms {
		for _, c := range cuisines {
			if c != "" && strings.Contains(strings.ToLower(c), term) {
				return true
			}
		}
	}
	return false
}

// cuisineTerms returns the non-empty trimmed terms.
func cuisineTerms(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
