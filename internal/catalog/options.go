package catalog

import (
	"sort"
	"strings"
)

// FilterOptions lists the distinct values available for UI filter controls.
type FilterOptions struct {
	Localities  []string `json:"places"`
	Cuisines    []string `json:"cuisines"`
	PricePoints []int    `json:"prices"`
}

// FilterOptions derives the sorted, distinct localities, cuisines and known
// prices from the live store. It is recomputed on every call.
func (s *Store) FilterOptions() FilterOptions {
	return BuildFilterOptions(s.All())
}

// BuildFilterOptions derives filter options from records. Unknown prices (0)
// and empty localities are left out.
func BuildFilterOptions(records []*Record) FilterOptions {
	localities := make(map[string]struct{})
	cuisines := make(map[string]struct{})
	prices := make(map[int]struct{})

	for _, rec := range records {
		if loc := rec.Locality(); loc != "" {
			localities[loc] = struct{}{}
		}
		for _, c := range rec.Cuisines {
			if c = strings.TrimSpace(c); c != "" {
				cuisines[c] = struct{}{}
			}
		}
		if rec.PriceForTwo > 0 {
			prices[rec.PriceForTwo] = struct{}{}
		}
	}

	opts := FilterOptions{
		Localities:  make([]string, 0, len(localities)),
		Cuisines:    make([]string, 0, len(cuisines)),
		PricePoints: make([]int, 0, len(prices)),
	}
	for loc := range localities {
		opts.Localities = append(opts.Localities, loc)
	}
	for c := range cuisines {
		opts.Cuisines = append(opts.Cuisines, c)
	}
	for p := range prices {
		opts.PricePoints = append(opts.PricePoints, p)
	}
	sort.Strings(opts.Localities)
	sort.Strings(opts.Cuisines)
	sort.Ints(opts.PricePoints)

	return opts
}
