package filter

import (
	"math"
	"strconv"
	"strings"

	"github.com/knoguchi/dinerag/internal/apperr"
)

// Price band codes accepted from the UI.
const (
	BandBudget   = "500"
	BandStandard = "1500"
	BandLuxury   = "99999"
)

// Raw is the unparsed, string-typed form of Filters as received from a caller.
type Raw struct {
	Locality  string
	PriceBand string
	PriceMin  string
	PriceMax  string
	MinRating string
	Cuisines  []string
}

// Parse converts raw into Filters. Explicit PriceMin/PriceMax override the
// bounds implied by PriceBand. Non-numeric values fail with ErrInvalidFilter.
func Parse(raw Raw) (Filters, error) {
	f := Filters{
		Locality: strings.TrimSpace(raw.Locality),
		Cuisines: cuisineTerms(raw.Cuisines),
	}

	var err error
	if f.PriceMin, f.PriceMax, err = ParseBand(raw.PriceBand); err != nil {
		return Filters{}, err
	}

	if v, err := parseInt("price_min", raw.PriceMin); err != nil {
		return Filters{}, err
	} else if v != nil {
		f.PriceMin = v
	}
	if v, err := parseInt("price_max", raw.PriceMax); err != nil {
		return Filters{}, err
	} else if v != nil {
		f.PriceMax = v
	}

	if s := strings.TrimSpace(raw.MinRating); s != "" {
		r, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(r) {
			return Filters{}, apperr.InvalidFilter("min_rating %q is not a number", raw.MinRating)
		}
		// A zero minimum rating excludes nothing.
		if r != 0 {
			f.MinRating = &r
		}
	}

	if err := f.Validate(); err != nil {
		return Filters{}, err
	}
	return f, nil
}

// ParseBand maps a UI price band code to (min, max) bounds.
func ParseBand(band string) (lo, hi *int, err error) {
	switch strings.TrimSpace(band) {
	case "":
		return nil, nil, nil
	case BandBudget:
		return nil, IntPtr(500), nil
	case BandStandard:
		return IntPtr(500), IntPtr(1500), nil
	case BandLuxury:
		return IntPtr(1500), nil, nil
	default:
		return nil, nil, apperr.InvalidFilter("unknown price_range %q", band)
	}
}

// BandLabel describes a price band for prompts.
func BandLabel(band string) string {
	switch strings.TrimSpace(band) {
	case BandLuxury:
		return "Luxury (Above ₹1500)"
	case BandStandard:
		return "Standard (₹500 - ₹1500)"
	case BandBudget:
		return "Budget (Under ₹500)"
	default:
		return "Any"
	}
}

func parseInt(field, s string) (*int, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, apperr.InvalidFilter("%s %q is not a whole number", field, s)
	}
	return &v, nil
}
