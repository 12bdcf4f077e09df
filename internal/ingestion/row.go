// Package ingestion fetches the Zomato restaurant dataset and converts its
// rows into catalog records.
package ingestion

import (
	"math"
	"strconv"
	"strings"

	"github.com/knoguchi/dinerag/internal/catalog"
)

// Row is one raw row of the Hugging Face Zomato dataset. All values arrive
// as the dataset stores them: ratings like "4.1/5", costs like "1,200".
type Row struct {
	Name         string `json:"name"`
	Location     string `json:"location"`
	Address      string `json:"address"`
	Cuisines     string `json:"cuisines"`
	Rate         string `json:"rate"`
	Votes        any    `json:"votes"`
	ApproxCost   string `json:"approx_cost(for two people)"`
	OnlineOrder  string `json:"online_order"`
	BookTable    string `json:"book_table"`
	RestType     string `json:"rest_type"`
	DishLiked    string `json:"dish_liked"`
	ListedInType string `json:"listed_in(type)"`
	ListedInCity string `json:"listed_in(city)"`
}

// Normalize converts a dataset row into a raw catalog record. Unparseable
// ratings and costs become 0; auxiliary fields go to RawMetadata.
func Normalize(row Row) catalog.RawRecord {
	metadata := map[string]any{}
	setIf := func(key string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			metadata[key] = v
		}
	}
	setIf("address", row.Address)
	setIf("rest_type", row.RestType)
	setIf("dish_liked", row.DishLiked)
	setIf("listed_in_type", row.ListedInType)
	setIf("listed_in_city", row.ListedInCity)
	if row.Votes != nil {
		metadata["votes"] = row.Votes
	}

	return catalog.RawRecord{
		Name:        strings.TrimSpace(row.Name),
		Location:    strings.TrimSpace(row.Location),
		Cuisines:    catalog.CuisineList(catalog.NormalizeCuisines(strings.Split(row.Cuisines, ","))),
		Rating:      ParseRating(row.Rate),
		PriceForTwo: ParseCost(row.ApproxCost),
		OnlineOrder: isYes(row.OnlineOrder),
		BookTable:   isYes(row.BookTable),
		RawMetadata: metadata,
	}
}

// ParseRating reads ratings such as "4.1/5" or "3.9 /5". "NEW", "-" and
// anything else unparseable yield 0.
func ParseRating(s string) float64 {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "/")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// ParseCost reads costs such as "1,200". Unparseable values yield 0.
func ParseCost(s string) int {
	v, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func isYes(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "yes")
}
