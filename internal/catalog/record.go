// Package catalog holds the in-memory restaurant catalog: normalized records,
// their precomputed embeddings, and the append-only store that serves them.
package catalog

import (
	"fmt"
	"math"
	"strings"

	"github.com/goccy/go-json"
)

// Defaults applied at the store boundary when upstream data is missing.
const (
	DefaultName     = "Unknown Restaurant"
	DefaultLocation = "Unknown Location"
	DefaultCuisine  = "Various"

	MaxRating = 5.0
)

// CuisineList is an ordered list of cuisine names. In JSON it accepts either
// an array of strings or a single comma-joined string.
type CuisineList []string

// UnmarshalJSON implements json.Unmarshaler.
func (c *CuisineList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*c = list
		return nil
	}

	var joined *string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("cuisines must be a string or an array of strings: %w", err)
	}
	if joined == nil {
		*c = nil
		return nil
	}
	*c = strings.Split(*joined, ",")
	return nil
}

// RawRecord is an entity as produced by ingestion, before defaults and
// embedding. Optional fields may be zero.
type RawRecord struct {
	Name        string         `json:"name"`
	Location    string         `json:"location"`
	Cuisines    CuisineList    `json:"cuisines"`
	Rating      float64        `json:"rate"`
	PriceForTwo int            `json:"price_for_two"`
	OnlineOrder bool           `json:"online_order"`
	BookTable   bool           `json:"book_table"`
	RawMetadata map[string]any `json:"raw_metadata,omitempty"`
}

// Record is a normalized catalog entry. Records are immutable once stored;
// callers must not modify the slices or map they expose.
type Record struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Location    string         `json:"location"`
	Cuisines    []string       `json:"cuisines"`
	Rating      float64        `json:"rating"`
	PriceForTwo int            `json:"price_for_two"`
	OnlineOrder bool           `json:"online_order"`
	BookTable   bool           `json:"book_table"`
	Description string         `json:"description"`
	RawMetadata map[string]any `json:"raw_metadata,omitempty"`
	Embedding   []float32      `json:"-"`

	seq uint64
}

// Seq returns the record's insertion sequence number, starting at 1.
func (r *Record) Seq() uint64 {
	return r.seq
}

// Locality returns the first comma-separated segment of the location.
func (r *Record) Locality() string {
	return Locality(r.Location)
}

// Address returns the raw address, falling back to the location.
func (r *Record) Address() string {
	if addr := strings.TrimSpace(r.MetadataString("address")); addr != "" {
		return addr
	}
	return r.Location
}

// Votes returns the vote count from raw metadata, or 0.
func (r *Record) Votes() int {
	switch v := r.RawMetadata["votes"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.ReplaceAll(v, ",", ""), "%d", &n); err == nil {
			return n
		}
	}
	return 0
}

// MetadataString returns a raw metadata value rendered as a string, or "".
func (r *Record) MetadataString(key string) string {
	v, ok := r.RawMetadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Locality returns the canonical locality of a multi-part location string.
func Locality(location string) string {
	first, _, _ := strings.Cut(location, ",")
	return strings.TrimSpace(first)
}

// normalize applies the documented defaults and synthesizes the description.
func normalize(raw RawRecord) *Record {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = DefaultName
	}

	location := strings.TrimSpace(raw.Location)
	if location == "" {
		location = DefaultLocation
	}

	cuisines := NormalizeCuisines(raw.Cuisines)
	if len(cuisines) == 0 {
		cuisines = []string{DefaultCuisine}
	}

	rating := raw.Rating
	if math.IsNaN(rating) || rating < 0 {
		rating = 0
	}
	if rating > MaxRating {
		rating = MaxRating
	}

	price := raw.PriceForTwo
	if price < 0 {
		price = 0
	}

	var metadata map[string]any
	if len(raw.RawMetadata) > 0 {
		metadata = make(map[string]any, len(raw.RawMetadata))
		for k, v := range raw.RawMetadata {
			metadata[k] = v
		}
	}

	rec := &Record{
		Name:        name,
		Location:    location,
		Cuisines:    cuisines,
		Rating:      rating,
		PriceForTwo: price,
		OnlineOrder: raw.OnlineOrder,
		BookTable:   raw.BookTable,
		RawMetadata: metadata,
	}
	rec.Description = describe(rec)
	return rec
}

// NormalizeCuisines trims entries, drops empties and repeats, and keeps order.
func NormalizeCuisines(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// describe builds the sentence used as embedding input.
func describe(r *Record) string {
	ordering := "does not offer online ordering"
	if r.OnlineOrder {
		ordering = "offers online ordering"
	}
	return fmt.Sprintf("%s is a %s-star rated restaurant located in %s serving %s cuisine. It costs approximately ₹%d for two people and %s.",
		r.Name,
		FormatRating(r.Rating),
		r.Location,
		strings.Join(r.Cuisines, ", "),
		r.PriceForTwo,
		ordering,
	)
}

// FormatRating renders a rating without trailing zeros ("4.1", "4", "0").
func FormatRating(rating float64) string {
	return fmt.Sprintf("%g", math.Round(rating*100)/100)
}

// slug lowercases name and joins its words with dashes.
func slug(name string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			dash = false
		case sb.Len() > 0 && !dash:
			sb.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(sb.String(), "-")
	if s == "" {
		return "restaurant"
	}
	return s
}
