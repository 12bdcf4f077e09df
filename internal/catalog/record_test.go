package catalog

import (
	"math"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestNormalize_Defaults(t *testing.T) {
	rec := normalize(RawRecord{Rating: math.NaN(), PriceForTwo: -10})

	if rec.Name != DefaultName {
		t.Errorf("expected default name, got %q", rec.Name)
	}
	if rec.Location != DefaultLocation {
		t.Errorf("expected default location, got %q", rec.Location)
	}
	if len(rec.Cuisines) != 1 || rec.Cuisines[0] != DefaultCuisine {
		t.Errorf("expected default cuisine list, got %v", rec.Cuisines)
	}
	if rec.Rating != 0 {
		t.Errorf("expected NaN rating to become 0, got %f", rec.Rating)
	}
	if rec.PriceForTwo != 0 {
		t.Errorf("expected negative price to become 0, got %d", rec.PriceForTwo)
	}
	if rec.Description == "" {
		t.Error("expected a synthesized description")
	}
}

func TestNormalize_ClampsRating(t *testing.T) {
	if rec := normalize(RawRecord{Name: "A", Rating: 7}); rec.Rating != MaxRating {
		t.Errorf("expected rating clamped to %f, got %f", MaxRating, rec.Rating)
	}
	if rec := normalize(RawRecord{Name: "A", Rating: -1}); rec.Rating != 0 {
		t.Errorf("expected negative rating to become 0, got %f", rec.Rating)
	}
}

func TestNormalize_Description(t *testing.T) {
	rec := normalize(RawRecord{
		Name:        "Mid Italian",
		Location:    "Downtown, City",
		Cuisines:    CuisineList{" Italian ", "Pizza", ""},
		Rating:      4.2,
		PriceForTwo: 1000,
		OnlineOrder: true,
	})

	want := "Mid Italian is a 4.2-star rated restaurant located in Downtown, City serving Italian, Pizza cuisine. It costs approximately ₹1000 for two people and offers online ordering."
	if rec.Description != want {
		t.Errorf("unexpected description:\n got: %s\nwant: %s", rec.Description, want)
	}
	if rec.Locality() != "Downtown" {
		t.Errorf("expected locality Downtown, got %q", rec.Locality())
	}
}

func TestNormalize_CopiesMetadata(t *testing.T) {
	meta := map[string]any{"address": "1 Main St"}
	rec := normalize(RawRecord{Name: "A", RawMetadata: meta})
	meta["address"] = "changed"

	if rec.Address() != "1 Main St" {
		t.Errorf("expected stored metadata to be isolated from caller, got %q", rec.Address())
	}
}

func TestCuisineList_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"array", `{"cuisines": ["North Indian", "Chinese"]}`, []string{"North Indian", "Chinese"}},
		{"joined string", `{"cuisines": "North Indian, Chinese ,"}`, []string{"North Indian", "Chinese"}},
		{"null", `{"cuisines": null}`, []string{DefaultCuisine}},
		{"missing", `{}`, []string{DefaultCuisine}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw RawRecord
			if err := json.Unmarshal([]byte(tt.input), &raw); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := normalize(raw).Cuisines
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCuisineList_RejectsNumbers(t *testing.T) {
	var raw RawRecord
	if err := json.Unmarshal([]byte(`{"cuisines": 42}`), &raw); err == nil {
		t.Error("expected error for numeric cuisines")
	}
}

func TestRecord_Votes(t *testing.T) {
	tests := []struct {
		value any
		want  int
	}{
		{float64(120), 120},
		{12, 12},
		{"1,024", 1024},
		{"n/a", 0},
		{nil, 0},
	}
	for _, tt := range tests {
		rec := &Record{RawMetadata: map[string]any{"votes": tt.value}}
		if got := rec.Votes(); got != tt.want {
			t.Errorf("votes %v: expected %d, got %d", tt.value, tt.want, got)
		}
	}
}

func TestRecord_AddressFallback(t *testing.T) {
	rec := &Record{Location: "Uptown"}
	if rec.Address() != "Uptown" {
		t.Errorf("expected location fallback, got %q", rec.Address())
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Joe's Cafe":       "joe-s-cafe",
		"  The  Big Chill": "the-big-chill",
		"!!!":              "restaurant",
		"Café 21":          "caf-21",
	}
	for in, want := range tests {
		if got := slug(in); got != want {
			t.Errorf("slug(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestFormatRating(t *testing.T) {
	tests := map[float64]string{4.1: "4.1", 4: "4", 0: "0", 3.456: "3.46"}
	for in, want := range tests {
		if got := FormatRating(in); got != want {
			t.Errorf("FormatRating(%v): expected %q, got %q", in, want, got)
		}
	}
}
