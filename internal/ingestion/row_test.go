package ingestion

import "testing"

func TestParseRating(t *testing.T) {
	tests := map[string]float64{
		"4.1/5":  4.1,
		"3.9 /5": 3.9,
		"NEW":    0,
		"-":      0,
		"":       0,
		"-2/5":   0,
		"NaN":    0,
	}
	for in, want := range tests {
		if got := ParseRating(in); got != want {
			t.Errorf("ParseRating(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseCost(t *testing.T) {
	tests := map[string]int{
		"800":   800,
		"1,200": 1200,
		" 300 ": 300,
		"":      0,
		"abc":   0,
	}
	for in, want := range tests {
		if got := ParseCost(in); got != want {
			t.Errorf("ParseCost(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNormalize(t *testing.T) {
	rec := Normalize(Row{
		Name:        " Jalsa ",
		Location:    "Banashankari",
		Address:     "942, 21st Main Road, Banashankari, Bangalore",
		Cuisines:    "North Indian, Mughlai, Chinese,",
		Rate:        "4.1/5",
		Votes:       float64(775),
		ApproxCost:  "800",
		OnlineOrder: "Yes",
		BookTable:   "No",
		RestType:    "Casual Dining",
	})

	if rec.Name != "Jalsa" || rec.Location != "Banashankari" {
		t.Errorf("unexpected identity fields: %+v", rec)
	}
	if len(rec.Cuisines) != 3 || rec.Cuisines[2] != "Chinese" {
		t.Errorf("unexpected cuisines %v", rec.Cuisines)
	}
	if rec.Rating != 4.1 || rec.PriceForTwo != 800 {
		t.Errorf("unexpected rating/price %v/%v", rec.Rating, rec.PriceForTwo)
	}
	if !rec.OnlineOrder || rec.BookTable {
		t.Errorf("unexpected booleans %v/%v", rec.OnlineOrder, rec.BookTable)
	}
	if rec.RawMetadata["address"] != "942, 21st Main Road, Banashankari, Bangalore" {
		t.Errorf("expected address in metadata, got %v", rec.RawMetadata)
	}
	if rec.RawMetadata["votes"] != float64(775) {
		t.Errorf("expected votes in metadata, got %v", rec.RawMetadata["votes"])
	}
	if _, ok := rec.RawMetadata["dish_liked"]; ok {
		t.Error("expected empty fields to be left out of metadata")
	}
}

func TestNormalize_Missing(t *testing.T) {
	rec := Normalize(Row{Rate: "NEW"})
	if rec.Rating != 0 || rec.PriceForTwo != 0 || len(rec.Cuisines) != 0 {
		t.Errorf("expected zero values for missing fields, got %+v", rec)
	}
}
