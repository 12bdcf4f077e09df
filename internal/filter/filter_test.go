package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/knoguchi/dinerag/internal/apperr"
	"github.com/knoguchi/dinerag/internal/catalog"
	"github.com/knoguchi/dinerag/internal/embedder"
)

func loadRecords(t *testing.T, raws ...catalog.RawRecord) []*catalog.Record {
	t.Helper()
	store := catalog.NewStore(embedder.NewHashEmbedder(8))
	if _, err := store.Load(context.Background(), raws); err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	return store.All()
}

func names(records []*catalog.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func scenarioRecords(t *testing.T) []*catalog.Record {
	return loadRecords(t,
		catalog.RawRecord{Name: "Cheap Pizza", Location: "Uptown", Cuisines: catalog.CuisineList{"Pizza"}, Rating: 3.5, PriceForTwo: 400},
		catalog.RawRecord{Name: "Fancy Italian", Location: "Downtown", Cuisines: catalog.CuisineList{"Italian"}, Rating: 4.9, PriceForTwo: 2500},
		catalog.RawRecord{Name: "Mid Italian", Location: "Downtown", Cuisines: catalog.CuisineList{"Italian"}, Rating: 4.2, PriceForTwo: 1000},
	)
}

func TestApply_Scenario(t *testing.T) {
	records := scenarioRecords(t)

	got := Apply(records, Filters{
		Cuisines:  []string{"Italian"},
		MinRating: FloatPtr(4.0),
		PriceMax:  IntPtr(1500),
	})

	if len(got) != 1 || got[0].Name != "Mid Italian" {
		t.Errorf("expected only Mid Italian, got %v", names(got))
	}
}

func TestApply_NoFiltersMatchesAll(t *testing.T) {
	records := scenarioRecords(t)
	got := Apply(records, Filters{})
	if len(got) != len(records) {
		t.Errorf("expected all %d records, got %d", len(records), len(got))
	}
	for i := range got {
		if got[i] != records[i] {
			t.Errorf("position %d: relative order not preserved", i)
		}
	}
}

func TestApply_PriceMinIsExclusive(t *testing.T) {
	records := loadRecords(t,
		catalog.RawRecord{Name: "Exactly 500", PriceForTwo: 500},
		catalog.RawRecord{Name: "501", PriceForTwo: 501},
		catalog.RawRecord{Name: "Exactly 1500", PriceForTwo: 1500},
	)

	got := Apply(records, Filters{PriceMin: IntPtr(500)})
	if len(got) != 2 || got[0].Name != "501" {
		t.Errorf("expected price 500 to be excluded, got %v", names(got))
	}

	got = Apply(records, Filters{PriceMin: IntPtr(500), PriceMax: IntPtr(1500)})
	if len(got) != 2 || got[1].Name != "Exactly 1500" {
		t.Errorf("expected price_max to be inclusive, got %v", names(got))
	}
}

func TestApply_BandGapAt500(t *testing.T) {
	records := loadRecords(t, catalog.RawRecord{Name: "Exactly 500", PriceForTwo: 500})

	for _, band := range []string{BandBudget, BandStandard} {
		f, err := Parse(Raw{PriceBand: band})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := Apply(records, f)
		if band == BandStandard && len(got) != 0 {
			t.Errorf("band %s: expected 500 to fall outside, got %v", band, names(got))
		}
		if band == BandBudget && len(got) != 1 {
			t.Errorf("band %s: expected 500 to be inside (max inclusive), got %v", band, names(got))
		}
	}
}

func TestApply_LocalityCaseInsensitiveSubstring(t *testing.T) {
	records := loadRecords(t,
		catalog.RawRecord{Name: "A", Location: "Koramangala 5th Block, Bangalore"},
		catalog.RawRecord{Name: "B", Location: "Indiranagar"},
	)

	got := Apply(records, Filters{Locality: "  koramangala "})
	if len(got) != 1 || got[0].Name != "A" {
		t.Errorf("expected A, got %v", names(got))
	}

	got = Apply(records, Filters{Locality: "BANGALORE"})
	if len(got) != 1 || got[0].Name != "A" {
		t.Errorf("expected match on later location segment, got %v", names(got))
	}
}

func TestApply_CuisineOverlap(t *testing.T) {
	records := loadRecords(t,
		catalog.RawRecord{Name: "Pan", Cuisines: catalog.CuisineList{"Pan Asian"}},
		catalog.RawRecord{Name: "Chinese", Cuisines: catalog.CuisineList{"Chinese", "Momos"}},
		catalog.RawRecord{Name: "Cafe", Cuisines: catalog.CuisineList{"Cafe"}},
	)

	got := Apply(records, Filters{Cuisines: []string{"asian", "momo"}})
	if len(got) != 2 || got[0].Name != "Pan" || got[1].Name != "Chinese" {
		t.Errorf("expected Pan and Chinese, got %v", names(got))
	}

	got = Apply(records, Filters{Cuisines: []string{"", "  "}})
	if len(got) != 3 {
		t.Errorf("blank cuisine terms should not filter, got %v", names(got))
	}
}

func TestApply_MinRating(t *testing.T) {
	records := scenarioRecords(t)
	f := Filters{MinRating: FloatPtr(4.2)}
	got := Apply(records, f)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %v", names(got))
	}
	for _, r := range got {
		if r.Rating < 4.2 {
			t.Errorf("%s violates min_rating", r.Name)
		}
	}
}

func TestFilters_Validate(t *testing.T) {
	tests := []Filters{
		{PriceMin: IntPtr(-1)},
		{PriceMax: IntPtr(-5)},
		{MinRating: FloatPtr(6)},
		{MinRating: FloatPtr(-0.5)},
	}
	for _, f := range tests {
		if err := f.Validate(); !errors.Is(err, apperr.ErrInvalidFilter) {
			t.Errorf("%+v: expected ErrInvalidFilter, got %v", f, err)
		}
	}
	if err := (Filters{PriceMin: IntPtr(100), PriceMax: IntPtr(50)}).Validate(); err != nil {
		t.Errorf("inverted bounds are allowed and simply match nothing, got %v", err)
	}
}
