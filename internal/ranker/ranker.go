// Package ranker scores filtered candidates against a query embedding and
// returns the top-K unique results.
//
// # Ordering
//
// Candidates are sorted by descending cosine score; equal scores keep
// insertion order. Records sharing an exact name are collapsed to one entry:
// the earliest-inserted record among the candidates is the one kept, even
// when a later duplicate scores higher. It keeps its own score and position.
package ranker

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/knoguchi/dinerag/internal/apperr"
	"github.com/knoguchi/dinerag/internal/catalog"
	"github.com/knoguchi/dinerag/internal/similarity"
)

// Scored is a candidate with its similarity to the query.
type Scored struct {
	Record *catalog.Record
	Score  float64
}

// Rank scores candidates against query and returns at most topK results with
// no two sharing a name. Candidates are expected in insertion order, as
// returned by the catalog and the filter engine.
func Rank(candidates []*catalog.Record, query []float32, topK int) ([]Scored, error) {
	if topK <= 0 {
		return nil, apperr.InvalidInput("top_k must be positive, got %d", topK)
	}
	if len(candidates) == 0 {
		return []Scored{}, nil
	}

	scored := make([]Scored, len(candidates))
	for i, rec := range candidates {
		score, err := similarity.Cosine(query, rec.Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to score %s: %w", rec.ID, err)
		}
		scored[i] = Scored{Record: rec, Score: score}
	}

	owners := nameOwners(candidates)

	slices.SortStableFunc(scored, func(a, b Scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Record.Seq(), b.Record.Seq())
	})

	results := make([]Scored, 0, min(topK, len(scored)))
	for _, s := range scored {
		if owners[s.Record.Name] != s.Record {
			continue
		}
		results = append(results, s)
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

// nameOwners maps each name to the earliest-inserted candidate carrying it.
// Records without a sequence number fall back to slice order.
func nameOwners(candidates []*catalog.Record) map[string]*catalog.Record {
	owners := make(map[string]*catalog.Record, len(candidates))
	for _, rec := range candidates {
		cur, ok := owners[rec.Name]
		if !ok || rec.Seq() < cur.Seq() {
			owners[rec.Name] = rec
		}
	}
	return owners
}
