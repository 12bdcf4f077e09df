// Package assembler turns ranked records into the context block handed to a
// text generator.
package assembler

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/knoguchi/dinerag/internal/catalog"
	"github.com/knoguchi/dinerag/internal/ranker"
)

const (
	// NoMatchesNotice is the whole context when nothing was retrieved.
	NoMatchesNotice = "No matching restaurants found in the database. Please inform the user that their criteria did not match any of our currently listed options."

	// Header opens a non-empty context.
	Header = "### Retrieved Zomato Dataset Results:"

	// Placeholder stands in for any absent field.
	Placeholder = "N/A"

	// DefaultMaxOverview bounds the overview of each block, in runes.
	DefaultMaxOverview = 500
)

// Block is the generator-facing summary of one ranked record.
type Block struct {
	Rank        int     `json:"rank"`
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Location    string  `json:"location"`
	Address     string  `json:"address"`
	Cuisines    string  `json:"cuisines"`
	Rating      string  `json:"rating"`
	Votes       int     `json:"votes"`
	Type        string  `json:"type"`
	PriceForTwo string  `json:"price_for_two"`
	Overview    string  `json:"overview"`
	Score       float64 `json:"score"`
}

// Context is the assembled result. When NoMatches is set, Blocks is empty and
// Text is NoMatchesNotice.
type Context struct {
	NoMatches bool    `json:"no_matches"`
	Blocks    []Block `json:"blocks"`
	Text      string  `json:"text"`
}

type options struct {
	maxOverview int
}

// Option configures Assemble.
type Option func(*options)

// WithMaxOverview sets the overview length limit in runes. Non-positive
// values keep the default.
func WithMaxOverview(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOverview = n
		}
	}
}

// Assemble builds the context for ranked, keeping its order.
func Assemble(ranked []ranker.Scored, opts ...Option) Context {
	o := options{maxOverview: DefaultMaxOverview}
	for _, opt := range opts {
		opt(&o)
	}

	if len(ranked) == 0 {
		return Context{NoMatches: true, Blocks: []Block{}, Text: NoMatchesNotice}
	}

	blocks := make([]Block, len(ranked))
	for i, s := range ranked {
		blocks[i] = newBlock(i+1, s, o.maxOverview)
	}
	return Context{Blocks: blocks, Text: render(blocks)}
}

func newBlock(rank int, s ranker.Scored, maxOverview int) Block {
	rec := s.Record
	rating := Placeholder
	if rec.Rating > 0 {
		rating = catalog.FormatRating(rec.Rating)
	}
	price := Placeholder
	if rec.PriceForTwo > 0 {
		price = fmt.Sprintf("₹%d", rec.PriceForTwo)
	}

	return Block{
		Rank:        rank,
		ID:          rec.ID,
		Name:        orPlaceholder(rec.Name),
		Location:    orPlaceholder(rec.Location),
		Address:     orPlaceholder(rec.Address()),
		Cuisines:    orPlaceholder(strings.Join(rec.Cuisines, ", ")),
		Rating:      rating,
		Votes:       rec.Votes(),
		Type:        orPlaceholder(rec.MetadataString("rest_type")),
		PriceForTwo: price,
		Overview:    orPlaceholder(truncate(rec.Description, maxOverview)),
		Score:       s.Score,
	}
}

func render(blocks []Block) string {
	var sb strings.Builder
	sb.WriteString(Header)
	sb.WriteString("\n\n")
	for _, b := range blocks {
		fmt.Fprintf(&sb, "**Option %d: %s**\n", b.Rank, b.Name)
		fmt.Fprintf(&sb, "- Location: %s\n", b.Location)
		fmt.Fprintf(&sb, "- Full Address: %s\n", b.Address)
		fmt.Fprintf(&sb, "- Cuisines: %s\n", b.Cuisines)
		fmt.Fprintf(&sb, "- Rating: %s / 5 (based on %d reviews)\n", b.Rating, b.Votes)
		fmt.Fprintf(&sb, "- Type: %s\n", b.Type)
		fmt.Fprintf(&sb, "- Cost for Two: %s\n", b.PriceForTwo)
		fmt.Fprintf(&sb, "- Overview: %s\n\n", b.Overview)
	}
	return sb.String()
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

// truncate cuts s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
