package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/knoguchi/dinerag/internal/assembler"
	"github.com/knoguchi/dinerag/internal/catalog"
	"github.com/knoguchi/dinerag/internal/filter"
	"github.com/knoguchi/dinerag/internal/llm"
	"github.com/knoguchi/dinerag/internal/metrics"
)

// NoRecommendations is returned instead of generating when nothing matched.
const NoRecommendations = "No recommendations returned. Try relaxing filters."

const systemRules = `You are a highly helpful and expert AI Restaurant Recommendation Assistant.
Your primary job is to recommend the best dining options based STRICTLY on the retrieved context below, which is sourced from the Zomato database.

### Rules:
1. ONLY recommend restaurants that are present in the 'Retrieved Zomato Dataset Results' context section. Do NOT hallucinate, invent, or bring in outside knowledge about other restaurants.
2. If the context says 'No matching restaurants found', politely apologize to the user and explain that no options matched their specific criteria.
3. Your tone should be friendly, enthusiastic, and highly professional.
4. When recommending, state clearly WHY you are recommending them based on the user's preferences, leading into a detailed data table.
5. For every recommended restaurant, you MUST provide its exact Name, Full Address, specific Rating (X/5) and Number of Reviews, and Cost for Two. Do NOT include Establishment Type.
6. Format your response cleanly using a Markdown Table. The table MUST have the following columns EXACTLY: | Restaurant Name | Address | Rating (Reviews) | Cost for Two |`

// Preferences are the user's choices, echoed to the generator.
type Preferences struct {
	Place     string
	Cuisines  []string
	PriceBand string
	MinRating string
}

func (p Preferences) cuisine() string {
	return orAny(strings.Join(catalog.NormalizeCuisines(p.Cuisines), ", "))
}

// Recommendation is the text shown to the user for a Response.
type Recommendation struct {
	Text string `json:"text"`

	// Fallback is set when Text is the static table rather than generated.
	Fallback bool `json:"fallback"`
}

// Generate phrases resp for the user. Generation failures never surface as
// errors: the static table is rendered instead and Fallback is set.
func (s *Service) Generate(ctx context.Context, prefs Preferences, resp *Response) Recommendation {
	if resp == nil || len(resp.Results) == 0 {
		return Recommendation{Text: NoRecommendations}
	}

	if s.generator == nil {
		metrics.RecordGenerationFallback()
		return Recommendation{Text: FallbackTable(resp.Results), Fallback: true}
	}

	text, err := s.generator.Generate(ctx, UserPrompt(prefs), llm.GenerateOptions{
		SystemPrompt: SystemInstruction(prefs, resp.Context),
		Temperature:  s.temperature,
	})
	if err != nil {
		s.logger.Warn("generation failed, using fallback table",
			"request_id", resp.RequestID,
			"model", s.generator.Name(),
			"error", err,
		)
		metrics.RecordGenerationFallback()
		return Recommendation{Text: FallbackTable(resp.Results), Fallback: true}
	}
	return Recommendation{Text: text}
}

// SystemInstruction builds the grounding instructions, the user's preferences
// and the retrieved context.
func SystemInstruction(prefs Preferences, ctx assembler.Context) string {
	var sb strings.Builder
	sb.WriteString(systemRules)
	sb.WriteString("\n\n### User Preferences:\n")
	fmt.Fprintf(&sb, "- Place: %s\n", orAny(prefs.Place))
	fmt.Fprintf(&sb, "- Cuisine: %s\n", prefs.cuisine())
	fmt.Fprintf(&sb, "- Budget: %s\n", filter.BandLabel(prefs.PriceBand))
	fmt.Fprintf(&sb, "- Minimum Rating: %s\n\n", orAny(prefs.MinRating))
	sb.WriteString(ctx.Text)
	return sb.String()
}

// UserPrompt is the user turn sent alongside SystemInstruction.
func UserPrompt(prefs Preferences) string {
	return fmt.Sprintf("Based on my preferences (Place: %s, Cuisine: %s, Budget: %s), please recommend me a place to eat using the provided Zomato dataset.",
		orAny(prefs.Place), prefs.cuisine(), filter.BandLabel(prefs.PriceBand))
}

// FallbackTable renders results as the markdown table the generator is
// asked to produce.
func FallbackTable(results []Result) string {
	var sb strings.Builder
	sb.WriteString("### Handpicked Dining Selections\n\n")
	sb.WriteString("| Restaurant Name | Address | Rating (Reviews) | Cost for Two |\n")
	sb.WriteString("| :--- | :--- | :--- | :--- |\n")
	for _, r := range results {
		address := r.Address
		if strings.TrimSpace(address) == "" {
			address = assembler.Placeholder
		}
		price := assembler.Placeholder
		if r.PriceForTwo > 0 {
			price = fmt.Sprintf("₹%d", r.PriceForTwo)
		}
		fmt.Fprintf(&sb, "| **%s** | %s | %s/5.0 (%d) | %s |\n",
			escapeCell(r.Name), escapeCell(address), catalog.FormatRating(r.Rating), r.Votes, price)
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func orAny(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return "Any"
}
