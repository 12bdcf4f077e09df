// Package service wires the retrieval pipeline (filter, embed, rank,
// assemble) behind the three operations exposed to callers: LoadCatalog,
// FilterOptions and Recommend.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/knoguchi/dinerag/internal/apperr"
	"github.com/knoguchi/dinerag/internal/assembler"
	"github.com/knoguchi/dinerag/internal/catalog"
	"github.com/knoguchi/dinerag/internal/embedder"
	"github.com/knoguchi/dinerag/internal/filter"
	"github.com/knoguchi/dinerag/internal/llm"
	"github.com/knoguchi/dinerag/internal/metrics"
	"github.com/knoguchi/dinerag/internal/ranker"
)

// DefaultTopK is the number of results returned when the caller does not ask.
const DefaultTopK = 5

// Query is a single retrieval request.
type Query struct {
	// FreeText is embedded as the query vector. When blank it is derived
	// from the locality and cuisine filters.
	FreeText string
	Filters  filter.Filters
	TopK     int
}

// Result is the caller-facing summary of one ranked record.
type Result struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Location    string   `json:"location"`
	Locality    string   `json:"locality"`
	Address     string   `json:"address"`
	Cuisines    []string `json:"cuisines"`
	Rating      float64  `json:"rating"`
	Votes       int      `json:"votes"`
	PriceForTwo int      `json:"price_for_two"`
	OnlineOrder bool     `json:"online_order"`
	BookTable   bool     `json:"book_table"`
	Score       float64  `json:"score"`
}

// Stats describes how a response was produced.
type Stats struct {
	CatalogSize int           `json:"catalog_size"`
	Candidates  int           `json:"candidates"`
	QueryText   string        `json:"query_text,omitempty"`
	Retrieval   time.Duration `json:"retrieval_ns"`
}

// Response is the outcome of Recommend. An empty Results slice with
// Context.NoMatches set is a normal outcome, not an error.
type Response struct {
	RequestID string            `json:"request_id"`
	Results   []Result          `json:"results"`
	Context   assembler.Context `json:"context"`
	Stats     Stats             `json:"stats"`
}

// Service answers recommendation queries against a catalog store.
type Service struct {
	store            *catalog.Store
	embedder         embedder.Embedder
	generator        llm.Generator
	logger           *slog.Logger
	retrievalTimeout time.Duration
	maxOverview      int
	temperature      float32
}

// Option is a functional option for configuring Service.
type Option func(*Service)

// WithGenerator enables generated recommendations. Without one, Generate
// always renders the fallback table.
func WithGenerator(g llm.Generator) Option {
	return func(s *Service) {
		s.generator = g
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRetrievalTimeout bounds each Recommend call. Zero disables the deadline.
func WithRetrievalTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.retrievalTimeout = d
	}
}

// WithMaxOverview sets the per-record overview limit of the assembled context.
func WithMaxOverview(n int) Option {
	return func(s *Service) {
		s.maxOverview = n
	}
}

// New creates a service over store. emb embeds query text and must produce
// vectors of the store's dimension; a mismatch fails with ErrDimensionMismatch.
func New(store *catalog.Store, emb embedder.Embedder, opts ...Option) (*Service, error) {
	if emb.Dimension() != store.Dimension() {
		return nil, fmt.Errorf("query embedder %s: %w", emb.ModelName(),
			apperr.DimensionMismatch(store.Dimension(), emb.Dimension()))
	}

	s := &Service{
		store:       store,
		embedder:    emb,
		logger:      slog.Default(),
		maxOverview: assembler.DefaultMaxOverview,
		temperature: llm.DefaultTemperature,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LoadCatalog bulk-inserts raws and opens the store's ready gate.
func (s *Service) LoadCatalog(ctx context.Context, raws []catalog.RawRecord) (int, error) {
	n, err := s.store.Load(ctx, raws)
	if err != nil {
		return 0, fmt.Errorf("failed to load catalog: %w", err)
	}
	return n, nil
}

// FilterOptions returns the filter values present in the live catalog.
func (s *Service) FilterOptions() catalog.FilterOptions {
	return s.store.FilterOptions()
}

// Ready reports whether the catalog has finished loading.
func (s *Service) Ready() bool {
	return s.store.IsReady()
}

// Recommend filters the catalog, ranks the candidates against the query
// text and assembles the generator context.
func (s *Service) Recommend(ctx context.Context, q Query) (resp *Response, err error) {
	start := time.Now()
	defer func() {
		n := 0
		outcome := outcomeFor(err)
		if resp != nil {
			n = len(resp.Results)
			if n == 0 {
				outcome = metrics.OutcomeEmpty
			}
		}
		metrics.RecordRecommend(outcome, time.Since(start), n)
	}()

	if q.TopK <= 0 {
		return nil, apperr.InvalidInput("top_k must be positive, got %d", q.TopK)
	}
	if err := q.Filters.Validate(); err != nil {
		return nil, err
	}
	if !s.store.IsReady() {
		return nil, apperr.ErrNotReady
	}

	if s.retrievalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.retrievalTimeout)
		defer cancel()
	}

	records := s.store.All()
	candidates := filter.Apply(records, q.Filters)

	resp = &Response{
		RequestID: uuid.NewString(),
		Stats: Stats{
			CatalogSize: len(records),
			Candidates:  len(candidates),
		},
	}

	if len(candidates) == 0 {
		resp.Results = []Result{}
		resp.Context = assembler.Assemble(nil)
		resp.Stats.Retrieval = time.Since(start)
		return resp, nil
	}

	text := strings.TrimSpace(q.FreeText)
	if text == "" {
		text = QueryText(q.Filters.Locality, q.Filters.Cuisines)
	}
	resp.Stats.QueryText = text

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", timeoutErr(ctx, err))
	}
	if err := ctx.Err(); err != nil {
		return nil, timeoutErr(ctx, err)
	}

	ranked, err := ranker.Rank(candidates, vec, q.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to rank candidates: %w", err)
	}

	resp.Results = make([]Result, len(ranked))
	for i, r := range ranked {
		resp.Results[i] = summarize(r)
	}
	resp.Context = assembler.Assemble(ranked, assembler.WithMaxOverview(s.maxOverview))
	resp.Stats.Retrieval = time.Since(start)

	s.logger.Debug("recommendation retrieved",
		"request_id", resp.RequestID,
		"candidates", len(candidates),
		"results", len(resp.Results),
		"duration_ms", resp.Stats.Retrieval.Milliseconds(),
	)
	return resp, nil
}

// QueryText builds the embedding input from a place and cuisine terms, as
// in "Italian and Chinese food in Indiranagar".
func QueryText(place string, cuisines []string) string {
	terms := make([]string, 0, len(cuisines))
	for _, c := range cuisines {
		if c = strings.TrimSpace(c); c != "" {
			terms = append(terms, c)
		}
	}
	return strings.TrimSpace(strings.Join(terms, " and ") + " food in " + strings.TrimSpace(place))
}

func summarize(s ranker.Scored) Result {
	rec := s.Record
	return Result{
		ID:          rec.ID,
		Name:        rec.Name,
		Location:    rec.Location,
		Locality:    rec.Locality(),
		Address:     rec.Address(),
		Cuisines:    rec.Cuisines,
		Rating:      rec.Rating,
		Votes:       rec.Votes(),
		PriceForTwo: rec.PriceForTwo,
		OnlineOrder: rec.OnlineOrder,
		BookTable:   rec.BookTable,
		Score:       s.Score,
	}
}

// timeoutErr tags err with apperr.ErrTimeout when the retrieval deadline passed.
func timeoutErr(ctx context.Context, err error) error {
	if errors.Is(err, apperr.ErrTimeout) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", apperr.ErrTimeout, err)
	}
	return err
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, apperr.ErrInvalidInput), errors.Is(err, apperr.ErrInvalidFilter):
		return metrics.OutcomeInvalid
	case errors.Is(err, apperr.ErrNotReady):
		return metrics.OutcomeNotReady
	case errors.Is(err, apperr.ErrTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return metrics.OutcomeCanceled
	case errors.Is(err, apperr.ErrEmbeddingProvider):
		return metrics.OutcomeProviderErr
	default:
		return metrics.OutcomeError
	}
}
