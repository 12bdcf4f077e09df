package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/knoguchi/dinerag/internal/apperr"
	"github.com/knoguchi/dinerag/internal/embedder"
	"github.com/knoguchi/dinerag/internal/metrics"
)

// DefaultLoadConcurrency bounds concurrent embedding calls during a bulk load.
const DefaultLoadConcurrency = 4

// Store is the append-only, in-memory catalog.
//
// Lifecycle: construct, bulk-load, serve. Load closes the ready gate once the
// batch is appended; readers that need a fully populated store wait on it.
// Embedding runs outside the lock; only the append is exclusive.
type Store struct {
	embedder    embedder.Embedder
	dimension   int
	concurrency int
	logger      *slog.Logger

	mu      sync.RWMutex
	records []*Record
	seq     uint64

	ready     chan struct{}
	readyOnce sync.Once
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLoadConcurrency sets how many embedding calls a bulk load may run at once.
func WithLoadConcurrency(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates an empty store whose records are embedded with emb.
func NewStore(emb embedder.Embedder, opts ...StoreOption) *Store {
	s := &Store{
		embedder:    emb,
		dimension:   emb.Dimension(),
		concurrency: DefaultLoadConcurrency,
		logger:      slog.Default(),
		ready:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dimension returns the embedding dimension every stored record satisfies.
func (s *Store) Dimension() int {
	return s.dimension
}

// Insert normalizes raw, embeds its description and appends it.
// It returns the assigned identity.
func (s *Store) Insert(ctx context.Context, raw RawRecord) (string, error) {
	rec := normalize(raw)

	vec, err := s.embedder.Embed(ctx, rec.Description)
	if err != nil {
		return "", fmt.Errorf("failed to embed %q: %w", rec.Name, err)
	}
	if err := s.checkDimension(vec); err != nil {
		return "", fmt.Errorf("failed to embed %q: %w", rec.Name, err)
	}
	rec.Embedding = vec

	s.mu.Lock()
	s.appendLocked(rec)
	n := len(s.records)
	s.mu.Unlock()

	metrics.SetCatalogRecords(n)
	return rec.ID, nil
}

// Load bulk-inserts raws, preserving their order, and then marks the store
// ready. The batch is all-or-nothing: if any embedding fails, nothing from it
// is appended and the store stays not ready.
func (s *Store) Load(ctx context.Context, raws []RawRecord) (int, error) {
	recs := make([]*Record, len(raws))
	for i, raw := range raws {
		recs[i] = normalize(raw)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, rec := range recs {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, rec.Description)
			if err != nil {
				return fmt.Errorf("failed to embed %q: %w", rec.Name, err)
			}
			if err := s.checkDimension(vec); err != nil {
				return fmt.Errorf("failed to embed %q: %w", rec.Name, err)
			}
			rec.Embedding = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	for _, rec := range recs {
		s.appendLocked(rec)
	}
	n := len(s.records)
	s.mu.Unlock()

	metrics.SetCatalogRecords(n)
	s.logger.Info("catalog loaded", "inserted", len(recs), "total", n, "model", s.embedder.ModelName())

	s.MarkReady()
	return len(recs), nil
}

// appendLocked assigns the identity and appends. Caller holds s.mu.
func (s *Store) appendLocked(rec *Record) {
	s.seq++
	rec.seq = s.seq
	// The sequence alone makes the identity unique; the slug keeps it readable.
	rec.ID = fmt.Sprintf("%s-%06d", slug(rec.Name), s.seq)
	s.records = append(s.records, rec)
}

func (s *Store) checkDimension(vec []float32) error {
	if len(vec) != s.dimension {
		return apperr.DimensionMismatch(s.dimension, len(vec))
	}
	return nil
}

// All returns the records in insertion order. The returned slice is a
// snapshot; the records themselves are shared and must not be modified.
func (s *Store) All() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// MarkReady opens the ready gate. It is safe to call more than once.
func (s *Store) MarkReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// IsReady reports whether the ready gate is open.
func (s *Store) IsReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// WaitReady blocks until the store is ready or ctx is done.
func (s *Store) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", apperr.ErrNotReady, ctx.Err())
	}
}
