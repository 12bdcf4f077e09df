package embedder

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/knoguchi/dinerag/internal/apperr"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(32)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Italian food in Downtown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := e.Embed(ctx, "Italian food in Downtown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(a) != 32 {
		t.Fatalf("expected dimension 32, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("component %d differs between calls: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestHashEmbedder_Defaults(t *testing.T) {
	e := NewHashEmbedder(0)
	if e.Dimension() != DefaultHashDimension {
		t.Errorf("expected default dimension %d, got %d", DefaultHashDimension, e.Dimension())
	}
	if e.ModelName() == "" {
		t.Error("expected a model name")
	}
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	e := NewHashEmbedder(8)
	for _, text := range []string{"", "   "} {
		_, err := e.Embed(context.Background(), text)
		if !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("text %q: expected ErrInvalidInput, got %v", text, err)
		}
	}
}

func TestHashEmbedder_Batch(t *testing.T) {
	e := NewHashEmbedder(8)
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	if vecs[0][3] != vecs[2][3] {
		t.Error("expected identical texts to produce identical vectors")
	}
	if vecs[0][3] == vecs[1][3] {
		t.Error("expected different texts to produce different vectors")
	}
}

func TestDimensionFor(t *testing.T) {
	if got := DimensionFor("nomic-embed-text", 1); got != 768 {
		t.Errorf("expected 768, got %d", got)
	}
	if got := DimensionFor("unknown-model", 99); got != 99 {
		t.Errorf("expected fallback 99, got %d", got)
	}
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Model != "all-minilm" {
			t.Errorf("expected model all-minilm, got %s", req.Model)
		}
		_ = json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL + "/", Model: "all-minilm", Dimension: 3})

	vec, err := e.Embed(context.Background(), "pizza")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[1] != float32(0.2) {
		t.Errorf("unexpected vector %v", vec)
	}

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("unexpected batch error: %v", err)
	}
	if len(vecs) != 5 {
		t.Errorf("expected 5 vectors, got %d", len(vecs))
	}
}

func TestOllamaEmbedder_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("model not loaded"))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Dimension: 3})

	_, err := e.Embed(context.Background(), "pizza")
	if !errors.Is(err, apperr.ErrEmbeddingProvider) {
		t.Errorf("expected ErrEmbeddingProvider, got %v", err)
	}

	_, err = e.Embed(context.Background(), "")
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestOllamaEmbedder_WrongDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float64{1, 2}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Dimension: 3})
	_, err := e.Embed(context.Background(), "pizza")
	if !errors.Is(err, apperr.ErrEmbeddingProvider) || !errors.Is(err, apperr.ErrDimensionMismatch) {
		t.Errorf("expected provider dimension mismatch, got %v", err)
	}
}

// stubEmbedder is a controllable provider for guard tests.
type stubEmbedder struct {
	delay    time.Duration
	fail     error
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		old := s.maxSeen.Load()
		if n <= old || s.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.fail != nil {
		return nil, s.fail
	}
	return []float32{1, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

func (s *stubEmbedder) Dimension() int    { return 2 }
func (s *stubEmbedder) ModelName() string { return "stub" }

func TestGuarded_Timeout(t *testing.T) {
	stub := &stubEmbedder{delay: time.Second}
	g := NewGuarded(stub, GuardConfig{Timeout: 20 * time.Millisecond})

	_, err := g.Embed(context.Background(), "slow")
	if !errors.Is(err, apperr.ErrEmbeddingProvider) {
		t.Errorf("expected ErrEmbeddingProvider, got %v", err)
	}
	if !errors.Is(err, apperr.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestGuarded_CircuitOpens(t *testing.T) {
	stub := &stubEmbedder{fail: errors.New("boom")}
	g := NewGuarded(stub, GuardConfig{FailureThreshold: 2, Cooldown: time.Minute})

	for i := 0; i < 2; i++ {
		if _, err := g.Embed(context.Background(), "x"); !errors.Is(err, apperr.ErrEmbeddingProvider) {
			t.Fatalf("call %d: expected provider error, got %v", i, err)
		}
	}

	_, err := g.Embed(context.Background(), "x")
	if !errors.Is(err, apperr.ErrEmbeddingProvider) {
		t.Errorf("expected provider error while open, got %v", err)
	}
	if got := stub.calls.Load(); got != 2 {
		t.Errorf("expected open circuit to short-circuit the provider, got %d calls", got)
	}
}

func TestGuarded_InvalidInputDoesNotTrip(t *testing.T) {
	stub := &stubEmbedder{}
	g := NewGuarded(stub, GuardConfig{FailureThreshold: 1})

	for i := 0; i < 3; i++ {
		if _, err := g.Embed(context.Background(), ""); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	}
	if _, err := g.Embed(context.Background(), "fine"); err != nil {
		t.Errorf("expected closed circuit, got %v", err)
	}
}

func TestGuarded_BoundsConcurrency(t *testing.T) {
	stub := &stubEmbedder{delay: 10 * time.Millisecond}
	g := NewGuarded(stub, GuardConfig{MaxInFlight: 3})

	texts := make([]string, 20)
	for i := range texts {
		texts[i] = "text"
	}

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			if _, err := g.EmbedBatch(context.Background(), texts); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := stub.maxSeen.Load(); got > 3 {
		t.Errorf("expected at most 3 in-flight calls, saw %d", got)
	}
	if got := stub.calls.Load(); got != 40 {
		t.Errorf("expected 40 provider calls, got %d", got)
	}
}

func TestGuarded_CallerCancellationDoesNotTrip(t *testing.T) {
	stub := &stubEmbedder{delay: 200 * time.Millisecond}
	g := NewGuarded(stub, GuardConfig{FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(5*time.Millisecond, cancel)
		_, err := g.Embed(ctx, "slow")
		cancel()
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("call %d: expected context.Canceled, got %v", i, err)
		}
		if errors.Is(err, apperr.ErrEmbeddingProvider) {
			t.Fatalf("call %d: cancellation reported as provider error: %v", i, err)
		}
	}

	stub.delay = 0
	if _, err := g.Embed(context.Background(), "fine"); err != nil {
		t.Errorf("expected closed circuit after cancellations, got %v", err)
	}
	if got := g.State(); got != gobreaker.StateClosed {
		t.Errorf("expected closed breaker, got %s", got)
	}
}

func TestGuarded_CancelledWhileWaitingForSlot(t *testing.T) {
	stub := &stubEmbedder{delay: 100 * time.Millisecond}
	g := NewGuarded(stub, GuardConfig{MaxInFlight: 1, FailureThreshold: 1})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = g.Embed(context.Background(), "holder")
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Embed(ctx, "waiter")
	if !errors.Is(err, context.Canceled) || errors.Is(err, apperr.ErrEmbeddingProvider) {
		t.Errorf("expected bare context.Canceled, got %v", err)
	}
	<-done
}
