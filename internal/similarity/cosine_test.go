package similarity

import (
	"errors"
	"math"
	"testing"

	"github.com/knoguchi/dinerag/internal/apperr"
)

func TestCosine_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"scaled", []float32{1, 1}, []float32{3, 3}, 1},
		{"empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestCosine_ZeroVector(t *testing.T) {
	zero := []float32{0, 0, 0}

	got, err := Cosine(zero, []float32{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("expected 0 for zero vector, got %f", got)
	}

	got, err = Cosine(zero, zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("zero vector should have no similarity to itself, got %f", got)
	}
}

func TestCosine_DimensionMismatch(t *testing.T) {
	_, err := Cosine([]float32{1, 2}, []float32{1, 2, 3})
	if !errors.Is(err, apperr.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestCosine_Bounds(t *testing.T) {
	// Deterministic pseudo-random vectors
	for seed := 1; seed <= 50; seed++ {
		a := make([]float32, 64)
		b := make([]float32, 64)
		for i := range a {
			a[i] = float32(math.Sin(float64(seed*31 + i)))
			b[i] = float32(math.Cos(float64(seed*17 + i*i)))
		}
		got, err := Cosine(a, b)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got < -1 || got > 1 {
			t.Errorf("seed %d: score %f out of [-1, 1]", seed, got)
		}
	}
}
