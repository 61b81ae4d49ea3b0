package align

import (
	"errors"
	"testing"
)

func TestNearestIndex(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		q      float64
		want   int
	}{
		{"below first", []float64{1, 3, 5}, -10, 0},
		{"equal first", []float64{1, 3, 5}, 1, 0},
		{"above last", []float64{1, 3, 5}, 99, 2},
		{"equal last", []float64{1, 3, 5}, 5, 2},
		{"tie breaks low", []float64{1, 3, 5}, 2, 0},
		{"closer to upper", []float64{1, 3, 5}, 2.6, 1},
		{"closer to lower", []float64{1, 3, 5}, 3.9, 1},
		{"single element", []float64{7}, 3, 0},
		{"duplicates pick last equal", []float64{0, 2, 2, 2, 4}, 2, 3},
		{"marker near sample one", []float64{0, 1, 2, 3, 4}, 1.1, 1},
		{"marker near sample three", []float64{0, 1, 2, 3, 4}, 3.2, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NearestIndex(tt.sorted, tt.q)
			if err != nil {
				t.Fatalf("NearestIndex returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NearestIndex(%v, %v) = %d, want %d", tt.sorted, tt.q, got, tt.want)
			}
		})
	}
}

func TestNearestIndex_Empty(t *testing.T) {
	_, err := NearestIndex(nil, 1)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNearestIndex_ClampsOutsideRange(t *testing.T) {
	seqs := [][]float64{
		{0},
		{0, 0, 0},
		{-5, -1, 0.25, 8, 8, 100},
	}
	for _, s := range seqs {
		lo, err := NearestIndex(s, s[0]-1)
		if err != nil || lo != 0 {
			t.Errorf("below %v: got %d, %v; want 0", s, lo, err)
		}
		hi, err := NearestIndex(s, s[len(s)-1]+1)
		if err != nil || hi != len(s)-1 {
			t.Errorf("above %v: got %d, %v; want %d", s, hi, err, len(s)-1)
		}
	}
}
