// Package testutil provides shared test helpers.
package testutil

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/trialmerge/internal/fsutil"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertErrorIs fails the test unless errors.Is(err, target).
func AssertErrorIs(t testing.TB, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

// AssertFloatsNear compares two float slices element-wise within tol.
// NaN matches NaN.
func AssertFloatsNear(t testing.TB, got, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (got %v)", len(got), len(want), got)
		return
	}
	for i := range want {
		if math.IsNaN(want[i]) && math.IsNaN(got[i]) {
			continue
		}
		if math.IsNaN(want[i]) || math.IsNaN(got[i]) || math.Abs(got[i]-want[i]) > tol {
			t.Errorf("[%d] = %v, want %v (tol %v)", i, got[i], want[i], tol)
		}
	}
}

// MemFS returns an in-memory filesystem holding files, keyed by path.
func MemFS(t testing.TB, files map[string]string) *fsutil.MemoryFileSystem {
	t.Helper()
	fsys := fsutil.NewMemoryFileSystem()
	for path, content := range files {
		if err := fsys.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return fsys
}
