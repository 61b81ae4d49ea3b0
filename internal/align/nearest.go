// Package align reconciles two clocks: it finds the sample nearest a
// timestamp and estimates the constant offset between paired event times.
package align

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidInput reports a contract violation by the caller, such as an
// empty timestamp sequence.
var ErrInvalidInput = errors.New("invalid input")

// NearestIndex returns the index of the element of sorted closest to q.
// sorted must be non-decreasing. Ties resolve to the lower index.
func NearestIndex(sorted []float64, q float64) (int, error) {
	n := len(sorted)
	if n == 0 {
		return 0, fmt.Errorf("%w: nearest index of empty sequence", ErrInvalidInput)
	}

	// First position whose value exceeds q.
	p := sort.Search(n, func(i int) bool { return sorted[i] > q })
	if p == n {
		return n - 1, nil
	}
	if p == 0 {
		return 0, nil
	}

	before := math.Abs(sorted[p-1] - q)
	after := math.Abs(sorted[p] - q)
	if after < before {
		return p, nil
	}
	return p - 1, nil
}
