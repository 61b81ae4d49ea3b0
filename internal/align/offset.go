package align

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientAnchors is the sentinel behind InsufficientAnchorsError.
var ErrInsufficientAnchors = errors.New("insufficient anchors")

// InsufficientAnchorsError reports that there were no paired events to
// derive a clock offset from.
type InsufficientAnchorsError struct {
	Reference int
	Drifted   int
}

func (e *InsufficientAnchorsError) Error() string {
	return fmt.Sprintf("cannot estimate clock offset from %d reference and %d drifted anchors", e.Reference, e.Drifted)
}

func (e *InsufficientAnchorsError) Unwrap() error { return ErrInsufficientAnchors }

// Offset is the constant shift from the drifted clock to the reference clock,
// in the timestamps' own units.
type Offset float64

// Apply maps a drifted timestamp onto the reference clock.
func (o Offset) Apply(t float64) float64 {
	return t - float64(o)
}

// ApplyAll returns a corrected copy of times.
func (o Offset) ApplyAll(times []float64) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = o.Apply(t)
	}
	return out
}

// EstimateOffset returns mean(drifted) - mean(reference). The two sequences
// describe the same events in ordinal correspondence; only the fixed start-up
// offset between the clocks is corrected, not a drift rate.
func EstimateOffset(reference, drifted []float64) (Offset, error) {
	if len(reference) == 0 || len(drifted) == 0 {
		return 0, &InsufficientAnchorsError{Reference: len(reference), Drifted: len(drifted)}
	}
	return Offset(stat.Mean(drifted, nil) - stat.Mean(reference, nil)), nil
}

// Residuals returns corrected[i] - reference[i] for each pair. The slices must
// have equal length.
func Residuals(reference, corrected []float64) ([]float64, error) {
	if len(reference) != len(corrected) {
		return nil, fmt.Errorf("%w: %d reference times vs %d corrected times", ErrInvalidInput, len(reference), len(corrected))
	}
	out := make([]float64, len(reference))
	for i := range reference {
		out[i] = corrected[i] - reference[i]
	}
	return out, nil
}
