package merge

import (
	"errors"
	"fmt"
)

// ErrTrialCountMismatch is the sentinel behind TrialCountMismatchError.
var ErrTrialCountMismatch = errors.New("trial count mismatch")

// TrialCountMismatchError reports that the sensor stream and the trial log
// disagree on how many trials started. Positional pairing is unsafe in that
// case, so no merged output is produced.
type TrialCountMismatchError struct {
	Anchors int
	Trials  int
}

func (e *TrialCountMismatchError) Error() string {
	return fmt.Sprintf("found %d trial start markers in the sensor stream but %d started trials in the trial log", e.Anchors, e.Trials)
}

func (e *TrialCountMismatchError) Unwrap() error { return ErrTrialCountMismatch }
