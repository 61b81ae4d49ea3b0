package stream

import (
	"errors"
	"fmt"
)

// ErrCorruptSource is the sentinel behind CorruptSourceError.
var ErrCorruptSource = errors.New("corrupt sensor stream container")

// CorruptSourceError reports a container that cannot be read or lacks an
// expected event kind.
type CorruptSourceError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptSourceError) Error() string {
	msg := fmt.Sprintf("sensor stream container %q appears to be corrupt and cannot be processed: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

func (e *CorruptSourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCorruptSource}
	}
	return []error{ErrCorruptSource, e.Err}
}

func corrupt(path, reason string, err error) error {
	return &CorruptSourceError{Path: path, Reason: reason, Err: err}
}
