package workflow

import (
	"errors"
	"fmt"
)

// Error marks conditions that abort the whole run. Everything else is
// a per-item failure: logged on the job and skipped.
type Error struct {
	message string
}

func (e *Error) Error() string { return e.message }

// Errorf builds a run-aborting error.
func Errorf(format string, args ...interface{}) *Error {
	return &Error{message: fmt.Sprintf(format, args...)}
}

// IsFatal reports whether err aborted the run, as opposed to an
// unexpected failure outside the workflow's own taxonomy.
func IsFatal(err error) bool {
	var we *Error
	return errors.As(err, &we)
}
