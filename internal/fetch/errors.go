package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx response from the source API.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.URL, e.Status)
}

// Statuses that indicate the request itself is invalid or unservable.
// Retrying these cannot succeed.
var nonRetriableStatus = map[int]bool{
	http.StatusBadRequest:          true,
	http.StatusUnauthorized:        true,
	http.StatusForbidden:           true,
	http.StatusNotFound:            true,
	http.StatusUnprocessableEntity: true,
}

// NonRetriable reports whether err is a status error that retrying
// cannot fix. Transport and decode errors are always retriable.
func NonRetriable(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && nonRetriableStatus[se.Status]
}

// IsRateLimited reports whether the source signalled rate limiting.
// Callers are expected to cool down before the next unit of work.
func IsRateLimited(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Status == http.StatusForbidden || se.Status == http.StatusTooManyRequests
}
