package transcripts

import (
	"errors"
	"net/http"
)

// Domain errors for transcript operations.
var (
	ErrNotFound         = errors.New("transcript not found")
	ErrDuplicate        = errors.New("transcript already exists for message")
	ErrAlreadyCompleted = errors.New("transcript already completed")
	ErrNotReady         = errors.New("transcript must be completed with content before re-analysis")
)

// MapHTTPStatus maps transcript domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrAlreadyCompleted) || errors.Is(err, ErrNotReady) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
