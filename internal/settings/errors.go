package settings

import (
	"errors"
	"net/http"
)

// Domain errors for settings operations.
var (
	ErrNotFound  = errors.New("client settings not found")
	ErrDuplicate = errors.New("location already connected to another tenant")
	ErrInvalid   = errors.New("location_id and access_token required")
)

// MapHTTPStatus maps settings domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalid) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
