package crm

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Domain errors for CRM operations.
var (
	ErrNotFound     = errors.New("crm record not found")
	ErrUnauthorized = errors.New("crm rejected credentials")
)

// NoRecordingGuidance is the user-facing explanation returned when no
// audio URL can be resolved for a call message. The API response cannot
// distinguish the three causes, so all are surfaced.
const NoRecordingGuidance = "The message does not have a recording URL. " +
	"Either call recording is not enabled, the recording is still " +
	"processing (wait 30-60 seconds after the call ends), or the call " +
	"was too short to generate a recording."

// UpstreamError carries the CRM's status and response body for
// unexpected failures.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("crm upstream error: status %d: %s", e.Status, e.Body)
}

// MapHTTPStatus maps CRM domain errors to HTTP status codes for the
// thin proxy endpoints.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func mapStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}
}
