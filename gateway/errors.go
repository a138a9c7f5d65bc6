package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Sentinel failures of the request pipeline.
var (
	// ErrAuthRequired means there is no usable session: the call was never
	// sent and the caller must log in.
	ErrAuthRequired = errors.New("authentication required")
	// ErrSessionExpired means the session could not be refreshed; storage
	// has been cleared and the logout broadcast fired.
	ErrSessionExpired = errors.New("session expired")
	// ErrNetwork is a transport-level failure (offline, DNS, timeout),
	// distinct from any HTTP response the backend produced.
	ErrNetwork = errors.New("network error")
)

// APIError is a non-2xx HTTP response from the console backend, excluding
// the auth failures covered by the sentinels above.
type APIError struct {
	Status int
	// Body holds the response verbatim when the backend answered with JSON.
	Body json.RawMessage
	// Text holds the response for non-JSON content types.
	Text string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d", e.Status)
}

// Detail extracts the backend's human-readable message: the "detail" field
// of a JSON body, falling back to the raw text.
func (e *APIError) Detail() string {
	if len(e.Body) > 0 {
		var payload struct {
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(e.Body, &payload); err == nil && payload.Detail != "" {
			return payload.Detail
		}
	}
	return e.Text
}

func newAPIError(status int, contentType string, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	if strings.Contains(contentType, "application/json") && json.Valid(body) {
		apiErr.Body = json.RawMessage(body)
	} else {
		apiErr.Text = string(body)
	}
	return apiErr
}
