package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// APIError is a server rejection (4xx/5xx) carrying the body's message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server rejected request (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("server rejected request (HTTP %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 rejection.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// IsUnauthorized reports whether err is a 401/403 rejection, which the
// caller should treat as "auth required".
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.StatusCode == 401 || apiErr.StatusCode == 403)
}

// checkResponse folds a resty response and transport error into the error
// taxonomy: transport failures become "server unreachable", non-2xx
// responses become *APIError with the body's message field when present.
func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	if resp.IsError() {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(resp.Body(), &body)
		return &APIError{StatusCode: resp.StatusCode(), Message: body.Message}
	}
	return nil
}
