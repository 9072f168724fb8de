package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("provider: missing GOOGLE_API_KEY")

	// ErrEmptyResponse is returned when the model produced no candidates.
	ErrEmptyResponse = errors.New("provider: model returned no content")
)

// ProviderError is returned when the generation API responds with a
// non-200 status.
type ProviderError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Status is the API's status string (e.g. "NOT_FOUND",
	// "RESOURCE_EXHAUSTED"), when present.
	Status string

	// Message is the human-readable error description.
	Message string
}

func (err *ProviderError) Error() string {
	if err.Status != "" {
		return fmt.Sprintf("provider: HTTP %d: %s: %s", err.StatusCode, err.Status, err.Message)
	}
	return fmt.Sprintf("provider: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsRateLimited reports whether the error is an HTTP 429.
func (err *ProviderError) IsRateLimited() bool {
	return err.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports whether the error is an HTTP 404, which the API
// returns for unknown or retired models.
func (err *ProviderError) IsNotFound() bool {
	return err.StatusCode == http.StatusNotFound
}

// AsProviderError unwraps err into a *ProviderError if it holds one.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// readProviderError parses the API error envelope:
// {"error":{"code":404,"message":"...","status":"NOT_FOUND"}}.
func readProviderError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var wireError struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Error.Message != "" {
		return &ProviderError{
			StatusCode: resp.StatusCode,
			Status:     wireError.Error.Status,
			Message:    wireError.Error.Message,
		}
	}

	msg := string(body)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &ProviderError{StatusCode: resp.StatusCode, Message: msg}
}
