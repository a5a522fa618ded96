package openaicompat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rhuss/kontrakt/pkg/api"
)

// MapHTTPError converts a non-2xx backend response into an APIError,
// using the backend's error message when the body carries one.
func MapHTTPError(resp *http.Response) *api.APIError {
	message := ExtractErrorMessage(resp.Body)
	orDefault := func(def string) string {
		if message == "" {
			return def
		}
		return message
	}

	var e *api.APIError
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		e = api.NewModelError(orDefault("invalid request to backend"))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		e = api.NewModelError(orDefault("backend authentication failed"))
	case resp.StatusCode == http.StatusNotFound:
		e = api.NewModelError(orDefault("backend model or endpoint not found"))
	case resp.StatusCode == http.StatusTooManyRequests:
		e = api.NewTooManyRequestsError(orDefault("backend rate limit exceeded"))
	case resp.StatusCode >= http.StatusInternalServerError:
		e = api.NewUnavailableError(orDefault(fmt.Sprintf("backend server error (HTTP %d)", resp.StatusCode)))
	default:
		e = api.NewModelError(orDefault(fmt.Sprintf("unexpected backend error (HTTP %d)", resp.StatusCode)))
	}
	e.Code = fmt.Sprintf("backend_%d", resp.StatusCode)
	return e
}

// MapNetworkError converts a transport failure into an APIError.
func MapNetworkError(err error) *api.APIError {
	return api.NewUnavailableError(fmt.Sprintf("backend connection error: %s", err))
}

// ExtractErrorMessage reads at most 4 KiB of body and returns the error
// message of a Chat Completions error object, or "".
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var errResp ChatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil {
		return errResp.Error.Message
	}
	return ""
}
