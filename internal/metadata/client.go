package metadata

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// KeySource supplies provider credentials by provider name. The repository
// layer implements it so clients stay decoupled from storage.
type KeySource interface {
	ProviderKeys(name string) (key1, key2 string, err error)
}

// APIError represents an error response from an external provider
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"status_message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider API error (code %d): %s", e.StatusCode, e.Message)
}

// checkResponse turns a non-2xx HTTP response into an APIError
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d: failed to read error response", resp.StatusCode),
		}
	}

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}
	if apiErr.StatusCode == 0 {
		apiErr.StatusCode = resp.StatusCode
	}
	return &apiErr
}
