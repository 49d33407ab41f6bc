package flasharray

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/onkernel/nasattach/lib/storage"
)

type apiErrorBody struct {
	Errors []struct {
		Context string `json:"context"`
		Message string `json:"message"`
	} `json:"errors"`
}

// parseAPIError turns a non-2xx response into a *storage.StorageError.
func parseAPIError(op string, status int, body []byte) error {
	message := strings.TrimSpace(string(body))

	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		parts := make([]string, 0, len(parsed.Errors))
		for _, e := range parsed.Errors {
			if e.Context != "" {
				parts = append(parts, fmt.Sprintf("%s: %s", e.Context, e.Message))
			} else {
				parts = append(parts, e.Message)
			}
		}
		message = strings.Join(parts, "; ")
	}
	if message == "" {
		message = fmt.Sprintf("status %d", status)
	}

	lower := strings.ToLower(message)
	kind := storage.KindRejected
	switch {
	case status == http.StatusConflict || strings.Contains(lower, "already exists"):
		kind = storage.KindAlreadyExists
	case status == http.StatusNotFound || strings.Contains(lower, "does not exist"):
		kind = storage.KindNotFound
	case status == http.StatusServiceUnavailable || status == http.StatusBadGateway || status == http.StatusGatewayTimeout:
		kind = storage.KindUnreachable
	}
	return storage.NewError(kind, op, message)
}
