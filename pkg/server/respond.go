package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"aratta-hq/aratta/pkg/providers"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message  string `json:"message"`
	Type     string `json:"type"`
	Provider string `json:"provider,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps provider error types to HTTP status codes: 429 rate
// limit, 404 unknown model, 502 auth or upstream, 503 circuit open or
// no provider, 400 validation or unsupported operation, 500 otherwise.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := "internal_error"
	provider := ""

	var rateLimit *providers.RateLimitError
	var auth *providers.AuthenticationError
	var notFound *providers.ModelNotFoundError
	var circuitOpen *providers.CircuitOpenError
	var unsupported *providers.UnsupportedOperationError
	var validation *providers.ValidationError
	var configErr *providers.ConfigError
	var provErr *providers.ProviderError

	switch {
	case errors.As(err, &rateLimit):
		status, kind, provider = http.StatusTooManyRequests, "rate_limit", rateLimit.Provider
		if rateLimit.RetryAfter > 0 {
			w.Header().Set("Retry-After", formatSeconds(rateLimit.RetryAfter))
		}
	case errors.As(err, &notFound):
		status, kind, provider = http.StatusNotFound, "model_not_found", notFound.Provider
	case errors.As(err, &circuitOpen):
		status, kind, provider = http.StatusServiceUnavailable, "circuit_open", circuitOpen.Provider
	case errors.As(err, &auth):
		status, kind, provider = http.StatusBadGateway, "authentication_error", auth.Provider
	case errors.As(err, &unsupported):
		status, kind, provider = http.StatusBadRequest, "unsupported_operation", unsupported.Provider
	case errors.As(err, &validation):
		status, kind = http.StatusBadRequest, "validation_error"
	case errors.As(err, &configErr):
		status, kind, provider = http.StatusServiceUnavailable, "provider_unavailable", configErr.Provider
	case errors.As(err, &provErr):
		// Covers transport failures with no upstream status code too;
		// 500 is reserved for gateway bugs.
		status, kind, provider = http.StatusBadGateway, "provider_error", provErr.Provider
	}

	writeJSON(w, status, errorBody{Error: errorDetail{
		Message:  err.Error(),
		Type:     kind,
		Provider: provider,
	}})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
		Message: message,
		Type:    "invalid_request",
	}})
}

func writeUnavailable(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: errorDetail{
		Message: message,
		Type:    "unavailable",
	}})
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{
		Message: message,
		Type:    "not_found",
	}})
}
