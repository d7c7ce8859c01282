package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lumapix/payments-service/internal/application"
)

type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError maps application errors to HTTP responses
func WriteError(w http.ResponseWriter, err error, logger *slog.Logger) {
	statusCode := application.ToHTTPStatus(err)
	errorCode := application.ToErrorCode(err)

	if statusCode >= http.StatusInternalServerError {
		logger.Error("request failed", "code", errorCode, "error", err)
	}

	response := ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    errorCode,
			Message: err.Error(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if encErr := json.NewEncoder(w).Encode(response); encErr != nil {
		logger.Error("failed to encode error response", "error", encErr)
	}
}

// WriteJSON writes a success payload with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, payload any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// WriteRawJSON writes pre-marshaled JSON bytes verbatim. Replayed idempotent
// responses go through here so the body is byte-identical to the original.
func WriteRawJSON(w http.ResponseWriter, statusCode int, body []byte, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}
