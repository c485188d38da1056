package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func WriteError(w http.ResponseWriter, err error) {
	appErr := AsAppError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode())

	response := ErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}

	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		slog.Default().Warn("failed to encode error response", "code", appErr.Code, "error", encodeErr)
	}
}

func WriteSuccess(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// headers are already flushed, the caller can only log this
	return json.NewEncoder(w).Encode(data)
}
