// backend/src/utils/response.go
package utils

import (
	"encoding/json"
	"net/http"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/logger"
)

// SendJSON writes v as a JSON body with the given status.
func SendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("Failed to encode JSON response", "error", err)
	}
}

func SendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	logger.L.Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
