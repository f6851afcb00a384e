package handlers

import (
	"encoding/json"
	"net/http"
)

// envelope is the status/message/data response shape used by the OTP endpoints
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}

func respondEnvelopeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, envelope{Status: "error", Message: message})
}
