package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// Envelope is the shared response shape for every endpoint.
type Envelope struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

func write(w http.ResponseWriter, statusCode int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	env.Timestamp = time.Now().UTC().Format(time.RFC3339)
	// Encoding errors are not exposed to the client
	_ = json.NewEncoder(w).Encode(env)
}

// WriteSuccess writes a success envelope with optional data.
func WriteSuccess(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	write(w, statusCode, Envelope{Success: true, Message: message, Data: data})
}

// WriteError writes a failure envelope.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	write(w, statusCode, Envelope{Success: false, Message: message})
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, message)
}

// WriteTooManyRequests includes a Retry-After hint in seconds.
func WriteTooManyRequests(w http.ResponseWriter, message string, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	}
	WriteError(w, http.StatusTooManyRequests, message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}
