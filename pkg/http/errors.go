package http

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error code
	Message string `json:"message"` // Human-readable message
}

// errorCodes maps the statuses this API emits to their machine-readable codes
var errorCodes = map[int]string{
	http.StatusBadRequest:          "bad_request",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusForbidden:           "forbidden",
	http.StatusTooManyRequests:     "rate_limit_exceeded",
	http.StatusInternalServerError: "internal_error",
	http.StatusServiceUnavailable:  "service_unavailable",
}

// WriteJSON writes v as a JSON body with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response with an explicit error code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// WriteStatus writes a JSON error response whose code is derived from the status
func WriteStatus(w http.ResponseWriter, statusCode int, message string) {
	code, ok := errorCodes[statusCode]
	if !ok {
		code = "error"
	}
	WriteError(w, statusCode, code, message)
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteStatus(w, http.StatusBadRequest, message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteStatus(w, http.StatusUnauthorized, message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteStatus(w, http.StatusForbidden, message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteStatus(w, http.StatusTooManyRequests, message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteStatus(w, http.StatusInternalServerError, message)
}

func WriteServiceUnavailable(w http.ResponseWriter, message string) {
	WriteStatus(w, http.StatusServiceUnavailable, message)
}
