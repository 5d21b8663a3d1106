package http

import (
	"encoding/json"
	"net/http"
)

// Response reports the outcome of a command
type Response struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Outcome string `json:"outcome,omitempty"`
}

// ErrorResponse reports a failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(payload)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, &ErrorResponse{Error: err.Error()})
}

// statusRecorder captures the response code for tracing
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}
