// Package httputil is the HTTP plumbing shared by the daemon's API surface
// and the shell's remote mode: JSON response helpers on the server side and
// an injectable client on the caller side.
package httputil

import (
	"encoding/json"
	"log"
	"net/http"
)

// apiError is the wire shape of every error response: {"error": "..."}.
// The shell's remote mode decodes this to surface daemon failures.
type apiError struct {
	Error string `json:"error"`
}

// WriteJSON writes data as the JSON response body with the given status.
// Encoding failures cannot reach the client once the header is out, so they
// are only logged.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("encode %d response: %v", status, err)
	}
}

// WriteJSONOK writes data with status 200.
func WriteJSONOK(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONError writes an error response with the given status.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, apiError{Error: msg})
}

// BadRequest rejects a request whose parameters did not parse.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusBadRequest, msg)
}

// NotFound reports that the requested resource does not exist.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusNotFound, msg)
}

// MethodNotAllowed rejects a request made with the wrong HTTP method.
func MethodNotAllowed(w http.ResponseWriter) {
	WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// InternalServerError reports a failure the caller cannot correct.
func InternalServerError(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusInternalServerError, msg)
}
