package errs

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// ErrorResponse is the json body written for every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ReturnError writes an error as json with the matching http status code.
// Internal errors are logged, their details never reach the client.
func ReturnError(w http.ResponseWriter, r *http.Request, err error) {
	code, message := ErrorCode(err), ErrorMessage(err)
	if code == EINTERNAL {
		LogError(r, err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusCode(code))
	if err := json.NewEncoder(w).Encode(&ErrorResponse{Code: code, Message: message}); err != nil {
		LogError(r, err)
	}
}

// LogError logs an error with the request's logger, along with the method and path.
func LogError(r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().
		Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("request failed")
}
