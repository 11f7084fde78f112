package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"blogd/errs"
)

// MaxBodyBytes caps the size of every request body.
const MaxBodyBytes = 1 << 20

// decodeJSON parses the request's json body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errs.Errorf(errs.EINVALID, "Request body too large.")
		}
		return errs.Errorf(errs.EINVALID, "Invalid json body.")
	}
	return nil
}

// writeJSON encodes v as the response body. The status must already be set
// if it is not 200.
func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		errs.LogError(r, err)
	}
}
