package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Application error codes. They are part of the public API, every error
// response carries one of them in its "code" field.
const (
	// ECONFLICT is returned when a create would duplicate a unique value,
	// like registering a username that is already taken.
	ECONFLICT = "conflict"
	// EINTERNAL is returned for any failure the client can't do anything about.
	EINTERNAL = "internal"
	// EINVALID is returned when the submitted data is malformed or incomplete.
	EINVALID = "invalid"
	// ENOTFOUND is returned when a referenced resource does not exist.
	ENOTFOUND = "not_found"
	// EUNAUTHORIZED is returned when a protected route is called without credentials,
	// or when a login attempt fails.
	EUNAUTHORIZED = "unauthorized"
	// EFORBIDDEN is returned when the presented credentials are invalid or expired.
	EFORBIDDEN = "forbidden"
	// ENOTALLOWED is returned when a route exists but not for the request's method.
	ENOTALLOWED = "method_not_allowed"
)

// Errors shared between packages. Both login failure paths return
// ErrInvalidCredentials so the response never reveals which field was wrong.
var (
	ErrInvalidCredentials = &Error{Code: EUNAUTHORIZED, Message: "Invalid username or password."}
	ErrAuthRequired       = &Error{Code: EUNAUTHORIZED, Message: "Authorization required."}
	ErrTokenInvalid       = &Error{Code: EFORBIDDEN, Message: "Invalid or expired token."}
	ErrUsernameTaken      = &Error{Code: ECONFLICT, Message: "This username is already taken."}
	ErrPostNotFound       = &Error{Code: ENOTFOUND, Message: "The post does not exist."}
	ErrUserNotFound       = &Error{Code: ENOTFOUND, Message: "The user does not exist."}
)

// Error represents an application error. Code is machine readable, Message is
// safe to show to the end user.
type Error struct {
	Code    string
	Message string
}

// Error implements the error interface. Log lines show this form, clients see
// only Code and Message.
func (e *Error) Error() string {
	return fmt.Sprintf("blogd error: code=%s message=%s", e.Code, e.Message)
}

// Errorf is a helper function to return an Error with a given code and formatted message.
func Errorf(code string, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode unwraps an application error and returns its code.
// Non-application errors always return EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors always return "Internal error.".
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}

// codes maps application error codes to http status codes. Conflicts are
// reported as 400, which is what clients of the register route expect.
var codes = map[string]int{
	ECONFLICT:     http.StatusBadRequest,
	EINVALID:      http.StatusBadRequest,
	EUNAUTHORIZED: http.StatusUnauthorized,
	EFORBIDDEN:    http.StatusForbidden,
	ENOTFOUND:     http.StatusNotFound,
	ENOTALLOWED:   http.StatusMethodNotAllowed,
	EINTERNAL:     http.StatusInternalServerError,
}

// StatusCode returns the http status code for an application error code.
func StatusCode(code string) int {
	if v, ok := codes[code]; ok {
		return v
	}
	return http.StatusInternalServerError
}
