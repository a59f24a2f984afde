package scim

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the domain error for SCIM operations. It carries the HTTP status
// the wire layer should respond with and an optional scimType keyword.
type Error struct {
	Status   int
	ScimType string
	Detail   string
}

func (e *Error) Error() string {
	if e.ScimType != "" {
		return fmt.Sprintf("scim %d (%s): %s", e.Status, e.ScimType, e.Detail)
	}
	return fmt.Sprintf("scim %d: %s", e.Status, e.Detail)
}

// AsError unwraps err into a *Error, or nil if it isn't one.
func AsError(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// NotFound reports a missing resource.
func NotFound(detail string) *Error {
	return &Error{Status: http.StatusNotFound, Detail: detail}
}

// BadRequest reports an invalid request payload.
func BadRequest(detail string) *Error {
	return &Error{Status: http.StatusBadRequest, Detail: detail}
}

// Conflict reports a uniqueness violation.
func Conflict(detail string) *Error {
	return &Error{Status: http.StatusConflict, ScimType: "uniqueness", Detail: detail}
}

// Unauthenticated reports a missing or invalid bearer token.
func Unauthenticated(detail string) *Error {
	return &Error{Status: http.StatusUnauthorized, Detail: detail}
}
