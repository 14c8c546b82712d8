package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yungbote/skillquest-backend/internal/docstore"
)

// Stable error codes carried on the HTTP envelope.
const (
	CodeInvalidRequest = "invalid_request"
	CodeUnauthorized   = "unauthorized"
	CodeForbidden      = "forbidden"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeUnavailable    = "unavailable"
	CodeInternal       = "internal"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromErr maps a service-layer error onto the HTTP boundary. Store errors
// carry their own taxonomy; anything unclassified is an internal error.
// Most store failures never reach a handler at all (the persistence router
// recovers them locally); this covers the paths that surface errors
// directly, like reset and identity.
func FromErr(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch docstore.KindOf(err) {
	case docstore.ErrKindValidation:
		return New(http.StatusBadRequest, CodeInvalidRequest, err)
	case docstore.ErrKindPermission:
		return New(http.StatusForbidden, CodeForbidden, err)
	case docstore.ErrKindNotFound:
		return New(http.StatusNotFound, CodeNotFound, err)
	case docstore.ErrKindConnectivity:
		return New(http.StatusServiceUnavailable, CodeUnavailable, err)
	default:
		return New(http.StatusInternalServerError, CodeInternal, err)
	}
}
