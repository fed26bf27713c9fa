package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error carries the HTTP status and machine-readable code a handler should
// answer with.
type Error struct {
	Status int
	Code   string
	Err    error
	// Msg is the client-facing text; Message falls back to Err.
	Msg string
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

// Message is what the response envelope shows. Server errors never expose
// the wrapped cause.
func (e *Error) Message() string {
	switch {
	case e == nil:
		return ""
	case e.Msg != "":
		return e.Msg
	case e.Status >= http.StatusInternalServerError:
		return "internal server error"
	}
	msg := e.Error()
	for _, sentinel := range []error{ErrInvalidArgument, ErrNotFound, ErrUnauthorized} {
		msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	}
	return msg
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code, format string, args ...any) *Error {
	return wrap(http.StatusBadRequest, code, ErrInvalidArgument, format, args)
}

func NotFound(code, format string, args ...any) *Error {
	return wrap(http.StatusNotFound, code, ErrNotFound, format, args)
}

func wrap(status int, code string, sentinel error, format string, args []any) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Status: status, Code: code, Err: fmt.Errorf("%w: %s", sentinel, msg), Msg: msg}
}

// From maps an arbitrary error to an *Error, defaulting to 500.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, ErrInvalidArgument):
		return New(http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, ErrUnauthorized):
		return New(http.StatusUnauthorized, "unauthorized", err)
	default:
		return New(http.StatusInternalServerError, "internal", err)
	}
}
