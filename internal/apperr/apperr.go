package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP layer. Every error surfaced from the
// session lifecycle falls into exactly one of these.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindUnauthorized  Kind = "unauthorized"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindOracle        Kind = "oracle"
	KindOracleTimeout Kind = "oracle_timeout"
	KindInternal      Kind = "internal"
)

type Error struct {
	Kind Kind
	Code string
	Err  error
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
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func Validation(code string, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Err: fmt.Errorf(format, args...)}
}

func NotFound(code string, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: code, Err: fmt.Errorf(format, args...)}
}

func Conflict(code string, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Code: code, Err: fmt.Errorf(format, args...)}
}

func Oracle(code string, err error) *Error {
	return &Error{Kind: KindOracle, Code: code, Err: err}
}

func OracleTimeout(code string, err error) *Error {
	return &Error{Kind: KindOracleTimeout, Code: code, Err: err}
}

func Unauthorized(code string, format string, args ...any) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the classification of err, or KindInternal when err carries
// no *Error anywhere in its chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps the taxonomy onto status codes: validation 400,
// unauthorized 401, not_found 404, conflict 409, oracle 502, oracle timeout
// 504, everything else 500.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindOracle:
		return http.StatusBadGateway
	case KindOracleTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf returns the machine code of err, or "internal" when absent.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	return "internal"
}
