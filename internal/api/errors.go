package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Envelope codes used by the REST service.
const (
	CodeOK                 = 0
	CodeBadRequest         = 40001
	CodeInvalidCredentials = 40101
	CodeForbidden          = 40301
	CodeNotFound           = 40401
	CodeConflict           = 40901
)

// Kind classifies a failed call. It is decided once, where the response
// is decoded.
type Kind int

const (
	// KindTransport means the service could not be reached or did not
	// answer with a usable response.
	KindTransport Kind = iota + 1
	// KindBusiness means the service answered and rejected the request.
	KindBusiness
	// KindAuthExpired means the credential was rejected (HTTP 401 or
	// envelope code 40101).
	KindAuthExpired
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindBusiness:
		return "business"
	case KindAuthExpired:
		return "auth-expired"
	default:
		return "unknown"
	}
}

// Error is returned by every Client call that fails.
type Error struct {
	Kind Kind
	// Code is the envelope code when the service supplied one, otherwise
	// the HTTP status. Zero for transport failures.
	Code    int
	Message string
	Method  string
	Path    string
	// Epoch is the session epoch the request was sent under.
	Epoch uint64
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s (%d): %s: %v",
			e.Method, e.Path, e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s (%d): %s",
		e.Method, e.Path, e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsAuthExpired reports whether err (or any error in its chain) is a
// rejected credential.
func IsAuthExpired(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == KindAuthExpired
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == KindTransport
}

// CodeOf returns the code carried by err, or 0 when err is not an *Error.
func CodeOf(err error) int {
	if apiErr, ok := AsError(err); ok {
		return apiErr.Code
	}
	return 0
}

// isAuthFailure reports whether an HTTP status or envelope code signals a
// rejected credential.
func isAuthFailure(status, code int) bool {
	return status == http.StatusUnauthorized || code == CodeInvalidCredentials
}
