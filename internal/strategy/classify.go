package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/phrazzld/commandq/internal/command"
)

var (
	// ErrAuth marks a failure that needs the user to re-authenticate.
	ErrAuth = errors.New("authentication failed")

	// ErrParse marks a response the client cannot interpret.
	ErrParse = errors.New("unexpected response")
)

// ConnectionError is an HTTP-level failure reported by a collaborator.
type ConnectionError struct {
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("http %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap supports errors.Is and errors.As.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Classify maps a collaborator error onto a failure kind. Authorization
// and protocol errors are hard; everything else, including unrecognized
// errors, is treated as transient I/O.
func Classify(err error) command.FailureKind {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		switch code := connErr.StatusCode; {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return command.AuthFailure
		case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests:
			return command.IOFailure
		case code >= 400 && code < 500:
			return command.ParseFailure
		default:
			return command.IOFailure
		}
	}

	switch {
	case errors.Is(err, ErrAuth):
		return command.AuthFailure
	case errors.Is(err, ErrParse):
		return command.ParseFailure
	case errors.Is(err, context.DeadlineExceeded):
		return command.IOFailure
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return command.ParseFailure
	}

	return command.IOFailure
}
