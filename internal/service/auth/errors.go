package auth

import "errors"

// Errors returned by ValidateToken. The API layer maps all of them to 401.
var (
	ErrMissingToken     = errors.New("operator token is missing")
	ErrInvalidToken     = errors.New("operator token is malformed or badly signed")
	ErrExpiredToken     = errors.New("operator token has expired")
	ErrTokenNotYetValid = errors.New("operator token is not valid yet")
	// ErrWrongTokenType is returned for a well-signed token issued for
	// something other than operator access.
	ErrWrongTokenType = errors.New("token is not an operator token")
)
