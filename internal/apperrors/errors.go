package apperrors

import (
	"errors"
)

var (
	ErrIdentityAlreadyExists = errors.New("identity already exists")
	ErrIdentityNotFound      = errors.New("identity not found")

	// Authentication failures. All of them end up as the same 401 response
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingToken       = errors.New("token is missing")
	ErrMalformedToken     = errors.New("token is malformed")
	ErrForgedToken        = errors.New("token signature is invalid")
	ErrTokenExpired       = errors.New("token is expired")
)

// IsAuthFailure reports whether err is one of the authentication failures
// a client may cause by sending wrong credentials or a bad token
func IsAuthFailure(err error) bool {
	for _, target := range []error{
		ErrInvalidCredentials,
		ErrMissingToken,
		ErrMalformedToken,
		ErrForgedToken,
		ErrTokenExpired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
