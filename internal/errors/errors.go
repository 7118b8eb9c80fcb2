package errors

import (
	"errors"
	"fmt"
)

// Common error types for the auth client
var (
	// Credential errors (recoverable through one refresh-and-retry cycle)
	ErrCredentialExpired = errors.New("credential expired")

	// Refresh errors (terminal: the local session is cleared when these surface)
	ErrRefreshTerminal = errors.New("credential refresh failed")
	ErrNoRefreshToken  = errors.New("no refresh token")

	// Transport errors
	ErrTransport         = errors.New("transport failure")
	ErrMalformedResponse = errors.New("malformed response")

	// Storage errors (degrade to an in-memory session, logged, never surfaced)
	ErrStorage = errors.New("session storage failure")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
