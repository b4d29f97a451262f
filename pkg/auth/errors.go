package auth

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingCredential is returned when the username or password is empty.
var ErrMissingCredential = errors.New("username and password are required")

// AuthenticationError is returned when the token endpoint answers with an
// error instead of a token.
type AuthenticationError struct {
	Code    int
	Message string
	Details []string

	// Payload is the raw error value from the response.
	Payload string
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Payload
	}
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	if e.Code != 0 {
		return fmt.Sprintf("token not found: error %d: %s", e.Code, msg)
	}
	return fmt.Sprintf("token not found: %s", msg)
}

// UnknownAuthenticationError is returned when the token endpoint response
// holds neither a token nor a recognizable error.
type UnknownAuthenticationError struct {
	Body string
	Err  error
}

// Error implements the error interface.
func (e *UnknownAuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unknown authentication failure: %v: %s", e.Err, e.Body)
	}
	return fmt.Sprintf("unknown authentication failure: %s", e.Body)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UnknownAuthenticationError) Unwrap() error {
	return e.Err
}
