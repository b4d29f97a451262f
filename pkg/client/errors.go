package client

import (
	"errors"
	"fmt"
)

// maxErrorBody bounds the response text kept on errors for diagnostics.
const maxErrorBody = 4096

// TransportError is returned for any non-success HTTP status.
type TransportError struct {
	StatusCode int
	Reason     string
	ErrorClass ErrorClass
	Endpoint   string
	Body       string
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("AGO %s error: Status Code: %d - Reason: %s", e.ErrorClass, e.StatusCode, e.Reason)
}

// DecodeError is returned when a response body is not the JSON we expect.
type DecodeError struct {
	Body string
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("unable to decode response: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// AGO token error codes.
const (
	CodeInvalidToken  = 498
	CodeTokenRequired = 499
)

// ServiceError is the error object AGO embeds in a 200 response, for example
// {"error": {"code": 498, "message": "Invalid token."}}.
type ServiceError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

// MissingDataError is returned when a valid JSON body lacks the data key.
type MissingDataError struct {
	Key     string
	Body    string
	Service *ServiceError
}

// Error implements the error interface.
func (e *MissingDataError) Error() string {
	if e.Service != nil {
		return fmt.Sprintf("response has no %q key: service error %d: %s", e.Key, e.Service.Code, e.Service.Message)
	}
	return fmt.Sprintf("response has no %q key: %s", e.Key, e.Body)
}

// IsTokenRejected reports whether err shows the service refused the access
// token, either as an embedded error object or as the HTTP status.
func IsTokenRejected(err error) bool {
	var missing *MissingDataError
	if errors.As(err, &missing) && missing.Service != nil {
		return isTokenCode(missing.Service.Code)
	}
	var te *TransportError
	if errors.As(err, &te) {
		return isTokenCode(te.StatusCode)
	}
	return false
}

func isTokenCode(code int) bool {
	return code == CodeInvalidToken || code == CodeTokenRequired
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
