package client

import (
	"errors"
	"fmt"
)

// OrdiscanError is returned for non-2xx responses and transport failures.
// StatusCode is zero for the latter.
type OrdiscanError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *OrdiscanError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ordiscan %s error: %s: %v", e.ErrorClass, e.Message, e.Err)
	}
	return fmt.Sprintf("ordiscan %s error (status %d): %s", e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *OrdiscanError) Unwrap() error {
	return e.Err
}

// StatusCodeOf returns the upstream status carried by err, or zero when err
// did not come from an HTTP response.
func StatusCodeOf(err error) int {
	var oe *OrdiscanError
	if errors.As(err, &oe) {
		return oe.StatusCode
	}
	return 0
}
