package kite

import (
	"errors"
	"fmt"
	"strings"
)

// APIError is a non-2xx response from the Kite Connect API.
type APIError struct {
	Status    int
	ErrorType string // e.g. TokenException, InputException, NetworkException
	Message   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kite: %s (%d): %s", e.ErrorType, e.Status, e.Message)
}

// ParseError is a broker payload that is missing a required field. Critical
// fields are validated up front instead of being silently defaulted.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("kite: invalid position payload: %s %s", e.Field, e.Reason)
}

// IsAuthError reports whether err means the session is expired or invalid.
// Retrying cannot help here; the caller has to re-authenticate.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorType == "TokenException" {
			return true
		}
		return strings.Contains(strings.ToLower(apiErr.Message), "token")
	}
	return false
}
