package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mikepea/kbase/pkg/kbase/catalog"
)

// ErrUnauthorized matches any 401 answer from the backend.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx backend answer.
type APIError struct {
	StatusCode int
	// Message is the backend's error text, or the status text when the body
	// carried none.
	Message string
	Field   string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%d %s (field %s)", e.StatusCode, e.Message, e.Field)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

// Is matches another *APIError with the same status code.
func (e *APIError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*APIError)
	if !ok || t == nil {
		return false
	}
	return e.StatusCode == t.StatusCode
}

// Unwrap exposes ErrUnauthorized for 401 and catalog.ErrNotFound for 404.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return catalog.ErrNotFound
	}
	return nil
}

var _ interface {
	Error() string
	Is(target error) bool
	Unwrap() error
} = (*APIError)(nil)
