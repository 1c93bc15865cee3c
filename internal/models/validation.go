// Package models defines the persisted entities and their constructors. A
// constructor returns a *ValidationError when its input cannot produce a
// well-formed entity; anything it returns nil-error is safe to persist.
package models

import "fmt"

// ValidationError reports a malformed field on entity construction.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
