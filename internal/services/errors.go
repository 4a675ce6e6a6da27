package services

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrExtractionUnavailable = errors.New("document extraction is not configured")
	ErrExtractionFailed      = errors.New("document extraction failed")
	ErrDispatchFailed        = errors.New("legal dispatch failed")
)
