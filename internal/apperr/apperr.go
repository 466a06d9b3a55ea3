// Package apperr holds the error kinds shared by every pharmacy component.
// Services wrap them with context; the HTTP layer maps them to status codes.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrExpiredBatch      = errors.New("batch is expired")
	ErrIllegalTransition = errors.New("illegal state transition")
)

// FieldError is a validation failure attached to a single input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}

	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a FieldError with a formatted message.
func Invalid(field, format string, args ...any) error {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// FieldErrors collects several field failures reported together.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}

	return strings.Join(parts, "; ")
}

func (e FieldErrors) Is(target error) bool {
	return target == ErrValidation
}

// Fields extracts field-level messages from err, if it carries any.
func Fields(err error) map[string]string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return map[string]string{fe.Field: fe.Message}
	}

	var fes FieldErrors
	if errors.As(err, &fes) {
		return fes
	}

	return nil
}

// Prefix nests the field names carried by err under prefix, e.g. "items[2]".
// Errors without field information are returned unchanged.
func Prefix(err error, prefix string) error {
	var fe *FieldError
	if errors.As(err, &fe) {
		return &FieldError{Field: join(prefix, fe.Field), Message: fe.Message}
	}

	var fes FieldErrors
	if errors.As(err, &fes) {
		out := make(FieldErrors, len(fes))
		for k, v := range fes {
			out[join(prefix, k)] = v
		}

		return out
	}

	return err
}

func join(prefix, field string) string {
	if field == "" {
		return prefix
	}

	return prefix + "." + field
}

// NotFound wraps ErrNotFound with the kind of record that is missing.
func NotFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

// Conflict wraps ErrConflict with a description of the clashing value.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}
