// Package httpx holds the request and response plumbing shared by the API handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
	"github.com/MrJamesThe3rd/pharmacy/internal/auth"
	"github.com/MrJamesThe3rd/pharmacy/internal/logging"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Decode reads a JSON body into dst and runs its validate tags.
func Decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("malformed JSON body: %v: %w", err, apperr.ErrValidation)
	}

	return Validate(dst)
}

// Validate checks dst's struct tags and reports failures by JSON field path.
func Validate(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return fmt.Errorf("validating request: %w", err)
	}

	fields := apperr.FieldErrors{}
	for _, ve := range ves {
		fields[fieldPath(ve.Namespace())] = message(ve)
	}

	return fields
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	_, rest, found := strings.Cut(ns, ".")
	if !found {
		return ns
	}

	return rest
}

func message(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return "is required when " + jsonName(ve.Param()) + " is missing"
	case "min":
		return "must be at least " + ve.Param()
	case "max":
		return "must be at most " + ve.Param()
	case "gte":
		return "must be greater than or equal to " + ve.Param()
	case "lte":
		return "must be less than or equal to " + ve.Param()
	case "gt":
		return "must be greater than " + ve.Param()
	case "oneof":
		return "must be one of " + ve.Param()
	case "email":
		return "must be a valid email address"
	case "numeric":
		return "must contain digits only"
	default:
		return "failed " + ve.Tag()
	}
}

// jsonName turns a Go field name such as InternationalBarcode into the
// snake_case name used on the wire.
func jsonName(field string) string {
	var b strings.Builder

	for i, r := range field {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}

			r = unicode.ToLower(r)
		}

		b.WriteRune(r)
	}

	return b.String()
}

// URLUUID parses a UUID path parameter.
func URLUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Invalid(name, "must be a UUID")
	}

	return id, nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		logrus.WithError(err).Error("failed to encode response")
	}
}

// Status maps an error to the HTTP status the API answers with.
func Status(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrExpiredBatch):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrInsufficientStock):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as a JSON error body. Internal errors are logged and hidden.
func Error(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	status := Status(err)

	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context(), log).WithError(err).Error("Request failed")
		WriteJSON(w, status, ErrorResponse{Error: "internal error"})

		return
	}

	resp := ErrorResponse{Error: err.Error(), Fields: apperr.Fields(err)}
	if len(resp.Fields) > 0 {
		resp.Error = apperr.ErrValidation.Error()
	}

	WriteJSON(w, status, resp)
}
