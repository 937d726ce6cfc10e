// Package inputval validates JSON request bodies using go-playground/validator.
//
// Define a request struct with validate tags and optional label tags, then
// call Validate to get user-friendly error messages keyed by JSON field name.
//
// Example:
//
//	type LoginInput struct {
//	    Email    string `json:"email" validate:"required,email" label:"Email"`
//	    Password string `json:"password" validate:"required" label:"Password"`
//	}
//
//	if res := inputval.Validate(input); res.HasErrors() {
//	    apierr.Write(w, res.Err())
//	    return
//	}
package inputval

import (
	"errors"
	"net/mail"
	"reflect"
	"strings"
	"sync"

	"github.com/projectgoat/projectgoat/internal/app/system/apierr"
	"github.com/projectgoat/projectgoat/internal/domain/models"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Result holds validation results with user-friendly messages.
type Result struct {
	Errors []FieldError
}

// FieldError represents a validation error for a single field.
type FieldError struct {
	Field   string
	Label   string
	Message string
}

// HasErrors returns true if there are any validation errors.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// First returns the first error message, or empty string if no errors.
func (r *Result) First() string {
	if len(r.Errors) > 0 {
		return r.Errors[0].Message
	}
	return ""
}

// All returns all error messages joined with "; ".
func (r *Result) All() string {
	if len(r.Errors) == 0 {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// Err converts the result into an API error carrying per-field messages,
// or nil when there are no errors.
func (r *Result) Err() error {
	if !r.HasErrors() {
		return nil
	}
	fields := make(map[string]any, len(r.Errors))
	for _, e := range r.Errors {
		if _, seen := fields[e.Field]; !seen {
			fields[e.Field] = e.Message
		}
	}
	return apierr.New(apierr.CodeValidation, r.First()).WithField("fields", fields)
}

var (
	v    *validator.Validate
	once sync.Once
)

// getValidator returns the singleton validator with custom rules and
// JSON-tag field naming registered.
func getValidator() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their JSON name so messages match the wire format.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})

		// role: membership role (admin, member, viewer)
		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return models.IsValidRole(fl.Field().String())
		})

		// objectid: Mongo ObjectID hex string
		_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
			return IsValidObjectID(fl.Field().String())
		})
	})
	return v
}

// Validate validates a struct and returns a Result with user-friendly errors.
// The struct should have `validate` tags for rules and optional `label` tags
// for display names; without a label the JSON field name is used.
//
// Rules beyond the validator/v10 built-ins (required, email, min, max,
// oneof, ...):
//   - role: field must be a valid membership role (admin, member, viewer)
//   - objectid: field must be a valid Mongo ObjectID hex string
func Validate(s any) *Result {
	result := &Result{}

	err := getValidator().Struct(s)
	if err == nil {
		return result
	}

	labels := getFieldLabels(s)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			field := fe.Field()
			label := labels[field]
			if label == "" {
				label = field
			}
			result.Errors = append(result.Errors, FieldError{
				Field:   field,
				Label:   label,
				Message: formatMessage(label, fe.Tag(), fe.Param()),
			})
		}
		return result
	}

	// Non-field error (invalid input type). Surface it as a single error.
	result.Errors = append(result.Errors, FieldError{Message: "invalid input"})
	return result
}

// getFieldLabels extracts the "label" tag from struct fields, keyed by the
// JSON field name.
func getFieldLabels(s any) map[string]string {
	labels := make(map[string]string)

	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return labels
	}

	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		fieldName := field.Name
		if jsonTag := field.Tag.Get("json"); jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" && parts[0] != "-" {
				fieldName = parts[0]
			}
		}

		if label := field.Tag.Get("label"); label != "" {
			labels[fieldName] = label
		}
	}

	return labels
}

// formatMessage creates a user-friendly message for a validation rule.
func formatMessage(label, rule, param string) string {
	switch rule {
	case "required":
		return label + " is required."
	case "email":
		return "A valid email address is required."
	case "oneof":
		return label + " must be one of: " + strings.ReplaceAll(param, " ", ", ") + "."
	case "min":
		return label + " must be at least " + param + " characters."
	case "max":
		return label + " must be at most " + param + " characters."
	case "role":
		return label + " must be one of: " + strings.Join(models.AllRoles(), ", ") + "."
	case "objectid":
		return label + " is not a valid ID."
	default:
		return label + " is invalid."
	}
}

// IsValidEmail checks if the given string has a valid email format.
//
// Uses net/mail.ParseAddress for RFC 5322 compliant validation, then
// verifies the parsed address matches the input (ParseAddress also accepts
// "Name <email>" forms).
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email
}

// IsValidObjectID checks if the given string is a valid Mongo ObjectID hex.
func IsValidObjectID(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}
