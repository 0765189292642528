package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/filevault/backend/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
}

// Struct checks v against its validate tags. extra carries failures found
// outside the tags (such as malformed optional ids) so one response lists
// every problem.
func Struct(v interface{}, extra ...utils.FieldError) error {
	details := append([]utils.FieldError{}, extra...)

	if err := validate.Struct(v); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return utils.ErrValidation.Wrap(err)
		}
		for _, e := range validationErrs {
			details = append(details, utils.FieldError{
				Field:   fieldPath(e),
				Message: message(e),
			})
		}
	}

	if len(details) == 0 {
		return nil
	}
	return utils.ErrValidation.WithDetails(details)
}

// ID parses a path or query identifier.
func ID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, utils.ErrValidation.WithDetails([]utils.FieldError{{
			Field:   field,
			Message: "must be a valid id",
		}})
	}
	return id, nil
}

// OptionalID distinguishes an absent JSON key from an explicit null.
// Set is false when the key is missing; Value is nil for null.
type OptionalID struct {
	Set   bool
	Value *uuid.UUID
	bad   bool
}

func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("id must be a string or null: %w", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		o.bad = true
		return nil
	}
	o.Value = &id
	return nil
}

// Check reports a field error when a present value is not a valid id.
func (o OptionalID) Check(field string) []utils.FieldError {
	if o.Set && o.bad {
		return []utils.FieldError{{Field: field, Message: "must be a valid id"}}
	}
	return nil
}

// OptionalIDFrom builds an OptionalID from a query parameter, where an empty
// string or "null" both mean root.
func OptionalIDFrom(raw string) OptionalID {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return OptionalID{Set: raw != ""}
	}
	o := OptionalID{Set: true}
	if id, err := uuid.Parse(raw); err == nil {
		o.Value = &id
	} else {
		o.bad = true
	}
	return o
}

func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return e.Field()
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_without":
		return "is required"
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", e.Param())
		}
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", e.Param())
		}
		return fmt.Sprintf("must be at most %s", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "email":
		return "must be a valid email address"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(e.Param(), " ", ", "))
	case "uuid", "uuid4":
		return "must be a valid id"
	default:
		return fmt.Sprintf("failed on '%s'", e.Tag())
	}
}
