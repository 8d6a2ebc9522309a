// Package validator validates decoded request payloads using struct tags.
//
// It wraps github.com/go-playground/validator/v10 and reports failures as
// ValidationErrors keyed by the JSON field name, which serialize cleanly into
// an error response body.
//
//	type SignUp struct {
//	    Email string `json:"email" validate:"required,email"`
//	    Name  string `json:"name" validate:"required,min=2"`
//	}
//
//	v := validator.New()
//	if err := v.Validate(in); err != nil {
//	    var verrs validator.ValidationErrors
//	    errors.As(err, &verrs)
//	}
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

// ValidationError describes one failed rule.
type ValidationError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, ve := range e {
		parts = append(parts, ve.Field+" "+ve.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether the given field has at least one error.
func (e ValidationErrors) Has(field string) bool {
	for _, ve := range e {
		if ve.Field == field {
			return true
		}
	}
	return false
}

// Validator validates structs. It is safe for concurrent use.
type Validator struct {
	v *playground.Validate
}

// New creates a Validator that reports fields by their json names.
func New() *Validator {
	v := playground.New(playground.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return &Validator{v: v}
}

// RegisterRule adds a custom validation rule usable in `validate` tags.
func (v *Validator) RegisterRule(tag string, fn func(value any, param string) bool) error {
	return v.v.RegisterValidation(tag, func(fl playground.FieldLevel) bool {
		return fn(fl.Field().Interface(), fl.Param())
	})
}

// Validate checks s against its `validate` tags.
// Values that are not structs (or pointers to structs) are accepted as-is.
func (v *Validator) Validate(s any) error {
	rv := reflect.ValueOf(s)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fieldPath(fe),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: message(fe.Tag(), fe.Param()),
		})
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe playground.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(tag, param string) string {
	switch tag {
	case "required", "required_if", "required_with", "required_without":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url", "http_url":
		return "must be a valid URL"
	case "uuid", "uuid4", "uuid7":
		return "must be a valid UUID"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", param)
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", param)
	case "gt":
		return fmt.Sprintf("must be greater than %s", param)
	case "lt":
		return fmt.Sprintf("must be less than %s", param)
	case "len":
		return fmt.Sprintf("must have length %s", param)
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", param)
	}
	return fmt.Sprintf("failed the %q rule", tag)
}
