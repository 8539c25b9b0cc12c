// Package validation checks workflow inputs before anything is read or written.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"chat-backend/internal/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct validates s using its `validate` tags.
func Struct(s any) error {
	return translate(validate.Struct(s))
}

// Email checks that v is a syntactically valid address.
func Email(field, v string) error {
	return Var(field, v, "required,email")
}

// ID checks that v is an identifier issued by the store.
func ID(field, v string) error {
	return Var(field, v, "required,uuid4")
}

// Var validates a single value against tag.
func Var(field string, v any, tag string) error {
	if err := validate.Var(v, tag); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperr.Validation(fmt.Sprintf("%s %s", field, describe(verrs[0])))
		}
		return apperr.Validation(fmt.Sprintf("%s is invalid", field))
	}
	return nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s %s", lowerFirst(fe.Field()), describe(fe)))
	}
	return apperr.Validation(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "uuid4":
		return "must be a valid id"
	case "oneof":
		return "must be one of " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
