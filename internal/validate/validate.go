// Package validate wraps go-playground/validator with a stable error shape
// shared by the service layer and the HTTP handlers.
package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

func (e FieldError) String() string {
	if e.Param != "" {
		return fmt.Sprintf("%s failed %s=%s", e.Field, e.Tag, e.Param)
	}
	return fmt.Sprintf("%s failed %s", e.Field, e.Tag)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct validates data against its struct tags. A nil return means valid.
func Struct(data any) []FieldError {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "input", Tag: "invalid"}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, ve := range verrs {
		out = append(out, FieldError{
			Field: ve.StructNamespace(),
			Tag:   ve.Tag(),
			Param: ve.Param(),
		})
	}
	return out
}

// Describe renders field errors as a single human-readable message.
func Describe(errs []FieldError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.String()
	}
	return strings.Join(parts, "; ")
}
