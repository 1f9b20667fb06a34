package handler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	playground "github.com/go-playground/validator/v10"
)

// validator checks request structs and reports failures by their JSON names.
type validator struct {
	v *playground.Validate
}

func newValidator() *validator {
	v := playground.New(playground.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// pagesize accepts positive sizes and -1 for "everything".
	_ = v.RegisterValidation("pagesize", func(fl playground.FieldLevel) bool {
		n := fl.Field().Int()
		return n == -1 || n >= 1
	})

	return &validator{v: v}
}

// Struct validates s and returns a *ValidationError listing every failed
// field, or nil.
func (va *validator) Struct(s any) error {
	err := va.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Wrap(err, "validate")
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{
			Field: fe.Field(),
			Error: validationMessage(fe),
		})
	}
	return out
}

func validationMessage(e playground.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", e.Field())
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long", e.Field(), e.Param())
		}
		return fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters long", e.Field(), e.Param())
		}
		return fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
	case "pagesize":
		return fmt.Sprintf("%s must be at least 1, or -1 for all items", e.Field())
	default:
		return fmt.Sprintf("%s is invalid", e.Field())
	}
}
