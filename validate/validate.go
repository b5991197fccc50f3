// Package validate runs struct-tag validation and converts failures into
// apperr.Fields keyed by the json name of each field.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"careregistry/apperr"
)

var v *validator.Validate

func init() {
	v = validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	v.RegisterValidation("notfuture", notFuture)
}

// Struct validates s and returns apperr.Fields on failure.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	fields := make(apperr.Fields, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = message(fe)
	}
	return fields
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "enter a valid email address"
	case "oneof":
		return "must be one of " + fe.Param()
	case "max":
		return "ensure this field has no more than " + fe.Param() + " characters"
	case "min":
		if fe.Kind() == reflect.String {
			return "ensure this field has at least " + fe.Param() + " characters"
		}
		return "ensure this value is greater than or equal to " + fe.Param()
	case "gte":
		return "ensure this value is greater than or equal to " + fe.Param()
	case "uuid":
		return "must be a valid id"
	case "notfuture":
		return "date cannot be in the future"
	default:
		return "invalid value"
	}
}

func notFuture(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	return !t.After(time.Now())
}
