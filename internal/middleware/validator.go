package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/apperr"
	"github.com/go-playground/validator/v10"
)

// Validator plugs go-playground/validator into echo's c.Validate.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &apperr.ValidationError{Field: fe.Field(), Msg: describe(fe), Err: err}
	}
	return &apperr.ValidationError{Msg: err.Error(), Err: err}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be %s characters", fe.Param())
	case "gt", "gte", "lt", "lte", "max":
		return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}
