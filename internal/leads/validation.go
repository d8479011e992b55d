package leads

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// leadValidate checks request structs. Closed sets are registered as custom tags
// so the struct definitions read like the schema.
var leadValidate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("property_type", enumTag(PropertyType.Valid))
	_ = v.RegisterValidation("budget_range", enumTag(BudgetRange.Valid))
	_ = v.RegisterValidation("locality", enumTag(Locality.Valid))
	_ = v.RegisterValidation("lead_source", enumTag(Source.Valid))
	_ = v.RegisterValidation("lead_status", enumTag(Status.Valid))
	_ = v.RegisterValidation("lead_priority", enumTag(Priority.Valid))
	return v
}

func enumTag[T ~string](valid func(T) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return valid(T(fl.Field().String()))
	}
}

// validateStruct runs the tag rules and reports the first failure as a ValidationError.
func validateStruct(s any) error {
	err := leadValidate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Reason: err.Error()}
	}
	fe := fieldErrs[0]
	return &ValidationError{Field: fe.Field(), Reason: reasonFor(fe)}
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "property_type", "budget_range", "locality", "lead_source", "lead_status", "lead_priority":
		return fmt.Sprintf("%q is not an allowed value", fe.Value())
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}

func validateStatus(s Status) error {
	if !s.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not an allowed value", s)}
	}
	return nil
}
