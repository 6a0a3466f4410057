package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	mineerrors "github.com/randalmurphal/seqmine/pkg/seqmine/errors"
)

const tagSupportRequired = "required_unless_auto"

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func paramsValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their configuration key.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("koanf"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterStructValidation(validateSupport, Params{})
		validate = v
	})
	return validate
}

// validateSupport requires an explicit support threshold unless it is
// derived from the repetition floor.
func validateSupport(sl validator.StructLevel) {
	p := sl.Current().Interface().(Params)
	if !p.AutoSupport && p.MinSupport <= 0 {
		sl.ReportError(p.MinSupport, "min_support", "MinSupport", tagSupportRequired, "")
	}
}

// Validate checks every field and returns the violations as joined
// *errors.ConfigurationError values.
func (p Params) Validate() error {
	err := paramsValidator().Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate params: %w", err)
	}

	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, &mineerrors.ConfigurationError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Value:   fe.Value(),
			Message: message(fe),
		})
	}
	return errors.Join(errs...)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case tagSupportRequired:
		return "must be greater than 0 unless auto_support is set"
	default:
		return ""
	}
}
