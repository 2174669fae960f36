package http

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "cryptorecs/internal/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields under their wire names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"query", "param"} {
			if name := f.Tag.Get(tag); name != "" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// validateRequest checks req and converts the first failure into a 400
func validateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.ErrInvalidRequest
	}
	fe := fieldErrs[0]
	if fe.Tag() == "required" {
		return apperrors.MissingParameter(fe.Field())
	}
	return apperrors.InvalidParameter(fe.Field(), expectation(fe), fe)
}

func expectation(fe validator.FieldError) string {
	switch fe.Tag() {
	case "datetime":
		return fmt.Sprintf("format %q", fe.Param())
	case "oneof":
		return "one of " + fe.Param()
	case "max":
		return "at most " + fe.Param()
	case "min":
		return "at least " + fe.Param()
	default:
		return fe.Tag()
	}
}

// parseUTC parses a value already accepted by validateRequest
func parseUTC(layout, value string) (time.Time, error) {
	return time.ParseInLocation(layout, value, time.UTC)
}

// queryInt reads an optional integer query parameter
func queryInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.InvalidParameter(name, "an integer", err)
	}
	return n, nil
}
