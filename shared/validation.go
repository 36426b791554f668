package shared

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ValidationIssue describes one rejected field.
type ValidationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Tag     string `json:"tag"`
}

var upiPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+$`)

// IPODateLayouts are the accepted calendar date encodings, most specific first.
var IPODateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the process-wide validator with the domain tags registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
		mustRegister(validate, "upi", func(fl validator.FieldLevel) bool {
			return IsValidUPI(fl.Field().String())
		})
		mustRegister(validate, "ipodate", func(fl validator.FieldLevel) bool {
			_, err := ParseIPODate(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// mustRegister panics when a tag cannot be registered; every struct using it would
// otherwise fail validation at request time.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("registering %q validator: %v", tag, err))
	}
}

// ValidateStruct runs struct tags and converts failures into a ValidationError
// whose message names the first offending field.
func ValidateStruct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return NewValidationError("Invalid request")
	}

	issues := make([]ValidationIssue, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		issues = append(issues, ValidationIssue{
			Field:   fe.Field(),
			Message: issueMessage(fe),
			Tag:     fe.Tag(),
		})
	}

	return NewValidationError(issues[0].Message).WithDetails(issues)
}

func issueMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Invalid email format"
	case "upi":
		return "Invalid UPI ID format"
	case "ipodate":
		return fmt.Sprintf("%s must be a date (YYYY-MM-DD)", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// IsValidUPI reports whether s looks like localpart@handle.
func IsValidUPI(s string) bool {
	return upiPattern.MatchString(s)
}

// ParseIPODate parses a catalog date in any accepted layout.
func ParseIPODate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range IPODateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
