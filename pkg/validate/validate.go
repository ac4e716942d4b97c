package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/ShiraazMoollatjie/goluhn"
	"github.com/go-playground/validator/v10"
)

var ErrInvalid = errors.New("validation failed")

var v = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("destination", func(fl validator.FieldLevel) bool {
		return IsDestination(fl.Field().String())
	})
	return v
}

// Struct validates s against its `validate` tags. The returned error wraps ErrInvalid and
// names every failing field by its json name.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func IsLuna(s string) bool {
	err := goluhn.Validate(s)
	return err == nil
}

// IsDestination accepts an account reference. A purely numeric reference of card length is
// treated as a card number and must pass the Luhn check.
func IsDestination(s string) bool {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || len(s) > 64 {
		return false
	}
	if isDigits(s) && len(s) >= 12 && len(s) <= 19 {
		return IsLuna(s)
	}
	return true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
