// Package validation wraps go-playground/validator with the project's custom
// tags and converts failures into *domain.ValidationError keyed by JSON name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	govalidator "github.com/go-playground/validator/v10"

	"github.com/Clark-Hu/yamdb/internal/domain"
)

var (
	usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)
	slugPattern     = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)
)

// New returns a validator with the "username" and "slug" tags registered.
func New() *govalidator.Validate {
	v := govalidator.New(govalidator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("username", validateUsername)
	_ = v.RegisterValidation("slug", validateSlug)
	return v
}

// Username reports whether name is an acceptable username.
func Username(name string) bool {
	return usernamePattern.MatchString(name) && !domain.IsReservedUsername(name)
}

func validateUsername(fl govalidator.FieldLevel) bool {
	return Username(fl.Field().String())
}

func validateSlug(fl govalidator.FieldLevel) bool {
	return slugPattern.MatchString(fl.Field().String())
}

// Struct validates obj and returns a *domain.ValidationError describing every
// failing field, or nil.
func Struct(v *govalidator.Validate, obj any) error {
	err := v.Struct(obj)
	if err == nil {
		return nil
	}
	var verrs govalidator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = message(fe)
	}
	return &domain.ValidationError{Fields: fields}
}

func message(fe govalidator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("Value should be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("Value should be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Value should be one of %s", fe.Param())
	case "email":
		return "Enter a valid email address"
	case "username":
		return `Letters, digits and @/./+/-/_ only; "me" is reserved`
	case "slug":
		return "Letters, digits, hyphens and underscores only"
	}
	return "This field is invalid"
}
