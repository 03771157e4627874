package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is matched by every validation failure
var ErrInvalid = errors.New("invalid input")

// LoginForm holds the login fields
type LoginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

// RegisterForm holds the registration and password reset fields
type RegisterForm struct {
	Email           string `form:"email" validate:"required,email"`
	Code            string `form:"code" validate:"required,min=4,max=6"`
	Password        string `form:"password" validate:"required,min=8,max=32,password"`
	ConfirmPassword string `form:"confirm-password" validate:"required,eqfield=Password"`
}

// SendCodeForm holds the address a verification code is sent to
type SendCodeForm struct {
	Email string `form:"email" validate:"required,email"`
}

// CreateURLForm holds the fields for a new short link. Duration is in hours.
type CreateURLForm struct {
	OriginalURL string `form:"url" validate:"required,http_url"`
	CustomCode  string `form:"code" validate:"omitempty,min=4,max=10,alphanum"`
	Duration    *int   `form:"duration" validate:"omitempty,min=1,max=100"`
}

// UpdateExpiryForm holds a new expiry for a link
type UpdateExpiryForm struct {
	ExpiresAt time.Time `form:"expiry" validate:"required,future"`
}

// Error lists the failing fields with a message for each
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

// Validator checks forms before any request is sent
type Validator struct {
	Now      func() time.Time
	validate *validator.Validate
}

// New creates a validator with the password and future rules registered
func New() *Validator {
	v := &Validator{Now: time.Now}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name := field.Tag.Get("form"); name != "" {
			return name
		}
		return field.Name
	})
	validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return strongPassword(fl.Field().String())
	})
	validate.RegisterValidation("future", func(fl validator.FieldLevel) bool {
		at, ok := fl.Field().Interface().(time.Time)
		return ok && at.After(v.Now())
	})

	v.validate = validate
	return v
}

// Validate trims string fields in place and checks form, which must be a
// pointer to one of the form structs
func (v *Validator) Validate(form any) error {
	trimStrings(form)

	err := v.validate.Struct(form)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate form: %w", err)
	}

	out := &Error{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		if _, seen := out.Fields[fe.Field()]; !seen {
			out.Fields[fe.Field()] = message(fe)
		}
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "http_url":
		return "must be a valid http or https URL"
	case "alphanum":
		return "may only contain letters and digits"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "password":
		return "must mix upper and lower case letters and digits, and contain nothing else"
	case "eqfield":
		return "does not match the password"
	case "future":
		return "must be in the future"
	default:
		return "is invalid"
	}
}

// strongPassword requires at least one lower case letter, one upper case
// letter and one digit, and nothing but ASCII letters and digits
func strongPassword(s string) bool {
	var lower, upper, digit bool
	for _, r := range s {
		switch {
		case r > unicode.MaxASCII:
			return false
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			return false
		}
	}
	return lower && upper && digit
}

func trimStrings(form any) {
	rv := reflect.ValueOf(form)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if f.Kind() == reflect.String && f.CanSet() {
			f.SetString(strings.TrimSpace(f.String()))
		}
	}
}
