// internal/domain/validate.go
package domain

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if err := v.RegisterValidation("setkind", func(fl validator.FieldLevel) bool {
		return SetKind(fl.Field().String()).Valid()
	}); err != nil {
		panic(fmt.Sprintf("domain: failed to register 'setkind' validation: %v", err))
	}
	// NaN and the infinities cannot be encoded as JSON.
	if err := v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	}); err != nil {
		panic(fmt.Sprintf("domain: failed to register 'finite' validation: %v", err))
	}
	return v
}

// ErrValidation is matched by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError describes a payload rejected before any write happens.
type ValidationError struct {
	Fields []string // json paths of the offending fields, e.g. "exercises[0].sets[1].rpe"
	Msg    string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Msg
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError without field information.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Validate checks v against its `validate` struct tags.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	ve := &ValidationError{}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		path := fieldPath(fe.Namespace())
		ve.Fields = append(ve.Fields, path)
		msgs = append(msgs, fmt.Sprintf("%s failed '%s'", path, fe.Tag()))
	}
	ve.Msg = strings.Join(msgs, "; ")
	return ve
}

// fieldPath strips the leading struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
