package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	maxBodyBytes   = 1 << 20
	amountDecimals = 4
)

var (
	ErrValidationFailed    = errors.New("validation failed")
	ErrFieldRequired       = errors.New("missing required field")
	ErrFieldPositiveAmount = errors.New("field must be a positive amount")
	ErrFieldOneOf          = errors.New("field has an unsupported value")
	ErrFieldMaxLength      = errors.New("field is too long")
	ErrMalformedBody       = errors.New("malformed JSON body")
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
	errValidate  error
)

func initValidators() (*validator.Validate, error) {
	vld := validator.New(validator.WithRequiredStructEnabled())

	if err := vld.RegisterValidation("positive_amount", func(fl validator.FieldLevel) bool {
		str := fl.Field().String()
		if str == "" {
			return true // required handles empty strings
		}

		d, err := decimal.NewFromString(str)
		if err != nil {
			return false
		}
		return d.IsPositive() && d.Equal(d.Truncate(amountDecimals))
	}); err != nil {
		return nil, fmt.Errorf("register positive_amount: %w", err)
	}

	return vld, nil
}

func getValidator() (*validator.Validate, error) {
	validateOnce.Do(func() {
		validate, errValidate = initValidators()
	})
	return validate, errValidate
}

var validationErrorFormatters = map[string]func(field, param string) error{
	"required": func(field, _ string) error {
		return fmt.Errorf("%w: '%s'", ErrFieldRequired, field)
	},
	"positive_amount": func(field, _ string) error {
		return fmt.Errorf("%w: '%s'", ErrFieldPositiveAmount, field)
	},
	"oneof": func(field, param string) error {
		return fmt.Errorf("%w: '%s' must be one of [%s]", ErrFieldOneOf, field, param)
	},
	"max": func(field, param string) error {
		return fmt.Errorf("%w: '%s' must be at most %s", ErrFieldMaxLength, field, param)
	},
}

// ValidateStruct returns the first failed rule as a readable error.
func ValidateStruct(payload any) error {
	vld, err := getValidator()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	if err := vld.Struct(payload); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			field := toSnakeCase(fe.Field())
			if format, ok := validationErrorFormatters[fe.Tag()]; ok {
				return format(field, fe.Param())
			}
			return fmt.Errorf("%w: '%s' failed '%s' check", ErrValidationFailed, field, fe.Tag())
		}
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	return nil
}

func decodeAndValidate(r *http.Request, payload any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return ValidateStruct(payload)
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
