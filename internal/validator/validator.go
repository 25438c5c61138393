// Package validator holds the shared request validator and its custom rules.
package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var Validate *validator.Validate

var (
	nonBlank     = regexp.MustCompile(`\S`)
	currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)
)

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())

	// notblank: the string has at least one non-space character
	_ = Validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return nonBlank.MatchString(fl.Field().String())
	})

	// currency: upper-case ISO 4217 style code
	_ = Validate.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return currencyCode.MatchString(fl.Field().String())
	})

	// money: a decimal string greater than zero
	_ = Validate.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		return err == nil && d.IsPositive()
	})
}

// Struct validates s and flattens the first failure into a readable error
// naming the field and the rule it broke.
func Struct(s any) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &FieldError{Field: fe.Field(), Rule: fe.Tag()}
	}
	return err
}

// FieldError describes the first field that failed validation.
type FieldError struct {
	Field string
	Rule  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s failed %s validation", e.Field, e.Rule)
}
