package ats

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return strings.ToLower(field.Name)
		}
		return name
	})
	return v
}

// validateParams turns the first failed rule into a ValidationError.
func (c *Client) validateParams(params any) error {
	err := c.validate.Struct(params)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}

	first := errs[0]
	value := fmt.Sprintf("%v", first.Value())

	return &ValidationError{
		Kind:    InvalidParams,
		Field:   first.Field(),
		Value:   value,
		Message: fmt.Sprintf("invalid %s %q: failed on '%s' tag", first.Field(), value, first.Tag()),
	}
}
