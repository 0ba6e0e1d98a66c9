// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

// Package validation checks admin request bodies against their struct
// tags using go-playground/validator v10. Failures come back as
// classified validation errors carrying a per-field breakdown, ready
// for the shared error envelope.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/ostium/internal/gwerr"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// instance returns the shared validator. Struct reflection info is
// cached inside it, so a single instance serves all request types.
func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct checks s against its validate tags. It returns nil on
// success, or a validation-kind error whose message joins every failed
// field and whose details list each field with the rule it broke.
func ValidateStruct(s interface{}) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return gwerr.Wrap(gwerr.KindValidation, "invalid request body", err)
	}

	messages := make([]string, 0, len(verrs))
	fields := make([]map[string]interface{}, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, translate(fe))
		fields = append(fields, map[string]interface{}{
			"field": fieldName(fe),
			"rule":  fe.Tag(),
		})
	}

	return gwerr.New(gwerr.KindValidation, strings.Join(messages, "; ")).
		WithDetails(map[string]interface{}{"fields": fields})
}

// fieldName lowercases the leading character of the Go field name,
// which matches the snake-less json tags the admin request types use.
func fieldName(fe validator.FieldError) string {
	return strings.ToLower(fe.Field())
}

func translate(fe validator.FieldError) string {
	field := fieldName(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
