package utils

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ProcessValidationErrors maps each failing field to the tag it failed.
// Errors that are not validator.ValidationErrors yield nil.
func ProcessValidationErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	errorResponse := make(map[string]string, len(validationErrors))
	for _, ve := range validationErrors {
		tag := ve.Tag()
		if ve.Param() != "" {
			tag += "=" + ve.Param()
		}
		errorResponse[ve.Field()] = tag
	}
	return errorResponse
}

// ValidationMessage renders err as "field: tag" pairs in field order, or the
// plain error text for anything that is not a validation failure.
func ValidationMessage(err error) string {
	fields := ProcessValidationErrors(err)
	if fields == nil {
		return err.Error()
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, fields[name]))
	}
	return strings.Join(parts, "; ")
}
