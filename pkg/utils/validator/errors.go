package validator

import (
	"fmt"
	"strings"
)

// ValidationErrors represents a collection of validation errors.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string      `json:"field"`
	Tag     string      `json:"tag"`
	Value   interface{} `json:"value,omitempty"`
	Param   string      `json:"param,omitempty"`
	Message string      `json:"message"`
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Errors) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("validation failed: ")
	for i, fe := range v.Errors {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fe.Message)
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (v *ValidationErrors) HasErrors() bool {
	return v != nil && len(v.Errors) > 0
}

// First returns the first error message, or empty string if no errors.
func (v *ValidationErrors) First() string {
	if !v.HasErrors() {
		return ""
	}
	return v.Errors[0].Message
}

// FirstField returns the first error's field name, or empty string if no errors.
func (v *ValidationErrors) FirstField() string {
	if !v.HasErrors() {
		return ""
	}
	return v.Errors[0].Field
}

// ByField returns errors grouped by field name.
func (v *ValidationErrors) ByField() map[string][]string {
	if !v.HasErrors() {
		return nil
	}

	result := make(map[string][]string)
	for _, fe := range v.Errors {
		result[fe.Field] = append(result[fe.Field], fe.Message)
	}
	return result
}

// Format implements fmt.Formatter.
func (v *ValidationErrors) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v':
		if f.Flag('+') && v != nil {
			_, _ = fmt.Fprintf(f, "ValidationErrors(%d):\n", len(v.Errors))
			for i, fe := range v.Errors {
				_, _ = fmt.Fprintf(f, "  [%d] %s: %s (tag=%s", i, fe.Field, fe.Message, fe.Tag)
				if fe.Param != "" {
					_, _ = fmt.Fprintf(f, ", param=%s", fe.Param)
				}
				_, _ = fmt.Fprint(f, ")\n")
			}
			return
		}
		_, _ = fmt.Fprint(f, v.Error())
	case 's':
		_, _ = fmt.Fprint(f, v.Error())
	case 'q':
		_, _ = fmt.Fprintf(f, "%q", v.Error())
	}
}

// NewValidationError creates a new ValidationErrors with a single error.
func NewValidationError(field, tag, message string) *ValidationErrors {
	return &ValidationErrors{
		Errors: []FieldError{{Field: field, Tag: tag, Message: message}},
	}
}
