package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator. Field names in errors use the json tag.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// apiError is the body of an error response.
type apiError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// validateStruct validates v and converts failures into a VALIDATION_ERROR.
func validateStruct(v any) *apiError {
	return toValidationError(getValidator().Struct(v))
}

// validateVar validates a single value, reported under field.
func validateVar(field string, v any, tag string) *apiError {
	apiErr := toValidationError(getValidator().Var(v, tag))
	if apiErr != nil {
		apiErr.Message = field + ": " + apiErr.Message
		apiErr.Details["field"] = field
	}
	return apiErr
}

func toValidationError(err error) *apiError {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &apiError{Code: "VALIDATION_ERROR", Message: err.Error(), Details: map[string]any{}}
	}

	fields := make([]map[string]any, len(fieldErrs))
	messages := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		msg := fieldMessage(fe)
		fields[i] = map[string]any{"field": fe.Field(), "tag": fe.Tag(), "message": msg}
		messages[i] = msg
	}
	details := map[string]any{"fields": fields}
	if len(fieldErrs) == 1 {
		details = map[string]any{"field": fieldErrs[0].Field(), "tag": fieldErrs[0].Tag(), "value": fieldErrs[0].Value()}
	}
	return &apiError{Code: "VALIDATION_ERROR", Message: strings.Join(messages, "; "), Details: details}
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		name = "value"
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
	}
}
