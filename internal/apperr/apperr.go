// Package apperr holds the error kinds surfaced to users of a conversion.
// Every kind is terminal for the current submission and is never retried.
package apperr

import (
	"errors"
	"fmt"
)

// ConfigError reports missing or unusable process configuration, such as an
// absent inference credential.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// ValidationError reports user input that cannot be submitted as-is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ParseError reports an uploaded schema document that could not be decoded.
type ParseError struct {
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// InferenceFailure covers network errors, non-success statuses and malformed
// or empty bodies from the remote model.
type InferenceFailure struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *InferenceFailure) Error() string {
	msg := e.Message
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status=%d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *InferenceFailure) Unwrap() error {
	return e.Err
}

func Config(format string, args ...any) error {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func Parse(message string, err error) error {
	return &ParseError{Message: message, Err: err}
}

func Inference(message string, status int, err error) error {
	return &InferenceFailure{Message: message, StatusCode: status, Err: err}
}

// Kind returns a stable label for err, used by metrics and history records.
func Kind(err error) string {
	var (
		configErr     *ConfigError
		validationErr *ValidationError
		parseErr      *ParseError
		inferenceErr  *InferenceFailure
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &configErr):
		return "config"
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &inferenceErr):
		return "inference"
	default:
		return "internal"
	}
}
