// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrEmptySeries      = errors.New("insufficient data: empty series")
	ErrUnknownIndicator = errors.New("unknown indicator")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrCryptoNotFound   = errors.New("crypto not found")
	ErrDataNotFound     = errors.New("data not found")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrDatabaseError    = errors.New("database error")
	ErrUpstream         = errors.New("upstream request failed")
	ErrRateLimited      = errors.New("rate limited")
	ErrInputValidation  = errors.New("input validation failed")
)

// DataError represents a data-related error.
type DataError struct {
	DataType string
	CryptoID string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.CryptoID, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.CryptoID, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, cryptoID, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		CryptoID: cryptoID,
		Message:  message,
		Err:      err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// APIError represents a failed call to the market data API.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api error [%s] %d: %s: %v", e.Endpoint, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("api error [%s] %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUpstream
}

// NewAPIError creates a new APIError.
func NewAPIError(endpoint string, statusCode int, message string, err error) *APIError {
	return &APIError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
