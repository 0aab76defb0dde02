package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Domain error sentinel values used throughout the application
var (
	ErrInvalidAudio        = errors.New("invalid audio input")
	ErrExtractionFailed    = errors.New("feature extraction failed")
	ErrInsufficientSamples = errors.New("insufficient enrollment samples")
	ErrSignatureNotFound   = errors.New("voice signature not found")
	ErrDimensionMismatch   = errors.New("embedding dimension mismatch")
)

// Error represents a structured error with source location and additional context
type Error struct {
	// original is the underlying error
	original error

	// message is the error message
	message string

	// fields contains contextual information
	fields map[string]interface{}

	// file and line record where the error was created
	file string
	line int

	// Code is an optional error code for categorization
	Code string
}

// New creates a new structured error with the given message
func New(message string, fields ...map[string]interface{}) *Error {
	_, file, line, _ := runtime.Caller(1)

	return &Error{
		original: errors.New(message),
		message:  message,
		fields:   firstFieldMap(fields),
		file:     file,
		line:     line,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, message string, fields ...map[string]interface{}) *Error {
	if err == nil {
		return nil
	}

	_, file, line, _ := runtime.Caller(1)

	return &Error{
		original: err,
		message:  message,
		fields:   firstFieldMap(fields),
		file:     file,
		line:     line,
	}
}

// WithField adds a single field to the error context
func (e *Error) WithField(key string, value interface{}) *Error {
	if e == nil {
		return nil
	}

	result := e.clone()
	result.fields[key] = value
	return result
}

// WithFields adds multiple fields to the error context
func (e *Error) WithFields(fields map[string]interface{}) *Error {
	if e == nil {
		return nil
	}

	result := e.clone()
	for k, v := range fields {
		result.fields[k] = v
	}
	return result
}

// WithCode adds an error code to the error
func (e *Error) WithCode(code string) *Error {
	if e == nil {
		return nil
	}

	result := e.clone()
	result.Code = code
	return result
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil || e.original == nil {
		return ""
	}

	if e.message == "" {
		return e.original.Error()
	}

	// New stores the message as its own original; render it once
	if e.message == e.original.Error() {
		return e.message
	}

	return fmt.Sprintf("%s: %v", e.message, e.original)
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.original
}

// Location returns the file:line where the error was created
func (e *Error) Location() string {
	if e == nil {
		return ""
	}

	parts := strings.Split(e.file, "/")
	filename := parts[len(parts)-1]

	return fmt.Sprintf("%s:%d", filename, e.line)
}

// GetFields returns the error's context fields
func (e *Error) GetFields() map[string]interface{} {
	if e == nil {
		return nil
	}
	return e.fields
}

// Is reports whether any error in err's tree matches target.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}

	if errors.Is(e.original, target) {
		return true
	}

	return e == target
}

func (e *Error) clone() *Error {
	result := &Error{
		original: e.original,
		message:  e.message,
		fields:   make(map[string]interface{}, len(e.fields)+1),
		file:     e.file,
		line:     e.line,
		Code:     e.Code,
	}
	for k, v := range e.fields {
		result.fields[k] = v
	}
	return result
}

func firstFieldMap(fields []map[string]interface{}) map[string]interface{} {
	if len(fields) > 0 && fields[0] != nil {
		return fields[0]
	}
	return make(map[string]interface{})
}

// NewInvalidAudio creates a new ErrInvalidAudio error with additional context
func NewInvalidAudio(details string, fields ...map[string]interface{}) *Error {
	_, file, line, _ := runtime.Caller(1)

	return &Error{
		original: ErrInvalidAudio,
		message:  fmt.Sprintf("invalid audio input: %s", details),
		fields:   firstFieldMap(fields),
		file:     file,
		line:     line,
		Code:     "INVALID_AUDIO",
	}
}

// NewInsufficientSamples creates a new ErrInsufficientSamples error carrying
// the provided and required sample counts
func NewInsufficientSamples(got, required int) *Error {
	_, file, line, _ := runtime.Caller(1)

	return &Error{
		original: ErrInsufficientSamples,
		message:  fmt.Sprintf("enrollment requires at least %d samples, got %d", required, got),
		fields:   map[string]interface{}{"samples": got, "required": required},
		file:     file,
		line:     line,
		Code:     "INSUFFICIENT_SAMPLES",
	}
}

// NewSignatureNotFound creates a new ErrSignatureNotFound with additional context
func NewSignatureNotFound(signatureID string) *Error {
	_, file, line, _ := runtime.Caller(1)

	return &Error{
		original: ErrSignatureNotFound,
		message:  fmt.Sprintf("voice signature not found: %s", signatureID),
		fields:   map[string]interface{}{"signature_id": signatureID},
		file:     file,
		line:     line,
		Code:     "SIGNATURE_NOT_FOUND",
	}
}

// NewExtractionFailed creates a new ErrExtractionFailed with additional context.
// Extraction failures are absorbed by the feature extractor via documented
// defaults; this error is for logging, not for surfacing to callers.
func NewExtractionFailed(feature string, cause error) *Error {
	_, file, line, _ := runtime.Caller(1)

	original := ErrExtractionFailed
	if cause != nil {
		original = cause
	}

	return &Error{
		original: original,
		message:  fmt.Sprintf("could not compute %s", feature),
		fields:   map[string]interface{}{"feature": feature},
		file:     file,
		line:     line,
		Code:     "EXTRACTION_FAILED",
	}
}

// IsErrorType checks if an error is of a specific error type
func IsErrorType(err, target error) bool {
	return errors.Is(err, target)
}

// GetErrorCode extracts the error code from an error if it's a structured error
func GetErrorCode(err error) string {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Code
	}
	return ""
}
