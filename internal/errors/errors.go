// Package errors provides unified error handling for the audio pipeline.
package errors

import "fmt"

// Code classifies pipeline failures.
type Code int

const (
	Unknown Code = iota
	Internal
	InvalidArgument
	Timeout
	Cancelled
	ConfigInvalid

	// TranscriptionUnavailable means the transcription collaborator could
	// not be reached or loaded.
	TranscriptionUnavailable

	// DiarizationUnavailable means the diarization collaborator could not
	// be reached or loaded.
	DiarizationUnavailable

	// AudioFormatInvalid means chunk extraction failed, e.g. mismatched
	// channel or sample-format assumptions.
	AudioFormatInvalid

	// ProcessingFailed is the catch-all for a chunk pipeline failure.
	ProcessingFailed
)

var codeNames = map[Code]string{
	Unknown:                  "UNKNOWN",
	Internal:                 "INTERNAL",
	InvalidArgument:          "INVALID_ARGUMENT",
	Timeout:                  "TIMEOUT",
	Cancelled:                "CANCELLED",
	ConfigInvalid:            "CONFIG_INVALID",
	TranscriptionUnavailable: "TRANSCRIPTION_UNAVAILABLE",
	DiarizationUnavailable:   "DIARIZATION_UNAVAILABLE",
	AudioFormatInvalid:       "AUDIO_FORMAT_INVALID",
	ProcessingFailed:         "PROCESSING_FAILED",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the error code, or Unknown for foreign errors.
func CodeOf(err error) Code {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return Unknown
}

// IsRetryable returns true if the error is potentially retryable.
// A collaborator being unreachable or slow is transient; malformed audio
// and invalid configuration are not.
func IsRetryable(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case TranscriptionUnavailable, DiarizationUnavailable, Timeout:
		return true
	default:
		return false
	}
}
