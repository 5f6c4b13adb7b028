package tts

import (
	"errors"
	"fmt"
)

// Common synthesis errors. A *TTSError matches the sentinel for its code
// via errors.Is.
var (
	// ErrPiperNotFound indicates the piper executable could not be resolved.
	ErrPiperNotFound = errors.New("piper executable not found")

	// ErrModelNotFound indicates the configured voice model is missing.
	ErrModelNotFound = errors.New("piper voice model not found")

	// ErrEmptyText indicates there was nothing to speak.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrSynthesisFailed indicates piper ran but did not produce audio.
	ErrSynthesisFailed = errors.New("text synthesis failed")

	// ErrTimeout indicates synthesis did not finish in time.
	ErrTimeout = errors.New("synthesis timed out")

	// ErrCanceled indicates the caller canceled synthesis.
	ErrCanceled = errors.New("synthesis canceled")
)

// ErrorCode identifies specific error types.
type ErrorCode string

const (
	ErrorCodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	ErrorCodeModelMissing      ErrorCode = "MODEL_MISSING"
	ErrorCodeEngineFailure     ErrorCode = "ENGINE_FAILURE"
	ErrorCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrorCodeTimeout           ErrorCode = "TIMEOUT"
	ErrorCodeCanceled          ErrorCode = "CANCELED"
)

// TTSError represents a synthesis error with additional context.
type TTSError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// NewTTSError creates a new TTS error.
func NewTTSError(code ErrorCode, message string, cause error) *TTSError {
	return &TTSError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Error implements the error interface.
func (e *TTSError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *TTSError) Unwrap() error {
	return e.Cause
}

// Is maps the error code to its sentinel.
func (e *TTSError) Is(target error) bool {
	switch e.Code {
	case ErrorCodeEngineUnavailable:
		return target == ErrPiperNotFound
	case ErrorCodeModelMissing:
		return target == ErrModelNotFound
	case ErrorCodeEngineFailure:
		return target == ErrSynthesisFailed
	case ErrorCodeInvalidInput:
		return target == ErrEmptyText
	case ErrorCodeTimeout:
		return target == ErrTimeout
	case ErrorCodeCanceled:
		return target == ErrCanceled
	default:
		return false
	}
}

// WithContext adds context to the error.
func (e *TTSError) WithContext(key string, value interface{}) *TTSError {
	e.Context[key] = value
	return e
}

// IsRetryable returns true if the operation can be retried.
func (e *TTSError) IsRetryable() bool {
	return e.Code == ErrorCodeTimeout
}

// Guidance returns setup instructions for errors the user can fix, or an
// empty string.
func Guidance(err error) string {
	switch {
	case errors.Is(err, ErrPiperNotFound):
		return piperInstallGuidance
	case errors.Is(err, ErrModelNotFound):
		return piperModelGuidance
	default:
		return ""
	}
}

const piperInstallGuidance = `Piper is not installed. To install:

1. Download a release from https://github.com/rhasspy/piper/releases
2. Extract it and put the piper binary on your PATH, or set piper.binary
   in the readaloud config file.`

const piperModelGuidance = `No Piper voice model is configured. To configure:

1. Download a voice from https://github.com/rhasspy/piper/blob/master/VOICES.md
   (both the .onnx file and its .onnx.json config).
2. Put them in piper.voices_dir and set piper.model to the .onnx path,
   or run "readaloud voices" to see what is installed.`
