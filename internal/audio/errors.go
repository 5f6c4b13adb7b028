package audio

import (
	"errors"
	"fmt"
)

// Load-time media errors. An *Error matches the sentinel for its code via
// errors.Is.
var (
	// ErrFileOpen indicates the audio file could not be opened.
	ErrFileOpen = errors.New("audio file could not be opened")

	// ErrDecode indicates the audio file could not be decoded.
	ErrDecode = errors.New("audio file could not be decoded")

	// ErrDevice indicates no output device could be acquired.
	ErrDevice = errors.New("audio device unavailable")
)

// ErrorCode identifies the stage of a failed load.
type ErrorCode string

const (
	ErrorCodeFileOpen ErrorCode = "FILE_OPEN"
	ErrorCodeDecode   ErrorCode = "DECODE"
	ErrorCodeDevice   ErrorCode = "DEVICE"
)

// Error describes a failure to open, decode or route an audio file.
type Error struct {
	Code  ErrorCode
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Path, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Path)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for this error's code.
func (e *Error) Is(target error) bool {
	switch e.Code {
	case ErrorCodeFileOpen:
		return target == ErrFileOpen
	case ErrorCodeDecode:
		return target == ErrDecode
	case ErrorCodeDevice:
		return target == ErrDevice
	default:
		return false
	}
}

func newError(code ErrorCode, path string, cause error) *Error {
	return &Error{Code: code, Path: path, Cause: cause}
}
