package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors
type ErrorCode string

const (
	ErrCodeDecode              ErrorCode = "DECODE_ERROR"
	ErrCodeProcessing          ErrorCode = "PROCESSING_ERROR"
	ErrCodeEncodingUnavailable ErrorCode = "ENCODING_UNAVAILABLE"
	ErrCodeInvalidParameter    ErrorCode = "INVALID_PARAMETER"
	ErrCodeFFmpeg              ErrorCode = "FFMPEG_ERROR"
	ErrCodeIO                  ErrorCode = "IO_ERROR"
	ErrCodeBusy                ErrorCode = "BUSY"
)

// Sentinel conditions. Compare with errors.Is.
var (
	ErrNothingToProcess = NewProcessingError("input", "nothing to process", nil)
	ErrBusy             = &MasterForgeError{Code: ErrCodeBusy, Message: "a render is already in flight for this buffer"}
)

// MasterForgeError is the base structured error
type MasterForgeError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *MasterForgeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *MasterForgeError) Unwrap() error {
	return e.Cause
}

// ProcessingError reports a signal-chain or analysis failure
type ProcessingError struct {
	MasterForgeError
	Stage string
}

func NewProcessingError(stage, message string, cause error) *ProcessingError {
	return &ProcessingError{
		MasterForgeError: MasterForgeError{
			Code:    ErrCodeProcessing,
			Message: message,
			Cause:   cause,
		},
		Stage: stage,
	}
}

func (e *ProcessingError) Error() string {
	base := e.MasterForgeError.Error()
	return fmt.Sprintf("%s (stage=%s)", base, e.Stage)
}

// DecodeError reports an input file that could not be turned into PCM
type DecodeError struct {
	MasterForgeError
	Path string
}

func NewDecodeError(path, message string, cause error) *DecodeError {
	return &DecodeError{
		MasterForgeError: MasterForgeError{
			Code:    ErrCodeDecode,
			Message: message,
			Cause:   cause,
		},
		Path: path,
	}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s (path=%s)", e.MasterForgeError.Error(), e.Path)
}

// EncodingUnavailableError reports a missing encoder backend
type EncodingUnavailableError struct {
	MasterForgeError
	Format string
}

func NewEncodingUnavailableError(format string, cause error) *EncodingUnavailableError {
	return &EncodingUnavailableError{
		MasterForgeError: MasterForgeError{
			Code:    ErrCodeEncodingUnavailable,
			Message: fmt.Sprintf("%s encoder backend is not available", format),
			Cause:   cause,
		},
		Format: format,
	}
}

// FFmpegError represents an FFmpeg execution failure
type FFmpegError struct {
	MasterForgeError
	Args     []string
	ExitCode int
	Stderr   string
}

func NewFFmpegError(message string, args []string, exitCode int, stderr string, cause error) *FFmpegError {
	return &FFmpegError{
		MasterForgeError: MasterForgeError{
			Code:    ErrCodeFFmpeg,
			Message: message,
			Cause:   cause,
		},
		Args:     args,
		ExitCode: exitCode,
		Stderr:   stderr,
	}
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("[%s] %s (exit=%d, stderr=%q): %v",
		e.Code, e.Message, e.ExitCode, truncate(e.Stderr, 200), e.Cause)
}

// InvalidParameterError represents an out-of-contract value
type InvalidParameterError struct {
	MasterForgeError
	Field string
	Value interface{}
}

func NewInvalidParameterError(field string, value interface{}, message string) *InvalidParameterError {
	return &InvalidParameterError{
		MasterForgeError: MasterForgeError{
			Code:    ErrCodeInvalidParameter,
			Message: message,
		},
		Field: field,
		Value: value,
	}
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("[%s] field=%s value=%v: %s", e.Code, e.Field, e.Value, e.Message)
}

// NewIOError wraps a filesystem failure
func NewIOError(message string, cause error) *MasterForgeError {
	return &MasterForgeError{Code: ErrCodeIO, Message: message, Cause: cause}
}

// Code returns the code of the first MasterForge error in err's chain, or "".
func Code(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if e, ok := As[*ProcessingError](err); ok {
		return e.Code
	}
	if e, ok := As[*DecodeError](err); ok {
		return e.Code
	}
	if e, ok := As[*EncodingUnavailableError](err); ok {
		return e.Code
	}
	if e, ok := As[*FFmpegError](err); ok {
		return e.Code
	}
	if e, ok := As[*InvalidParameterError](err); ok {
		return e.Code
	}
	if e, ok := As[*MasterForgeError](err); ok {
		return e.Code
	}
	return ""
}

// Is enables errors.Is checks
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As enables errors.As checks
func As[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
