// Package errs defines the coded errors shared by the processor and the gateway.
package errs

import (
	"errors"
	"fmt"
)

type Code string

const (
	// CodeChunkProcessing is a fault while assembling or aggregating a chunk.
	CodeChunkProcessing Code = "chunk_processing"
	// CodeFinalize is a serialization or sink failure at end of stream.
	CodeFinalize Code = "finalize"
	CodeStorage  Code = "storage"
	// CodeProtocol marks a stream that ended without a summary.
	CodeProtocol     Code = "protocol"
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"
	CodeUnknown      Code = "unknown"
)

type Error struct {
	Code    Code
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
	}
	return false
}

func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap returns nil when err is nil.
func Wrap(err error, code Code, op, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Message: message, Cause: err}
}

func Wrapf(err error, code Code, op, format string, args ...any) error {
	return Wrap(err, code, op, fmt.Sprintf(format, args...))
}

// CodeOf returns the code of the outermost *Error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

var (
	ErrAlreadyFinalized         = New(CodeFinalize, "", "processor already finalized")
	ErrStreamClosedUnexpectedly = New(CodeProtocol, "", "stream closed unexpectedly without a summary")
	ErrJobNotFound              = New(CodeNotFound, "", "job not found")
	ErrStorageNotConfigured     = New(CodeStorage, "", "storage backend not configured")
	ErrPathOutsideRoot          = New(CodeInvalidInput, "", "path escapes storage root")
)
