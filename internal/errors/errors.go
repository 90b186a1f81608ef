// Package errors provides structured error handling for the content directory.
// It defines error types, sentinel errors, and the mapping from errors to UPnP
// control error codes used when a request fails.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies a failure.
type ErrorType string

const (
	// ErrorTypeNotFound indicates an unknown object id or path
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeInvalidArgument indicates a malformed or unknown request argument
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	// ErrorTypeIO indicates a file stat/read failure
	ErrorTypeIO ErrorType = "io"
	// ErrorTypeUpstream indicates a routed repository operation failed
	ErrorTypeUpstream ErrorType = "upstream"
	// ErrorTypeNotSupported indicates a declared action without an implementation
	ErrorTypeNotSupported ErrorType = "not_supported"
	// ErrorTypeInternal indicates internal system errors
	ErrorTypeInternal ErrorType = "internal"
)

// Sentinel errors for common scenarios
var (
	// ErrNotFound indicates an object id or path doesn't exist
	ErrNotFound = errors.New("object not found")

	// ErrNotContainer indicates an operation needing a container got a leaf
	ErrNotContainer = errors.New("object is not a container")

	// ErrNameTaken indicates a sibling with the same name already exists
	ErrNameTaken = errors.New("name already taken")

	// ErrInvalidArgument indicates invalid request parameters
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIO indicates a filesystem operation failed
	ErrIO = errors.New("i/o failure")

	// ErrUpstream indicates a repository failed while serving a routed operation
	ErrUpstream = errors.New("repository operation failed")

	// ErrNotSupported indicates an action that is declared but not implemented
	ErrNotSupported = errors.New("action not supported")
)

// UPnP ContentDirectory control error codes.
const (
	CodeInvalidAction        = 401
	CodeInvalidArgs          = 402
	CodeActionFailed         = 501
	CodeOptionalNotSupported = 602
	CodeNoSuchObject         = 701
	CodeNoSuchContainer      = 710
)

// CDSError provides structured error information with context
type CDSError struct {
	Type     ErrorType // Error classification
	Op       string    // Operation that failed (e.g. "browse", "ingest")
	ObjectID string    // Related object id if applicable
	Path     string    // Related catalog or file path if applicable
	Value    string    // Offending argument value if applicable
	Err      error     // Underlying error
}

// Error implements the error interface
func (e *CDSError) Error() string {
	var context string
	switch {
	case e.ObjectID != "":
		context = fmt.Sprintf("object=%s", e.ObjectID)
	case e.Path != "":
		context = fmt.Sprintf("path=%s", e.Path)
	case e.Value != "":
		context = fmt.Sprintf("value=%q", e.Value)
	}

	if context != "" {
		return fmt.Sprintf("%s error in %s [%s]: %v", e.Type, e.Op, context, e.Err)
	}
	return fmt.Sprintf("%s error in %s: %v", e.Type, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *CDSError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel that corresponds to the error type, so that an
// InvalidArgument error wrapping a strconv failure still satisfies
// errors.Is(err, ErrInvalidArgument).
func (e *CDSError) Is(target error) bool {
	switch e.Type {
	case ErrorTypeNotFound:
		if target == ErrNotFound {
			return true
		}
	case ErrorTypeInvalidArgument:
		if target == ErrInvalidArgument {
			return true
		}
	case ErrorTypeIO:
		if target == ErrIO {
			return true
		}
	case ErrorTypeUpstream:
		if target == ErrUpstream {
			return true
		}
	case ErrorTypeNotSupported:
		if target == ErrNotSupported {
			return true
		}
	}
	return false
}

// New creates a new CDSError
func New(errType ErrorType, op string, err error) *CDSError {
	return &CDSError{
		Type: errType,
		Op:   op,
		Err:  err,
	}
}

// WithObject adds object id context to the error
func (e *CDSError) WithObject(id string) *CDSError {
	e.ObjectID = id
	return e
}

// WithPath adds path context to the error
func (e *CDSError) WithPath(path string) *CDSError {
	e.Path = path
	return e
}

// WithValue records the offending argument value
func (e *CDSError) WithValue(value string) *CDSError {
	e.Value = value
	return e
}

// Error creation helpers

// NotFound creates an unknown object error
func NotFound(op string, err error) *CDSError {
	if err == nil {
		err = ErrNotFound
	}
	return New(ErrorTypeNotFound, op, err)
}

// InvalidArgument creates an invalid argument error carrying the offending value
func InvalidArgument(op, value string, err error) *CDSError {
	if err == nil {
		err = ErrInvalidArgument
	}
	return New(ErrorTypeInvalidArgument, op, err).WithValue(value)
}

// IOFailure creates a filesystem error
func IOFailure(op, path string, err error) *CDSError {
	return New(ErrorTypeIO, op, err).WithPath(path)
}

// Upstream creates a routed repository failure
func Upstream(op, mountPath string, err error) *CDSError {
	return New(ErrorTypeUpstream, op, err).WithPath(mountPath)
}

// NotSupported creates an unimplemented action error
func NotSupported(op string) *CDSError {
	return New(ErrorTypeNotSupported, op, ErrNotSupported)
}

// Wrap wraps an error with operation context if it's not already a CDSError
func Wrap(err error, errType ErrorType, op string) error {
	if err == nil {
		return nil
	}

	var cErr *CDSError
	if errors.As(err, &cErr) {
		return err
	}

	return New(errType, op, err)
}

// GetType extracts the error type from an error
func GetType(err error) ErrorType {
	var cErr *CDSError
	if errors.As(err, &cErr) {
		return cErr.Type
	}
	return ErrorTypeInternal
}

// UPnPCode maps an error to the UPnP control error code reported in a fault.
func UPnPCode(err error) int {
	var cErr *CDSError
	if !errors.As(err, &cErr) {
		return CodeActionFailed
	}

	switch cErr.Type {
	case ErrorTypeNotFound:
		if errors.Is(cErr.Err, ErrNotContainer) {
			return CodeNoSuchContainer
		}
		return CodeNoSuchObject
	case ErrorTypeInvalidArgument:
		return CodeInvalidArgs
	case ErrorTypeNotSupported:
		return CodeOptionalNotSupported
	default:
		return CodeActionFailed
	}
}

// Description returns the UPnP error description for a code.
func Description(code int) string {
	switch code {
	case CodeInvalidAction:
		return "Invalid Action"
	case CodeInvalidArgs:
		return "Invalid Args"
	case CodeOptionalNotSupported:
		return "Optional Action Not Implemented"
	case CodeNoSuchObject:
		return "No such object"
	case CodeNoSuchContainer:
		return "No such container"
	default:
		return "Action Failed"
	}
}
