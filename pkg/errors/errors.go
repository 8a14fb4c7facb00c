// Package errors provides structured error types for the executor.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and orchestrator
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Each code corresponds to one stage of pipeline resolution or execution
// that can fail independently: fetching metadata, parsing RDF, normalizing
// the combined graph, resolving step inputs, detecting archive formats, and
// building/running containers.
//
// # Usage
//
//	err := errors.New(errors.CodeFetch, "fetching pipeline %s", uuid)
//	if errors.Is(err, errors.CodeFetch) {
//	    // Handle fetch error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.CodeContainerBuild, origErr, "building image for %s", label)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes, one per failure kind in the executor's error taxonomy.
const (
	// CodeFetch covers metadata-store and artifact-repository HTTP failures.
	CodeFetch Code = "FETCH_ERROR"
	// CodeParse covers Turtle syntax errors in a fetched pipeline document.
	CodeParse Code = "PARSE_ERROR"
	// CodeGraphNormalization covers cycle detection and merge conflicts
	// discovered while normalizing the combined execution graph.
	CodeGraphNormalization Code = "GRAPH_NORMALIZATION_ERROR"
	// CodeMissingInput covers a step whose required input variable has no
	// producer in the results map at execution time.
	CodeMissingInput Code = "MISSING_INPUT_ERROR"
	// CodeUnsupportedArchive covers a plugin archive whose sniffed MIME type
	// has no matching unpack strategy.
	CodeUnsupportedArchive Code = "UNSUPPORTED_ARCHIVE_ERROR"
	// CodeContainerBuild covers a nonzero exit from the container build CLI.
	CodeContainerBuild Code = "CONTAINER_BUILD_ERROR"
	// CodeContainerRun covers a nonzero exit from the container run CLI.
	CodeContainerRun Code = "CONTAINER_RUN_ERROR"
	// CodeRuntimeMissing covers an absent container runtime executable.
	CodeRuntimeMissing Code = "RUNTIME_MISSING_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
