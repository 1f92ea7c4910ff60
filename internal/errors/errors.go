// internal/errors/errors.go
package errors

import (
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	SyntaxError    ErrorType = "SyntaxError"
	CompileError   ErrorType = "CompileError"
	ReferenceError ErrorType = "ReferenceError"
	TypeError      ErrorType = "TypeError"
	RuntimeError   ErrorType = "RuntimeError"
	LoadError      ErrorType = "LoadError"
)

// SourceLocation represents a location in source code
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// BiesError represents an error with source location information
type BiesError struct {
	Type      ErrorType
	Message   string
	Location  SourceLocation
	CallStack []StackFrame
	Source    string // The source line where error occurred
}

// StackFrame is one pending call at the time of a runtime failure.
type StackFrame struct {
	Function string
	PC       int
	Line     int
}

// Error implements the error interface
func (e *BiesError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s: %s", e.Type, e.Message))

	if e.Location.Line > 0 {
		if e.Location.File != "" {
			sb.WriteString(fmt.Sprintf("\n  at %s:%d", e.Location.File, e.Location.Line))
		} else {
			sb.WriteString(fmt.Sprintf("\n  at line %d", e.Location.Line))
		}
		if e.Location.Column > 0 {
			sb.WriteString(fmt.Sprintf(":%d", e.Location.Column))
		}

		if e.Source != "" {
			prefix := fmt.Sprintf("  %d | ", e.Location.Line)
			sb.WriteString("\n\n" + prefix + e.Source + "\n")
			sb.WriteString(strings.Repeat(" ", len(prefix)))
			if e.Location.Column > 0 {
				sb.WriteString(strings.Repeat(" ", e.Location.Column-1))
			}
			sb.WriteString("^")
		}
	}

	if len(e.CallStack) > 0 {
		sb.WriteString("\n\nCall Stack:")
		for _, frame := range e.CallStack {
			sb.WriteString(fmt.Sprintf("\n  at %s pc=%d", frame.Function, frame.PC))
			if frame.Line > 0 {
				sb.WriteString(fmt.Sprintf(" (line %d)", frame.Line))
			}
		}
	}

	return sb.String()
}

// New creates an error of the given type at a line.
func New(t ErrorType, file string, line int, format string, args ...interface{}) *BiesError {
	return &BiesError{
		Type:    t,
		Message: fmt.Sprintf(format, args...),
		Location: SourceLocation{
			File: file,
			Line: line,
		},
	}
}

// NewSyntaxError creates a new syntax error
func NewSyntaxError(message string, file string, line, column int) *BiesError {
	return &BiesError{
		Type:    SyntaxError,
		Message: message,
		Location: SourceLocation{
			File:   file,
			Line:   line,
			Column: column,
		},
	}
}

// NewRuntimeError creates a new runtime error
func NewRuntimeError(message string, line int) *BiesError {
	return &BiesError{
		Type:     RuntimeError,
		Message:  message,
		Location: SourceLocation{Line: line},
	}
}

// NewTypeError creates a runtime type error
func NewTypeError(message string, line int) *BiesError {
	return &BiesError{
		Type:     TypeError,
		Message:  message,
		Location: SourceLocation{Line: line},
	}
}

// NewLoadError reports malformed bytecode text at a line of the bytecode file.
func NewLoadError(message string, file string, line int) *BiesError {
	return &BiesError{
		Type:    LoadError,
		Message: message,
		Location: SourceLocation{
			File: file,
			Line: line,
		},
	}
}

// WithSource adds source code context to the error
func (e *BiesError) WithSource(source string) *BiesError {
	e.Source = source
	return e
}

// WithStack adds a call stack to the error
func (e *BiesError) WithStack(stack []StackFrame) *BiesError {
	e.CallStack = stack
	return e
}

// Is reports whether err is a BiesError of type t.
func Is(err error, t ErrorType) bool {
	if be, ok := err.(*BiesError); ok {
		return be.Type == t
	}
	if d, ok := err.(*Diagnostics); ok {
		for _, e := range d.items {
			if e.Type == t {
				return true
			}
		}
	}
	return false
}
