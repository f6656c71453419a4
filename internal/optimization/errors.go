// Package optimization holds the types shared by every part of the local
// search engine: the error type used to report configuration and runtime
// failures, and the environment mode that controls self-checking.
package optimization

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a planner failure annotated with where it happened. It renders
// as "component: op: message: cause", leaving out empty parts.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the operation that failed, such as "Validate" or "Step".
	Op string
	// Component names the package or type, such as "acceptor.Config".
	Component string
	// Err is the cause, often a package sentinel matched with errors.Is.
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, 4)
	for _, p := range []string{e.Component, e.Op, e.Message} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation sets the failing operation.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent sets the failing component.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

func NewError(message string) *Error {
	return &Error{Message: message}
}

func NewErrorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// WrapError annotates err. It returns nil for a nil err, so callers must
// check err first when the result is returned as an error interface.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Message: message, Err: err}
}

// WrapErrorf is WrapError with a formatted message.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Message: fmt.Sprintf(format, args...), Err: err}
}

// ConfigError reports an illegal configuration found while a component is
// set up. sentinel stays in the chain for errors.Is.
func ConfigError(sentinel error, component, op, format string, args ...interface{}) *Error {
	return &Error{
		Message:   fmt.Sprintf(format, args...),
		Op:        op,
		Component: component,
		Err:       sentinel,
	}
}

// IsOptimizationError returns the outermost Error in err's chain.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if err != nil && errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
