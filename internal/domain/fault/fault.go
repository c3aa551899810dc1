// Package fault defines the router's typed error taxonomy and its mapping
// onto JSON-RPC 2.0 error codes.
package fault

import (
	"errors"
	"fmt"
)

// JSON-RPC 2.0 error codes surfaced to the MCP client.
const (
	// CodeConfiguration covers malformed or invalid configuration
	// (startup phase only).
	CodeConfiguration = -32600
	// CodeValidation covers invalid queries, parameters, malformed
	// namespaced tool names, and prefixes that match no upstream.
	CodeValidation = -32602
	// CodeToolNotFound covers unknown namespaced names on non-meta calls.
	CodeToolNotFound = -32601
	// CodeInternal covers embedding failures and otherwise-unclassified
	// errors.
	CodeInternal = -32603
	// CodeUpstream covers upstream timeouts, transport failures, upstreams
	// that are not connected, and upstream-reported tool errors.
	CodeUpstream = -32000
)

// Error is a typed router error carrying a JSON-RPC code and optional
// structured data. Internal components return these; only the facade and
// the inbound adapter translate them to wire shapes.
type Error struct {
	Code    int
	Message string
	Data    map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Configuration builds a configuration error.
func Configuration(format string, args ...any) *Error {
	return &Error{Code: CodeConfiguration, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a validation error.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ToolNotFound builds a tool-not-found error.
func ToolNotFound(format string, args ...any) *Error {
	return &Error{Code: CodeToolNotFound, Message: fmt.Sprintf(format, args...)}
}

// Internal builds an internal/embedding error.
func Internal(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Upstream builds an upstream/server error.
func Upstream(format string, args ...any) *Error {
	return &Error{Code: CodeUpstream, Message: fmt.Sprintf(format, args...)}
}

// WithData attaches structured data, returning the same error for chaining.
func (e *Error) WithData(data map[string]any) *Error {
	e.Data = data
	return e
}

// From classifies an arbitrary error. Typed router errors pass through;
// anything else becomes an internal error whose data records the Go type
// name of the original error.
func From(err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return &Error{
		Code:    CodeInternal,
		Message: err.Error(),
		Data:    map[string]any{"type": fmt.Sprintf("%T", err)},
	}
}
