package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind names an error category on the wire.
type ErrorKind string

const (
	KindFraming            ErrorKind = "FramingError"
	KindProtocolSequence   ErrorKind = "ProtocolSequenceError"
	KindVersionMismatch    ErrorKind = "VersionMismatchError"
	KindUnknownTool        ErrorKind = "UnknownToolError"
	KindArgumentValidation ErrorKind = "ArgumentValidationError"
	KindDomain             ErrorKind = "DomainError"
	KindDuplicateTool      ErrorKind = "DuplicateToolError"
)

// Fatal reports whether errors of this kind terminate the session.
func (k ErrorKind) Fatal() bool {
	switch k {
	case KindFraming, KindProtocolSequence, KindVersionMismatch:
		return true
	default:
		return false
	}
}

// Error is implemented by every classified protocol error.
type Error interface {
	error
	Kind() ErrorKind
}

// Compile-time verification that all error types implement Error.
var (
	_ Error = (*FramingError)(nil)
	_ Error = (*ProtocolSequenceError)(nil)
	_ Error = (*VersionMismatchError)(nil)
	_ Error = (*UnknownToolError)(nil)
	_ Error = (*ArgumentValidationError)(nil)
	_ Error = (*DomainError)(nil)
	_ Error = (*DuplicateToolError)(nil)
)

// KindOf classifies err. Unclassified errors are treated as DomainError since
// they can only originate from a tool handler.
func KindOf(err error) ErrorKind {
	var pe Error
	if errors.As(err, &pe) {
		return pe.Kind()
	}
	return KindDomain
}

// FramingError indicates a malformed, oversized or truncated frame.
type FramingError struct {
	Reason string
	Err    error
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("framing: %s: %v", e.Reason, e.Err)
	}
	return "framing: " + e.Reason
}

func (e *FramingError) Unwrap() error   { return e.Err }
func (e *FramingError) Kind() ErrorKind { return KindFraming }

// ProtocolSequenceError indicates a message that is not valid in the current
// session state.
type ProtocolSequenceError struct {
	State string
	Got   Type
	// Detail optionally refines the violation (e.g. a duplicate in-flight id).
	Detail string
}

func (e *ProtocolSequenceError) Error() string {
	msg := fmt.Sprintf("unexpected %q message in state %s", e.Got, e.State)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ProtocolSequenceError) Kind() ErrorKind { return KindProtocolSequence }

// VersionMismatchError indicates incompatible protocol versions.
type VersionMismatchError struct {
	Client string
	Server string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("protocol version %q is not compatible with server version %q", e.Client, e.Server)
}

func (e *VersionMismatchError) Kind() ErrorKind { return KindVersionMismatch }

// UnknownToolError indicates a call to a tool that is not registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string   { return fmt.Sprintf("unknown tool %q", e.Name) }
func (e *UnknownToolError) Kind() ErrorKind { return KindUnknownTool }

// ArgumentValidationError lists every problem found in an argument bundle.
type ArgumentValidationError struct {
	Tool     string
	Problems []string
}

func (e *ArgumentValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %s", e.Tool, strings.Join(e.Problems, "; "))
}

func (e *ArgumentValidationError) Kind() ErrorKind { return KindArgumentValidation }

// DomainError wraps a failure raised by a tool handler.
type DomainError struct {
	Tool string
	Err  error
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("tool %s execution failed: %v", e.Tool, e.Err)
}

func (e *DomainError) Unwrap() error   { return e.Err }
func (e *DomainError) Kind() ErrorKind { return KindDomain }

// DuplicateToolError indicates a registration under a name already in use.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string   { return fmt.Sprintf("tool %q already registered", e.Name) }
func (e *DuplicateToolError) Kind() ErrorKind { return KindDuplicateTool }

// ErrorInfo is the wire form of an error: {kind, message}.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// InfoFor converts err into its wire form.
func InfoFor(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	return &ErrorInfo{Kind: KindOf(err), Message: err.Error()}
}

func (e *ErrorInfo) Error() string { return string(e.Kind) + ": " + e.Message }
