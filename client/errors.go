package client

import (
	"fmt"

	"github.com/SystemSolution21/adk-mcp/protocol"
)

// Compile-time verification that error types implement protocol.Error.
var (
	_ protocol.Error = (*CallError)(nil)
	_ protocol.Error = (*NoticeError)(nil)
)

// CallError is a call that the server answered with ok:false.
type CallError struct {
	ID        string
	Tool      string
	ErrorKind protocol.ErrorKind
	Message   string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call %s (%s) failed: %s: %s", e.Tool, e.ID, e.ErrorKind, e.Message)
}

// Kind implements protocol.Error.
func (e *CallError) Kind() protocol.ErrorKind { return e.ErrorKind }

// NoticeError is a session-fatal error notice sent by the server.
type NoticeError struct {
	ErrorKind protocol.ErrorKind
	Message   string
}

func (e *NoticeError) Error() string {
	return fmt.Sprintf("server closed the session: %s: %s", e.ErrorKind, e.Message)
}

// Kind implements protocol.Error.
func (e *NoticeError) Kind() protocol.ErrorKind { return e.ErrorKind }
