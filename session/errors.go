package session

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors checked with errors.Is.
var (
	// ErrClosed reports an operation on a closed session.
	ErrClosed = errors.New("session is closed")
	// ErrCancelled reports a command aborted by Cancel; the session is
	// closed along with it.
	ErrCancelled = errors.New("command cancelled")
)

// ArgumentError reports a caller-side contract violation. It is raised
// before any byte reaches the server; the session remains usable.
type ArgumentError struct {
	// Msg describes the violated contract.
	Msg string
}

func (e *ArgumentError) Error() string {
	return e.Msg
}

// IsArgumentError returns true if the error is a caller contract violation.
func IsArgumentError(err error) bool {
	var argErr *ArgumentError
	return errors.As(err, &argErr)
}

// ServerErrorKind classifies server failures.
type ServerErrorKind int

const (
	// ServerErrorLaunch indicates the child process failed to start.
	ServerErrorLaunch ServerErrorKind = iota
	// ServerErrorHandshake indicates a missing or malformed hello frame.
	ServerErrorHandshake
	// ServerErrorProtocol indicates a framing or stream failure after the
	// handshake.
	ServerErrorProtocol
	// ServerErrorCapability indicates the server does not advertise a
	// capability the operation requires.
	ServerErrorCapability
)

// ServerError reports a protocol-level failure. Per PROTOCOL.md a
// misframed stream is never resynchronized: every launch, handshake, or
// protocol ServerError leaves the session closed and the child terminated.
// Capability errors are the exception; they are raised before any byte is
// written and the session stays usable.
type ServerError struct {
	// Kind classifies the failure.
	Kind ServerErrorKind
	// Msg is a human-readable description.
	Msg string
	// Err is the underlying cause, if any.
	Err error
}

func (e *ServerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

// IsLaunchError returns true if the child process failed to start.
func IsLaunchError(err error) bool {
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return srvErr.Kind == ServerErrorLaunch
	}
	return false
}

// IsHandshakeError returns true if the hello frame was missing or malformed.
func IsHandshakeError(err error) bool {
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return srvErr.Kind == ServerErrorHandshake
	}
	return false
}

// IsProtocolError returns true if the stream failed after the handshake.
func IsProtocolError(err error) bool {
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return srvErr.Kind == ServerErrorProtocol
	}
	return false
}

// IsCapabilityError returns true if the server lacks a required capability.
func IsCapabilityError(err error) bool {
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return srvErr.Kind == ServerErrorCapability
	}
	return false
}

// CommandError reports a command that ran to completion with an exit code
// the caller deemed fatal. Nonzero exit codes are not errors by themselves;
// converting one into a CommandError is the caller's decision (see
// CheckExit). The session remains usable.
type CommandError struct {
	// Msg is the caller-supplied context.
	Msg string
	// Result is the captured output of the offending command.
	Result *CommandResult
}

func (e *CommandError) Error() string {
	stderr := strings.TrimSpace(e.Result.Stderr)
	if stderr != "" {
		return fmt.Sprintf("%s: %s (exit code %d)", e.Msg, stderr, e.Result.ExitCode)
	}
	return fmt.Sprintf("%s (exit code %d)", e.Msg, e.Result.ExitCode)
}

// IsCommandError returns true if the error carries a command result.
func IsCommandError(err error) bool {
	var cmdErr *CommandError
	return errors.As(err, &cmdErr)
}
