package errors

import (
	"errors"
	"fmt"
)

// ProbeError is the base interface for all probe errors.
type ProbeError interface {
	error
	IsProbeError() bool
}

// Compile-time verification that all error types implement ProbeError.
var (
	_ ProbeError = (*LaunchError)(nil)
	_ ProbeError = (*BrokenPipeError)(nil)
	_ ProbeError = (*MalformedMessageError)(nil)
	_ ProbeError = (*ExtractionFailure)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrReadTimeout indicates no response arrived within the read budget.
	ErrReadTimeout = errors.New("read timeout")

	// ErrStreamClosed indicates the server closed its output stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrNotStarted indicates the server process has not been started.
	ErrNotStarted = errors.New("server process not started")

	// ErrStdinClosed indicates stdin was closed and can no longer be written.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrNoTextContent indicates a tool result carried no text content blocks.
	ErrNoTextContent = errors.New("no text content in result")
)

// LaunchError indicates the server process could not be started.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// IsProbeError implements ProbeError.
func (e *LaunchError) IsProbeError() bool { return true }

// BrokenPipeError indicates the server process exited under us and its
// streams are no longer usable.
type BrokenPipeError struct {
	Err error
}

func (e *BrokenPipeError) Error() string {
	return fmt.Sprintf("server pipe broken: %v", e.Err)
}

func (e *BrokenPipeError) Unwrap() error {
	return e.Err
}

// IsProbeError implements ProbeError.
func (e *BrokenPipeError) IsProbeError() bool { return true }

// MalformedMessageError indicates a line that looked like JSON but failed
// to parse. This error preserves the raw line that failed.
type MalformedMessageError struct {
	RawLine string
	Err     error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed protocol line: %v", e.Err)
}

func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}

// IsProbeError implements ProbeError.
func (e *MalformedMessageError) IsProbeError() bool { return true }

// ExtractionFailure indicates the expected marker was not found in a
// response's text payload.
type ExtractionFailure struct {
	Marker string
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("marker %q not found in response text", e.Marker)
}

// IsProbeError implements ProbeError.
func (e *ExtractionFailure) IsProbeError() bool { return true }
