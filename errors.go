package gdbprobe

import "github.com/wagiedev/gdbprobe/internal/errors"

// Re-export error types from internal package

// LaunchError indicates the server process could not be started.
type LaunchError = errors.LaunchError

// BrokenPipeError indicates the server process exited under us.
type BrokenPipeError = errors.BrokenPipeError

// MalformedMessageError indicates a line that looked like JSON but failed to parse.
type MalformedMessageError = errors.MalformedMessageError

// ExtractionFailure indicates the session marker was not found in response text.
type ExtractionFailure = errors.ExtractionFailure

// ProbeError is the base interface for all probe errors.
type ProbeError = errors.ProbeError

// Re-export sentinel errors from internal package.
var (
	// ErrReadTimeout indicates no response arrived within the read budget.
	ErrReadTimeout = errors.ErrReadTimeout

	// ErrStreamClosed indicates the server closed its output stream.
	ErrStreamClosed = errors.ErrStreamClosed

	// ErrNoTextContent indicates a tool result carried no text content blocks.
	ErrNoTextContent = errors.ErrNoTextContent
)
