// Package errors defines error types for the probe.
//
// This package provides structured error types for the failure scenarios
// that arise while driving the GDB MCP server process. All error types
// support error unwrapping and can be checked using errors.Is and errors.As.
package errors
