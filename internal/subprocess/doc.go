// Package subprocess owns the GDB MCP server child process.
//
// It launches the server with its three standard streams piped, drains
// stderr concurrently so a full pipe buffer can never stall the server,
// turns stdout into a stream of decoded protocol events, and guarantees
// graceful-then-forced termination.
package subprocess
