// Package gdbprobe drives a GDB MCP server binary through a fixed diagnostic
// scenario over its standard streams.
//
// The probe launches the server with verbose diagnostics enabled, performs
// the JSON-RPC initialize handshake, announces readiness, starts a GDB
// session, extracts the session identifier from the response's prose text,
// and issues a dependent gdb_load call scoped by that identifier. Every
// stage is timeout-bounded and the server process is always torn down,
// whichever stage fails.
//
// # Basic Usage
//
//	ctx := context.Background()
//	probe := gdbprobe.New(
//	    gdbprobe.WithLogger(slog.Default()),
//	)
//
//	report, err := probe.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	report.Summarize(slog.Default())
//	if report.Failed() {
//	    os.Exit(1)
//	}
//
// The scenario's paths, delays, and timeouts come from a config.Config; see
// WithConfig and the internal/config package for the defaults and the YAML
// override format.
package gdbprobe
