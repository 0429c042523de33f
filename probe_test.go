package gdbprobe_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/gdbprobe"
)

// fakeServerScript speaks just enough of the protocol to drive the full
// scenario: it answers initialize and the three tool calls, echoes the
// request identifier back, and interleaves non-protocol noise on stdout.
const fakeServerScript = `#!/bin/sh
echo "fake server ready" >&2
echo "stdout noise before handshake"
while read line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":"\([^"]*\)".*/\1/p')
  case "$line" in
    *'"initialize"'*)
      echo "{\"jsonrpc\":\"2.0\",\"id\":\"$id\",\"result\":{\"protocolVersion\":\"2024-11-05\"}}"
      ;;
    *'notifications/initialized'*)
      ;;
    *'gdb_start'*)
      echo "interleaved log chatter"
      printf '{"jsonrpc":"2.0","id":"%s","result":{"content":[{"type":"text","text":"GDB session started successfully.\\n\\nSession ID: e2e-session\\nGDB Path: /usr/bin/gdb"}]}}\n' "$id"
      ;;
    *'gdb_load'*)
      echo "{\"jsonrpc\":\"2.0\",\"id\":\"$id\",\"result\":{\"content\":[{\"type\":\"text\",\"text\":\"Program loaded successfully.\"}]}}"
      ;;
    *'gdb_terminate'*)
      echo "{\"jsonrpc\":\"2.0\",\"id\":\"$id\",\"result\":{\"content\":[{\"type\":\"text\",\"text\":\"Session terminated.\"}]}}"
      ;;
  esac
done
`

func writeFakeServer(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fake-gdb-mcp-server")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	return path
}

func fastConfig(serverPath string) *gdbprobe.Config {
	cfg := gdbprobe.DefaultConfig()
	cfg.ServerPath = serverPath
	cfg.ProgramPath = "./build/gobject-demo"
	cfg.Timing.WarmUp = 50 * time.Millisecond
	cfg.Timing.Settle = 10 * time.Millisecond
	cfg.Timing.Stabilize = 10 * time.Millisecond
	cfg.Timing.HandshakeTimeout = 5 * time.Second
	cfg.Timing.ToolTimeout = 5 * time.Second
	cfg.Timing.TerminateTimeout = 2 * time.Second
	cfg.Timing.ShutdownGrace = 2 * time.Second

	return cfg
}

func TestProbeFullScenario(t *testing.T) {
	server := writeFakeServer(t, fakeServerScript)

	var mu sync.Mutex

	var stderrLines []string

	probe := gdbprobe.New(
		gdbprobe.WithLogger(gdbprobe.NopLogger()),
		gdbprobe.WithConfig(fastConfig(server)),
		gdbprobe.WithStderrCallback(func(line string) {
			mu.Lock()
			stderrLines = append(stderrLines, line)
			mu.Unlock()
		}),
	)

	report, err := probe.Run(context.Background())
	require.NoError(t, err)

	require.False(t, report.Failed(), "outcomes: %v", report.Outcomes)
	require.Equal(t, "e2e-session", report.SessionID)

	mu.Lock()
	defer mu.Unlock()

	require.Contains(t, stderrLines, "fake server ready")
}

func TestProbeExtractionFailure(t *testing.T) {
	// Same server, but gdb_start answers with no session marker.
	script := `#!/bin/sh
while read line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":"\([^"]*\)".*/\1/p')
  case "$line" in
    *'"initialize"'*)
      echo "{\"jsonrpc\":\"2.0\",\"id\":\"$id\",\"result\":{}}"
      ;;
    *'gdb_start'*)
      echo "{\"jsonrpc\":\"2.0\",\"id\":\"$id\",\"result\":{\"content\":[{\"type\":\"text\",\"text\":\"GDB session started but no identifier was printed.\"}]}}"
      ;;
  esac
done
`
	server := writeFakeServer(t, script)

	probe := gdbprobe.New(gdbprobe.WithConfig(fastConfig(server)))

	report, err := probe.Run(context.Background())
	require.NoError(t, err)

	require.True(t, report.Failed())
	require.Empty(t, report.SessionID)
}

func TestProbeServerNeverAnswers(t *testing.T) {
	server := writeFakeServer(t, "#!/bin/sh\nsleep 60\n")

	cfg := fastConfig(server)
	cfg.Timing.HandshakeTimeout = 200 * time.Millisecond

	probe := gdbprobe.New(gdbprobe.WithConfig(cfg))

	report, err := probe.Run(context.Background())
	require.NoError(t, err)

	require.True(t, report.Failed())
}

func TestProbeMissingServer(t *testing.T) {
	cfg := fastConfig(filepath.Join(t.TempDir(), "absent"))

	probe := gdbprobe.New(gdbprobe.WithConfig(cfg))

	report, err := probe.Run(context.Background())
	require.NoError(t, err)

	require.True(t, report.Failed())
}

func TestProbeInvalidConfig(t *testing.T) {
	cfg := gdbprobe.DefaultConfig()
	cfg.ServerPath = ""

	probe := gdbprobe.New(gdbprobe.WithConfig(cfg))

	_, err := probe.Run(context.Background())
	require.Error(t, err)
}
