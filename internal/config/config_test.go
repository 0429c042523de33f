package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "all", cfg.Env["G_MESSAGES_DEBUG"])
	require.Equal(t, 2*time.Second, cfg.Timing.Stabilize)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.yaml")
	content := `
serverPath: /opt/gdb-mcp/server
timing:
  stabilize: 250ms
  toolTimeout: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "/opt/gdb-mcp/server", cfg.ServerPath)
	require.Equal(t, 250*time.Millisecond, cfg.Timing.Stabilize)
	require.Equal(t, 30*time.Second, cfg.Timing.ToolTimeout)

	// Untouched fields keep their defaults.
	require.Equal(t, "./build/gobject-demo", cfg.ProgramPath)
	require.Equal(t, 5*time.Second, cfg.Timing.HandshakeTimeout)
	require.Equal(t, "all", cfg.Env["G_MESSAGES_DEBUG"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timing:\n  warmUp: soon\n"), 0o644))

	_, err := Load(path)
	require.ErrorContains(t, err, "warmUp")
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timing: [nope"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRejectsBadTimings(t *testing.T) {
	cfg := Default()
	cfg.Timing.ToolTimeout = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Timing.WarmUp = -time.Second
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.ServerPath = ""
	require.Error(t, cfg.Validate())
}
