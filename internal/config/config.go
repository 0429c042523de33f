// Package config holds the probe scenario configuration.
//
// The default values mirror the empirically tuned upstream scenario; a YAML
// file can override any of them, and the command line can override a few on
// top of that.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Timing groups every delay and timeout in the scenario. The delays are
// workarounds for server behavior (it needs time to attach its protocol
// listener after launch, and a fresh session needs time to stabilize before
// use), so they stay configurable rather than hard-coded.
type Timing struct {
	// WarmUp is slept after launch before anything is written to stdin.
	WarmUp time.Duration `yaml:"warmUp"`

	// Settle is slept after the initialized notification.
	Settle time.Duration `yaml:"settle"`

	// Stabilize is slept between session start and the dependent call.
	Stabilize time.Duration `yaml:"stabilize"`

	// HandshakeTimeout bounds the wait for the initialize response.
	HandshakeTimeout time.Duration `yaml:"handshakeTimeout"`

	// ToolTimeout bounds each tools/call response wait. Session start is
	// known to be slow, so this is generous.
	ToolTimeout time.Duration `yaml:"toolTimeout"`

	// TerminateTimeout bounds the best-effort session cleanup call.
	TerminateTimeout time.Duration `yaml:"terminateTimeout"`

	// ShutdownGrace is how long Close waits after SIGTERM before SIGKILL.
	ShutdownGrace time.Duration `yaml:"shutdownGrace"`
}

// UnmarshalYAML accepts Go duration strings ("500ms", "15s") for every
// timing field; yaml.v3 has no native time.Duration support.
func (t *Timing) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		WarmUp           string `yaml:"warmUp"`
		Settle           string `yaml:"settle"`
		Stabilize        string `yaml:"stabilize"`
		HandshakeTimeout string `yaml:"handshakeTimeout"`
		ToolTimeout      string `yaml:"toolTimeout"`
		TerminateTimeout string `yaml:"terminateTimeout"`
		ShutdownGrace    string `yaml:"shutdownGrace"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	for _, field := range []struct {
		name string
		src  string
		dst  *time.Duration
	}{
		{"warmUp", raw.WarmUp, &t.WarmUp},
		{"settle", raw.Settle, &t.Settle},
		{"stabilize", raw.Stabilize, &t.Stabilize},
		{"handshakeTimeout", raw.HandshakeTimeout, &t.HandshakeTimeout},
		{"toolTimeout", raw.ToolTimeout, &t.ToolTimeout},
		{"terminateTimeout", raw.TerminateTimeout, &t.TerminateTimeout},
		{"shutdownGrace", raw.ShutdownGrace, &t.ShutdownGrace},
	} {
		if field.src == "" {
			continue
		}

		d, err := time.ParseDuration(field.src)
		if err != nil {
			return fmt.Errorf("timing.%s: %w", field.name, err)
		}

		*field.dst = d
	}

	return nil
}

// Config describes one probe run.
type Config struct {
	// ServerPath is the server executable, launched with no arguments.
	ServerPath string `yaml:"serverPath"`

	// ProgramPath is passed to the dependent gdb_load call.
	ProgramPath string `yaml:"programPath"`

	// Env is merged over the inherited environment when launching the
	// server. The default enables the server's verbose diagnostics.
	Env map[string]string `yaml:"env"`

	Timing Timing `yaml:"timing"`
}

// Default returns the fixed upstream scenario.
func Default() *Config {
	return &Config{
		ServerPath:  "./build/gdb-mcp-server",
		ProgramPath: "./build/gobject-demo",
		Env: map[string]string{
			"G_MESSAGES_DEBUG": "all",
		},
		Timing: Timing{
			WarmUp:           500 * time.Millisecond,
			Settle:           500 * time.Millisecond,
			Stabilize:        2 * time.Second,
			HandshakeTimeout: 5 * time.Second,
			ToolTimeout:      15 * time.Second,
			TerminateTimeout: 3 * time.Second,
			ShutdownGrace:    5 * time.Second,
		},
	}
}

// Load reads a YAML file and merges it over the defaults. Zero values in the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()

	if c.ServerPath == "" {
		c.ServerPath = def.ServerPath
	}

	if c.ProgramPath == "" {
		c.ProgramPath = def.ProgramPath
	}

	if c.Env == nil {
		c.Env = def.Env
	}

	t := &c.Timing
	dt := def.Timing

	if t.WarmUp == 0 {
		t.WarmUp = dt.WarmUp
	}

	if t.Settle == 0 {
		t.Settle = dt.Settle
	}

	if t.Stabilize == 0 {
		t.Stabilize = dt.Stabilize
	}

	if t.HandshakeTimeout == 0 {
		t.HandshakeTimeout = dt.HandshakeTimeout
	}

	if t.ToolTimeout == 0 {
		t.ToolTimeout = dt.ToolTimeout
	}

	if t.TerminateTimeout == 0 {
		t.TerminateTimeout = dt.TerminateTimeout
	}

	if t.ShutdownGrace == 0 {
		t.ShutdownGrace = dt.ShutdownGrace
	}
}

// Validate checks that the config can drive a run.
func (c *Config) Validate() error {
	if c.ServerPath == "" {
		return fmt.Errorf("serverPath is required")
	}

	if c.ProgramPath == "" {
		return fmt.Errorf("programPath is required")
	}

	for name, d := range map[string]time.Duration{
		"handshakeTimeout": c.Timing.HandshakeTimeout,
		"toolTimeout":      c.Timing.ToolTimeout,
		"terminateTimeout": c.Timing.TerminateTimeout,
		"shutdownGrace":    c.Timing.ShutdownGrace,
	} {
		if d <= 0 {
			return fmt.Errorf("timing.%s must be positive", name)
		}
	}

	for name, d := range map[string]time.Duration{
		"warmUp":    c.Timing.WarmUp,
		"settle":    c.Timing.Settle,
		"stabilize": c.Timing.Stabilize,
	} {
		if d < 0 {
			return fmt.Errorf("timing.%s must not be negative", name)
		}
	}

	return nil
}
