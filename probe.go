package gdbprobe

import (
	"context"
	"log/slog"

	"github.com/wagiedev/gdbprobe/internal/config"
	"github.com/wagiedev/gdbprobe/internal/scenario"
)

// Report is the per-stage outcome of a probe run.
type Report = scenario.Report

// Config describes one probe run; see the config package for defaults.
type Config = config.Config

// Probe runs the diagnostic scenario against one server process.
type Probe struct {
	log      *slog.Logger
	cfg      *config.Config
	onStderr func(string)
}

// Option configures a Probe using the functional options pattern.
type Option func(*Probe)

// WithLogger sets the logger for scenario narration and server diagnostics.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(p *Probe) {
		p.log = logger
	}
}

// WithConfig replaces the default scenario configuration.
func WithConfig(cfg *config.Config) Option {
	return func(p *Probe) {
		p.cfg = cfg
	}
}

// WithStderrCallback receives every line of the server's diagnostic stream
// as it is drained.
func WithStderrCallback(fn func(string)) Option {
	return func(p *Probe) {
		p.onStderr = fn
	}
}

// New creates a Probe with the given options.
func New(opts ...Option) *Probe {
	p := &Probe{
		log: NopLogger(),
		cfg: config.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Run validates the configuration and executes the scenario once. The
// returned report always includes a teardown outcome: the server process is
// terminated on every exit path past launch.
func (p *Probe) Run(ctx context.Context) (*Report, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	runner := scenario.NewRunner(p.log, p.cfg, p.onStderr)

	return runner.Run(ctx), nil
}

// LoadConfig reads a YAML config file merged over the defaults.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns the fixed upstream scenario configuration.
func DefaultConfig() *Config {
	return config.Default()
}
