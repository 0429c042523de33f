package scenario

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wagiedev/gdbprobe/internal/config"
	"github.com/wagiedev/gdbprobe/internal/errors"
	"github.com/wagiedev/gdbprobe/internal/jsonrpc"
	"github.com/wagiedev/gdbprobe/internal/session"
	"github.com/wagiedev/gdbprobe/internal/subprocess"
)

const (
	// protocolVersion is the fixed capability-negotiation literal.
	protocolVersion = "2024-11-05"

	clientName    = "gdbprobe"
	clientVersion = "1.0"

	methodInitialize  = "initialize"
	methodInitialized = "notifications/initialized"
	methodToolsCall   = "tools/call"

	toolStartSession = "gdb_start"
	toolLoadProgram  = "gdb_load"
	toolTerminate    = "gdb_terminate"
)

// Process is the subset of subprocess.ServerProcess the runner drives.
// The indirection exists so scenario tests can substitute a scripted fake.
type Process interface {
	Start(ctx context.Context) error
	Send(ctx context.Context, data []byte) error
	ReadResponse(ctx context.Context, timeout time.Duration) (*jsonrpc.Response, error)
	StderrTail() string
	Close() error
}

// Compile-time verification that the real process satisfies Process.
var _ Process = (*subprocess.ServerProcess)(nil)

// Runner executes the scenario once against one server process.
type Runner struct {
	log  *slog.Logger
	cfg  *config.Config
	proc Process

	sessionID string
}

// NewRunner creates a runner that launches the configured server binary.
// onStderr, if non-nil, observes the server's diagnostic stream line by line.
func NewRunner(log *slog.Logger, cfg *config.Config, onStderr func(string)) *Runner {
	return NewRunnerWithProcess(log, cfg, subprocess.New(log, subprocess.Options{
		Path:          cfg.ServerPath,
		Env:           cfg.Env,
		ShutdownGrace: cfg.Timing.ShutdownGrace,
		OnStderr:      onStderr,
	}))
}

// NewRunnerWithProcess creates a runner driving the given process.
func NewRunnerWithProcess(log *slog.Logger, cfg *config.Config, proc Process) *Runner {
	return &Runner{
		log:  log.With("component", "scenario"),
		cfg:  cfg,
		proc: proc,
	}
}

// Run executes every stage in order. A failed stage fails its outcome and
// skips the remaining exchanges; teardown runs on every exit path and is
// recorded last.
func (r *Runner) Run(ctx context.Context) *Report {
	report := &Report{}

	defer r.teardown(ctx, report)

	steps := []struct {
		stage Stage
		fn    func(context.Context) (string, error)
	}{
		{StageLaunch, r.launch},
		{StageHandshake, r.handshake},
		{StageAnnounceReady, r.announceReady},
		{StageStartSession, r.startSession},
		{StageAwaitSettle, r.awaitSettle},
		{StageDependentCall, r.dependentCall},
	}

	failed := false

	for _, step := range steps {
		if failed {
			report.add(Outcome{Stage: step.stage, Status: StatusSkipped})

			continue
		}

		detail, err := step.fn(ctx)
		if err != nil {
			r.log.Error("Stage failed", "stage", step.stage, "error", err)

			if tail := r.proc.StderrTail(); tail != "" {
				r.log.Debug("Server stderr tail", "stderr", tail)
			}

			report.add(Outcome{Stage: step.stage, Status: StatusFailed, Err: err})

			failed = true

			continue
		}

		report.add(Outcome{Stage: step.stage, Status: StatusOK, Detail: detail})
	}

	report.SessionID = r.sessionID

	return report
}

func (r *Runner) launch(ctx context.Context) (string, error) {
	if err := r.proc.Start(ctx); err != nil {
		return "", err
	}

	// The server needs time to attach its protocol listener; writing
	// earlier than this loses the first request.
	r.sleep(ctx, r.cfg.Timing.WarmUp)

	return fmt.Sprintf("warm-up %s", r.cfg.Timing.WarmUp), nil
}

func (r *Runner) handshake(ctx context.Context) (string, error) {
	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": clientVersion,
		},
	}

	resp, err := r.call(ctx, methodInitialize, params, r.cfg.Timing.HandshakeTimeout)
	if err != nil {
		if stderrors.Is(err, errors.ErrReadTimeout) {
			return "", fmt.Errorf("handshake: %w", err)
		}

		return "", err
	}

	if !resp.HasResult() {
		return "", fmt.Errorf("handshake rejected: %s", resp.ErrorMessage())
	}

	return "", nil
}

func (r *Runner) announceReady(ctx context.Context) (string, error) {
	if err := r.notify(ctx, methodInitialized, nil); err != nil {
		return "", err
	}

	r.sleep(ctx, r.cfg.Timing.Settle)

	return "", nil
}

func (r *Runner) startSession(ctx context.Context) (string, error) {
	params := map[string]any{
		"name":      toolStartSession,
		"arguments": map[string]any{},
	}

	resp, err := r.call(ctx, methodToolsCall, params, r.cfg.Timing.ToolTimeout)
	if err != nil {
		return "", err
	}

	if !resp.HasResult() {
		return "", fmt.Errorf("%s failed: %s", toolStartSession, resp.ErrorMessage())
	}

	text, err := session.FirstText(resp.Result)
	if err != nil {
		return "", fmt.Errorf("%s result: %w", toolStartSession, err)
	}

	id, found := session.ExtractID(text)
	if !found {
		return "", &errors.ExtractionFailure{Marker: session.IDMarker}
	}

	r.sessionID = id
	r.log.Info("Session started", "session_id", id)

	return fmt.Sprintf("session %s", id), nil
}

func (r *Runner) awaitSettle(ctx context.Context) (string, error) {
	// The fresh session needs time to stabilize before it accepts work.
	// A workaround for server behavior, kept configurable on purpose.
	r.sleep(ctx, r.cfg.Timing.Stabilize)

	return fmt.Sprintf("slept %s", r.cfg.Timing.Stabilize), nil
}

func (r *Runner) dependentCall(ctx context.Context) (string, error) {
	params := map[string]any{
		"name": toolLoadProgram,
		"arguments": map[string]any{
			"sessionId": r.sessionID,
			"program":   r.cfg.ProgramPath,
		},
	}

	resp, err := r.call(ctx, methodToolsCall, params, r.cfg.Timing.ToolTimeout)
	if err != nil {
		return "", err
	}

	if !resp.HasResult() {
		return "", fmt.Errorf("%s failed: %s", toolLoadProgram, resp.ErrorMessage())
	}

	return fmt.Sprintf("loaded %s", r.cfg.ProgramPath), nil
}

// teardown always runs, whatever happened earlier. It makes a best-effort
// attempt to terminate the GDB session cleanly, then stops the process.
func (r *Runner) teardown(ctx context.Context, report *Report) {
	if r.sessionID != "" {
		r.terminateSession(ctx)
	}

	if err := r.proc.Close(); err != nil {
		report.add(Outcome{Stage: StageTeardown, Status: StatusFailed, Err: err})

		return
	}

	report.add(Outcome{Stage: StageTeardown, Status: StatusOK})
}

// terminateSession asks the server to end the GDB session before the process
// goes away. Failures are narrated only; teardown proceeds regardless.
func (r *Runner) terminateSession(ctx context.Context) {
	params := map[string]any{
		"name": toolTerminate,
		"arguments": map[string]any{
			"sessionId": r.sessionID,
		},
	}

	resp, err := r.call(ctx, methodToolsCall, params, r.cfg.Timing.TerminateTimeout)
	if err != nil {
		r.log.Debug("Session terminate failed", "error", err)

		return
	}

	if !resp.HasResult() {
		r.log.Debug("Session terminate rejected", "error", resp.ErrorMessage())
	}
}

// call sends one request and waits for the response bearing its identifier.
// Responses carrying a different identifier are narrated and skipped; they
// are never treated as the answer.
func (r *Runner) call(
	ctx context.Context,
	method string,
	params any,
	timeout time.Duration,
) (*jsonrpc.Response, error) {
	req := jsonrpc.NewRequest(method, params)

	data, err := jsonrpc.Encode(req)
	if err != nil {
		return nil, err
	}

	r.log.Debug(">>>", "line", string(bytes.TrimRight(data, "\n")))

	if err := r.proc.Send(ctx, data); err != nil {
		return nil, err
	}

	for {
		resp, err := r.proc.ReadResponse(ctx, timeout)
		if err != nil {
			return nil, err
		}

		if !resp.IDEquals(req.ID) {
			r.log.Warn("Mismatched response identifier, skipping",
				"want", req.ID, "got", resp.ID)

			continue
		}

		r.log.Debug("<<<", "id", resp.ID, "error", resp.ErrorMessage())

		return resp, nil
	}
}

// notify sends a notification; no reply is expected or awaited.
func (r *Runner) notify(ctx context.Context, method string, params any) error {
	data, err := jsonrpc.Encode(jsonrpc.NewNotification(method, params))
	if err != nil {
		return err
	}

	r.log.Debug(">>>", "line", string(bytes.TrimRight(data, "\n")))

	return r.proc.Send(ctx, data)
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
