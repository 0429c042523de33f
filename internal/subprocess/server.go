package subprocess

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/wagiedev/gdbprobe/internal/errors"
	"github.com/wagiedev/gdbprobe/internal/jsonrpc"
)

const (
	// maxScanTokenSize is the maximum buffer size for reading output lines.
	maxScanTokenSize = 1024 * 1024 // 1MB

	// maxStderrTail caps the in-memory stderr tail kept for failure
	// reports. The drain keeps reading past this limit; only the buffer
	// stops growing.
	maxStderrTail = 256 * 1024

	// eventBuffer decouples the stdout reader from ReadResponse so the
	// server is never blocked on an unread line between exchanges.
	eventBuffer = 64
)

// readEvent is one line's worth of stdout: a decoded response, a skipped
// non-protocol line, or a decode error.
type readEvent struct {
	resp *jsonrpc.Response
	skip string
	err  error
}

// ServerProcess owns one server child process and its three streams.
//
// The stdin stream is written by the caller (under an internal mutex), the
// stdout stream is consumed by a reader goroutine feeding ReadResponse, and
// the stderr stream is drained by its own goroutine for the life of the
// process. No stream is touched by more than one goroutine.
type ServerProcess struct {
	log      *slog.Logger
	path     string
	env      map[string]string
	grace    time.Duration
	onStderr func(string)

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	events  chan readEvent
	stopped chan struct{}
	eg      *errgroup.Group

	mu          sync.Mutex // protects stdin writes and closing state
	stdinClosed bool
	closeOnce   sync.Once
	closeErr    error

	stderrMu   sync.Mutex
	stderrTail strings.Builder
}

// Options configures a ServerProcess.
type Options struct {
	// Path is the server executable, launched with no arguments.
	Path string

	// Env is merged on top of the inherited environment.
	Env map[string]string

	// ShutdownGrace is how long Close waits after SIGTERM before SIGKILL.
	ShutdownGrace time.Duration

	// OnStderr, if set, receives every stderr line as it is drained.
	OnStderr func(string)
}

// New creates an unstarted ServerProcess.
func New(log *slog.Logger, opts Options) *ServerProcess {
	grace := opts.ShutdownGrace
	if grace <= 0 {
		grace = 5 * time.Second
	}

	return &ServerProcess{
		log:      log.With("component", "server_process"),
		path:     opts.Path,
		env:      opts.Env,
		grace:    grace,
		onStderr: opts.OnStderr,
	}
}

// Start launches the server process and begins draining its streams.
// Launching is not cancellable; teardown is owned by Close.
//
// The executable must exist and be a regular file. The process is placed in
// its own process group so termination reaches any GDB children it spawns.
// Returns a LaunchError if the process cannot be started.
func (p *ServerProcess) Start(_ context.Context) error {
	info, err := os.Stat(p.path)
	if err != nil {
		return &errors.LaunchError{Path: p.path, Err: err}
	}

	if info.IsDir() {
		return &errors.LaunchError{Path: p.path, Err: fmt.Errorf("is a directory")}
	}

	p.log.Info("Starting server process", "path", p.path)

	//nolint:gosec // G204: launching a caller-chosen server binary is the point
	cmd := exec.Command(p.path)
	cmd.Env = buildEnvironment(p.env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &errors.LaunchError{Path: p.path, Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &errors.LaunchError{Path: p.path, Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &errors.LaunchError{Path: p.path, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		return &errors.LaunchError{Path: p.path, Err: err}
	}

	p.cmd = cmd
	p.stdin = stdin
	p.events = make(chan readEvent, eventBuffer)
	p.stopped = make(chan struct{})
	p.eg = &errgroup.Group{}

	p.eg.Go(func() error {
		p.drainStderr(stderr)

		return nil
	})

	p.eg.Go(func() error {
		p.readStdout(stdout)

		return nil
	})

	p.log.Info("Server process started", "pid", cmd.Process.Pid)

	return nil
}

// Pid returns the server's process ID, or 0 before Start.
func (p *ServerProcess) Pid() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}

	return p.cmd.Process.Pid
}

// drainStderr consumes the diagnostic stream for the life of the process.
// It never returns an error into the main flow: the stream exists to be
// observed, and an unread pipe would stall the server entirely.
func (p *ServerProcess) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, maxScanTokenSize)
	scanner.Buffer(buf, maxScanTokenSize)

	for scanner.Scan() {
		line := scanner.Text()

		p.log.Debug("ERR", "line", line)

		p.stderrMu.Lock()

		if p.stderrTail.Len() < maxStderrTail {
			if p.stderrTail.Len() > 0 {
				p.stderrTail.WriteString("\n")
			}

			p.stderrTail.WriteString(line)
		}

		p.stderrMu.Unlock()

		if p.onStderr != nil {
			p.onStderr(line)
		}
	}

	if err := scanner.Err(); err != nil {
		p.log.Debug("Stderr scanner stopped", "error", err)
	}
}

// readStdout scans the output stream line by line, runs each line through
// the codec, and forwards the outcome as an event. The channel closes at
// end-of-stream.
func (p *ServerProcess) readStdout(r io.Reader) {
	defer close(p.events)

	scanner := bufio.NewScanner(r)
	buf := make([]byte, maxScanTokenSize)
	scanner.Buffer(buf, maxScanTokenSize)

	for scanner.Scan() {
		line := scanner.Bytes()

		resp, ok, err := jsonrpc.DecodeLine(line)

		var ev readEvent

		switch {
		case err != nil:
			ev = readEvent{err: err}
		case !ok:
			ev = readEvent{skip: strings.TrimSpace(string(line))}
		default:
			ev = readEvent{resp: resp}
		}

		// Close() stops consumption; dropping late output here keeps this
		// goroutine from wedging on a full channel during teardown.
		select {
		case p.events <- ev:
		case <-p.stopped:
			return
		}
	}

	if err := scanner.Err(); err != nil {
		p.log.Debug("Stdout scanner stopped", "error", err)
	}
}

// Send writes one encoded protocol line to the server's input stream.
func (p *ServerProcess) Send(ctx context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stdin == nil {
		return errors.ErrNotStarted
	}

	if p.stdinClosed {
		return errors.ErrStdinClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if _, err := p.stdin.Write(data); err != nil {
		p.log.Error("Failed to write to server stdin", "error", err)

		return &errors.BrokenPipeError{Err: err}
	}

	return nil
}

// ReadResponse returns the next protocol line from the output stream, waiting
// at most timeout for it.
//
// The budget is per-attempt: a skipped non-protocol line restarts a fresh
// full timeout for the next line, because skip lines are noise, not delay.
// A malformed protocol line fails this read. End-of-stream returns
// ErrStreamClosed rather than blocking; timer expiry returns ErrReadTimeout.
func (p *ServerProcess) ReadResponse(
	ctx context.Context,
	timeout time.Duration,
) (*jsonrpc.Response, error) {
	if p.events == nil {
		return nil, errors.ErrNotStarted
	}

	for {
		timer := time.NewTimer(timeout)

		select {
		case ev, ok := <-p.events:
			timer.Stop()

			if !ok {
				return nil, errors.ErrStreamClosed
			}

			if ev.err != nil {
				return nil, ev.err
			}

			if ev.resp == nil {
				p.log.Debug("SKIP", "line", ev.skip)

				continue
			}

			return ev.resp, nil

		case <-timer.C:
			return nil, errors.ErrReadTimeout

		case <-ctx.Done():
			timer.Stop()

			return nil, ctx.Err()
		}
	}
}

// StderrTail returns the captured stderr tail for failure reports.
func (p *ServerProcess) StderrTail() string {
	p.stderrMu.Lock()
	defer p.stderrMu.Unlock()

	return p.stderrTail.String()
}

// Close terminates the server process: SIGTERM to its process group, a
// bounded grace wait, then SIGKILL. It drains any pending output, joins both
// stream goroutines, and reaps the process. Safe to call more than once.
func (p *ServerProcess) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.terminate()
	})

	return p.closeErr
}

func (p *ServerProcess) terminate() error {
	p.mu.Lock()

	if p.stdin != nil && !p.stdinClosed {
		_ = p.stdin.Close()
	}

	p.stdinClosed = true

	p.mu.Unlock()

	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}

	pid := p.cmd.Process.Pid
	p.log.Info("Terminating server process", "pid", pid)

	close(p.stopped)

	// Negative pid signals the whole process group, reaching GDB children.
	if err := unix.Kill(-pid, unix.SIGTERM); err != nil {
		p.log.Debug("SIGTERM failed, process may have exited", "error", err)
	}

	done := make(chan struct{})

	go func() {
		_ = p.eg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.grace):
		p.log.Warn("Server did not exit within grace period, killing", "pid", pid)

		if err := unix.Kill(-pid, unix.SIGKILL); err != nil {
			p.log.Debug("SIGKILL failed", "error", err)
		}

		<-done
	}

	// Streams are fully drained; reap the process. A signal exit is the
	// expected outcome here, not a failure.
	if err := p.cmd.Wait(); err != nil {
		p.log.Debug("Server process exited", "error", err)
	} else {
		p.log.Info("Server process exited cleanly")
	}

	return nil
}

// buildEnvironment merges overrides on top of the inherited environment.
func buildEnvironment(overrides map[string]string) []string {
	env := os.Environ()

	for key, value := range overrides {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	return env
}
