// Package scenario sequences the fixed diagnostic exchange against the GDB
// MCP server: handshake, readiness notification, session start, token
// extraction, and the dependent load call, with guaranteed teardown.
package scenario

import (
	"fmt"
	"log/slog"
)

// Stage names one step of the scenario state machine.
type Stage string

const (
	StageLaunch        Stage = "launch"
	StageHandshake     Stage = "handshake"
	StageAnnounceReady Stage = "announce-ready"
	StageStartSession  Stage = "start-session"
	StageAwaitSettle   Stage = "await-settle"
	StageDependentCall Stage = "dependent-call"
	StageTeardown      Stage = "teardown"
)

// Status is a stage's final disposition.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Outcome records how one stage ended. Err is nil unless Status is failed.
type Outcome struct {
	Stage  Stage
	Status Status
	Err    error
	Detail string
}

func (o Outcome) String() string {
	switch o.Status {
	case StatusFailed:
		return fmt.Sprintf("%-14s %s: %v", o.Stage, o.Status, o.Err)
	case StatusSkipped:
		return fmt.Sprintf("%-14s %s", o.Stage, o.Status)
	default:
		if o.Detail != "" {
			return fmt.Sprintf("%-14s %s (%s)", o.Stage, o.Status, o.Detail)
		}

		return fmt.Sprintf("%-14s %s", o.Stage, o.Status)
	}
}

// Report is the ordered outcome of a full run.
type Report struct {
	Outcomes []Outcome

	// SessionID is the token extracted during start-session, if any.
	SessionID string
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Outcome returns the recorded outcome for a stage.
func (r *Report) Outcome(stage Stage) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Stage == stage {
			return o, true
		}
	}

	return Outcome{}, false
}

// Failed reports whether any stage failed.
func (r *Report) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			return true
		}
	}

	return false
}

// Summarize logs one line per stage at a level matching its status.
func (r *Report) Summarize(log *slog.Logger) {
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusFailed:
			log.Error("Stage failed", "stage", o.Stage, "error", o.Err)
		case StatusSkipped:
			log.Info("Stage skipped", "stage", o.Stage)
		default:
			log.Info("Stage completed", "stage", o.Stage, "detail", o.Detail)
		}
	}
}
