package api

import (
	stdcontext "context"
	"errors"
	"time"
)

var (
	ErrUnknownProcess    = errors.New("unknown process")
	ErrProcessNotRunning = errors.New("process not running")
)

// ProcessReport describes the observed state of a single process.
type ProcessReport struct {
	Name      string    `json:"name"`
	Mode      string    `json:"mode"`
	Pid       int       `json:"pid"`
	State     string    `json:"state"`
	ExitValue *int      `json:"exit_value,omitempty"`
	Killed    bool      `json:"killed"`
	Message   string    `json:"message"`
	FirstSeen time.Time `json:"first_seen"`
	LastEvent time.Time `json:"last_event"`
}

// StatusReport aggregates the state of every process in a manifest run.
type StatusReport struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Processes   map[string]ProcessReport `json:"processes"`
}

// KillResult captures the outcome of a kill request.
type KillResult struct {
	Process     string    `json:"process"`
	Pid         int       `json:"pid"`
	RequestedAt time.Time `json:"requested_at"`
}

// Controller exposes the run operations served by the control server.
type Controller interface {
	Status(stdcontext.Context) (*StatusReport, error)
	Kill(stdcontext.Context, string) (*KillResult, error)
}
