package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/Paintersrp/procctl/internal/api"
)

var _ api.Controller = (*Runner)(nil)

// track records evt in the status table.
func (r *Runner) track(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.status[evt.Process]
	if !ok {
		return
	}
	if report.FirstSeen.IsZero() {
		report.FirstSeen = evt.Timestamp
	}
	report.LastEvent = evt.Timestamp
	if evt.Pid != 0 {
		report.Pid = evt.Pid
	}
	if evt.Type == EventTypeLog {
		return
	}
	report.State = string(evt.Type)
	report.Message = evt.Message
	switch evt.Type {
	case EventTypeKilled:
		report.Killed = true
	case EventTypeExited:
		if evt.Pid != 0 {
			code := evt.ExitValue
			report.ExitValue = &code
		}
	}
}

// Status reports the current state of every process.
func (r *Runner) Status(context.Context) (*api.StatusReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := &api.StatusReport{
		GeneratedAt: time.Now(),
		Processes:   make(map[string]api.ProcessReport, len(r.status)),
	}
	for name, report := range r.status {
		copied := *report
		if report.ExitValue != nil {
			code := *report.ExitValue
			copied.ExitValue = &code
		}
		out.Processes[name] = copied
	}
	return out, nil
}

// Kill asks the supervisor of name to kill its child. Only start and pipe
// mode processes have a handle that can be killed.
func (r *Runner) Kill(_ context.Context, name string) (*api.KillResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.status[name]; !ok {
		return nil, fmt.Errorf("%s: %w", name, api.ErrUnknownProcess)
	}
	sup, ok := r.live[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, api.ErrProcessNotRunning)
	}
	select {
	case sup.kill <- struct{}{}:
	default:
	}
	return &api.KillResult{Process: name, Pid: sup.pid, RequestedAt: time.Now()}, nil
}

type supervised struct {
	pid  int
	kill chan struct{}
}

func (r *Runner) register(name string, pid int) <-chan struct{} {
	sup := supervised{pid: pid, kill: make(chan struct{}, 1)}
	r.mu.Lock()
	r.live[name] = sup
	r.mu.Unlock()
	return sup.kill
}

func (r *Runner) unregister(name string) {
	r.mu.Lock()
	delete(r.live, name)
	r.mu.Unlock()
}
