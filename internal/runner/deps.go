package runner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Paintersrp/procctl/internal/config"
)

// ErrDependency is returned for a process whose dependencies were never
// satisfied.
var ErrDependency = errors.New("dependency not satisfied")

// gate tracks the milestones other processes can wait for.
type gate struct {
	started  chan struct{}
	ready    chan struct{}
	finished chan struct{}

	startOnce, readyOnce, finishOnce sync.Once
}

func newGate() *gate {
	return &gate{
		started:  make(chan struct{}),
		ready:    make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (g *gate) markStarted()  { g.startOnce.Do(func() { close(g.started) }) }
func (g *gate) markReady()    { g.readyOnce.Do(func() { close(g.ready) }) }
func (g *gate) markFinished() { g.finishOnce.Do(func() { close(g.finished) }) }

func (g *gate) milestone(require string) <-chan struct{} {
	switch require {
	case config.RequireReady:
		return g.ready
	case config.RequireExited:
		return g.finished
	default:
		return g.started
	}
}

func reached(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// advance moves the gate of the emitting process past milestones.
func (r *Runner) advance(evt Event) {
	g, ok := r.gates[evt.Process]
	if !ok {
		return
	}
	switch evt.Type {
	case EventTypeStarted:
		g.markStarted()
	case EventTypeReady:
		g.markReady()
	case EventTypeExited, EventTypeFailed:
		g.markFinished()
	}
}

// observeLine checks an output line against the ready pattern of name.
func (r *Runner) observeLine(name string, pid int, source, line string) {
	p, ok := r.ready[name]
	if !ok || !p.observe(source, line) {
		return
	}
	r.emit(Event{Process: name, Pid: pid, Type: EventTypeReady, Message: "matched " + p.pattern.String()})
}

// awaitDependencies blocks until every dependency of name reached its
// required milestone.
func (r *Runner) awaitDependencies(ctx context.Context, name string, spec *config.Process) error {
	if len(spec.DependsOn) == 0 {
		return nil
	}
	r.emit(Event{Process: name, Type: EventTypeWaiting, Message: fmt.Sprintf("waiting for %d dependencies", len(spec.DependsOn))})
	for _, dep := range spec.DependsOn {
		if err := r.awaitDependency(ctx, dep); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) awaitDependency(ctx context.Context, dep config.DepEdge) error {
	g, ok := r.gates[dep.Target]
	if !ok {
		return fmt.Errorf("%w: unknown process %q", ErrDependency, dep.Target)
	}
	want := g.milestone(dep.Require)

	var timeout <-chan time.Time
	if dep.Timeout.Duration > 0 {
		timer := time.NewTimer(dep.Timeout.Duration)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-want:
		return nil
	case <-g.finished:
		if reached(want) {
			return nil
		}
		return fmt.Errorf("%w: %s finished before it was %s", ErrDependency, dep.Target, dep.Require)
	case <-timeout:
		return fmt.Errorf("%w: %s not %s after %s", ErrDependency, dep.Target, dep.Require, dep.Timeout.Duration)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readiness matches output lines against a ready pattern.
type readiness struct {
	pattern *regexp.Regexp
	sources map[string]struct{}
	matched atomic.Bool
}

func newReadiness(spec *config.ReadySpec) (*readiness, error) {
	pattern, err := regexp.Compile(spec.Pattern)
	if err != nil {
		return nil, err
	}
	sources := make(map[string]struct{}, len(spec.Sources))
	for _, src := range spec.Sources {
		sources[src] = struct{}{}
	}
	return &readiness{pattern: pattern, sources: sources}, nil
}

// observe reports whether line made the process ready for the first time.
func (p *readiness) observe(source, line string) bool {
	if p.matched.Load() {
		return false
	}
	if len(p.sources) > 0 {
		if _, ok := p.sources[source]; !ok {
			return false
		}
	}
	if !p.pattern.MatchString(line) {
		return false
	}
	return p.matched.CompareAndSwap(false, true)
}
