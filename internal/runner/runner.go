// Package runner drives the processes of a manifest through the process
// package and reports what happens as a stream of events.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Paintersrp/procctl/internal/api"
	"github.com/Paintersrp/procctl/internal/config"
	"github.com/Paintersrp/procctl/internal/process"
	"github.com/Paintersrp/procctl/internal/stream"
)

// endOfTransmission ends terminal input in canonical mode.
const endOfTransmission = "\x04"

// Outcome is the final state of one process.
type Outcome struct {
	Pid       int
	ExitValue int
	// Exited is false for variants that return no handle to wait on.
	Exited bool
	Killed bool
	Err    error
}

// Runner executes a manifest.
type Runner struct {
	manifest *config.Manifest
	events   chan<- Event
	log      zerolog.Logger

	gates map[string]*gate
	ready map[string]*readiness

	mu     sync.Mutex
	status map[string]*api.ProcessReport
	live   map[string]supervised
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the diagnostics logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// New returns a runner that sends events to events. A nil channel discards
// them. The channel is not closed by the runner.
func New(m *config.Manifest, events chan<- Event, opts ...Option) *Runner {
	r := &Runner{
		manifest: m,
		events:   events,
		log:      zerolog.Nop(),
		gates:    make(map[string]*gate, len(m.Processes)),
		ready:    make(map[string]*readiness),
		status:   make(map[string]*api.ProcessReport, len(m.Processes)),
		live:     make(map[string]supervised),
	}
	for _, opt := range opts {
		opt(r)
	}
	for name, spec := range m.Processes {
		r.gates[name] = newGate()
		r.status[name] = &api.ProcessReport{Name: name, Mode: spec.Mode, State: "pending"}
		if spec.Ready == nil {
			continue
		}
		p, err := newReadiness(spec.Ready)
		if err != nil {
			r.log.Warn().Err(err).Str("process", name).Msg("ignoring ready pattern")
			continue
		}
		r.ready[name] = p
	}
	return r
}

// Run starts every process and returns once all of them have finished.
// Cancelling ctx kills the processes that are still running.
func (r *Runner) Run(ctx context.Context) (map[string]Outcome, error) {
	names := r.manifest.Names()
	outcomes := make(map[string]Outcome, len(names))
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs []error
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string, spec *config.Process) {
			defer wg.Done()
			out := r.runProcess(ctx, name, spec)
			mu.Lock()
			defer mu.Unlock()
			outcomes[name] = out
			if out.Err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, out.Err))
			}
		}(name, r.manifest.Processes[name])
	}
	wg.Wait()
	return outcomes, errors.Join(errs...)
}

func (r *Runner) runProcess(ctx context.Context, name string, spec *config.Process) Outcome {
	var out Outcome
	if err := r.awaitDependencies(ctx, name, spec); err != nil {
		out.Err = err
		r.emit(Event{Process: name, Type: EventTypeFailed, Level: "error", Message: err.Error(), Err: err})
		return out
	}
	r.emit(Event{Process: name, Type: EventTypeStarting, Message: commandLine(spec)})
	switch spec.Mode {
	case config.ModeStart:
		out = r.runStart(ctx, name, spec)
	case config.ModePipe:
		out = r.runPipe(ctx, name, spec)
	case config.ModePipe2, config.ModePty:
		out = r.runDuplex(name, spec)
	default:
		out = Outcome{Err: fmt.Errorf("unknown mode %q", spec.Mode)}
	}
	switch {
	case out.Err != nil:
		r.emit(Event{Process: name, Pid: out.Pid, Type: EventTypeFailed, Level: "error", Message: out.Err.Error(), Err: out.Err})
	case out.Exited:
		r.emit(Event{Process: name, Pid: out.Pid, Type: EventTypeExited, ExitValue: out.ExitValue,
			Message: fmt.Sprintf("exit value %d", out.ExitValue)})
	default:
		r.emit(Event{Process: name, Type: EventTypeExited, Message: "output closed"})
	}
	return out
}

func (r *Runner) runStart(ctx context.Context, name string, spec *config.Process) Outcome {
	streams, err := openStdio(spec)
	if err != nil {
		return Outcome{Err: err}
	}
	h, err := process.Start(spec.Command, spec.Args, streams[0], streams[1], streams[2])
	for _, s := range streams {
		_ = s.Release()
	}
	if err != nil {
		return Outcome{Err: err}
	}
	defer process.Release(h)
	r.emit(Event{Process: name, Pid: h.Pid(), Type: EventTypeStarted, Message: "pid " + h.String()})
	return r.supervise(ctx, name, spec, h)
}

func (r *Runner) runPipe(ctx context.Context, name string, spec *config.Process) Outcome {
	h, err := process.StartPipe(spec.Command, spec.Args)
	if err != nil {
		return Outcome{Err: err}
	}
	defer process.Release(h)
	r.emit(Event{Process: name, Pid: h.Pid(), Type: EventTypeStarted, Message: "pid " + h.String()})

	stdin, _ := process.ChildStdIn(h)
	stdout, _ := process.ChildStdOut(h)
	stderr, _ := process.ChildStdErr(h)

	var wg sync.WaitGroup
	wg.Add(2)
	go r.scan(&wg, name, h.Pid(), LogSourceStdout, stdout)
	go r.scan(&wg, name, h.Pid(), LogSourceStderr, stderr)

	// A child that never reads its input must not hold up supervision.
	fed := make(chan struct{})
	go func() {
		defer close(fed)
		defer stdin.Release()
		r.feed(name, stdin, spec.Input)
		_ = stdin.Close()
	}()

	out := r.supervise(ctx, name, spec, h)
	// The child is gone; unblock a writer still stuck on a full pipe.
	_ = stdin.Close()
	<-fed
	wg.Wait()
	return out
}

// runDuplex covers pipe2 and pty. No handle is returned for them, so the
// process is considered finished when its output closes.
func (r *Runner) runDuplex(name string, spec *config.Process) Outcome {
	var stdin, stdout *stream.Handle
	var err error
	if spec.Mode == config.ModePty {
		err = process.Pty(spec.Command, spec.Args, &stdin, &stdout)
	} else {
		err = process.Pipe2(spec.Command, spec.Args, &stdin, &stdout)
	}
	if err != nil {
		return Outcome{Err: err}
	}
	r.emit(Event{Process: name, Type: EventTypeStarted, Message: spec.Mode})

	var wg sync.WaitGroup
	wg.Add(1)
	go r.scan(&wg, name, 0, LogSourceStdout, stdout)

	// Closing a terminal master does not signal EOF to the child, so a
	// real pseudo terminal gets ^D instead. The pipe fallback is closed.
	input := spec.Input
	onTerminal := spec.Mode == config.ModePty && stdin.IsTerminal()
	if onTerminal {
		input += endOfTransmission
	}
	fed := make(chan struct{})
	go func() {
		defer close(fed)
		r.feed(name, stdin, input)
		if !onTerminal {
			_ = stdin.Close()
		}
	}()

	wg.Wait()
	// Output is closed, so input nobody reads any more is abandoned.
	_ = stdin.Close()
	<-fed
	_ = stdin.Release()
	return Outcome{}
}

func (r *Runner) feed(name string, stdin *stream.Handle, input string) {
	if input == "" {
		return
	}
	if _, err := stdin.Write([]byte(input)); err != nil {
		r.log.Debug().Err(err).Str("process", name).Msg("write child input")
	}
}

// scan turns output lines into log events and releases s at end of file.
// Pseudo terminals report an I/O error instead of EOF once the child is
// gone; both end the scan.
func (r *Runner) scan(wg *sync.WaitGroup, name string, pid int, source string, s *stream.Handle) {
	defer wg.Done()
	defer s.Release()
	level := "info"
	if source == LogSourceStderr {
		level = "warn"
	}
	scanner := bufio.NewScanner(s)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		r.emit(Event{Process: name, Pid: pid, Type: EventTypeLog, Source: source, Level: level, Message: line})
		r.observeLine(name, pid, source, line)
	}
	if err := scanner.Err(); err != nil {
		r.log.Debug().Err(err).Str("process", name).Str("source", source).Msg("output scan ended")
	}
}

// supervise polls the child until it exits, killing it when killAfter
// elapses or ctx is cancelled.
func (r *Runner) supervise(ctx context.Context, name string, spec *config.Process, h *process.Handle) Outcome {
	out := Outcome{Pid: h.Pid()}
	interval := r.manifest.Defaults.PollInterval.Duration
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if spec.KillAfter.Duration > 0 {
		timer := time.NewTimer(spec.KillAfter.Duration)
		defer timer.Stop()
		deadline = timer.C
	}

	requested := r.register(name, h.Pid())
	defer r.unregister(name)

	for {
		alive, err := h.IsAlive()
		if err != nil {
			out.Err = err
			return out
		}
		if !alive {
			break
		}
		var reason string
		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			reason = "cancelled"
		case <-deadline:
			reason = "killAfter " + spec.KillAfter.Duration.String()
		case <-requested:
			reason = "kill requested"
		}
		if err := h.Kill(); err != nil {
			r.log.Warn().Err(err).Str("process", name).Msg("kill failed")
		} else {
			out.Killed = true
			r.emit(Event{Process: name, Pid: h.Pid(), Type: EventTypeKilled, Level: "warn", Message: reason})
		}
		if err := h.WaitFor(); err != nil {
			out.Err = err
			return out
		}
		break
	}

	code, err := h.ExitValue()
	if err != nil {
		out.Err = err
		return out
	}
	out.ExitValue = code
	out.Exited = true
	r.log.Debug().Str("process", name).Int("pid", out.Pid).Int("exit_value", code).Msg("process finished")
	return out
}

// openStdio opens the redirect targets of a start mode process. The caller
// releases the returned streams once the spawn returned.
func openStdio(spec *config.Process) ([3]*stream.Handle, error) {
	var streams [3]*stream.Handle
	targets := [3]string{spec.Stdin, spec.Stdout, spec.Stderr}
	std := [3]*stream.Handle{stream.Stdin(), stream.Stdout(), stream.Stderr()}
	for i, target := range targets {
		switch target {
		case config.StdioInherit, "":
			streams[i] = std[i]
		case config.StdioDiscard:
			streams[i] = stream.Null()
		default:
			var f *os.File
			var err error
			if i == 0 {
				f, err = os.Open(target)
			} else {
				f, err = os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
			}
			if err != nil {
				for _, s := range streams[:i] {
					_ = s.Release()
				}
				return streams, fmt.Errorf("open %s: %w", target, err)
			}
			streams[i] = stream.Wrap(f, i == 0, i != 0)
		}
	}
	return streams, nil
}

func commandLine(spec *config.Process) string {
	parts := append([]string{spec.Command}, spec.Args...)
	return strings.Join(parts, " ")
}
