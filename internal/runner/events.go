package runner

import "time"

// EventType captures the notifications emitted while running a manifest.
type EventType string

const (
	EventTypeWaiting  EventType = "waiting"
	EventTypeStarting EventType = "starting"
	EventTypeStarted  EventType = "started"
	EventTypeReady    EventType = "ready"
	EventTypeLog      EventType = "log"
	EventTypeKilled   EventType = "killed"
	EventTypeExited   EventType = "exited"
	EventTypeFailed   EventType = "failed"
)

// Log sources.
const (
	LogSourceStdout = "stdout"
	LogSourceStderr = "stderr"
	LogSourceSystem = "system"
)

// Event represents a single lifecycle or output notification.
type Event struct {
	Timestamp time.Time
	Process   string
	Pid       int
	Type      EventType
	Message   string
	Level     string
	Source    string
	ExitValue int
	Err       error
}

func (r *Runner) emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if evt.Source == "" {
		evt.Source = LogSourceSystem
	}
	if evt.Level == "" {
		evt.Level = "info"
	}
	r.track(evt)
	// Dependents are released only after the event is delivered, so
	// consumers see milestones in order.
	if r.events != nil {
		r.events <- evt
	}
	r.advance(evt)
}
