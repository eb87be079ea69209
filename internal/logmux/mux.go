package logmux

import (
	"fmt"
	"sync"
	"time"

	"github.com/Paintersrp/procctl/internal/runner"
)

// Mux fans in log events from multiple processes and delivers them via a
// bounded channel. When the consumer falls behind and the output buffer is
// full, log lines are dropped and a synthesized warning reports how many
// were lost for each process.
type Mux struct {
	out chan runner.Event

	mu     sync.Mutex
	drops  map[string]int
	inputs sync.WaitGroup
}

// New constructs a mux backed by a channel of the provided size. A size of
// zero results in a minimally buffered channel.
func New(size int) *Mux {
	if size <= 0 {
		size = 1
	}
	return &Mux{
		out:   make(chan runner.Event, size),
		drops: make(map[string]int),
	}
}

// Output exposes the muxed event channel.
func (m *Mux) Output() <-chan runner.Event {
	return m.out
}

// Add registers a source channel. Non-log events are ignored; the mux
// consumes the source until it is closed.
func (m *Mux) Add(source <-chan runner.Event) {
	if source == nil {
		return
	}
	m.inputs.Add(1)
	go func() {
		defer m.inputs.Done()
		for evt := range source {
			if evt.Type != runner.EventTypeLog {
				continue
			}
			m.deliver(normalize(evt))
		}
	}()
}

// Close waits for all sources to be drained, emits any pending drop
// markers, and closes the output channel.
func (m *Mux) Close() {
	m.inputs.Wait()
	for name, count := range m.takeAllDrops() {
		m.out <- dropEvent(name, count)
	}
	close(m.out)
}

func (m *Mux) deliver(evt runner.Event) {
	// Pending drop markers for the process go out first so the consumer
	// sees the gap where it happened.
	if n := m.takeDrops(evt.Process); n > 0 && !m.trySend(dropEvent(evt.Process, n)) {
		m.addDrops(evt.Process, n+1)
		return
	}
	if !m.trySend(evt) {
		m.addDrops(evt.Process, 1)
	}
}

func (m *Mux) takeDrops(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.drops[name]
	delete(m.drops, name)
	return n
}

func (m *Mux) addDrops(name string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drops[name] += n
}

func (m *Mux) takeAllDrops() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending := m.drops
	m.drops = make(map[string]int)
	return pending
}

func (m *Mux) trySend(evt runner.Event) bool {
	select {
	case m.out <- evt:
		return true
	default:
		return false
	}
}

func normalize(evt runner.Event) runner.Event {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if evt.Source == "" {
		evt.Source = runner.LogSourceStdout
	}
	if evt.Level == "" {
		if evt.Source == runner.LogSourceStderr {
			evt.Level = "warn"
		} else {
			evt.Level = "info"
		}
	}
	return evt
}

func dropEvent(name string, count int) runner.Event {
	return runner.Event{
		Timestamp: time.Now(),
		Process:   name,
		Type:      runner.EventTypeLog,
		Message:   fmt.Sprintf("dropped=%d", count),
		Level:     "warn",
		Source:    runner.LogSourceSystem,
	}
}
