package config

import (
	"fmt"
	"os"
	"sort"
	"time"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// Spawn modes accepted in a manifest.
const (
	ModeStart = "start"
	ModePipe  = "pipe"
	ModePipe2 = "pipe2"
	ModePty   = "pty"
)

// Standard stream targets for the start mode. Any other value is a file
// path.
const (
	StdioInherit = "inherit"
	StdioDiscard = "discard"
)

// DefaultPollInterval is used when the manifest does not set one.
const DefaultPollInterval = 50 * time.Millisecond

// Manifest mirrors the procs.yaml document structure.
type Manifest struct {
	Version   string              `yaml:"version"`
	Defaults  Defaults            `yaml:"defaults"`
	Processes map[string]*Process `yaml:"processes"`

	// Dir is the directory holding the manifest; relative paths resolve
	// against it.
	Dir string `yaml:"-"`
}

// Defaults apply to every process that does not override them.
type Defaults struct {
	PollInterval Duration `yaml:"pollInterval"`
	KillAfter    Duration `yaml:"killAfter"`
}

// Process describes one child to run.
type Process struct {
	Command   string     `yaml:"command"`
	Args      []string   `yaml:"args"`
	Mode      string     `yaml:"mode"`
	Stdin     string     `yaml:"stdin"`
	Stdout    string     `yaml:"stdout"`
	Stderr    string     `yaml:"stderr"`
	Input     string     `yaml:"input"`
	KillAfter Duration   `yaml:"killAfter"`
	Ready     *ReadySpec `yaml:"ready"`
	DependsOn []DepEdge  `yaml:"dependsOn"`
}

// Dependency requirements.
const (
	RequireStarted = "started"
	RequireReady   = "ready"
	RequireExited  = "exited"
)

// DepEdge describes a dependency edge from one process to another.
type DepEdge struct {
	Target  string   `yaml:"target"`
	Require string   `yaml:"require"`
	Timeout Duration `yaml:"timeout"`
}

// ReadySpec marks a process ready once an output line matches Pattern.
// An empty Sources list matches both stdout and stderr.
type ReadySpec struct {
	Pattern string   `yaml:"pattern"`
	Sources []string `yaml:"sources"`
}

// Names returns the process names in sorted order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Processes))
	for name := range m.Processes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyDefaults fills unset fields. An unset poll interval is taken from
// PROCCTL_POLL_INTERVAL before falling back to DefaultPollInterval.
func (m *Manifest) ApplyDefaults() error {
	if !m.Defaults.PollInterval.IsSet() || m.Defaults.PollInterval.Duration == 0 {
		m.Defaults.PollInterval.Duration = DefaultPollInterval
		if value := os.Getenv("PROCCTL_POLL_INTERVAL"); value != "" {
			d, err := time.ParseDuration(value)
			if err != nil || d <= 0 {
				return fmt.Errorf("PROCCTL_POLL_INTERVAL: invalid duration %q", value)
			}
			m.Defaults.PollInterval.Duration = d
		}
	}
	for _, name := range m.Names() {
		p := m.Processes[name]
		if p == nil {
			return fmt.Errorf("%s: process definition is empty", processField(name, ""))
		}
		if p.Mode == "" {
			p.Mode = ModePipe
		}
		for _, slot := range []*string{&p.Stdin, &p.Stdout, &p.Stderr} {
			if *slot == "" {
				*slot = StdioInherit
			}
		}
		if !p.KillAfter.IsSet() {
			p.KillAfter = m.Defaults.KillAfter
		}
		for i := range p.DependsOn {
			if p.DependsOn[i].Require == "" {
				p.DependsOn[i].Require = RequireStarted
			}
		}
	}
	return nil
}

func processField(name, field string) string {
	if field == "" {
		return fmt.Sprintf("processes.%s", name)
	}
	return fmt.Sprintf("processes.%s.%s", name, field)
}
