package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var processNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// Validate checks the manifest after defaults have been applied.
func (m *Manifest) Validate() error {
	if m.Version != "1" {
		return fmt.Errorf("version: unsupported manifest version %q", m.Version)
	}
	if len(m.Processes) == 0 {
		return errors.New("processes: at least one process is required")
	}
	if m.Defaults.PollInterval.Duration < 0 {
		return errors.New("defaults.pollInterval: must not be negative")
	}
	var errs []error
	for _, name := range m.Names() {
		if err := validateProcess(name, m.Processes[name]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return validateDependencies(m)
}

func validateProcess(name string, p *Process) error {
	if !processNamePattern.MatchString(name) {
		return fmt.Errorf("%s: invalid process name", processField(name, ""))
	}
	if strings.TrimSpace(p.Command) == "" {
		return fmt.Errorf("%s: command is required", processField(name, "command"))
	}
	if strings.IndexByte(p.Command, 0) >= 0 {
		return fmt.Errorf("%s: command contains NUL", processField(name, "command"))
	}
	switch p.Mode {
	case ModeStart:
		if p.Input != "" {
			return fmt.Errorf("%s: input requires a piped mode", processField(name, "input"))
		}
	case ModePipe, ModePipe2, ModePty:
		for field, value := range map[string]string{"stdin": p.Stdin, "stdout": p.Stdout, "stderr": p.Stderr} {
			if value != StdioInherit {
				return fmt.Errorf("%s: redirection is only supported in start mode", processField(name, field))
			}
		}
	default:
		return fmt.Errorf("%s: unknown mode %q", processField(name, "mode"), p.Mode)
	}
	if p.KillAfter.Duration < 0 {
		return fmt.Errorf("%s: must not be negative", processField(name, "killAfter"))
	}
	if p.Ready != nil {
		if p.Mode == ModeStart {
			return fmt.Errorf("%s: ready patterns need captured output, use a piped mode", processField(name, "ready"))
		}
		if _, err := regexp.Compile(p.Ready.Pattern); err != nil {
			return fmt.Errorf("%s: invalid pattern: %w", processField(name, "ready.pattern"), err)
		}
		for _, src := range p.Ready.Sources {
			if src != "stdout" && src != "stderr" {
				return fmt.Errorf("%s: unknown source %q", processField(name, "ready.sources"), src)
			}
		}
	}
	return nil
}
