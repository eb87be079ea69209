//go:build windows

package process

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

// stillActive is the exit code GetExitCodeProcess reports for a running
// process.
const stillActive = 259

type nativeProcess struct {
	pid     uint32
	process windows.Handle
	thread  windows.Handle
}

func (p nativeProcess) id() int { return int(p.pid) }

// poll checks for termination without blocking. A process that really
// exited with code 259 is told apart from a running one by a zero timeout
// wait.
func (p nativeProcess) poll() (bool, int, error) {
	var code uint32
	if err := windows.GetExitCodeProcess(p.process, &code); err != nil {
		return false, 0, err
	}
	if code == stillActive {
		ev, err := windows.WaitForSingleObject(p.process, 0)
		if err != nil {
			return false, 0, err
		}
		if ev != windows.WAIT_OBJECT_0 {
			return false, 0, nil
		}
	}
	return true, int(code), nil
}

func (p nativeProcess) wait() (int, error) {
	ev, err := windows.WaitForSingleObject(p.process, windows.INFINITE)
	if err != nil {
		return 0, err
	}
	if ev != windows.WAIT_OBJECT_0 {
		return 0, fmt.Errorf("unexpected wait result %#x", ev)
	}
	var code uint32
	if err := windows.GetExitCodeProcess(p.process, &code); err != nil {
		return 0, err
	}
	return int(code), nil
}

func (p nativeProcess) kill() error {
	return windows.TerminateProcess(p.process, 0)
}

func (p nativeProcess) close() error {
	var errs []error
	for _, h := range []windows.Handle{p.process, p.thread} {
		if h == 0 || h == windows.InvalidHandle {
			continue
		}
		if err := windows.CloseHandle(h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
