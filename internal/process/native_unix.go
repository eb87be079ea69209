//go:build !windows

package process

import (
	"golang.org/x/sys/unix"
)

type nativeProcess struct {
	pid int
}

func (p nativeProcess) id() int { return p.pid }

// poll checks for termination without blocking.
func (p nativeProcess) poll() (done bool, code int, err error) {
	return p.wait4(unix.WNOHANG)
}

func (p nativeProcess) wait() (int, error) {
	_, code, err := p.wait4(0)
	return code, err
}

// wait4 reaps the child. A child killed by a signal reports exit value 0.
func (p nativeProcess) wait4(options int) (bool, int, error) {
	var status unix.WaitStatus
	for {
		wpid, err := unix.Wait4(p.pid, &status, options, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, 0, err
		}
		if wpid == 0 {
			return false, 0, nil
		}
		switch {
		case status.Exited():
			return true, status.ExitStatus(), nil
		case status.Signaled():
			return true, 0, nil
		}
		if options&unix.WNOHANG != 0 {
			return false, 0, nil
		}
	}
}

func (p nativeProcess) kill() error {
	return unix.Kill(p.pid, unix.SIGKILL)
}

func (p nativeProcess) close() error { return nil }
