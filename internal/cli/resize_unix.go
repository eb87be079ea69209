//go:build !windows

package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
)

// watchResize copies the size of tty to master whenever the terminal is
// resized.
func watchResize(tty, master *os.File) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGWINCH)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				_ = pty.InheritSize(tty, master)
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
