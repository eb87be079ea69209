//go:build windows

package cli

import "os"

// watchResize is a no-op; the pty variant runs on pipes on Windows.
func watchResize(tty, master *os.File) func() {
	return func() {}
}
