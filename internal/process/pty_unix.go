//go:build !windows

package process

import (
	"errors"
	"os"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/Paintersrp/procctl/internal/rterr"
	"github.com/Paintersrp/procctl/internal/stream"
)

func (b posixBackend) pty(command string, args []string) (*stream.Handle, *stream.Handle, error) {
	argv, err := b.prepare(command, args)
	if err != nil {
		return nil, nil, err
	}
	defer argv.Free()

	master, slave, err := pty.Open()
	if errors.Is(err, pty.ErrUnsupported) {
		log().Debug().Str("command", command).Msg("no pseudo terminal support, using pipes")
		return b.pipe2Vector(argv)
	}
	if err != nil {
		return nil, nil, rterr.File("open pty", err)
	}

	// The master is returned twice, once for writing and once for reading.
	fd, err := unix.FcntlInt(master.Fd(), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		closeQuietly(master)
		closeQuietly(slave)
		return nil, nil, rterr.File("dup pty master", err)
	}
	writer := os.NewFile(uintptr(fd), master.Name())

	child := childSide{
		files: [3]uintptr{slave.Fd(), slave.Fd(), uintptr(syscall.Stderr)},
		sys: &syscall.SysProcAttr{
			Setsid:  true,
			Setctty: true,
			Ctty:    0,
		},
	}
	pid, err := child.exec(argv)
	closeQuietly(slave)
	if err != nil {
		closeQuietly(writer)
		closeQuietly(master)
		return nil, nil, err
	}
	log().Debug().Int("pid", pid).Str("tty", slave.Name()).Msg("pty child started")
	return stream.Wrap(writer, false, true), stream.Wrap(master, true, false), nil
}
