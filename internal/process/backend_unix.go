//go:build !windows

package process

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/Paintersrp/procctl/internal/cmdline"
	"github.com/Paintersrp/procctl/internal/rterr"
	"github.com/Paintersrp/procctl/internal/stream"
)

type posixBackend struct {
	conv cmdline.Converter
}

func newBackend() backend {
	return posixBackend{conv: cmdline.Native}
}

// prepare builds the argument vector and checks that the command may be
// executed. The caller frees the vector.
func (b posixBackend) prepare(command string, args []string) (*cmdline.Vector, error) {
	argv, err := cmdline.Build(b.conv, command, args)
	if err != nil {
		return nil, err
	}
	if err := unix.Access(argv.Path(), unix.X_OK); err != nil {
		argv.Free()
		return nil, rterr.File("access "+command, err)
	}
	log().Debug().Str("path", argv.Path()).Int("argc", argv.Len()).Msg("prepared argument vector")
	return argv, nil
}

// childSide describes the child's descriptor table. ForkExec installs
// files[i] as descriptor i in the child; every other descriptor this
// package creates is close-on-exec.
type childSide struct {
	files [3]uintptr
	sys   *syscall.SysProcAttr
}

func (c childSide) exec(argv *cmdline.Vector) (int, error) {
	attr := &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: c.files[:],
		Sys:   c.sys,
	}
	pid, err := syscall.ForkExec(argv.Path(), argv.Strings(), attr)
	if err != nil {
		return 0, rterr.File("spawn "+argv.Path(), err)
	}
	return pid, nil
}

func (b posixBackend) start(command string, args []string, stdin, stdout, stderr *stream.Handle) (*Handle, error) {
	argv, err := b.prepare(command, args)
	if err != nil {
		return nil, err
	}
	defer argv.Free()

	r, err := redirect(stdin, stdout, stderr)
	if err != nil {
		return nil, err
	}
	pid, err := childSide{files: r.fds}.exec(argv)
	r.close()
	if err != nil {
		return nil, err
	}
	return newHandle(nativeProcess{pid: pid}, VariantStart, nil, nil, nil), nil
}

func (b posixBackend) startPipe(command string, args []string) (*Handle, error) {
	argv, err := b.prepare(command, args)
	if err != nil {
		return nil, err
	}
	defer argv.Free()

	parent, err := openPipes(3)
	if err != nil {
		return nil, err
	}
	pid, err := childSide{files: parent.childFds(0)}.exec(argv)
	parent.closeChildEnds()
	if err != nil {
		parent.closeParentEnds()
		return nil, err
	}
	s := parent.streams()
	return newHandle(nativeProcess{pid: pid}, VariantPipe, s[0], s[1], s[2]), nil
}

func (b posixBackend) pipe2(command string, args []string) (*stream.Handle, *stream.Handle, error) {
	argv, err := b.prepare(command, args)
	if err != nil {
		return nil, nil, err
	}
	defer argv.Free()
	return b.pipe2Vector(argv)
}

func (b posixBackend) pipe2Vector(argv *cmdline.Vector) (*stream.Handle, *stream.Handle, error) {
	parent, err := openPipes(2)
	if err != nil {
		return nil, nil, err
	}
	pid, err := childSide{files: parent.childFds(uintptr(syscall.Stderr))}.exec(argv)
	parent.closeChildEnds()
	if err != nil {
		parent.closeParentEnds()
		return nil, nil, err
	}
	log().Debug().Int("pid", pid).Msg("duplex pipe child started")
	s := parent.streams()
	return s[0], s[1], nil
}
