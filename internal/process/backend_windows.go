//go:build windows

package process

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/Paintersrp/procctl/internal/cmdline"
	"github.com/Paintersrp/procctl/internal/rterr"
	"github.com/Paintersrp/procctl/internal/stream"
)

var errNotExecutable = errors.New("not an executable file")

type windowsBackend struct{}

func newBackend() backend {
	return windowsBackend{}
}

// prepare converts the command path, builds the quoted command line and
// checks that the path names a regular file.
func prepare(command string, args []string) (*uint16, cmdline.Line, error) {
	path := filepath.FromSlash(command)
	line, err := cmdline.WindowsCommandLine(path, args)
	if err != nil {
		return nil, nil, err
	}
	app, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, nil, rterr.Range("convert path", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, rterr.File("access "+command, err)
	}
	if !info.Mode().IsRegular() {
		return nil, nil, rterr.File("access "+command, errNotExecutable)
	}
	log().Debug().Str("path", path).Int("units", line.Len()).Msg("prepared command line")
	return app, line, nil
}

func createProcess(app *uint16, line cmdline.Line, std [3]windows.Handle, show uint16) (nativeProcess, error) {
	si := &windows.StartupInfo{
		Flags:      windows.STARTF_USESTDHANDLES | windows.STARTF_USESHOWWINDOW,
		ShowWindow: show,
		StdInput:   std[0],
		StdOutput:  std[1],
		StdErr:     std[2],
	}
	si.Cb = uint32(unsafe.Sizeof(*si))
	pi := new(windows.ProcessInformation)
	err := windows.CreateProcess(app, line.Ptr(), nil, nil, true,
		windows.CREATE_UNICODE_ENVIRONMENT, nil, nil, si, pi)
	if err != nil {
		return nativeProcess{}, rterr.File("create process", err)
	}
	return nativeProcess{pid: pi.ProcessId, process: pi.Process, thread: pi.Thread}, nil
}

func (windowsBackend) start(command string, args []string, stdin, stdout, stderr *stream.Handle) (*Handle, error) {
	app, line, err := prepare(command, args)
	if err != nil {
		return nil, err
	}

	// Inheritable handles exist until the spawn returns.
	syscall.ForkLock.Lock()
	defer syscall.ForkLock.Unlock()

	r, err := redirect(stdin, stdout, stderr)
	if err != nil {
		return nil, err
	}
	proc, err := createProcess(app, line, r.handles, windows.SW_SHOWNORMAL)
	r.close()
	if err != nil {
		return nil, err
	}
	return newHandle(proc, VariantStart, nil, nil, nil), nil
}

func (windowsBackend) startPipe(command string, args []string) (*Handle, error) {
	app, line, err := prepare(command, args)
	if err != nil {
		return nil, err
	}

	syscall.ForkLock.Lock()
	defer syscall.ForkLock.Unlock()

	parent, err := openPipes(3)
	if err != nil {
		return nil, err
	}
	proc, err := createProcess(app, line, parent.childHandles(0), windows.SW_HIDE)
	parent.closeChildEnds()
	if err != nil {
		parent.closeParentEnds()
		return nil, err
	}
	s := parent.streams()
	return newHandle(proc, VariantPipe, s[0], s[1], s[2]), nil
}

func (windowsBackend) pipe2(command string, args []string) (*stream.Handle, *stream.Handle, error) {
	app, line, err := prepare(command, args)
	if err != nil {
		return nil, nil, err
	}

	syscall.ForkLock.Lock()
	defer syscall.ForkLock.Unlock()

	parent, err := openPipes(2)
	if err != nil {
		return nil, nil, err
	}
	stderr, err := inheritableStderr()
	if err != nil {
		parent.closeChildEnds()
		parent.closeParentEnds()
		return nil, nil, err
	}
	proc, err := createProcess(app, line, parent.childHandles(stderr), windows.SW_HIDE)
	closeHandle(stderr)
	parent.closeChildEnds()
	if err != nil {
		parent.closeParentEnds()
		return nil, nil, err
	}
	// No handle is returned for this variant, so the OS handles go now.
	if err := proc.close(); err != nil {
		log().Debug().Err(err).Msg("close process handles")
	}
	log().Debug().Int("pid", proc.id()).Msg("duplex pipe child started")
	s := parent.streams()
	return s[0], s[1], nil
}

// pty falls back to pipes: there is no pseudo terminal device to attach a
// console child to.
func (b windowsBackend) pty(command string, args []string) (*stream.Handle, *stream.Handle, error) {
	return b.pipe2(command, args)
}
