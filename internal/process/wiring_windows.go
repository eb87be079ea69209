//go:build windows

package process

import (
	"errors"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/Paintersrp/procctl/internal/rterr"
	"github.com/Paintersrp/procctl/internal/stream"
)

var errClosedStream = errors.New("stream is closed")

// redirection holds inheritable handles created for one redirected spawn:
// duplicates of the caller's streams and null devices for discarded ones.
type redirection struct {
	handles [3]windows.Handle
	opened  []windows.Handle
}

func inheritable() *windows.SecurityAttributes {
	sa := &windows.SecurityAttributes{InheritHandle: 1}
	sa.Length = uint32(unsafe.Sizeof(*sa))
	return sa
}

// openNull opens the null device as an inheritable handle.
func openNull() (windows.Handle, error) {
	name, _ := windows.UTF16PtrFromString("NUL")
	nul, err := windows.CreateFile(name,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		inheritable(), windows.OPEN_EXISTING, 0, 0)
	if err != nil {
		return 0, rterr.File("open NUL", err)
	}
	return nul, nil
}

// duplicateInheritable returns an inheritable copy of h. The caller closes
// it once the child has been created.
func duplicateInheritable(h windows.Handle, name string) (windows.Handle, error) {
	self := windows.CurrentProcess()
	var dup windows.Handle
	if err := windows.DuplicateHandle(self, h, self, &dup, 0, true, windows.DUPLICATE_SAME_ACCESS); err != nil {
		return 0, rterr.File("duplicate "+name, err)
	}
	return dup, nil
}

// inheritableStderr duplicates the parent's standard error for a child.
// A parent without one hands the child the null device.
func inheritableStderr() (windows.Handle, error) {
	h, err := windows.GetStdHandle(windows.STD_ERROR_HANDLE)
	if err != nil || h == 0 || h == windows.InvalidHandle {
		return openNull()
	}
	return duplicateInheritable(h, "stderr")
}

func redirect(stdin, stdout, stderr *stream.Handle) (*redirection, error) {
	r := &redirection{}
	for i, s := range []*stream.Handle{stdin, stdout, stderr} {
		var (
			h   windows.Handle
			err error
		)
		if s.IsNull() {
			h, err = openNull()
		} else if fd, ok := s.Fd(); !ok {
			err = rterr.File("redirect "+s.Name(), errClosedStream)
		} else {
			h, err = duplicateInheritable(windows.Handle(fd), s.Name())
		}
		if err != nil {
			r.close()
			return nil, err
		}
		r.opened = append(r.opened, h)
		r.handles[i] = h
	}
	return r, nil
}

// close releases every handle created for the spawn, whatever its outcome.
func (r *redirection) close() {
	for _, h := range r.opened {
		closeHandle(h)
	}
	r.opened = nil
}

type pipePair struct {
	r, w windows.Handle
}

type parentSide struct {
	pipes []pipePair
}

// openPipes creates n pipes whose child ends are inheritable and whose
// parent ends are not. On failure every handle created so far is closed.
func openPipes(n int) (*parentSide, error) {
	p := &parentSide{pipes: make([]pipePair, 0, n)}
	for i := 0; i < n; i++ {
		var pp pipePair
		if err := windows.CreatePipe(&pp.r, &pp.w, inheritable(), 0); err != nil {
			p.closeChildEnds()
			p.closeParentEnds()
			return nil, rterr.File("create pipe", err)
		}
		p.pipes = append(p.pipes, pp)
		_, parent := p.ends(i)
		if err := windows.SetHandleInformation(parent, windows.HANDLE_FLAG_INHERIT, 0); err != nil {
			p.closeChildEnds()
			p.closeParentEnds()
			return nil, rterr.File("set handle information", err)
		}
	}
	return p, nil
}

func (p *parentSide) ends(i int) (child, parent windows.Handle) {
	if i == 0 {
		return p.pipes[i].r, p.pipes[i].w
	}
	return p.pipes[i].w, p.pipes[i].r
}

func (p *parentSide) childHandles(fallback windows.Handle) [3]windows.Handle {
	hs := [3]windows.Handle{fallback, fallback, fallback}
	for i := range p.pipes {
		hs[i], _ = p.ends(i)
	}
	return hs
}

func (p *parentSide) closeChildEnds() {
	for i := range p.pipes {
		child, _ := p.ends(i)
		closeHandle(child)
	}
}

func (p *parentSide) closeParentEnds() {
	for i := range p.pipes {
		_, parent := p.ends(i)
		closeHandle(parent)
	}
}

var pipeNames = [3]string{"|stdin", "|stdout", "|stderr"}

func (p *parentSide) streams() []*stream.Handle {
	out := make([]*stream.Handle, len(p.pipes))
	for i := range p.pipes {
		_, parent := p.ends(i)
		f := os.NewFile(uintptr(parent), pipeNames[i])
		out[i] = stream.Wrap(f, i != 0, i == 0)
	}
	return out
}

func closeHandle(h windows.Handle) {
	if h == 0 || h == windows.InvalidHandle {
		return
	}
	if err := windows.CloseHandle(h); err != nil {
		log().Debug().Err(err).Msg("close handle")
	}
}
