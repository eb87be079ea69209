//go:build !windows

package process

import (
	"errors"
	"os"

	"github.com/Paintersrp/procctl/internal/rterr"
	"github.com/Paintersrp/procctl/internal/stream"
)

var errClosedStream = errors.New("stream is closed")

// redirection holds the descriptors handed to a redirected child and the
// null device files opened for discarded streams.
type redirection struct {
	fds    [3]uintptr
	opened []*os.File
}

func redirect(stdin, stdout, stderr *stream.Handle) (*redirection, error) {
	r := &redirection{}
	for i, s := range []*stream.Handle{stdin, stdout, stderr} {
		if s.IsNull() {
			f, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
			if err != nil {
				r.close()
				return nil, rterr.File("open "+os.DevNull, err)
			}
			r.opened = append(r.opened, f)
			r.fds[i] = f.Fd()
			continue
		}
		fd, ok := s.Fd()
		if !ok {
			r.close()
			return nil, rterr.File("redirect "+s.Name(), errClosedStream)
		}
		r.fds[i] = fd
	}
	return r, nil
}

// close releases the null device files. It runs after the spawn whatever
// its outcome.
func (r *redirection) close() {
	for _, f := range r.opened {
		if err := f.Close(); err != nil {
			log().Debug().Err(err).Msg("close null device")
		}
	}
	r.opened = nil
}

// pipePair is one pipe. Index 0 of a pipe set is the child's stdin, so the
// child reads from it; the others are written by the child.
type pipePair struct {
	r, w *os.File
}

// parentSide owns the pipes of one spawn until the parent ends are handed
// to stream handles.
type parentSide struct {
	pipes []pipePair
}

var newPipe = os.Pipe

// openPipes creates n pipes. If pipe k cannot be created, pipes 0..k-1 are
// closed before the error is returned.
func openPipes(n int) (*parentSide, error) {
	p := &parentSide{pipes: make([]pipePair, 0, n)}
	for i := 0; i < n; i++ {
		r, w, err := newPipe()
		if err != nil {
			p.closeChildEnds()
			p.closeParentEnds()
			return nil, rterr.File("pipe", err)
		}
		p.pipes = append(p.pipes, pipePair{r: r, w: w})
	}
	return p, nil
}

func (p *parentSide) ends(i int) (child, parent *os.File) {
	if i == 0 {
		return p.pipes[i].r, p.pipes[i].w
	}
	return p.pipes[i].w, p.pipes[i].r
}

// childFds returns the child's descriptor table. Slots without a pipe get
// fallback, the parent's own descriptor to be inherited.
func (p *parentSide) childFds(fallback uintptr) [3]uintptr {
	fds := [3]uintptr{fallback, fallback, fallback}
	for i := range p.pipes {
		child, _ := p.ends(i)
		fds[i] = child.Fd()
	}
	return fds
}

func (p *parentSide) closeChildEnds() {
	for i := range p.pipes {
		child, _ := p.ends(i)
		closeQuietly(child)
	}
}

func (p *parentSide) closeParentEnds() {
	for i := range p.pipes {
		_, parent := p.ends(i)
		closeQuietly(parent)
	}
}

// streams wraps the parent ends. The stdin end is written by the parent,
// the others are read.
func (p *parentSide) streams() []*stream.Handle {
	out := make([]*stream.Handle, len(p.pipes))
	for i := range p.pipes {
		_, parent := p.ends(i)
		out[i] = stream.Wrap(parent, i != 0, i == 0)
	}
	return out
}

func closeQuietly(f *os.File) {
	if f == nil {
		return
	}
	if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		log().Debug().Err(err).Str("file", f.Name()).Msg("close pipe end")
	}
}
