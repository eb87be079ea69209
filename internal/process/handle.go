package process

import (
	"cmp"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/Paintersrp/procctl/internal/metrics"
	"github.com/Paintersrp/procctl/internal/rterr"
	"github.com/Paintersrp/procctl/internal/stream"
)

var (
	errNilHandle = errors.New("null process")
	errReleased  = errors.New("process handle already released")
)

// Handle refers to a spawned child process. The zero value is not usable;
// handles are obtained from Start and StartPipe.
type Handle struct {
	refs atomic.Int64

	// mu guards terminated and exitValue and serialises OS wait calls.
	mu         sync.Mutex
	terminated bool
	exitValue  int

	proc    nativeProcess
	variant Variant

	stdin  *stream.Handle
	stdout *stream.Handle
	stderr *stream.Handle
}

func newHandle(proc nativeProcess, variant Variant, stdin, stdout, stderr *stream.Handle) *Handle {
	h := &Handle{proc: proc, variant: variant, stdin: stdin, stdout: stdout, stderr: stderr}
	h.refs.Store(1)
	metrics.HandleOpened()
	return h
}

// Create adds a reference to h and returns it. Create(nil) returns nil.
func Create(h *Handle) *Handle {
	if h != nil {
		h.refs.Add(1)
	}
	return h
}

// Assign makes *dst refer to src. The reference to src is taken before the
// reference held by *dst is dropped, so Assign(&h, h) is safe.
func Assign(dst **Handle, src *Handle) error {
	Create(src)
	old := *dst
	*dst = src
	return Release(old)
}

// Release drops a reference to h. When the last reference goes away the
// owned streams are closed and released and the OS resources are freed.
// Release(nil) is a no-op.
func Release(h *Handle) error {
	if h == nil {
		return nil
	}
	n := h.refs.Add(-1)
	if n > 0 {
		return nil
	}
	if n < 0 {
		h.refs.Add(1)
		return rterr.File("release process", errReleased)
	}
	return h.free()
}

func (h *Handle) free() error {
	var errs []error
	for _, s := range []*stream.Handle{h.stdin, h.stdout, h.stderr} {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	h.stdin, h.stdout, h.stderr = nil, nil, nil
	if err := h.proc.close(); err != nil {
		errs = append(errs, err)
	}
	metrics.HandleClosed()
	log().Debug().Int("pid", h.proc.id()).Msg("process handle freed")
	if err := errors.Join(errs...); err != nil {
		return rterr.File("release process", err)
	}
	return nil
}

// Refs reports the current reference count.
func (h *Handle) Refs() int {
	if h == nil {
		return 0
	}
	return int(h.refs.Load())
}

// Pid returns the OS process identifier, 0 for the null process.
func (h *Handle) Pid() int {
	if h == nil {
		return 0
	}
	return h.proc.id()
}

// Variant reports how the process was spawned.
func (h *Handle) Variant() Variant {
	if h == nil {
		return ""
	}
	return h.variant
}

// String renders the pid, or NULL for the null process.
func (h *Handle) String() string {
	if h == nil {
		return "NULL"
	}
	return strconv.Itoa(h.proc.id())
}

// Cmp orders handles by process identifier. The null process sorts before
// every other handle.
func Cmp(a, b *Handle) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return cmp.Compare(a.proc.id(), b.proc.id())
}

// Eq reports whether a and b refer to the same process.
func Eq(a, b *Handle) bool {
	return Cmp(a, b) == 0
}

// HashCode returns a hash consistent with Eq.
func HashCode(h *Handle) int {
	if h == nil {
		return 0
	}
	return h.proc.id()
}
