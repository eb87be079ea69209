package process

import (
	"github.com/Paintersrp/procctl/internal/rterr"
	"github.com/Paintersrp/procctl/internal/stream"
)

// ChildStdIn returns a new reference to the writable end of the child's
// stdin pipe, or the null stream when the handle owns none.
func ChildStdIn(h *Handle) (*stream.Handle, error) {
	if h == nil {
		return nil, rterr.File("child stdin", errNilHandle)
	}
	return retainOrNull(h.stdin), nil
}

// ChildStdOut returns a new reference to the readable end of the child's
// stdout pipe, or the null stream.
func ChildStdOut(h *Handle) (*stream.Handle, error) {
	if h == nil {
		return nil, rterr.File("child stdout", errNilHandle)
	}
	return retainOrNull(h.stdout), nil
}

// ChildStdErr returns a new reference to the readable end of the child's
// stderr pipe, or the null stream.
func ChildStdErr(h *Handle) (*stream.Handle, error) {
	if h == nil {
		return nil, rterr.File("child stderr", errNilHandle)
	}
	return retainOrNull(h.stderr), nil
}

func retainOrNull(s *stream.Handle) *stream.Handle {
	if s == nil {
		return stream.Null()
	}
	return s.Retain()
}
