// Package stream provides the reference counted stream handle shared between
// callers and child processes.
//
// A Handle wraps one native descriptor. The first reference is created by
// Wrap; Retain adds references and Release drops them, closing the descriptor
// when the last one goes away. Null returns the distinguished null stream,
// used both as a "discard" request when wiring a child and as the value
// returned for unpopulated stream slots.
package stream

import (
	"errors"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

var (
	// ErrReleased is returned when a handle is released more often than retained.
	ErrReleased = errors.New("stream: handle already released")
	// ErrDirection is returned when reading a write-only handle or writing a
	// read-only one.
	ErrDirection = errors.New("stream: wrong direction")
)

// Handle is a shared, reference counted stream.
type Handle struct {
	mu       sync.Mutex
	file     *os.File
	readable bool
	writable bool
	refs     int
	static   bool
	closed   bool
}

var (
	null   = &Handle{static: true, readable: true, writable: true}
	stdin  = &Handle{file: os.Stdin, readable: true, static: true}
	stdout = &Handle{file: os.Stdout, writable: true, static: true}
	stderr = &Handle{file: os.Stderr, writable: true, static: true}
)

// Null returns the null stream. Reads report io.EOF and writes are
// discarded. Retain and Release are no-ops on it.
func Null() *Handle { return null }

// Stdin returns the handle for the parent's standard input.
func Stdin() *Handle { return stdin }

// Stdout returns the handle for the parent's standard output.
func Stdout() *Handle { return stdout }

// Stderr returns the handle for the parent's standard error.
func Stderr() *Handle { return stderr }

// Wrap takes ownership of f and returns a handle holding one reference.
// A nil file yields the null stream.
func Wrap(f *os.File, readable, writable bool) *Handle {
	if f == nil {
		return null
	}
	return &Handle{file: f, readable: readable, writable: writable, refs: 1}
}

// IsNull reports whether h is the null stream. A nil handle counts as null.
func (h *Handle) IsNull() bool {
	return h == nil || h == null
}

// Readable reports whether the handle was wrapped for reading.
func (h *Handle) Readable() bool { return !h.IsNull() && h.readable }

// Writable reports whether the handle was wrapped for writing.
func (h *Handle) Writable() bool { return !h.IsNull() && h.writable }

// Fd returns the native descriptor. ok is false for the null stream and for
// closed handles.
func (h *Handle) Fd() (fd uintptr, ok bool) {
	if h.IsNull() {
		return 0, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, false
	}
	return h.file.Fd(), true
}

// IsTerminal reports whether the stream is attached to a terminal device.
func (h *Handle) IsTerminal() bool {
	if h.IsNull() {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	// Fd would put a pollable descriptor into blocking mode.
	conn, err := h.file.SyscallConn()
	if err != nil {
		return false
	}
	var tty bool
	if err := conn.Control(func(fd uintptr) { tty = term.IsTerminal(int(fd)) }); err != nil {
		return false
	}
	return tty
}

// File returns the underlying file, nil for the null stream.
func (h *Handle) File() *os.File {
	if h.IsNull() {
		return nil
	}
	return h.file
}

// Refs reports the current reference count. Static handles report 0.
func (h *Handle) Refs() int {
	if h.IsNull() {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}

// Retain adds a reference and returns h.
func (h *Handle) Retain() *Handle {
	if h.IsNull() {
		return null
	}
	h.mu.Lock()
	if !h.static {
		h.refs++
	}
	h.mu.Unlock()
	return h
}

// Release drops a reference. The descriptor is closed when the count
// reaches zero.
func (h *Handle) Release() error {
	if h.IsNull() {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.static {
		return nil
	}
	if h.refs <= 0 {
		return ErrReleased
	}
	h.refs--
	if h.refs > 0 {
		return nil
	}
	return h.closeLocked()
}

// Close closes the descriptor while leaving the reference count alone.
// Holders of other references observe a closed stream.
func (h *Handle) Close() error {
	if h.IsNull() {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.static {
		return nil
	}
	return h.closeLocked()
}

func (h *Handle) closeLocked() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return h.file.Close()
}

// Read reads from the stream. The null stream is always at end of file.
func (h *Handle) Read(p []byte) (int, error) {
	if h.IsNull() {
		return 0, io.EOF
	}
	if !h.Readable() {
		return 0, &os.PathError{Op: "read", Path: h.file.Name(), Err: ErrDirection}
	}
	return h.file.Read(p)
}

// Write writes to the stream. The null stream discards everything.
func (h *Handle) Write(p []byte) (int, error) {
	if h.IsNull() {
		return len(p), nil
	}
	if !h.Writable() {
		return 0, &os.PathError{Op: "write", Path: h.file.Name(), Err: ErrDirection}
	}
	return h.file.Write(p)
}

// Name returns the file name, "null" for the null stream.
func (h *Handle) Name() string {
	if h.IsNull() {
		return "null"
	}
	return h.file.Name()
}
