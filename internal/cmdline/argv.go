// Package cmdline turns a command path and its arguments into the forms the
// operating system spawn primitives consume: a POSIX argument vector and a
// single quoted Windows command line.
package cmdline

import (
	"errors"
	"strings"

	"github.com/Paintersrp/procctl/internal/rterr"
)

var (
	errEmptyPath = errors.New("empty command path")
	errNUL       = errors.New("string contains NUL")
)

// NativeString is a path or argument that has been checked and converted for
// the host OS. It never contains a NUL byte.
type NativeString string

// Converter converts strings into native strings. Converters hand out
// strings in stack order: every string must be freed in the reverse order of
// its creation.
type Converter interface {
	ToNativePath(path string) (NativeString, error)
	ToNativeArg(arg string) (NativeString, error)
	Free(s NativeString)
}

// Native is the default converter.
var Native Converter = nativeConverter{}

type nativeConverter struct{}

func (nativeConverter) ToNativePath(path string) (NativeString, error) {
	if path == "" {
		return "", rterr.Range("convert path", errEmptyPath)
	}
	if strings.IndexByte(path, 0) >= 0 {
		return "", rterr.Range("convert path", errNUL)
	}
	return NativeString(path), nil
}

func (nativeConverter) ToNativeArg(arg string) (NativeString, error) {
	if strings.IndexByte(arg, 0) >= 0 {
		return "", rterr.Range("convert argument", errNUL)
	}
	return NativeString(arg), nil
}

func (nativeConverter) Free(NativeString) {}

// Vector is a POSIX argument vector. Element 0 is the command path.
type Vector struct {
	conv  Converter
	items []NativeString
}

// Build converts command and args into a vector. If any conversion fails,
// the elements converted so far are freed in reverse order and the
// conversion error is returned.
func Build(conv Converter, command string, args []string) (*Vector, error) {
	if conv == nil {
		conv = Native
	}
	v := &Vector{conv: conv, items: make([]NativeString, 0, len(args)+1)}
	path, err := conv.ToNativePath(command)
	if err != nil {
		return nil, err
	}
	v.items = append(v.items, path)
	for _, arg := range args {
		native, err := conv.ToNativeArg(arg)
		if err != nil {
			v.Free()
			return nil, err
		}
		v.items = append(v.items, native)
	}
	return v, nil
}

// Path returns the converted command path.
func (v *Vector) Path() string {
	if v == nil || len(v.items) == 0 {
		return ""
	}
	return string(v.items[0])
}

// Strings returns the whole vector, path included, as exec arguments.
func (v *Vector) Strings() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.items))
	for i, item := range v.items {
		out[i] = string(item)
	}
	return out
}

// Len reports the number of elements including the path.
func (v *Vector) Len() int {
	if v == nil {
		return 0
	}
	return len(v.items)
}

// Free releases every element in reverse order of creation. Calling Free
// again is a no-op.
func (v *Vector) Free() {
	if v == nil {
		return
	}
	for i := len(v.items) - 1; i >= 0; i-- {
		v.conv.Free(v.items[i])
	}
	v.items = nil
}
