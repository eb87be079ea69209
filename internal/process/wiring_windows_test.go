//go:build windows

package process

import (
	"testing"
	"unsafe"

	"golang.org/x/sys/windows"
)

var procGetHandleInformation = windows.NewLazySystemDLL("kernel32.dll").NewProc("GetHandleInformation")

func handleFlags(t *testing.T, h windows.Handle) uint32 {
	t.Helper()
	var flags uint32
	r, _, err := procGetHandleInformation.Call(uintptr(h), uintptr(unsafe.Pointer(&flags)))
	if r == 0 {
		t.Fatalf("handle information: %v", err)
	}
	return flags
}

func TestInheritableStderrCanBeInherited(t *testing.T) {
	h, err := inheritableStderr()
	if err != nil {
		t.Fatalf("inheritable stderr: %v", err)
	}
	defer closeHandle(h)

	flags := handleFlags(t, h)
	if flags&windows.HANDLE_FLAG_INHERIT == 0 {
		t.Fatalf("stderr handed to the child is not inheritable (flags %#x)", flags)
	}
	if parent, err := windows.GetStdHandle(windows.STD_ERROR_HANDLE); err == nil && parent == h {
		t.Fatalf("expected a duplicate, got the parent's own handle")
	}
}
