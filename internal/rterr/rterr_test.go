package rterr

import (
	"errors"
	"io/fs"
	"testing"
)

func TestKindsAreMatchable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{name: "memory", err: Memory("encode", nil), kind: ErrMemory},
		{name: "file", err: File("spawn", fs.ErrPermission), kind: ErrFile},
		{name: "range", err: Range("convert", nil), kind: ErrRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.kind) {
				t.Fatalf("expected %v to match %v", tt.err, tt.kind)
			}
			if got := KindOf(tt.err); got != tt.kind {
				t.Fatalf("KindOf = %v, want %v", got, tt.kind)
			}
		})
	}
}

func TestErrorKeepsCause(t *testing.T) {
	err := File("access", fs.ErrPermission)
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("expected cause to be preserved: %v", err)
	}
	if got, want := err.Error(), "access: file error: permission denied"; got != want {
		t.Fatalf("unexpected message %q, want %q", got, want)
	}
	if KindOf(errors.New("plain")) != nil {
		t.Fatalf("unclassified errors must not report a kind")
	}
}
