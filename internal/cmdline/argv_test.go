package cmdline

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Paintersrp/procctl/internal/rterr"
)

// stackConverter records conversions and frees so tests can verify the
// release order.
type stackConverter struct {
	live  []NativeString
	freed []NativeString
	fail  string
}

func (c *stackConverter) ToNativePath(path string) (NativeString, error) {
	return c.convert(path)
}

func (c *stackConverter) ToNativeArg(arg string) (NativeString, error) {
	return c.convert(arg)
}

func (c *stackConverter) convert(s string) (NativeString, error) {
	if s == c.fail {
		return "", rterr.Range("convert", nil)
	}
	c.live = append(c.live, NativeString(s))
	return NativeString(s), nil
}

func (c *stackConverter) Free(s NativeString) {
	top := c.live[len(c.live)-1]
	if top != s {
		panic("free out of order: " + string(s))
	}
	c.live = c.live[:len(c.live)-1]
	c.freed = append(c.freed, s)
}

func TestBuildVector(t *testing.T) {
	v, err := Build(Native, "/bin/echo", []string{"hello", "", "world"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []string{"/bin/echo", "hello", "", "world"}
	if got := v.Strings(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected vector %q, want %q", got, want)
	}
	if v.Path() != "/bin/echo" || v.Len() != 4 {
		t.Fatalf("unexpected path %q or length %d", v.Path(), v.Len())
	}
	v.Free()
	v.Free()
	if v.Len() != 0 {
		t.Fatalf("expected empty vector after free")
	}
}

func TestBuildFreesInReverseOrder(t *testing.T) {
	conv := &stackConverter{}
	v, err := Build(conv, "cmd", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	v.Free()
	want := []NativeString{"c", "b", "a", "cmd"}
	if !reflect.DeepEqual(conv.freed, want) {
		t.Fatalf("freed %q, want %q", conv.freed, want)
	}
}

func TestBuildFailureReleasesPartialVector(t *testing.T) {
	conv := &stackConverter{fail: "bad"}
	v, err := Build(conv, "cmd", []string{"a", "b", "bad", "never"})
	if v != nil {
		t.Fatalf("expected no vector on failure")
	}
	if !errors.Is(err, rterr.ErrRange) {
		t.Fatalf("expected range error, got %v", err)
	}
	if len(conv.live) != 0 {
		t.Fatalf("leaked conversions: %q", conv.live)
	}
	want := []NativeString{"b", "a", "cmd"}
	if !reflect.DeepEqual(conv.freed, want) {
		t.Fatalf("freed %q, want %q", conv.freed, want)
	}
}

func TestNativeConverterRejects(t *testing.T) {
	tests := []struct {
		name    string
		command string
		args    []string
	}{
		{name: "empty path", command: ""},
		{name: "nul in path", command: "/bin/e\x00cho"},
		{name: "nul in argument", command: "/bin/echo", args: []string{"ok", "b\x00d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(nil, tt.command, tt.args)
			if !errors.Is(err, rterr.ErrRange) {
				t.Fatalf("expected range error, got %v", err)
			}
		})
	}
}
