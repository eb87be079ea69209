package process

import (
	"github.com/Paintersrp/procctl/internal/metrics"
	"github.com/Paintersrp/procctl/internal/stream"
)

// Variant names a spawn variant.
type Variant string

const (
	VariantStart Variant = "start"
	VariantPipe  Variant = "pipe"
	VariantPipe2 Variant = "pipe2"
	VariantPty   Variant = "pty"
)

// Variants lists every spawn variant.
var Variants = []Variant{VariantStart, VariantPipe, VariantPipe2, VariantPty}

// backend performs the OS specific part of every variant. Implementations
// must release every resource they created before returning an error.
type backend interface {
	start(command string, args []string, stdin, stdout, stderr *stream.Handle) (*Handle, error)
	startPipe(command string, args []string) (*Handle, error)
	pipe2(command string, args []string) (stdin, stdout *stream.Handle, err error)
	pty(command string, args []string) (stdin, stdout *stream.Handle, err error)
}

var native backend = newBackend()

func init() {
	names := make([]string, len(Variants))
	for i, v := range Variants {
		names[i] = string(v)
	}
	metrics.RegisterVariants(names...)
}

// Start runs command with its standard streams redirected to stdin, stdout
// and stderr. A null (or nil) stream connects the child to the null device.
// The caller keeps ownership of the streams it passed in and the returned
// handle owns no streams.
func Start(command string, args []string, stdin, stdout, stderr *stream.Handle) (*Handle, error) {
	h, err := native.start(command, args, stdin, stdout, stderr)
	observeSpawn(VariantStart, command, args, h.Pid(), err)
	return h, err
}

// StartPipe runs command with all three standard streams connected to new
// pipes. The handle owns the parent ends; see ChildStdIn, ChildStdOut and
// ChildStdErr.
func StartPipe(command string, args []string) (*Handle, error) {
	h, err := native.startPipe(command, args)
	observeSpawn(VariantPipe, command, args, h.Pid(), err)
	return h, err
}

// Pipe2 runs command with stdin and stdout connected to new pipes and
// stderr inherited. On success the streams previously held in *stdin and
// *stdout are released and replaced by the parent pipe ends. On failure the
// caller's variables are left untouched. No process handle is returned.
func Pipe2(command string, args []string, stdin, stdout **stream.Handle) error {
	in, out, err := native.pipe2(command, args)
	observeSpawn(VariantPipe2, command, args, 0, err)
	if err != nil {
		return err
	}
	replace(stdin, in)
	replace(stdout, out)
	return nil
}

// Pty runs command attached to a new pseudo terminal. *stdin receives a
// writable and *stdout a readable stream on the terminal master. Where no
// pseudo terminal is available Pty behaves exactly like Pipe2.
func Pty(command string, args []string, stdin, stdout **stream.Handle) error {
	in, out, err := native.pty(command, args)
	observeSpawn(VariantPty, command, args, 0, err)
	if err != nil {
		return err
	}
	replace(stdin, in)
	replace(stdout, out)
	return nil
}

func replace(dst **stream.Handle, s *stream.Handle) {
	if dst == nil {
		_ = s.Release()
		return
	}
	if old := *dst; old != nil {
		if err := old.Release(); err != nil {
			log().Debug().Err(err).Str("stream", old.Name()).Msg("release replaced stream")
		}
	}
	*dst = s
}

func observeSpawn(variant Variant, command string, args []string, pid int, err error) {
	metrics.ObserveSpawn(string(variant), err)
	if err != nil {
		log().Warn().Err(err).Str("variant", string(variant)).Str("command", command).Msg("spawn failed")
		return
	}
	ev := log().Debug().Str("variant", string(variant)).Str("command", command).Int("args", len(args))
	if pid != 0 {
		ev = ev.Int("pid", pid)
	}
	ev.Msg("process spawned")
}
