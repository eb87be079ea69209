package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/procctl/internal/process"
	"github.com/Paintersrp/procctl/internal/stream"
)

type redirectFlags struct {
	stdin, stdout, stderr                      string
	discardStdin, discardStdout, discardStderr bool
}

func newStartCmd(ctx *context) *cobra.Command {
	var flags redirectFlags
	cmd := childCommand("start", "Run a command with redirected standard streams")
	cmd.Flags().StringVar(&flags.stdin, "stdin", "", "Read the child's stdin from this file")
	cmd.Flags().StringVar(&flags.stdout, "stdout", "", "Write the child's stdout to this file")
	cmd.Flags().StringVar(&flags.stderr, "stderr", "", "Write the child's stderr to this file")
	cmd.Flags().BoolVar(&flags.discardStdin, "discard-stdin", false, "Connect the child's stdin to the null device")
	cmd.Flags().BoolVar(&flags.discardStdout, "discard-stdout", false, "Connect the child's stdout to the null device")
	cmd.Flags().BoolVar(&flags.discardStderr, "discard-stderr", false, "Connect the child's stderr to the null device")
	cmd.MarkFlagsMutuallyExclusive("stdin", "discard-stdin")
	cmd.MarkFlagsMutuallyExclusive("stdout", "discard-stdout")
	cmd.MarkFlagsMutuallyExclusive("stderr", "discard-stderr")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		std, err := flags.open()
		if err != nil {
			return err
		}
		command, rest := commandArgs(args)
		h, err := process.Start(command, rest, std[0], std[1], std[2])
		releaseStreams(std[:]...)
		if err != nil {
			return err
		}
		defer process.Release(h)

		ctx.logger.Debug().Int("pid", h.Pid()).Msg("waiting for child")
		code, err := waitChild(cmd.Context(), h)
		if err != nil {
			return err
		}
		return exitResult(code)
	}
	return cmd
}

// open resolves the redirect targets. An unset target inherits the
// parent's stream.
func (f redirectFlags) open() ([3]*stream.Handle, error) {
	var std [3]*stream.Handle
	targets := []struct {
		path     string
		discard  bool
		readable bool
		inherit  *stream.Handle
	}{
		{f.stdin, f.discardStdin, true, stream.Stdin()},
		{f.stdout, f.discardStdout, false, stream.Stdout()},
		{f.stderr, f.discardStderr, false, stream.Stderr()},
	}
	for i, t := range targets {
		switch {
		case t.discard:
			std[i] = stream.Null()
		case t.path == "":
			std[i] = t.inherit
		default:
			file, err := openTarget(t.path, t.readable)
			if err != nil {
				releaseStreams(std[:i]...)
				return std, err
			}
			std[i] = stream.Wrap(file, t.readable, !t.readable)
		}
	}
	return std, nil
}

func openTarget(path string, readable bool) (*os.File, error) {
	if readable {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open stdin file: %w", err)
		}
		return f, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return f, nil
}
