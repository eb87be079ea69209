package cli

import (
	stdcontext "context"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/procctl/internal/process"
	"github.com/Paintersrp/procctl/internal/stream"
)

func newPipeCmd(ctx *context) *cobra.Command {
	cmd := childCommand("pipe", "Run a command on pipes and relay its standard streams")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		command, rest := commandArgs(args)
		h, err := process.StartPipe(command, rest)
		if err != nil {
			return err
		}
		defer process.Release(h)
		stop := stdcontext.AfterFunc(cmd.Context(), func() { _ = h.Kill() })
		defer stop()

		stdin, _ := process.ChildStdIn(h)
		stdout, _ := process.ChildStdOut(h)
		stderr, _ := process.ChildStdErr(h)
		defer releaseStreams(stdin, stdout, stderr)

		// The stdin relay is not waited on; it may be blocked reading a
		// terminal after the child has gone.
		go copyIn(stdin, cmd.InOrStdin())

		var wg sync.WaitGroup
		wg.Add(2)
		go copyOut(&wg, cmd.OutOrStdout(), stdout)
		go copyOut(&wg, cmd.ErrOrStderr(), stderr)
		wg.Wait()

		code, err := waitChild(cmd.Context(), h)
		if err != nil {
			return err
		}
		ctx.logger.Debug().Int("pid", h.Pid()).Int("exit", code).Msg("child exited")
		return exitResult(code)
	}
	return cmd
}

func newPipe2Cmd(ctx *context) *cobra.Command {
	cmd := childCommand("pipe2", "Run a command on a duplex pipe with stderr inherited")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		var stdin, stdout *stream.Handle
		command, rest := commandArgs(args)
		if err := process.Pipe2(command, rest, &stdin, &stdout); err != nil {
			return err
		}
		defer releaseStreams(stdin, stdout)

		go copyIn(stdin, cmd.InOrStdin())

		var wg sync.WaitGroup
		wg.Add(1)
		go copyOut(&wg, cmd.OutOrStdout(), stdout)
		wg.Wait()
		ctx.logger.Debug().Str("command", command).Msg("duplex output closed")
		return nil
	}
	return cmd
}
