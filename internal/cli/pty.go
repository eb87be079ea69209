package cli

import (
	"io"
	"os"
	"sync"

	"github.com/creack/pty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Paintersrp/procctl/internal/process"
	"github.com/Paintersrp/procctl/internal/stream"
)

const eot = "\x04"

func newPtyCmd(ctx *context) *cobra.Command {
	cmd := childCommand("pty", "Run a command attached to a pseudo terminal")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		var stdin, stdout *stream.Handle
		command, rest := commandArgs(args)
		if err := process.Pty(command, rest, &stdin, &stdout); err != nil {
			return err
		}
		defer releaseStreams(stdin, stdout)

		in := cmd.InOrStdin()
		if tty, ok := terminal(in); ok {
			if master := stdout.File(); master != nil {
				if err := pty.InheritSize(tty, master); err != nil {
					ctx.logger.Debug().Err(err).Msg("inherit terminal size")
				}
				stopResize := watchResize(tty, master)
				defer stopResize()
			}
			state, err := term.MakeRaw(int(tty.Fd()))
			if err != nil {
				return err
			}
			defer func() { _ = term.Restore(int(tty.Fd()), state) }()
			go func() { _, _ = io.Copy(stdin, tty) }()
		} else {
			go feedTerminal(stdin, in)
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go copyOut(&wg, cmd.OutOrStdout(), stdout)
		wg.Wait()
		return nil
	}
	return cmd
}

// feedTerminal copies r to the child and then ends its input. Closing a
// terminal master does not signal EOF to the program on the slave, so a
// terminal gets end of transmission instead.
func feedTerminal(dst *stream.Handle, r io.Reader) {
	_, _ = io.Copy(dst, r)
	if dst.IsTerminal() {
		_, _ = io.WriteString(dst, eot)
		return
	}
	_ = dst.Close()
}

func terminal(r io.Reader) (*os.File, bool) {
	f, ok := r.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil, false
	}
	return f, true
}
