package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/procctl/internal/process"
	"github.com/Paintersrp/procctl/internal/stream"
)

// waitChild blocks until h exits and returns its exit value. The child is
// killed when ctx is cancelled first.
func waitChild(ctx stdcontext.Context, h *process.Handle) (int, error) {
	done := make(chan error, 1)
	go func() {
		done <- h.WaitFor()
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		if killErr := h.Kill(); killErr != nil {
			return 0, fmt.Errorf("kill %s: %w", h, killErr)
		}
		err = <-done
	}
	if err != nil {
		return 0, fmt.Errorf("wait %s: %w", h, err)
	}
	return h.ExitValue()
}

// copyIn feeds r into the child's stdin and closes it so the child sees
// end of input.
func copyIn(dst *stream.Handle, r io.Reader) {
	_, _ = io.Copy(dst, r)
	_ = dst.Close()
}

// copyOut relays a child output stream to w until end of output. A pty
// master reports EIO once the slave side is gone, which is treated as EOF.
func copyOut(wg *sync.WaitGroup, w io.Writer, src *stream.Handle) {
	defer wg.Done()
	if _, err := io.Copy(w, src); err != nil && !errors.Is(err, syscall.EIO) && !errors.Is(err, os.ErrClosed) {
		fmt.Fprintf(os.Stderr, "error: relay %s: %v\n", src.Name(), err)
	}
}

func releaseStreams(streams ...*stream.Handle) {
	for _, s := range streams {
		if s != nil {
			_ = s.Release()
		}
	}
}

func commandArgs(args []string) (string, []string) {
	return args[0], args[1:]
}

func childCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " -- COMMAND [ARGS...]",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}
