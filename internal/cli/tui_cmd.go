package cli

import (
	stdcontext "context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Paintersrp/procctl/internal/config"
	"github.com/Paintersrp/procctl/internal/process"
	"github.com/Paintersrp/procctl/internal/runner"
	"github.com/Paintersrp/procctl/internal/tui"
)

func newTuiCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run a manifest in the interactive process monitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !supportsInteractiveOutput(cmd) {
				return fmt.Errorf("tui requires an interactive terminal")
			}
			m, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			return runMonitor(cmd.Context(), m)
		},
	}
	return cmd
}

// runMonitor runs m with its events shown in the monitor. Quitting the
// monitor kills whatever is still running.
func runMonitor(parent stdcontext.Context, m *config.Manifest) error {
	// Diagnostics would draw over the screen.
	quiet := zerolog.Nop()
	process.SetLogger(quiet)

	ui := tui.New()
	r := runner.New(m, ui.EventSink(), runner.WithLogger(quiet))

	runCtx, cancel := stdcontext.WithCancel(parent)
	defer cancel()

	finished := make(chan error, 1)
	go func() {
		_, err := r.Run(runCtx)
		ui.CloseEvents()
		finished <- err
	}()
	go func() {
		<-ui.Done()
		cancel()
	}()

	uiErr := ui.Run(parent)
	cancel()
	runErr := <-finished
	if uiErr != nil {
		return uiErr
	}
	return runErr
}

func supportsInteractiveOutput(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
