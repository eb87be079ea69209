package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Paintersrp/procctl/internal/config"
	"github.com/Paintersrp/procctl/internal/logging"
	"github.com/Paintersrp/procctl/internal/process"
)

const defaultManifest = "procs.yaml"

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	ctx := &context{
		manifestFile: manifestFromEnv(),
		logger:       zerolog.Nop(),
	}

	root := &cobra.Command{
		Use:   "procctl",
		Short: "Spawn, wire and supervise child processes",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.setupLogging(cmd)
		},
	}

	root.PersistentFlags().
		StringVarP(&ctx.manifestFile, "file", "f", ctx.manifestFile, "Path to process manifest")
	root.PersistentFlags().StringVar(&ctx.logConfig.Level, "log-level", "", "Diagnostic log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&ctx.logConfig.Format, "log-format", "", "Diagnostic log format (console, json)")

	root.AddCommand(newStartCmd(ctx))
	root.AddCommand(newPipeCmd(ctx))
	root.AddCommand(newPipe2Cmd(ctx))
	root.AddCommand(newPtyCmd(ctx))
	root.AddCommand(newQuoteCmd())
	root.AddCommand(newRunCmd(ctx))
	root.AddCommand(newTuiCmd(ctx))
	root.AddCommand(newConfigCmd(ctx))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		var exit *exitCodeError
		if errors.As(err, &exit) {
			stop()
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type context struct {
	manifestFile string
	logConfig    logging.Config
	logger       zerolog.Logger
}

func manifestFromEnv() string {
	if value := os.Getenv("PROCCTL_MANIFEST"); value != "" {
		return value
	}
	return defaultManifest
}

func (c *context) setupLogging(cmd *cobra.Command) error {
	cfg := c.logConfig
	cfg.Output = cmd.ErrOrStderr()
	logger, err := logging.New(cfg)
	if err != nil {
		return err
	}
	c.logger = logger
	process.SetLogger(logger)
	return nil
}

func (c *context) loadManifest() (*config.Manifest, error) {
	return config.Load(c.manifestFile)
}

// exitCodeError carries a child's non-zero exit value out of a command so
// Execute can exit with it.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func exitResult(code int) error {
	if code == 0 {
		return nil
	}
	return &exitCodeError{code: code}
}
