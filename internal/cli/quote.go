package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/procctl/internal/cmdline"
)

func newQuoteCmd() *cobra.Command {
	cmd := childCommand("quote", "Print the Windows command line for a command")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		command, rest := commandArgs(args)
		line, err := cmdline.WindowsCommandLine(command, rest)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), line.String())
		return nil
	}
	return cmd
}
