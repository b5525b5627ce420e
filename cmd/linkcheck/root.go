package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for linkcheck.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkcheck",
		Short: "Link checker for generated HTML documentation",
		Long: `linkcheck walks a directory of HTML files, follows every link and
reports the broken ones: missing local files, unreachable off-site pages
and fragments that name no anchor of their target page.

Each run is stored in a local history database so consecutive runs
can be compared.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")

	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command. Broken links exit with status 1 like any
// other failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		if !errors.Is(err, ErrBrokenLinks) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
