// Command weld clusters point files offline with the same index the service
// uses.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-sod/weld/internal/buildinfo"
	"github.com/go-sod/weld/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "weld",
		Short:         "Weld nearby 3-D points into clusters and query them by range",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger := logging.NewLogger(logLevel, true)
			cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
	root.AddCommand(newClusterCmd(), newGenCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), buildinfo.Info.Print())
		},
	}
}
