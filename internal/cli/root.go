// Package cli implements the swrgate command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion records build information injected via ldflags.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// NewRootCommand returns the swrgate command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "swrgate",
		Short:        "Caching gateway for users and their posts",
		Long:         `swrgate serves users with their posts from a JSONPlaceholder-style API through a stale-while-revalidate cache.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(fmt.Sprintf("swrgate %s\ncommit: %s\nbuilt: %s\n", version, commit, date))

	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "swrgate %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
