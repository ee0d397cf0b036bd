package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/notebook-client/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "nbclient %s\ncommit: %s\nbuilt: %s\ngo: %s\n",
				info.Version, info.Commit, info.BuildTime, info.GoVersion)
			return err
		},
	}
}
