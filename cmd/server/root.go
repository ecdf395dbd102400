package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the catalog command. Without a subcommand it serves.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "catalog",
		Short:        "Movie catalog API server",
		SilenceUsage: true,
		RunE:         runServe,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	return cmd
}
