package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "frontdesk",
		Short:         "Hotel front-desk occupancy service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "optional YAML configuration file")

	cmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newGridCommand(opts),
	)
	return cmd
}
