package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the authserver command. Running it without a subcommand serves.
func NewRootCmd() *cobra.Command {
	serve := NewServeCmd()

	cmd := &cobra.Command{
		Use:   "authserver",
		Short: "User account authentication server",
		Long: `authserver registers users, logs them in and keeps their sessions
alive with rotating refresh tokens. Configuration comes from the environment
and an optional .env file.`,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	cmd.Flags().AddFlagSet(serve.Flags())

	cmd.AddCommand(serve)
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// NewVersionCmd prints build information.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(_ *cobra.Command, _ []string) {
			logAppVersion()
		},
	}
}
