package main

import (
	"fmt"

	"relay/internal/appversion"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root relay command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "relay",
		Short:         "Relay chat-to-worker bridge",
		Long:          "relay bridges a chat channel to local worker processes.\nIt routes messages to live sessions, queues them for offline projects,\nand supervises worker lifecycle.",
		Version:       fmt.Sprintf("relay %s", appversion.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newInitCmd(),
		newServeCmd(),
		newStatusCmd(),
		newSessionsCmd(),
		newQueueCmd(),
		newProjectsCmd(),
		newSpawnCmd(),
		newKillCmd(),
		newPsCmd(),
		newSendCmd(),
		newInboxCmd(),
		newEventsCmd(),
	)

	return cmd
}

// loadClient resolves paths and config, then builds an API client. Shared
// by every subcommand that talks to the daemon.
func loadClient() (*apiClient, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(paths.ConfigPath)
	if err != nil {
		return nil, err
	}
	return newAPIClient(cfg), nil
}
