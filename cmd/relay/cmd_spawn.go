package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"relay/pkg/protocol"
)

// newSpawnCmd creates the "relay spawn" subcommand.
func newSpawnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spawn <project> [prompt...]",
		Short: "Launch a worker for a project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient()
			if err != nil {
				return err
			}

			var info protocol.ProcessInfo
			err = client.post("/api/processes", map[string]string{
				"projectName":   args[0],
				"initialPrompt": strings.Join(args[1:], " "),
			}, &info)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "spawned worker for %s (pid %d)\n", info.ProjectName, info.PID)
			return nil
		},
	}
}
