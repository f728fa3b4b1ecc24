package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// newKillCmd creates the "relay kill" subcommand.
func newKillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill <project>",
		Short: "Terminate a project's worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient()
			if err != nil {
				return err
			}
			if err := client.del("/api/processes/"+url.PathEscape(args[0]), nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "killed worker for %s\n", args[0])
			return nil
		},
	}
}
