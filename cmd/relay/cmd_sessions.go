package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"relay/pkg/protocol"
)

// newSessionsCmd creates the "relay sessions" subcommand.
func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List registered worker sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient()
			if err != nil {
				return err
			}

			var sessions []protocol.Session
			if err := client.get("/api/sessions", &sessions); err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tPROJECT\tSTATUS\tIDLE")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%dm\n", s.ID, s.ProjectName, s.Status, s.IdleMinutes)
			}
			return w.Flush()
		},
	}
}
