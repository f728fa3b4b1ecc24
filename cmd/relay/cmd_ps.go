package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"relay/pkg/protocol"
)

// newPsCmd creates the "relay ps" subcommand.
func newPsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "List running workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient()
			if err != nil {
				return err
			}

			var procs []protocol.ProcessInfo
			if err := client.get("/api/processes", &procs); err != nil {
				return err
			}
			if len(procs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no workers running")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROJECT\tPID\tUPTIME")
			for _, p := range procs {
				fmt.Fprintf(w, "%s\t%d\t%dm\n", p.ProjectName, p.PID, p.RunningMinutes)
			}
			return w.Flush()
		},
	}
}
