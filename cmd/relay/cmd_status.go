package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relay/pkg/protocol"
)

// newStatusCmd creates the "relay status" subcommand.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, session, and queue state",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			status, pid := DaemonStatus(paths.PIDPath)
			switch status {
			case StatusRunning:
				fmt.Fprintf(out, "daemon: %s (pid %d)\n", colorize(ansiGreen, string(status)), pid)
			case StatusStale:
				fmt.Fprintf(out, "daemon: %s (pid file %s points at dead pid %d)\n", colorize(ansiYellow, string(status)), paths.PIDPath, pid)
				return nil
			default:
				fmt.Fprintf(out, "daemon: %s\n", colorize(ansiRed, string(status)))
				return nil
			}

			client, err := loadClient()
			if err != nil {
				return err
			}

			var sessions []protocol.Session
			if err := client.get("/api/sessions", &sessions); err != nil {
				return err
			}
			var procs []protocol.ProcessInfo
			if err := client.get("/api/processes", &procs); err != nil {
				return err
			}
			var sums []protocol.QueueSummary
			if err := client.get("/api/queue", &sums); err != nil {
				return err
			}

			pending := 0
			for _, s := range sums {
				pending += s.Pending
			}
			fmt.Fprintf(out, "sessions: %d\n", len(sessions))
			fmt.Fprintf(out, "workers: %d\n", len(procs))
			fmt.Fprintf(out, "queued: %d pending across %d projects\n", pending, len(sums))
			return nil
		},
	}
}
