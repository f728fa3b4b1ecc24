package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"relay/pkg/router"
)

// newSendCmd creates the "relay send" subcommand: route a message exactly
// as if it arrived from chat.
func newSendCmd() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "send <text...>",
		Short: "Route a message through the bridge",
		Long:  "Routes text exactly as an inbound chat message:\n\"Project: msg\" targets a project, unprefixed text answers\na pending question or falls back to the inbox.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient()
			if err != nil {
				return err
			}

			var out router.Outcome
			err = client.post("/api/messages", map[string]string{
				"from": from,
				"text": strings.Join(args, " "),
			}, &out)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch out.Action {
			case router.ActionDelivered:
				fmt.Fprintf(w, "delivered to %s (session %s)\n", out.ProjectName, out.SessionID)
			case router.ActionSpawned:
				fmt.Fprintf(w, "spawned worker for %s (pid %d)\n", out.ProjectName, out.Process.PID)
			case router.ActionQueued:
				fmt.Fprintf(w, "queued for %s (%s): task %s\n", out.ProjectName, out.Reason, out.Task.ID)
			case router.ActionAnswer:
				fmt.Fprintln(w, "answered pending question")
			case router.ActionInbox:
				fmt.Fprintf(w, "filed in inbox as %s\n", out.Message.ID)
			default:
				fmt.Fprintf(w, "%s\n", out.Action)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "cli", "sender recorded on the message")
	return cmd
}
