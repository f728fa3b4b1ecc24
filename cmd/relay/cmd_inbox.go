package main

import (
	"fmt"
	"net/url"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"relay/pkg/protocol"
)

// newInboxCmd creates the "relay inbox" subcommand group.
func newInboxCmd() *cobra.Command {
	var unreadOnly bool

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Show unrouted messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient()
			if err != nil {
				return err
			}

			path := "/api/inbox"
			if unreadOnly {
				path += "?unread=true"
			}
			var msgs []protocol.InboxMessage
			if err := client.get(path, &msgs); err != nil {
				return err
			}
			if len(msgs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "inbox empty")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFROM\tWHEN\tREAD\tBODY")
			for _, m := range msgs {
				read := ""
				if m.Read {
					read = "read"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.From, m.CreatedAt.Format(time.RFC3339), read, m.Body)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "only show unread messages")
	cmd.AddCommand(newInboxReadCmd())
	return cmd
}

// newInboxReadCmd creates "relay inbox read": mark a message as read.
func newInboxReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <message-id>",
		Short: "Mark an inbox message as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient()
			if err != nil {
				return err
			}
			if err := client.post("/api/inbox/"+url.PathEscape(args[0])+"/read", struct{}{}, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "marked %s read\n", args[0])
			return nil
		},
	}
}
