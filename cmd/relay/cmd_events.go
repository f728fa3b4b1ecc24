package main

import (
	"fmt"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"relay/pkg/store"
)

// newEventsCmd creates the "relay events" subcommand.
func newEventsCmd() *cobra.Command {
	var evType, project string
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent routing and lifecycle events",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient()
			if err != nil {
				return err
			}

			q := url.Values{}
			if evType != "" {
				q.Set("type", evType)
			}
			if project != "" {
				q.Set("project", project)
			}
			if limit > 0 {
				q.Set("limit", fmt.Sprintf("%d", limit))
			}
			path := "/api/events"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var events []store.Event
			if err := client.get(path, &events); err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no events")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tTYPE\tPROJECT\tSESSION\tPAYLOAD")
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.CreatedAt, e.Type, e.Project, e.SessionID, e.Payload)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&evType, "type", "", "filter by event type")
	cmd.Flags().StringVar(&project, "project", "", "filter by project")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum events to show")
	return cmd
}
