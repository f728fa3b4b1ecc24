package main

import (
	"fmt"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"relay/pkg/protocol"
)

// newQueueCmd creates the "relay queue" subcommand group.
func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue [project]",
		Short: "Show queued tasks",
		Long:  "Without arguments, shows a per-project queue summary.\nWith a project name, lists that project's pending tasks.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return printQueueSummary(cmd, client)
			}
			return printPendingTasks(cmd, client, args[0])
		},
	}

	cmd.AddCommand(newQueueAddCmd(), newQueueAckCmd())
	return cmd
}

func printQueueSummary(cmd *cobra.Command, client *apiClient) error {
	var sums []protocol.QueueSummary
	if err := client.get("/api/queue", &sums); err != nil {
		return err
	}
	if len(sums) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "all queues empty")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tPENDING\tTOTAL")
	for _, s := range sums {
		fmt.Fprintf(w, "%s\t%d\t%d\n", s.ProjectName, s.Pending, s.Total)
	}
	return w.Flush()
}

func printPendingTasks(cmd *cobra.Command, client *apiClient, project string) error {
	var tasks []protocol.Task
	if err := client.get("/api/queue/"+url.PathEscape(project), &tasks); err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no pending tasks for %s\n", project)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFROM\tPRIORITY\tMESSAGE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.From, t.Priority, t.Message)
	}
	return w.Flush()
}

// newQueueAddCmd creates "relay queue add": enqueue a task directly,
// bypassing message routing.
func newQueueAddCmd() *cobra.Command {
	var from, priority string

	cmd := &cobra.Command{
		Use:   "add <project> <message>",
		Short: "Enqueue a task for a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient()
			if err != nil {
				return err
			}

			var task protocol.Task
			err = client.post("/api/queue", map[string]string{
				"projectName": args[0],
				"message":     args[1],
				"from":        from,
				"priority":    priority,
			}, &task)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s for %s\n", task.ID, task.ProjectName)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "cli", "sender recorded on the task")
	cmd.Flags().StringVar(&priority, "priority", "normal", "task priority (low, normal, high)")
	return cmd
}

// newQueueAckCmd creates "relay queue ack": mark a task delivered.
func newQueueAckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ack <project> <task-id>",
		Short: "Mark a queued task as delivered",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient()
			if err != nil {
				return err
			}
			path := fmt.Sprintf("/api/queue/%s/tasks/%s/delivered", url.PathEscape(args[0]), url.PathEscape(args[1]))
			if err := client.post(path, struct{}{}, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "acknowledged %s\n", args[1])
			return nil
		},
	}
}
