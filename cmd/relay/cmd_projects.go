package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"relay/pkg/directory"
)

// newProjectsCmd creates the "relay projects" subcommand. It reads the
// registry file directly so it works without a running daemon.
func newProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List registered projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return err
			}
			reg, err := directory.Load(paths.ProjectsPath)
			if err != nil {
				return err
			}

			projects := reg.List()
			if len(projects) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no projects registered in %s\n", paths.ProjectsPath)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPATH\tAUTO-SPAWN\tVALID")
			for _, p := range projects {
				valid := "yes"
				if !reg.ValidatePath(p.Path) {
					valid = colorize(ansiRed, "missing")
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", p.Name, p.Path, p.AutoSpawn, valid)
			}
			return w.Flush()
		},
	}
}
