package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// defaultConfigTOML is the config file written by `relay init`.
const defaultConfigTOML = `# relay daemon configuration
listen = "127.0.0.1:7171"
worker_cmd = ["claude", "--print"]
session_ttl_minutes = 30
sweep_interval_minutes = 5
queue_retention_days = 7
log_level = "info"
`

// defaultProjectsYAML is the empty project registry written by `relay init`.
const defaultProjectsYAML = `projects: []
`

// newInitCmd creates the "relay init" subcommand.
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the relay home directory and default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return err
			}
			if err := paths.EnsureHome(); err != nil {
				return err
			}

			created := 0
			for _, f := range []struct {
				path, content string
			}{
				{paths.ConfigPath, defaultConfigTOML},
				{paths.ProjectsPath, defaultProjectsYAML},
			} {
				if _, err := os.Stat(f.path); err == nil {
					continue // never clobber existing config
				}
				if err := os.WriteFile(f.path, []byte(f.content), 0o600); err != nil {
					return fmt.Errorf("write %s: %w", f.path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", f.path)
				created++
			}
			if created == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "already initialized at %s\n", paths.RelayHome)
			}
			return nil
		},
	}
}
