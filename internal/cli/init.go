package cli

import (
	"fmt"

	"github.com/daydemir/orchestrator/internal/workspace"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a new .orchestrator/ workspace",
	Long: `Scaffold a new .orchestrator/ workspace in the current directory:
config.yaml, polytope.toml, and the snapshots/threads/mailboxes/issues/
backups/tools directories the coordinator and its phases persist into.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := workspace.Init(initForce); err != nil {
			return fmt.Errorf("init: %w", err)
		}
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing .orchestrator/ workspace")
	rootCmd.AddCommand(initCmd)
}
