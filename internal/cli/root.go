package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version is set by goreleaser via ldflags.
	Version = "dev"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Autonomous software-development orchestrator",
	Long: `orchestrator drives a polytope-selected sequence of phases (coding,
QA, debugging, refactoring, investigation, documentation, and others)
against an LLM backend, persisting task and phase state under
.orchestrator/.

Core Commands:
  init                Scaffold a new .orchestrator/ workspace
  run                 Run the phase coordinator until the task graph settles
  status              Show task graph and phase-history progress
  phases              List the registered phase-selection graph
  tools list          List every registered tool

Workflow:
  1. orchestrator init   # Scaffold .orchestrator/config.yaml + polytope.toml
  2. orchestrator run    # Drive phases until all tasks resolve`,
	Version: Version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .orchestrator/config.yaml)")
	rootCmd.SetVersionTemplate(fmt.Sprintf("orchestrator version %s\n", Version))
}
