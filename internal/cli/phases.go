package cli

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/daydemir/orchestrator/internal/config"
	"github.com/daydemir/orchestrator/internal/phases"
	"github.com/daydemir/orchestrator/internal/polytope"
	"github.com/daydemir/orchestrator/internal/workspace"
)

var phasesCmd = &cobra.Command{
	Use:   "phases",
	Short: "List the registered phase-selection graph",
	Long: `List every registered phase, its Dim7 weight vector, and the
polytope.toml edges the coordinator may select between them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wsDir, err := workspace.Find()
		if err != nil {
			return err
		}
		cfg, err := config.Load(wsDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		polytopePath := cfg.Coordinator.PolytopePath
		if !filepath.IsAbs(polytopePath) {
			polytopePath = filepath.Join(workspace.Path(wsDir), polytopePath)
		}
		poly, err := polytope.LoadDefinition(polytopePath)
		if err != nil {
			return fmt.Errorf("loading polytope definition: %w", err)
		}

		defs := phases.All()
		names := make([]string, 0, len(defs))
		for _, d := range defs {
			names = append(names, d.Name())
		}
		sort.Strings(names)

		fmt.Println("Registered phases:")
		for _, name := range names {
			v, ok := poly.Vertex(name)
			if !ok {
				fmt.Printf("  %-34s %s\n", name, "(not declared in polytope.toml)")
				continue
			}
			fmt.Printf("  %-34s weights=%v\n", name, v.Weights)
		}

		fmt.Println()
		fmt.Println("Transitions:")
		for _, name := range names {
			for _, cand := range poly.Score(name, polytope.Dim7{1, 1, 1, 1, 1, 1, 1}) {
				fmt.Printf("  %s -> %s\n", name, cand.Vertex.Name)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(phasesCmd)
}
