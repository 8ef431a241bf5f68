package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/daydemir/orchestrator/internal/config"
	"github.com/daydemir/orchestrator/internal/tool"
	"github.com/daydemir/orchestrator/internal/workspace"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect the tool registry",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered tool",
	Long: `List every builtin and workspace-discovered tool, with its
parameters, the way the phases' AllowedTools declarations reference
them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wsDir, err := workspace.Find()
		if err != nil {
			return err
		}
		cfg, err := config.Load(wsDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logger := log.New(io.Discard)
		registry := tool.NewRegistry(logger)
		tool.RegisterBuiltins(registry, tool.BuildConfig{
			ProjectDir: wsDir,
			BuildCmd:   cfg.Project.BuildCmd,
			TestCmd:    cfg.Project.TestCmd,
			VerifyCmd:  cfg.Project.VerifyCmd,
		})
		if err := registry.DiscoverCustom(workspace.ToolsDir(wsDir)); err != nil {
			logger.Warn("discovering custom tools", "error", err)
		}

		schemas := registry.Schemas()
		sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })

		for _, s := range schemas {
			fmt.Printf("%-28s %s\n", s.Name, s.Description)
			names := make([]string, 0, len(s.Parameters))
			for name := range s.Parameters {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				p := s.Parameters[name]
				req := ""
				if p.Required {
					req = " (required)"
				}
				fmt.Printf("    %-20s %s%s\n", name, p.Type, req)
			}
		}

		return nil
	},
}

func init() {
	toolsCmd.AddCommand(toolsListCmd)
	rootCmd.AddCommand(toolsCmd)
}
