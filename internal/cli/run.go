package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/daydemir/orchestrator/internal/config"
	"github.com/daydemir/orchestrator/internal/coordinator"
	"github.com/daydemir/orchestrator/internal/ipc"
	"github.com/daydemir/orchestrator/internal/llm"
	"github.com/daydemir/orchestrator/internal/phase"
	"github.com/daydemir/orchestrator/internal/phases"
	"github.com/daydemir/orchestrator/internal/polytope"
	"github.com/daydemir/orchestrator/internal/statestore"
	"github.com/daydemir/orchestrator/internal/tool"
	"github.com/daydemir/orchestrator/internal/workspace"
)

var runMaxIterations int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the phase coordinator until the task graph settles",
	Long: `Drive the polytope-selected phase loop: load persisted state, analyse
the situation, select a phase, run it against the configured LLM
backend, and persist the result. Repeats until no task is left open
(every task is completed or failed), a fatal state error occurs, or
--max-iterations is reached.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wsDir, err := workspace.Find()
		if err != nil {
			return err
		}

		cfg, err := config.Load(wsDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

		store, err := statestore.New(workspace.StateDir(wsDir))
		if err != nil {
			return fmt.Errorf("opening state store: %w", err)
		}

		polytopePath := cfg.Coordinator.PolytopePath
		if !filepath.IsAbs(polytopePath) {
			polytopePath = filepath.Join(workspace.Path(wsDir), polytopePath)
		}
		poly, err := polytope.LoadDefinition(polytopePath)
		if err != nil {
			return fmt.Errorf("loading polytope definition: %w", err)
		}

		mailboxes, err := ipc.New(workspace.MailboxesDir(wsDir))
		if err != nil {
			return fmt.Errorf("opening mailboxes: %w", err)
		}

		registry := tool.NewRegistry(logger)
		tool.RegisterBuiltins(registry, tool.BuildConfig{
			ProjectDir: wsDir,
			BuildCmd:   cfg.Project.BuildCmd,
			TestCmd:    cfg.Project.TestCmd,
			VerifyCmd:  cfg.Project.VerifyCmd,
		})
		toolsDir := cfg.Tools.DiscoveryDir
		if !filepath.IsAbs(toolsDir) {
			toolsDir = filepath.Join(workspace.Path(wsDir), toolsDir)
		}
		if err := registry.DiscoverCustom(toolsDir); err != nil {
			logger.Warn("discovering custom tools", "error", err)
		}

		backend := selectBackend(cfg)

		runner := phase.NewRunner(backend, registry, mailboxes, logger, phase.Config{
			Host:            cfg.LLM.Host,
			Model:           cfg.LLM.Model,
			ProjectDir:      wsDir,
			IterationBudget: cfg.Phases.IterationBudget,
			TokenBudget:     cfg.Phases.TokenBudget,
			WallClockBudget: cfg.Phases.WallClockBudget,
		})

		coordCfg := coordinator.DefaultConfig()
		if runMaxIterations > 0 {
			coordCfg.MaxIterations = runMaxIterations
		} else {
			coordCfg.MaxIterations = cfg.Coordinator.MaxIterations
		}

		coord := coordinator.New(store, poly, mailboxes, runner, phases.All(), logger, coordCfg)

		exitCode := coord.Run(context.Background())
		os.Exit(int(exitCode))
		return nil
	},
}

func selectBackend(cfg *config.Config) llm.Backend {
	var backend llm.Backend
	switch cfg.LLM.Backend {
	case "kilocode":
		backend = llm.NewKiloCode(cfg.Mistral.Binary, cfg.Mistral.APIKey)
	case "http":
		backend = llm.NewHTTPBackend(cfg.Phases.WallClockBudget)
	default:
		backend = llm.NewClaude(cfg.Claude.Binary)
	}
	return llm.NewBreakerBackend(backend)
}

func init() {
	runCmd.Flags().IntVar(&runMaxIterations, "max-iterations", 0, "override the coordinator's configured max iterations")
	rootCmd.AddCommand(runCmd)
}
