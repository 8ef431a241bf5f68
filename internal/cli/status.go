package cli

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/daydemir/orchestrator/internal/statestore"
	"github.com/daydemir/orchestrator/internal/task"
	"github.com/daydemir/orchestrator/internal/workspace"
)

var statusVerbose bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show task graph and phase-history progress",
	Long: `Show the persisted pipeline state: task counts by status and
category, the most recent phase-history entries, and each phase's
adaptive experience/awareness counters.

Use --verbose to list every open task individually.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wsDir, err := workspace.Find()
		if err != nil {
			return err
		}

		store, err := statestore.New(workspace.StateDir(wsDir))
		if err != nil {
			return fmt.Errorf("opening state store: %w", err)
		}

		state, err := store.Load()
		if err != nil {
			return fmt.Errorf("loading state: %w", err)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		bold := color.New(color.Bold).SprintFunc()
		dim := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("%s\n%s\n\n", bold("Pipeline Status"), dim(fmt.Sprintf("run %s · orchestrator v%s", state.RunID, Version)))

		counts := map[task.Status]int{}
		byCategory := map[task.Category]int{}
		var open []*task.Task
		for _, t := range state.Tasks.Tasks {
			counts[t.Status]++
			byCategory[t.Category]++
			switch t.Status {
			case task.StatusPending, task.StatusInProgress, task.StatusQAFailed, task.StatusBlocked:
				open = append(open, t)
			}
		}

		total := len(state.Tasks.Tasks)
		completed := counts[task.StatusCompleted]

		fmt.Println(bold("Tasks:"))
		if total > 0 {
			barWidth := terminalWidth() - 40
			if barWidth < 10 {
				barWidth = 10
			}
			if barWidth > 40 {
				barWidth = 40
			}
			bar := progressBar(completed, total, barWidth)
			pct := int(float64(completed) / float64(total) * 100)
			fmt.Printf("  [%s] %d%% (%d/%d completed)\n", bar, pct, completed, total)
		} else {
			fmt.Println(dim("  no tasks yet"))
		}
		fmt.Printf("  %s pending       %d\n", green("✓"), counts[task.StatusPending])
		fmt.Printf("  %s in progress   %d\n", cyan("›"), counts[task.StatusInProgress])
		fmt.Printf("  %s qa failed     %d\n", yellow("!"), counts[task.StatusQAFailed])
		fmt.Printf("  %s blocked       %d\n", yellow("!"), counts[task.StatusBlocked])
		fmt.Printf("  %s failed        %d\n", color.New(color.FgRed).SprintFunc()("✗"), counts[task.StatusFailed])
		fmt.Println()

		if total > 0 {
			fmt.Println(bold("By category:"))
			categories := make([]task.Category, 0, len(byCategory))
			for cat := range byCategory {
				categories = append(categories, cat)
			}
			sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
			for _, cat := range categories {
				fmt.Printf("  %-16s %d\n", cat, byCategory[cat])
			}
			fmt.Println()
		}

		refactoringPending := 0
		for _, r := range state.Tasks.RefactoringTasks {
			if r.Status == task.StatusPending {
				refactoringPending++
			}
		}
		fmt.Printf("%s %d pending\n\n", bold("Refactoring tasks:"), refactoringPending)

		fmt.Println(bold("Recent phase history:"))
		history := state.PhaseHistory
		if n := len(history); n > 10 {
			history = history[n-10:]
		}
		if len(history) == 0 {
			fmt.Println(dim("  none yet"))
		}
		for _, h := range history {
			outcome := h.Outcome
			if outcome == "" {
				outcome = "running"
			}
			fmt.Printf("  %-34s %-16s %s\n", h.Phase, outcome, dim(h.TaskID))
		}
		fmt.Println()

		fmt.Println(bold("Phase experience:"))
		for name, rec := range state.Phases {
			fmt.Printf("  %-34s runs=%-4d awareness=%.2f\n", name, rec.ExperienceCount, rec.AwarenessLevel)
		}
		fmt.Println()

		if statusVerbose {
			fmt.Println(bold("Open tasks:"))
			if len(open) == 0 {
				fmt.Println(dim("  none"))
			}
			for _, t := range open {
				fmt.Printf("  %s %-12s %-14s %s\n", statusIcon(t.Status, green, yellow), t.Status, t.Category, t.Title)
			}
			fmt.Println()
		}

		if len(open) == 0 && state.Tasks.SelectNextRefactoring() == nil {
			fmt.Println(green("✓ All tasks resolved."))
		} else {
			fmt.Println("Run 'orchestrator run' to continue.")
		}

		return nil
	},
}

func progressBar(completed, total, width int) string {
	if total == 0 {
		return ""
	}
	filled := completed * width / total
	if filled > width {
		filled = width
	}
	bar := make([]byte, width)
	for i := range bar {
		if i < filled {
			bar[i] = '='
		} else {
			bar[i] = ' '
		}
	}
	return string(bar)
}

func statusIcon(s task.Status, green, yellow func(a ...interface{}) string) string {
	switch s {
	case task.StatusQAFailed, task.StatusBlocked:
		return yellow("!")
	default:
		return green("›")
	}
}

func init() {
	statusCmd.Flags().BoolVarP(&statusVerbose, "verbose", "v", false, "list every open task individually")
	rootCmd.AddCommand(statusCmd)
}
