package app

import (
	"encoding/json"
	"os"
	"strings"

	clierr "github.com/yetify/yetify-cli/internal/errors"
	"github.com/yetify/yetify-cli/internal/strategy"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func (s *runtimeState) addStrategyCommands(root *cobra.Command) {
	root.AddCommand(s.newSaveCommand())
	root.AddCommand(s.newListCommand())
	root.AddCommand(s.newGetCommand())
	root.AddCommand(s.newDeleteCommand())
	root.AddCommand(s.newSearchCommand())
	root.AddCommand(s.newPerformanceCommand())
}

func (s *runtimeState) newSaveCommand() *cobra.Command {
	var planFile, name, tagsArg string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a generated strategy plan locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := os.ReadFile(planFile)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "read plan file", err)
			}
			var plan strategy.Plan
			if err := json.Unmarshal(buf, &plan); err != nil {
				return clierr.Wrap(clierr.CodeUsage, "parse plan JSON", err)
			}
			if name == "" {
				name = plan.Goal
			}
			saved, ok := s.store.Save(cmd.Context(), plan, name, splitTags(tagsArg))
			if !ok {
				return clierr.New(clierr.CodeStorage, "strategy could not be persisted")
			}
			return s.render(saved)
		},
	}
	cmd.Flags().StringVar(&planFile, "plan-file", "", "Path to the generated plan JSON")
	cmd.Flags().StringVar(&name, "name", "", "Display name for the strategy")
	cmd.Flags().StringVar(&tagsArg, "tags", "", "Comma-separated tags")
	_ = cmd.MarkFlagRequired("plan-file")
	return cmd
}

func (s *runtimeState) newListCommand() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved strategies",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				return s.render(s.store.ListByStatus(cmd.Context(), strategy.Status(status)))
			}
			return s.render(s.store.List(cmd.Context()))
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (saved|executing|completed|failed)")
	return cmd
}

func (s *runtimeState) newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <strategy-id>",
		Short: "Show one saved strategy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			saved, ok := s.store.GetByID(cmd.Context(), args[0])
			if !ok {
				return clierr.New(clierr.CodeNotFound, "strategy not found: "+args[0])
			}
			return s.render(saved)
		},
	}
}

func (s *runtimeState) newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <strategy-id>",
		Short: "Delete a saved strategy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed := s.store.Delete(cmd.Context(), args[0])
			return s.render(map[string]any{"id": args[0], "deleted": removed})
		},
	}
}

func (s *runtimeState) newSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search strategies by name, goal or tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.render(s.store.Search(cmd.Context(), args[0]))
		},
	}
}

func (s *runtimeState) newPerformanceCommand() *cobra.Command {
	var totalValue, totalReturn, apy float64
	cmd := &cobra.Command{
		Use:   "performance <strategy-id>",
		Short: "Update a strategy's performance metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metrics := strategy.Performance{
				TotalValue:  changedFloat(cmd.Flags(), "total-value", &totalValue),
				TotalReturn: changedFloat(cmd.Flags(), "total-return", &totalReturn),
				CurrentAPY:  changedFloat(cmd.Flags(), "apy", &apy),
			}
			if !s.tracker.UpdatePerformanceMetrics(cmd.Context(), args[0], metrics) {
				return clierr.New(clierr.CodeNotFound, "strategy not found: "+args[0])
			}
			saved, _ := s.store.GetByID(cmd.Context(), args[0])
			return s.render(saved)
		},
	}
	cmd.Flags().Float64Var(&totalValue, "total-value", 0, "Current total value")
	cmd.Flags().Float64Var(&totalReturn, "total-return", 0, "Total return")
	cmd.Flags().Float64Var(&apy, "apy", 0, "Current APY")
	return cmd
}

// changedFloat returns the flag value only when the user set it, so
// unset metrics stay nil and are merged, not zeroed.
func changedFloat(flags *pflag.FlagSet, name string, value *float64) *float64 {
	if flags.Changed(name) {
		return value
	}
	return nil
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
