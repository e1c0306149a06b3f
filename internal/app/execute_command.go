package app

import (
	clierr "github.com/yetify/yetify-cli/internal/errors"
	"github.com/spf13/cobra"
)

func (s *runtimeState) addExecuteCommand(root *cobra.Command) {
	root.AddCommand(&cobra.Command{
		Use:   "execute <strategy-id>",
		Short: "Commit a saved strategy to the ledger through the connected wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := s.coordinator.Execute(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return s.render(result)
		},
	})
}

func (s *runtimeState) addLedgerCommands(root *cobra.Command) {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Read strategies back from the on-chain store",
	}
	ledgerCmd.AddCommand(&cobra.Command{
		Use:   "get <strategy-id>",
		Short: "Read one strategy from the contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stored, err := s.accountBack.GetStrategy(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return s.render(stored)
		},
	})
	ledgerCmd.AddCommand(&cobra.Command{
		Use:   "count",
		Short: "Show the contract's total strategy count",
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := s.accountBack.TotalStrategies(cmd.Context())
			if err != nil {
				return err
			}
			return s.render(map[string]any{"total": total})
		},
	})
	ledgerCmd.AddCommand(&cobra.Command{
		Use:   "mine",
		Short: "List the connected account's on-chain strategies",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, ok := s.connector.Session(cmd.Context(), s.settings.Provider)
			if !ok || sess.AccountID == "" {
				return clierr.New(clierr.CodePrecondition, "connect an account-based wallet first")
			}
			stored, err := s.accountBack.StrategiesByCreator(cmd.Context(), sess.AccountID)
			if err != nil {
				return err
			}
			return s.render(stored)
		},
	})
	root.AddCommand(ledgerCmd)
}

func (s *runtimeState) addYieldsCommand(root *cobra.Command) {
	var chain, protocol string
	var limit int
	cmd := &cobra.Command{
		Use:   "yields",
		Short: "Show top pool yields (best effort)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.render(s.feed.Top(cmd.Context(), chain, protocol, limit))
		},
	}
	cmd.Flags().StringVar(&chain, "chain", "", "Filter by chain name")
	cmd.Flags().StringVar(&protocol, "protocol", "", "Filter by protocol")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum rows")
	root.AddCommand(cmd)
}
