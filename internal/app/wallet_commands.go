package app

import (
	clierr "github.com/yetify/yetify-cli/internal/errors"
	"github.com/yetify/yetify-cli/internal/wallet"
	"github.com/spf13/cobra"
)

func (s *runtimeState) addWalletCommands(root *cobra.Command) {
	walletCmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage wallet connections",
	}
	walletCmd.AddCommand(s.newWalletConnectCommand())
	walletCmd.AddCommand(s.newWalletCallbackCommand())
	walletCmd.AddCommand(s.newWalletStatusCommand())
	walletCmd.AddCommand(s.newWalletDisconnectCommand())
	root.AddCommand(walletCmd)
}

func (s *runtimeState) newWalletConnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Connect the configured wallet provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := s.connector.Connect(cmd.Context(), s.settings.Provider)
			if err != nil {
				return err
			}
			if result.State == wallet.StateConnecting && result.RedirectURL != "" {
				return s.render(map[string]any{
					"state":        result.State,
					"authorizeUrl": result.RedirectURL,
					"next":         "open the URL, approve, then run: yetify wallet callback --url <landing-url>",
				})
			}
			return s.render(map[string]any{"state": result.State, "session": result.Session})
		},
	}
}

func (s *runtimeState) newWalletCallbackCommand() *cobra.Command {
	var landingURL, strategyID string
	cmd := &cobra.Command{
		Use:   "callback",
		Short: "Complete a redirect round-trip from the landing URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, ok, err := s.connector.HandleCallback(cmd.Context(), landingURL)
			if err != nil {
				return err
			}
			if ok {
				return s.render(map[string]any{"state": wallet.StateConnected, "session": sess})
			}
			// Not a connection callback; it may carry a post-write
			// transaction outcome for a strategy.
			if strategyID != "" {
				updated, rerr := s.coordinator.RecordTransactionOutcome(cmd.Context(), strategyID, landingURL)
				if rerr != nil {
					return rerr
				}
				return s.render(updated)
			}
			return clierr.New(clierr.CodeUsage, "landing url is not a pending wallet callback")
		},
	}
	cmd.Flags().StringVar(&landingURL, "url", "", "Landing URL after the wallet redirect")
	cmd.Flags().StringVar(&strategyID, "strategy", "", "Strategy id for a post-write transaction callback")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func (s *runtimeState) newWalletStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show wallet connection state",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := s.settings.Provider
			connected := s.connector.IsConnected(cmd.Context(), provider)
			out := map[string]any{
				"provider":  provider,
				"state":     s.connector.State(provider),
				"connected": connected,
			}
			if sess, ok := s.connector.Session(cmd.Context(), provider); ok {
				out["session"] = sess
			}
			return s.render(out)
		},
	}
}

func (s *runtimeState) newWalletDisconnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Disconnect the configured wallet provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.connector.Disconnect(cmd.Context(), s.settings.Provider); err != nil {
				return err
			}
			return s.render(map[string]any{"provider": s.settings.Provider, "state": wallet.StateDisconnected})
		},
	}
}
