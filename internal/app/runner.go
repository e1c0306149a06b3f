package app

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/yetify/yetify-cli/internal/config"
	clierr "github.com/yetify/yetify-cli/internal/errors"
	"github.com/yetify/yetify-cli/internal/httpx"
	"github.com/yetify/yetify-cli/internal/ledger"
	"github.com/yetify/yetify-cli/internal/lifecycle"
	"github.com/yetify/yetify-cli/internal/registry"
	"github.com/yetify/yetify-cli/internal/strategy"
	"github.com/yetify/yetify-cli/internal/version"
	"github.com/yetify/yetify-cli/internal/wallet"
	"github.com/yetify/yetify-cli/internal/yields"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{stdout: stdout, stderr: stderr, now: time.Now}
}

type runtimeState struct {
	runner   *Runner
	flags    config.GlobalFlags
	settings config.Settings
	log      zerolog.Logger

	store       *strategy.Store
	tracker     *strategy.Tracker
	connector   *wallet.Connector
	persister   *ledger.Persister
	coordinator *lifecycle.Coordinator
	accountBack *ledger.AccountBackend
	feed        *yields.Feed
	cache       *yields.Cache
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	state.close()
	if err == nil {
		return 0
	}
	_ = render(r.stderr, errorEnvelope(err), state.settings.OutputMode)
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Save yield strategies locally and commit them to the ledger through a connected wallet",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.log = newLogger(s.runner.stderr, settings.LogLevel)
			return s.initComponents(cmd.Context())
		},
	}
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to the config file")
	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "JSON output")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Plain output")
	cmd.PersistentFlags().StringVar(&s.flags.Provider, "wallet-provider", "", "Wallet provider (near|evm)")
	cmd.PersistentFlags().StringVar(&s.flags.Network, "network", "", "Account network (near-mainnet|near-testnet)")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Ledger submission timeout (duration)")
	cmd.PersistentFlags().StringVar(&s.flags.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")

	s.addStrategyCommands(cmd)
	s.addWalletCommands(cmd)
	s.addExecuteCommand(cmd)
	s.addLedgerCommands(cmd)
	s.addYieldsCommand(cmd)
	cmd.AddCommand(s.newVersionCommand())
	return cmd
}

func (s *runtimeState) initComponents(ctx context.Context) error {
	if s.store != nil {
		return nil
	}

	repo, err := strategy.OpenSQLiteRepository(s.settings.StorePath, s.settings.StoreLockPath)
	if err != nil {
		return clierr.Wrap(clierr.CodeStorage, "open strategy store", err)
	}
	s.store = strategy.NewStore(repo, s.log)
	s.tracker = strategy.NewTracker(s.store, s.log)

	client := httpx.New(s.settings.Timeout, s.settings.Retries)

	network, err := registry.ResolveAccountNetwork(s.settings.Network, registry.Overrides{
		RPCURL:     s.settings.NearRPCURL,
		WalletURL:  s.settings.NearWalletURL,
		RelayURL:   s.settings.NearRelayURL,
		ContractID: s.settings.NearContractID,
	})
	if err != nil {
		return clierr.Wrap(clierr.CodeUsage, "resolve network", err)
	}
	evmRPC, err := registry.EVMRPCURL(s.settings.EVMRPCURL, s.settings.EVMChainID)
	if err != nil && s.settings.Provider == "evm" {
		return clierr.Wrap(clierr.CodeUsage, "resolve evm rpc", err)
	}

	stateStore, err := wallet.OpenSQLiteStateStore(s.settings.WalletStatePath)
	if err != nil {
		return clierr.Wrap(clierr.CodeStorage, "open wallet state", err)
	}
	s.connector = wallet.NewConnector(stateStore, s.log,
		wallet.NewAccountProvider(network, client),
		wallet.NewKeyProvider(evmRPC),
	)
	s.connector.SetPendingTTL(s.settings.PendingTTL)
	s.connector.Reconnect(ctx)

	s.accountBack = ledger.NewAccountBackend(network, client)
	backends := []ledger.Backend{s.accountBack}
	if evmContract, cerr := registry.EVMStorageContract(s.settings.EVMContract, s.settings.EVMChainID); cerr == nil {
		backends = append(backends, ledger.NewEVMBackend(evmRPC, evmContract))
	} else if s.settings.Provider == "evm" {
		return clierr.Wrap(clierr.CodeUsage, "resolve evm storage contract", cerr)
	}
	s.persister = ledger.NewPersister(s.connector, s.settings.Timeout, s.log, backends...)
	s.coordinator = lifecycle.NewCoordinator(s.store, s.tracker, s.connector, s.persister, s.settings.Provider, s.log)

	if cache, cerr := yields.OpenCache(s.settings.CachePath, s.settings.CacheLockPath); cerr == nil {
		s.cache = cache
	} else {
		s.log.Debug().Err(cerr).Msg("yield cache unavailable")
	}
	s.feed = yields.NewFeed(client, s.cache, s.log)
	return nil
}

func (s *runtimeState) close() {
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.cache != nil {
		_ = s.cache.Close()
	}
}

func (s *runtimeState) render(data any) error {
	return render(s.runner.stdout, successEnvelope(data), s.settings.OutputMode)
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}

func (s *runtimeState) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(version.Long())
			return nil
		},
	}
}
