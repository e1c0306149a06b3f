package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GlobalFlags are the persistent CLI flags. Flags override env, env
// overrides the config file, the file overrides defaults.
type GlobalFlags struct {
	ConfigPath string
	JSON       bool
	Plain      bool
	Provider   string
	Network    string
	Timeout    string
	LogLevel   string
}

type Settings struct {
	OutputMode string
	LogLevel   string

	StorePath       string
	StoreLockPath   string
	WalletStatePath string
	CachePath       string
	CacheLockPath   string

	Provider   string
	Network    string
	PendingTTL time.Duration
	Timeout    time.Duration
	Retries    int

	NearRPCURL     string
	NearWalletURL  string
	NearRelayURL   string
	NearContractID string

	EVMChainID  int64
	EVMRPCURL   string
	EVMContract string
}

type fileConfig struct {
	Output   string `yaml:"output"`
	LogLevel string `yaml:"log_level"`
	Timeout  string `yaml:"timeout"`
	Retries  *int   `yaml:"retries"`
	Storage  struct {
		Path       string `yaml:"path"`
		LockPath   string `yaml:"lock_path"`
		WalletPath string `yaml:"wallet_path"`
		CachePath  string `yaml:"cache_path"`
		CacheLock  string `yaml:"cache_lock_path"`
	} `yaml:"storage"`
	Wallet struct {
		Provider   string `yaml:"provider"`
		Network    string `yaml:"network"`
		PendingTTL string `yaml:"pending_ttl"`
	} `yaml:"wallet"`
	Near struct {
		RPCURL     string `yaml:"rpc_url"`
		WalletURL  string `yaml:"wallet_url"`
		RelayURL   string `yaml:"relay_url"`
		ContractID string `yaml:"contract_id"`
	} `yaml:"near"`
	EVM struct {
		ChainID  *int64 `yaml:"chain_id"`
		RPCURL   string `yaml:"rpc_url"`
		Contract string `yaml:"contract"`
	} `yaml:"evm"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}
	applyEnv(&settings)
	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.PendingTTL <= 0 {
		settings.PendingTTL = 10 * time.Minute
	}
	return settings, nil
}

func defaultSettings() (Settings, error) {
	dataDir, err := xdgDir("XDG_DATA_HOME", ".local/share")
	if err != nil {
		return Settings{}, err
	}
	cacheDir, err := xdgDir("XDG_CACHE_HOME", ".cache")
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:      "json",
		LogLevel:        "warn",
		StorePath:       filepath.Join(dataDir, "yetify", "strategies.db"),
		StoreLockPath:   filepath.Join(dataDir, "yetify", "strategies.lock"),
		WalletStatePath: filepath.Join(dataDir, "yetify", "wallet.db"),
		CachePath:       filepath.Join(cacheDir, "yetify", "cache.db"),
		CacheLockPath:   filepath.Join(cacheDir, "yetify", "cache.lock"),
		Provider:        "near",
		Network:         "near-testnet",
		PendingTTL:      10 * time.Minute,
		Timeout:         30 * time.Second,
		Retries:         2,
		EVMChainID:      11155111,
	}, nil
}

func xdgDir(env, fallback string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return base, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback), nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "yetify", "config.yaml"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.LogLevel != "" {
		settings.LogLevel = strings.ToLower(cfg.LogLevel)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Storage.Path != "" {
		settings.StorePath = cfg.Storage.Path
	}
	if cfg.Storage.LockPath != "" {
		settings.StoreLockPath = cfg.Storage.LockPath
	}
	if cfg.Storage.WalletPath != "" {
		settings.WalletStatePath = cfg.Storage.WalletPath
	}
	if cfg.Storage.CachePath != "" {
		settings.CachePath = cfg.Storage.CachePath
	}
	if cfg.Storage.CacheLock != "" {
		settings.CacheLockPath = cfg.Storage.CacheLock
	}
	if cfg.Wallet.Provider != "" {
		settings.Provider = strings.ToLower(cfg.Wallet.Provider)
	}
	if cfg.Wallet.Network != "" {
		settings.Network = strings.ToLower(cfg.Wallet.Network)
	}
	if cfg.Wallet.PendingTTL != "" {
		d, err := time.ParseDuration(cfg.Wallet.PendingTTL)
		if err != nil {
			return fmt.Errorf("config wallet.pending_ttl: %w", err)
		}
		settings.PendingTTL = d
	}
	if cfg.Near.RPCURL != "" {
		settings.NearRPCURL = cfg.Near.RPCURL
	}
	if cfg.Near.WalletURL != "" {
		settings.NearWalletURL = cfg.Near.WalletURL
	}
	if cfg.Near.RelayURL != "" {
		settings.NearRelayURL = cfg.Near.RelayURL
	}
	if cfg.Near.ContractID != "" {
		settings.NearContractID = cfg.Near.ContractID
	}
	if cfg.EVM.ChainID != nil {
		settings.EVMChainID = *cfg.EVM.ChainID
	}
	if cfg.EVM.RPCURL != "" {
		settings.EVMRPCURL = cfg.EVM.RPCURL
	}
	if cfg.EVM.Contract != "" {
		settings.EVMContract = cfg.EVM.Contract
	}
	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("YETIFY_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("YETIFY_LOG_LEVEL"); v != "" {
		settings.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("YETIFY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("YETIFY_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("YETIFY_STORE_PATH"); v != "" {
		settings.StorePath = v
	}
	if v := os.Getenv("YETIFY_STORE_LOCK_PATH"); v != "" {
		settings.StoreLockPath = v
	}
	if v := os.Getenv("YETIFY_WALLET_STATE_PATH"); v != "" {
		settings.WalletStatePath = v
	}
	if v := os.Getenv("YETIFY_CACHE_PATH"); v != "" {
		settings.CachePath = v
	}
	if v := os.Getenv("YETIFY_CACHE_LOCK_PATH"); v != "" {
		settings.CacheLockPath = v
	}
	if v := os.Getenv("YETIFY_WALLET_PROVIDER"); v != "" {
		settings.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("YETIFY_NETWORK"); v != "" {
		settings.Network = strings.ToLower(v)
	}
	if v := os.Getenv("YETIFY_PENDING_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.PendingTTL = d
		}
	}
	if v := os.Getenv("YETIFY_NEAR_RPC_URL"); v != "" {
		settings.NearRPCURL = v
	}
	if v := os.Getenv("YETIFY_NEAR_WALLET_URL"); v != "" {
		settings.NearWalletURL = v
	}
	if v := os.Getenv("YETIFY_NEAR_RELAY_URL"); v != "" {
		settings.NearRelayURL = v
	}
	if v := os.Getenv("YETIFY_NEAR_CONTRACT_ID"); v != "" {
		settings.NearContractID = v
	}
	if v := os.Getenv("YETIFY_EVM_CHAIN_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			settings.EVMChainID = n
		}
	}
	if v := os.Getenv("YETIFY_EVM_RPC_URL"); v != "" {
		settings.EVMRPCURL = v
	}
	if v := os.Getenv("YETIFY_EVM_CONTRACT"); v != "" {
		settings.EVMContract = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if flags.Provider != "" {
		settings.Provider = strings.ToLower(flags.Provider)
	}
	if flags.Network != "" {
		settings.Network = strings.ToLower(flags.Network)
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.LogLevel != "" {
		settings.LogLevel = strings.ToLower(flags.LogLevel)
	}
	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}
	return nil
}
