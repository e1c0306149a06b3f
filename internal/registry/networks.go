package registry

import (
	"fmt"
	"strings"
)

// Network bundles the endpoints a wallet provider and ledger backend
// need for one chain environment.
type Network struct {
	Name       string
	RPCURL     string
	WalletURL  string
	RelayURL   string
	ContractID string
}

// Canonical NEAR-style (account-based) networks. The contract id is
// the deployed strategy-storage contract on each network; the relay
// submits function calls on behalf of wallet-granted keys.
var accountNetworks = map[string]Network{
	"near-mainnet": {
		Name:       "near-mainnet",
		RPCURL:     "https://rpc.mainnet.near.org",
		WalletURL:  "https://wallet.near.org",
		RelayURL:   "https://relayer.yetify.app/send",
		ContractID: "strategy-storage.yetify.near",
	},
	"near-testnet": {
		Name:       "near-testnet",
		RPCURL:     "https://rpc.testnet.near.org",
		WalletURL:  "https://wallet.testnet.near.org",
		RelayURL:   "https://relayer.testnet.yetify.app/send",
		ContractID: "strategy-storage.yetify.testnet",
	},
}

// Canonical default EVM RPC endpoints by chain id, used when the
// config does not override --rpc-url.
var evmRPCByChainID = map[int64]string{
	1:        "https://eth.llamarpc.com",
	10:       "https://mainnet.optimism.io",
	137:      "https://polygon-rpc.com",
	8453:     "https://mainnet.base.org",
	42161:    "https://arb1.arbitrum.io/rpc",
	43114:    "https://api.avax.network/ext/bc/C/rpc",
	11155111: "https://ethereum-sepolia-rpc.publicnode.com",
}

// Strategy-storage contract deployments on EVM chains.
var evmStorageContractByChainID = map[int64]string{
	11155111: "0x6dF2dAcF1b9C2FcFcf6f03683d04BA9Ff330Cb4A",
}

func AccountNetwork(name string) (Network, bool) {
	n, ok := accountNetworks[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}

// Overrides carries config-level endpoint replacements; empty fields
// keep the canonical value.
type Overrides struct {
	RPCURL     string
	WalletURL  string
	RelayURL   string
	ContractID string
}

func ResolveAccountNetwork(name string, ov Overrides) (Network, error) {
	n, ok := AccountNetwork(name)
	if !ok {
		return Network{}, fmt.Errorf("unknown account network %q", name)
	}
	if strings.TrimSpace(ov.RPCURL) != "" {
		n.RPCURL = strings.TrimSpace(ov.RPCURL)
	}
	if strings.TrimSpace(ov.WalletURL) != "" {
		n.WalletURL = strings.TrimSpace(ov.WalletURL)
	}
	if strings.TrimSpace(ov.RelayURL) != "" {
		n.RelayURL = strings.TrimSpace(ov.RelayURL)
	}
	if strings.TrimSpace(ov.ContractID) != "" {
		n.ContractID = strings.TrimSpace(ov.ContractID)
	}
	return n, nil
}

func EVMRPCURL(override string, chainID int64) (string, error) {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override), nil
	}
	if value, ok := evmRPCByChainID[chainID]; ok {
		return value, nil
	}
	return "", fmt.Errorf("no default rpc configured for chain id %d; provide one in config", chainID)
}

func EVMStorageContract(override string, chainID int64) (string, error) {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override), nil
	}
	if value, ok := evmStorageContractByChainID[chainID]; ok {
		return value, nil
	}
	return "", fmt.Errorf("no storage contract deployed on chain id %d; provide one in config", chainID)
}
