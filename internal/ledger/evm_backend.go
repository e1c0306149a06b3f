package ledger

import (
	"context"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	clierr "github.com/yetify/yetify-cli/internal/errors"
	"github.com/yetify/yetify-cli/internal/wallet"
	"github.com/yetify/yetify-cli/internal/wallet/signer"
)

const storageABI = `[{"name":"storeStrategy","type":"function","stateMutability":"nonpayable","inputs":[{"name":"strategyJson","type":"string"}],"outputs":[]}]`

// EVMBackend persists strategies to the storage contract on an EVM
// chain, signing locally with the connected key session.
type EVMBackend struct {
	rpcURL       string
	contract     common.Address
	newSigner    func() (signer.Signer, error)
	pollInterval time.Duration
}

func NewEVMBackend(rpcURL, contractAddress string) *EVMBackend {
	return &EVMBackend{
		rpcURL:   rpcURL,
		contract: common.HexToAddress(contractAddress),
		newSigner: func() (signer.Signer, error) {
			return signer.NewLocalSigner(signer.ConfigFromEnv())
		},
		pollInterval: 2 * time.Second,
	}
}

func (b *EVMBackend) Provider() string { return "evm" }

func (b *EVMBackend) Submit(ctx context.Context, sess wallet.Session, payload []byte) (Receipt, error) {
	txSigner, err := b.newSigner()
	if err != nil {
		return Receipt{}, clierr.Wrap(clierr.CodeRejected, "signing key unavailable", err)
	}
	if !strings.EqualFold(txSigner.Address().Hex(), sess.Address) {
		return Receipt{}, clierr.New(clierr.CodeRejected, "signing key does not match connected session")
	}

	client, err := ethclient.DialContext(ctx, b.rpcURL)
	if err != nil {
		return Receipt{}, clierr.Wrap(clierr.CodeTransient, "connect rpc", err)
	}
	defer client.Close()

	parsed, err := abi.JSON(strings.NewReader(storageABI))
	if err != nil {
		return Receipt{}, clierr.Wrap(clierr.CodeFatal, "parse storage abi", err)
	}
	data, err := parsed.Pack("storeStrategy", string(payload))
	if err != nil {
		return Receipt{}, clierr.Wrap(clierr.CodeFatal, "encode storeStrategy call", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return Receipt{}, clierr.Wrap(clierr.CodeTransient, "read chain id", err)
	}
	msg := ethereum.CallMsg{From: txSigner.Address(), To: &b.contract, Data: data}
	gasLimit, err := client.EstimateGas(ctx, msg)
	if err != nil {
		return Receipt{}, clierr.Wrap(clierr.CodeFatal, "estimate gas (contract rejected call)", err)
	}
	gasLimit = gasLimit + gasLimit/5

	tipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		tipCap = big.NewInt(2_000_000_000)
	}
	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return Receipt{}, clierr.Wrap(clierr.CodeTransient, "fetch latest header", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(1_000_000_000)
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tipCap)

	nonce, err := client.PendingNonceAt(ctx, txSigner.Address())
	if err != nil {
		return Receipt{}, clierr.Wrap(clierr.CodeTransient, "fetch nonce", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &b.contract,
		Data:      data,
	})
	signed, err := txSigner.SignTx(chainID, tx)
	if err != nil {
		return Receipt{}, clierr.Wrap(clierr.CodeRejected, "sign transaction", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return Receipt{}, clierr.Wrap(clierr.CodeTransient, "broadcast transaction", err)
	}

	return b.awaitReceipt(ctx, client, signed.Hash())
}

func (b *EVMBackend) awaitReceipt(ctx context.Context, client *ethclient.Client, hash common.Hash) (Receipt, error) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return Receipt{}, clierr.New(clierr.CodeFatal, "transaction reverted on-chain")
			}
			return Receipt{
				TransactionHash: hash.Hex(),
				GasUsed:         strconv.FormatUint(receipt.GasUsed, 10),
			}, nil
		}
		// Transient polling failures, including ethereum.NotFound
		// before inclusion, are retried until the deadline.
		select {
		case <-ctx.Done():
			return Receipt{}, clierr.Wrap(clierr.CodeTimeout, "timed out waiting for receipt", ctx.Err())
		case <-ticker.C:
		}
	}
}

// SetSignerFactory overrides key loading. Tests only.
func (b *EVMBackend) SetSignerFactory(fn func() (signer.Signer, error)) { b.newSigner = fn }
