package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	clierr "github.com/yetify/yetify-cli/internal/errors"
	"github.com/yetify/yetify-cli/internal/wallet"
	"github.com/yetify/yetify-cli/internal/wallet/signer"
)

type staticSigner struct {
	address common.Address
}

func (s staticSigner) Address() common.Address { return s.address }

func (s staticSigner) SignTx(_ *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	return tx, nil
}

func TestEVMSubmitRejectsMissingKey(t *testing.T) {
	b := NewEVMBackend("http://127.0.0.1:1", "0x6dF2dAcF1b9C2FcFcf6f03683d04BA9Ff330Cb4A")
	b.SetSignerFactory(func() (signer.Signer, error) {
		return nil, errors.New("no key configured")
	})

	_, err := b.Submit(context.Background(), wallet.Session{Address: "0xabc"}, []byte("{}"))
	if clierr.CodeOf(err) != clierr.CodeRejected {
		t.Fatalf("expected rejected, got %v", err)
	}
}

func TestEVMSubmitRejectsSessionMismatch(t *testing.T) {
	b := NewEVMBackend("http://127.0.0.1:1", "0x6dF2dAcF1b9C2FcFcf6f03683d04BA9Ff330Cb4A")
	b.SetSignerFactory(func() (signer.Signer, error) {
		return staticSigner{address: common.HexToAddress("0xaa")}, nil
	})

	sess := wallet.Session{Address: common.HexToAddress("0xbb").Hex()}
	_, err := b.Submit(context.Background(), sess, []byte("{}"))
	if clierr.CodeOf(err) != clierr.CodeRejected {
		t.Fatalf("expected rejected for key/session mismatch, got %v", err)
	}
}

func TestEVMSubmitUnreachableRPCIsTransient(t *testing.T) {
	b := NewEVMBackend("http://127.0.0.1:1", "0x6dF2dAcF1b9C2FcFcf6f03683d04BA9Ff330Cb4A")
	addr := common.HexToAddress("0xaa")
	b.SetSignerFactory(func() (signer.Signer, error) {
		return staticSigner{address: addr}, nil
	})

	_, err := b.Submit(context.Background(), wallet.Session{Address: addr.Hex()}, []byte("{}"))
	if !clierr.Retryable(err) {
		t.Fatalf("unreachable rpc should be retryable, got %v", err)
	}
}
