package clients

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/vitwit/currency/signer"
)

const (
	testPrivateKey   = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress      = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	recipientAddress = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	tokenAddress     = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
)

type staticFeed map[string]decimal.Decimal

func (f staticFeed) Price(_ context.Context, assetID string) (decimal.Decimal, error) {
	p, ok := f[assetID]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price for %s", assetID)
	}
	return p, nil
}

type fakeEthBackend struct {
	mu       sync.Mutex
	chainID  *big.Int
	height   uint64
	gasPrice *big.Int
	gasErr   error
	nonce    uint64
	known    map[common.Hash]bool
	sent     []*ethtypes.Transaction
	sendErr  error
	callOut  []byte
	calls    []ethereum.CallMsg
}

func newFakeEthBackend() *fakeEthBackend {
	return &fakeEthBackend{
		chainID:  big.NewInt(1337),
		height:   19_000_000,
		gasPrice: big.NewInt(2_000_000_000),
		nonce:    7,
		known:    make(map[common.Hash]bool),
	}
}

func (f *fakeEthBackend) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.chainID), nil
}

func (f *fakeEthBackend) BlockNumber(context.Context) (uint64, error) {
	return f.height, nil
}

func (f *fakeEthBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	if f.gasErr != nil {
		return nil, f.gasErr
	}
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeEthBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeEthBackend) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	f.known[tx.Hash()] = true
	return nil
}

func (f *fakeEthBackend) TransactionByHash(_ context.Context, hash common.Hash) (*ethtypes.Transaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.known[hash] {
		return nil, false, ethereum.NotFound
	}
	return nil, true, nil
}

func (f *fakeEthBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.callOut, nil
}

func (f *fakeEthBackend) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

var errSignerOffline = errors.New("hsm offline")

// offlineSigner keeps the wrapped key's identity but refuses to sign.
type offlineSigner struct {
	signer.Signer
}

func (offlineSigner) Sign([]byte) ([]byte, error) { return nil, errSignerOffline }

// oversized is a value wider than any chain integer.
func oversized() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), 300)
}
