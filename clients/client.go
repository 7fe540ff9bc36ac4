// Package clients implements one currency adapter per supported network
// behind the chain-agnostic Currency interface.
package clients

import (
	"context"
	"math/big"

	"github.com/vitwit/currency/signer"
	"github.com/vitwit/currency/types"
)

// Currency is the uniform contract every network adapter satisfies.
//
// Kind, NeedsFee, TxView, OwnerToAddress and Signer are local and never block on I/O.
// The remaining methods talk to the network and honour ctx cancellation.
// Implementations are safe for concurrent use.
type Currency interface {
	Kind() types.CurrencyKind

	// NeedsFee reports whether the network requires an explicit fee line item
	// separate from the transferred amount.
	NeedsFee() bool

	// TxView returns the descriptor of a transaction built by this adapter.
	TxView(txID string) (*types.Tx, error)

	// OwnerToAddress derives the wallet address for a public key in the network's encoding.
	OwnerToAddress(owner string) (string, error)

	// Signer returns the borrowed signer. Callers must not assume exclusive access.
	Signer() signer.Signer

	// ItemID resolves the network identifier of a serialized item, submitting it
	// when the network does not know it yet.
	ItemID(ctx context.Context, item []byte) (string, error)

	// Price returns the current USD quote as a decimal string.
	Price(ctx context.Context) (string, error)

	CurrentHeight(ctx context.Context) (*big.Int, error)

	// EstimateFee returns the fee in base units for sending amount to to.
	// A nil multiplier is treated as 1; results are rounded up.
	EstimateFee(ctx context.Context, amount *big.Int, to string, multiplier *big.Rat) (*big.Int, error)

	// CreateTx builds and signs a transfer paying exactly fee.
	CreateTx(ctx context.Context, amount *big.Int, to string, fee *big.Int) (*types.Tx, error)

	// Broadcast submits raw and returns true once the network accepted it.
	// It never retries.
	Broadcast(ctx context.Context, raw []byte) (bool, error)
}

var (
	_ Currency = (*ArweaveClient)(nil)
	_ Currency = (*SolanaClient)(nil)
	_ Currency = (*EthereumClient)(nil)
	_ Currency = (*ERC20Client)(nil)
	_ Currency = (*CosmosClient)(nil)
)
