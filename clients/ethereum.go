package clients

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/vitwit/currency/signer"
	"github.com/vitwit/currency/types"
)

// EthBackend is the subset of *ethclient.Client the Ethereum adapters need.
type EthBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionByHash(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, bool, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var _ EthBackend = (*ethclient.Client)(nil)

// EthereumClient sends native ether.
type EthereumClient struct {
	kind      types.CurrencyKind
	backend   EthBackend
	closer    func()
	signer    signer.Signer
	from      common.Address
	gasLimit  uint64
	feePerGas *big.Int
	priceID   string
	prices    PriceFeed
	txs       *txCache
}

func NewEthereumClient(cfg types.ClientConfig, s signer.Signer, opts ...Option) (*EthereumClient, error) {
	cfg.Currency = types.CurrencyEthereum
	if cfg.GasLimit == 0 {
		cfg.GasLimit = types.DefaultEthereumGasLimit
	}
	return newEthereumClient(cfg, s, buildOptions(opts))
}

func newEthereumClient(cfg types.ClientConfig, s signer.Signer, o options) (*EthereumClient, error) {
	if s == nil || s.Type() != signer.SignatureEthereum {
		return nil, types.NewCurrencyError(types.ErrCodeConfigError, cfg.Currency, "an ethereum signer is required", nil)
	}

	pub, err := crypto.UnmarshalPubkey(s.PublicKey())
	if err != nil {
		return nil, types.NewCurrencyError(types.ErrCodeMalformedKey, cfg.Currency, "invalid signer public key", err)
	}

	var feePerGas *big.Int
	if cfg.FeePerGas != "" {
		v, ok := new(big.Int).SetString(cfg.FeePerGas, 10)
		if !ok || v.Sign() < 0 {
			return nil, types.NewCurrencyError(types.ErrCodeConfigError, cfg.Currency,
				fmt.Sprintf("invalid fee per gas %q", cfg.FeePerGas), nil)
		}
		feePerGas = v
	}

	c := &EthereumClient{
		kind:      cfg.Currency,
		backend:   o.ethBackend,
		closer:    func() {},
		signer:    s,
		from:      crypto.PubkeyToAddress(*pub),
		gasLimit:  cfg.GasLimit,
		feePerGas: feePerGas,
		priceID:   priceID(cfg),
		prices:    o.prices,
		txs:       newTxCache(cfg.Currency, o.cacheSize),
	}

	if c.backend == nil {
		client, err := ethclient.Dial(cfg.RPCUrl)
		if err != nil {
			return nil, connectError(cfg.Currency, cfg.RPCUrl, err)
		}
		c.backend = client
		c.closer = client.Close
	}

	return c, nil
}

func (c *EthereumClient) Kind() types.CurrencyKind { return c.kind }

func (c *EthereumClient) NeedsFee() bool { return true }

func (c *EthereumClient) Signer() signer.Signer { return c.signer }

// Address is the sending account derived from the signer.
func (c *EthereumClient) Address() common.Address { return c.from }

func (c *EthereumClient) TxView(txID string) (*types.Tx, error) {
	return c.txs.get(txID)
}

// OwnerToAddress accepts a hex secp256k1 public key, compressed (33 bytes),
// uncompressed (65 bytes) or raw X||Y (64 bytes).
func (c *EthereumClient) OwnerToAddress(owner string) (string, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(owner, "0x"))
	if err != nil {
		return "", malformedOwner(c.kind, err)
	}

	switch len(b) {
	case 33:
		key, err := crypto.DecompressPubkey(b)
		if err != nil {
			return "", malformedOwner(c.kind, err)
		}
		return crypto.PubkeyToAddress(*key).Hex(), nil
	case 64:
		b = append([]byte{0x04}, b...)
		fallthrough
	case 65:
		key, err := crypto.UnmarshalPubkey(b)
		if err != nil {
			return "", malformedOwner(c.kind, err)
		}
		return crypto.PubkeyToAddress(*key).Hex(), nil
	default:
		return "", malformedOwner(c.kind, fmt.Errorf("unexpected public key length %d", len(b)))
	}
}

func (c *EthereumClient) Price(ctx context.Context) (string, error) {
	quote, err := c.prices.Price(ctx, c.priceID)
	if err != nil {
		return "", providerError(c.kind, "price", err)
	}
	return quote.String(), nil
}

func (c *EthereumClient) CurrentHeight(ctx context.Context) (*big.Int, error) {
	n, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return nil, providerError(c.kind, "block number", err)
	}
	return new(big.Int).SetUint64(n), nil
}

// EstimateFee returns gasPrice * gasLimit scaled by multiplier.
func (c *EthereumClient) EstimateFee(ctx context.Context, amount *big.Int, to string, multiplier *big.Rat) (*big.Int, error) {
	if err := c.validateTransfer(amount, to); err != nil {
		return nil, err
	}

	gasPrice, err := c.gasPrice(ctx)
	if err != nil {
		return nil, err
	}

	fee := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(c.gasLimit))
	return ApplyMultiplier(fee, multiplier)
}

func (c *EthereumClient) CreateTx(ctx context.Context, amount *big.Int, to string, fee *big.Int) (*types.Tx, error) {
	if err := c.validateTransfer(amount, to); err != nil {
		return nil, err
	}
	if err := validateFee(c.kind, fee, 256); err != nil {
		return nil, err
	}

	signed, paid, err := c.signTx(ctx, common.HexToAddress(to), amount, nil, fee)
	if err != nil {
		return nil, err
	}
	return c.record(signed, to, amount, paid)
}

// ItemID returns the hash of a signed transaction, submitting it if the node has never seen it.
func (c *EthereumClient) ItemID(ctx context.Context, item []byte) (string, error) {
	tx, err := decodeEthTx(c.kind, item)
	if err != nil {
		return "", err
	}

	_, _, err = c.backend.TransactionByHash(ctx, tx.Hash())
	switch {
	case err == nil:
		return tx.Hash().Hex(), nil
	case errors.Is(err, ethereum.NotFound):
		if err := c.backend.SendTransaction(ctx, tx); err != nil {
			return "", c.broadcastError(err)
		}
		return tx.Hash().Hex(), nil
	default:
		return "", providerError(c.kind, "transaction lookup", err)
	}
}

func (c *EthereumClient) Broadcast(ctx context.Context, raw []byte) (bool, error) {
	tx, err := decodeEthTx(c.kind, raw)
	if err != nil {
		return false, err
	}
	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return false, c.broadcastError(err)
	}
	return true, nil
}

// Close releases the RPC connection when the adapter dialed it itself.
func (c *EthereumClient) Close() {
	c.closer()
}

func (c *EthereumClient) gasPrice(ctx context.Context) (*big.Int, error) {
	if c.feePerGas != nil {
		return new(big.Int).Set(c.feePerGas), nil
	}
	p, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, providerError(c.kind, "gas price", err)
	}
	return p, nil
}

func (c *EthereumClient) validateTransfer(amount *big.Int, to string) error {
	if err := validateAmount(c.kind, "amount", amount); err != nil {
		return err
	}
	if amount.BitLen() > 256 {
		return types.NewCurrencyError(types.ErrCodeInvalidArgument, c.kind, "amount exceeds uint256", nil)
	}
	if !common.IsHexAddress(to) {
		return invalidDestination(c.kind, to, nil)
	}
	return nil
}

// signTx builds a legacy EIP-155 transaction whose gas price spends at most fee
// and has the signer sign it. It returns the fee actually committed.
func (c *EthereumClient) signTx(
	ctx context.Context,
	recipient common.Address,
	value *big.Int,
	data []byte,
	fee *big.Int,
) (*ethtypes.Transaction, *big.Int, error) {
	gasLimit := new(big.Int).SetUint64(c.gasLimit)
	gasPrice := new(big.Int).Quo(fee, gasLimit)
	if gasPrice.Sign() == 0 {
		return nil, nil, insufficient(c.kind, "fee %s does not cover gas limit %d", fee, c.gasLimit)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, nil, providerError(c.kind, "nonce", err)
	}

	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, nil, providerError(c.kind, "chain id", err)
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      c.gasLimit,
		To:       &recipient,
		Value:    value,
		Data:     data,
	})

	txSigner := ethtypes.LatestSignerForChainID(chainID)
	sig, err := c.signer.Sign(txSigner.Hash(tx).Bytes())
	if err != nil {
		return nil, nil, buildError(c.kind, "sign transaction", err)
	}

	signed, err := tx.WithSignature(txSigner, sig)
	if err != nil {
		return nil, nil, buildError(c.kind, "attach signature", err)
	}

	return signed, new(big.Int).Mul(gasPrice, gasLimit), nil
}

func (c *EthereumClient) record(signed *ethtypes.Transaction, to string, amount, fee *big.Int) (*types.Tx, error) {
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, buildError(c.kind, "encode transaction", err)
	}

	tx := &types.Tx{
		ID:       signed.Hash().Hex(),
		Currency: c.kind,
		From:     c.from.Hex(),
		To:       to,
		Amount:   new(big.Int).Set(amount),
		Fee:      fee,
		Pending:  true,
		Raw:      raw,
	}
	c.txs.put(tx)
	return tx.Clone(), nil
}

func (c *EthereumClient) broadcastError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "insufficient funds") || strings.Contains(msg, "underpriced") {
		return types.NewCurrencyError(types.ErrCodeInsufficientAmount, c.kind, "transaction rejected", err)
	}
	return bundlingError(c.kind, err)
}

func decodeEthTx(kind types.CurrencyKind, raw []byte) (*ethtypes.Transaction, error) {
	tx := new(ethtypes.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, types.NewCurrencyError(types.ErrCodeInvalidArgument, kind, "invalid raw transaction", err)
	}
	return tx, nil
}
