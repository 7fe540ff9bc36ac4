package clients

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/vitwit/currency/signer"
	"github.com/vitwit/currency/types"
)

// SolanaRPC is the subset of *rpc.Client the Solana adapter needs.
type SolanaRPC interface {
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetFeeForMessage(ctx context.Context, message string, commitment rpc.CommitmentType) (*rpc.GetFeeForMessageResult, error)
	SendRawTransaction(ctx context.Context, rawTx []byte) (solana.Signature, error)
	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		transactionSignatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)
}

var _ SolanaRPC = (*rpc.Client)(nil)

// SolanaClient sends native SOL with the system program.
type SolanaClient struct {
	client     SolanaRPC
	closer     func() error
	signer     signer.Signer
	from       solana.PublicKey
	commitment rpc.CommitmentType
	priceID    string
	prices     PriceFeed
	txs        *txCache
}

func NewSolanaClient(cfg types.ClientConfig, s signer.Signer, opts ...Option) (*SolanaClient, error) {
	cfg.Currency = types.CurrencySolana
	if s == nil || s.Type() != signer.SignatureEd25519 {
		return nil, types.NewCurrencyError(types.ErrCodeConfigError, cfg.Currency, "an ed25519 signer is required", nil)
	}

	pub := s.PublicKey()
	if len(pub) != ed25519.PublicKeySize {
		return nil, types.NewCurrencyError(types.ErrCodeMalformedKey, cfg.Currency,
			fmt.Sprintf("unexpected public key length %d", len(pub)), nil)
	}

	o := buildOptions(opts)
	c := &SolanaClient{
		client:     o.solanaRPC,
		closer:     func() error { return nil },
		signer:     s,
		from:       solana.PublicKeyFromBytes(pub),
		commitment: rpc.CommitmentFinalized,
		priceID:    priceID(cfg),
		prices:     o.prices,
		txs:        newTxCache(cfg.Currency, o.cacheSize),
	}

	if c.client == nil {
		client := rpc.New(cfg.RPCUrl)
		c.client = client
		c.closer = client.Close
	}

	return c, nil
}

func (c *SolanaClient) Kind() types.CurrencyKind { return types.CurrencySolana }

// NeedsFee is false: the network deducts the signature fee from the payer itself.
func (c *SolanaClient) NeedsFee() bool { return false }

func (c *SolanaClient) Signer() signer.Signer { return c.signer }

// Address is the fee payer and sender derived from the signer.
func (c *SolanaClient) Address() solana.PublicKey { return c.from }

func (c *SolanaClient) TxView(txID string) (*types.Tx, error) {
	return c.txs.get(txID)
}

// OwnerToAddress returns the base58 form of a 32-byte ed25519 public key.
// Both base58 and base64url owners are accepted.
func (c *SolanaClient) OwnerToAddress(owner string) (string, error) {
	if pk, err := solana.PublicKeyFromBase58(owner); err == nil {
		return pk.String(), nil
	}

	b, err := base64.RawURLEncoding.DecodeString(owner)
	if err != nil {
		return "", malformedOwner(types.CurrencySolana, err)
	}
	if len(b) != ed25519.PublicKeySize {
		return "", malformedOwner(types.CurrencySolana, fmt.Errorf("unexpected public key length %d", len(b)))
	}
	return solana.PublicKeyFromBytes(b).String(), nil
}

func (c *SolanaClient) Price(ctx context.Context) (string, error) {
	quote, err := c.prices.Price(ctx, c.priceID)
	if err != nil {
		return "", providerError(types.CurrencySolana, "price", err)
	}
	return quote.String(), nil
}

func (c *SolanaClient) CurrentHeight(ctx context.Context) (*big.Int, error) {
	h, err := c.client.GetBlockHeight(ctx, c.commitment)
	if err != nil {
		return nil, providerError(types.CurrencySolana, "block height", err)
	}
	return new(big.Int).SetUint64(h), nil
}

// EstimateFee asks the cluster what it would charge for the transfer message.
func (c *SolanaClient) EstimateFee(ctx context.Context, amount *big.Int, to string, multiplier *big.Rat) (*big.Int, error) {
	tx, err := c.buildTransfer(ctx, amount, to)
	if err != nil {
		return nil, err
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, buildError(types.CurrencySolana, "encode message", err)
	}

	res, err := c.client.GetFeeForMessage(ctx, base64.StdEncoding.EncodeToString(msg), c.commitment)
	if err != nil {
		return nil, providerError(types.CurrencySolana, "fee for message", err)
	}
	if res == nil || res.Value == nil {
		return nil, providerError(types.CurrencySolana, "fee for message", fmt.Errorf("blockhash expired"))
	}

	return ApplyMultiplier(new(big.Int).SetUint64(*res.Value), multiplier)
}

// CreateTx signs a system transfer. The fee is recorded on the descriptor
// but the network charges its own signature fee.
func (c *SolanaClient) CreateTx(ctx context.Context, amount *big.Int, to string, fee *big.Int) (*types.Tx, error) {
	if err := validateAmount(types.CurrencySolana, "fee", fee); err != nil {
		return nil, err
	}

	tx, err := c.buildTransfer(ctx, amount, to)
	if err != nil {
		return nil, err
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, buildError(types.CurrencySolana, "encode message", err)
	}

	sig, err := c.signer.Sign(msg)
	if err != nil {
		return nil, buildError(types.CurrencySolana, "sign transaction", err)
	}
	tx.Signatures = []solana.Signature{solana.SignatureFromBytes(sig)}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, buildError(types.CurrencySolana, "encode transaction", err)
	}

	out := &types.Tx{
		ID:       tx.Signatures[0].String(),
		Currency: types.CurrencySolana,
		From:     c.from.String(),
		To:       to,
		Amount:   new(big.Int).Set(amount),
		Fee:      new(big.Int).Set(fee),
		Pending:  true,
		Raw:      raw,
	}
	c.txs.put(out)
	return out.Clone(), nil
}

// ItemID returns the first signature of a serialized transaction, sending it
// when the cluster has no status for it.
func (c *SolanaClient) ItemID(ctx context.Context, item []byte) (string, error) {
	tx, err := decodeSolanaTx(item)
	if err != nil {
		return "", err
	}
	sig := tx.Signatures[0]

	statuses, err := c.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return "", providerError(types.CurrencySolana, "signature status", err)
	}
	if statuses != nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
		return sig.String(), nil
	}

	if _, err := c.client.SendRawTransaction(ctx, item); err != nil {
		return "", bundlingError(types.CurrencySolana, err)
	}
	return sig.String(), nil
}

func (c *SolanaClient) Broadcast(ctx context.Context, raw []byte) (bool, error) {
	if _, err := decodeSolanaTx(raw); err != nil {
		return false, err
	}
	if _, err := c.client.SendRawTransaction(ctx, raw); err != nil {
		return false, bundlingError(types.CurrencySolana, err)
	}
	return true, nil
}

func (c *SolanaClient) Close() {
	_ = c.closer()
}

func (c *SolanaClient) buildTransfer(ctx context.Context, amount *big.Int, to string) (*solana.Transaction, error) {
	if err := validateAmount(types.CurrencySolana, "amount", amount); err != nil {
		return nil, err
	}
	if !amount.IsUint64() {
		return nil, types.NewCurrencyError(types.ErrCodeInvalidArgument, types.CurrencySolana,
			fmt.Sprintf("amount %s exceeds the lamport range", amount), nil)
	}

	recipient, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return nil, invalidDestination(types.CurrencySolana, to, err)
	}

	recent, err := c.client.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return nil, providerError(types.CurrencySolana, "latest blockhash", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(amount.Uint64(), c.from, recipient).Build(),
		},
		recent.Value.Blockhash,
		solana.TransactionPayer(c.from),
	)
	if err != nil {
		return nil, types.NewCurrencyError(types.ErrCodeInvalidArgument, types.CurrencySolana, "failed to build transfer", err)
	}
	return tx, nil
}

func decodeSolanaTx(raw []byte) (*solana.Transaction, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, types.NewCurrencyError(types.ErrCodeInvalidArgument, types.CurrencySolana, "invalid raw transaction", err)
	}
	if len(tx.Signatures) == 0 {
		return nil, types.NewCurrencyError(types.ErrCodeInvalidArgument, types.CurrencySolana, "transaction is not signed", nil)
	}
	return tx, nil
}
