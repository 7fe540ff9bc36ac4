package clients

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"math/big"
	"sync"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/currency/signer"
	"github.com/vitwit/currency/types"
)

type fakeSolanaRPC struct {
	mu        sync.Mutex
	height    uint64
	blockhash solana.Hash
	fee       *uint64
	messages  []string
	raw       [][]byte
	seen      map[solana.Signature]bool
	sendErr   error
}

func newFakeSolanaRPC() *fakeSolanaRPC {
	fee := uint64(5000)
	return &fakeSolanaRPC{
		height:    250_000_000,
		blockhash: solana.HashFromBytes(make([]byte, 32)),
		fee:       &fee,
		seen:      make(map[solana.Signature]bool),
	}
}

func (f *fakeSolanaRPC) GetBlockHeight(context.Context, rpc.CommitmentType) (uint64, error) {
	return f.height, nil
}

func (f *fakeSolanaRPC) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{Blockhash: f.blockhash, LastValidBlockHeight: f.height + 150},
	}, nil
}

func (f *fakeSolanaRPC) GetFeeForMessage(_ context.Context, message string, _ rpc.CommitmentType) (*rpc.GetFeeForMessageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return &rpc.GetFeeForMessageResult{Value: f.fee}, nil
}

func (f *fakeSolanaRPC) SendRawTransaction(_ context.Context, rawTx []byte) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(rawTx))
	if err != nil {
		return solana.Signature{}, err
	}
	f.raw = append(f.raw, rawTx)
	f.seen[tx.Signatures[0]] = true
	return tx.Signatures[0], nil
}

func (f *fakeSolanaRPC) GetSignatureStatuses(
	_ context.Context,
	_ bool,
	sigs ...solana.Signature,
) (*rpc.GetSignatureStatusesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &rpc.GetSignatureStatusesResult{Value: make([]*rpc.SignatureStatusesResult, len(sigs))}
	for i, sig := range sigs {
		if f.seen[sig] {
			out.Value[i] = &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusProcessed}
		}
	}
	return out, nil
}

func (f *fakeSolanaRPC) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.raw)
}

func newTestSolanaClient(t *testing.T, rpcClient *fakeSolanaRPC) (*SolanaClient, solana.PrivateKey) {
	t.Helper()

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	s, err := signer.NewSolanaSignerFromKey(key)
	require.NoError(t, err)

	c, err := NewSolanaClient(types.ClientConfig{}, s,
		WithSolanaRPC(rpcClient),
		WithPriceFeed(staticFeed{"solana": decimal.RequireFromString("142.17")}),
	)
	require.NoError(t, err)
	return c, key
}

func TestSolanaClient_LocalProperties(t *testing.T) {
	c, key := newTestSolanaClient(t, newFakeSolanaRPC())

	assert.Equal(t, types.CurrencySolana, c.Kind())
	assert.False(t, c.NeedsFee())
	assert.Equal(t, key.PublicKey(), c.Address())
}

func TestSolanaClient_EstimateFee(t *testing.T) {
	rpcClient := newFakeSolanaRPC()
	c, _ := newTestSolanaClient(t, rpcClient)
	to := solana.NewWallet().PublicKey().String()

	fee, err := c.EstimateFee(context.Background(), big.NewInt(1_000_000), to, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), fee.Int64())

	doubled, err := c.EstimateFee(context.Background(), big.NewInt(1_000_000), to, big.NewRat(2, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), doubled.Int64())

	require.NotEmpty(t, rpcClient.messages)
	_, err = base64.StdEncoding.DecodeString(rpcClient.messages[0])
	assert.NoError(t, err)

	rpcClient.fee = nil
	_, err = c.EstimateFee(context.Background(), big.NewInt(1), to, nil)
	assert.True(t, errors.Is(err, types.ErrProviderError))
}

func TestSolanaClient_RejectsBadArguments(t *testing.T) {
	c, _ := newTestSolanaClient(t, newFakeSolanaRPC())
	ctx := context.Background()
	to := solana.NewWallet().PublicKey().String()

	_, err := c.EstimateFee(ctx, big.NewInt(1), "not-base58-0OIl", nil)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))

	tooBig := new(big.Int).Lsh(big.NewInt(1), 64)
	_, err = c.CreateTx(ctx, tooBig, to, big.NewInt(5000))
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))

	_, err = c.CreateTx(ctx, big.NewInt(1), to, big.NewInt(-1))
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestSolanaClient_CreateTxAndView(t *testing.T) {
	ctx := context.Background()
	c, key := newTestSolanaClient(t, newFakeSolanaRPC())
	to := solana.NewWallet().PublicKey()

	tx, err := c.CreateTx(ctx, big.NewInt(1_000_000), to.String(), big.NewInt(5000))
	require.NoError(t, err)

	view, err := c.TxView(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, to.String(), view.To)
	assert.Equal(t, key.PublicKey().String(), view.From)
	assert.Equal(t, int64(1_000_000), view.Amount.Int64())
	assert.Equal(t, int64(5000), view.Fee.Int64())

	decoded, err := solana.TransactionFromDecoder(bin.NewBinDecoder(view.Raw))
	require.NoError(t, err)
	require.Len(t, decoded.Signatures, 1)
	assert.Equal(t, tx.ID, decoded.Signatures[0].String())

	msg, err := decoded.Message.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(ed25519.PublicKey(key.PublicKey().Bytes()), msg, decoded.Signatures[0][:]))

	inst := decoded.Message.Instructions[0]
	accounts, err := inst.ResolveInstructionAccounts(&decoded.Message)
	require.NoError(t, err)
	decodedInst, err := system.DecodeInstruction(accounts, inst.Data)
	require.NoError(t, err)
	transfer, ok := decodedInst.Impl.(*system.Transfer)
	require.True(t, ok)
	assert.Equal(t, uint64(1_000_000), *transfer.Lamports)
}

func TestSolanaClient_BroadcastAndItemID(t *testing.T) {
	ctx := context.Background()
	rpcClient := newFakeSolanaRPC()
	c, _ := newTestSolanaClient(t, rpcClient)

	tx, err := c.CreateTx(ctx, big.NewInt(10), solana.NewWallet().PublicKey().String(), big.NewInt(5000))
	require.NoError(t, err)

	id, err := c.ItemID(ctx, tx.Raw)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, id)
	assert.Equal(t, 1, rpcClient.sentCount())

	id, err = c.ItemID(ctx, tx.Raw)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, id)
	assert.Equal(t, 1, rpcClient.sentCount())

	ok, err := c.Broadcast(ctx, tx.Raw)
	require.NoError(t, err)
	assert.True(t, ok)

	rpcClient.sendErr = errors.New("Transaction simulation failed: Blockhash not found")
	_, err = c.Broadcast(ctx, tx.Raw)
	assert.True(t, errors.Is(err, types.ErrBundlingError))
}

func TestSolanaClient_OwnerToAddress(t *testing.T) {
	c, _ := newTestSolanaClient(t, newFakeSolanaRPC())
	pub := solana.NewWallet().PublicKey()

	addr, err := c.OwnerToAddress(pub.String())
	require.NoError(t, err)
	assert.Equal(t, pub.String(), addr)

	addr, err = c.OwnerToAddress(base64.RawURLEncoding.EncodeToString(pub.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, pub.String(), addr)

	_, err = c.OwnerToAddress("AAAA")
	assert.True(t, errors.Is(err, types.ErrMalformedKey))
}

func TestSolanaClient_PriceAndHeight(t *testing.T) {
	c, _ := newTestSolanaClient(t, newFakeSolanaRPC())

	p, err := c.Price(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "142.17", p)

	h, err := c.CurrentHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(250_000_000), h.Uint64())
}

func TestSolanaClient_ZeroAmountTransfer(t *testing.T) {
	c, _ := newTestSolanaClient(t, newFakeSolanaRPC())

	tx, err := c.CreateTx(context.Background(), big.NewInt(0), solana.NewWallet().PublicKey().String(), big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, int64(0), tx.Amount.Int64())
}

func TestSolanaClient_SignerFailureIsTyped(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	s, err := signer.NewSolanaSignerFromKey(key)
	require.NoError(t, err)

	c, err := NewSolanaClient(types.ClientConfig{}, offlineSigner{s}, WithSolanaRPC(newFakeSolanaRPC()), WithPriceFeed(staticFeed{}))
	require.NoError(t, err)

	_, err = c.CreateTx(context.Background(), big.NewInt(1), solana.NewWallet().PublicKey().String(), big.NewInt(5000))
	assert.Equal(t, types.ErrCodeProviderError, types.CodeOf(err))
	assert.True(t, errors.Is(err, errSignerOffline))
}
