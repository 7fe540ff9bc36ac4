package clients

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
	txsigning "cosmossdk.io/x/tx/signing"
	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/grpc/cmtservice"
	"github.com/cosmos/cosmos-sdk/codec"
	"github.com/cosmos/cosmos-sdk/codec/address"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	"github.com/cosmos/cosmos-sdk/std"
	sdk "github.com/cosmos/cosmos-sdk/types"
	txn "github.com/cosmos/cosmos-sdk/types/tx"
	signingtypes "github.com/cosmos/cosmos-sdk/types/tx/signing"
	authsigning "github.com/cosmos/cosmos-sdk/x/auth/signing"
	authtx "github.com/cosmos/cosmos-sdk/x/auth/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/cosmos/gogoproto/proto"
	"github.com/ethereum/go-ethereum/crypto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/vitwit/currency/signer"
	"github.com/vitwit/currency/types"
)

// Root codespace ABCI codes that mean the sender cannot cover the transfer.
const (
	sdkCodespace          = "sdk"
	codeInsufficientFunds = 5
	codeInsufficientFee   = 13
)

// CosmosBackend is the set of node queries the Cosmos adapter needs.
type CosmosBackend interface {
	LatestHeight(ctx context.Context) (int64, error)
	Account(ctx context.Context, address string) (accountNumber, sequence uint64, err error)
	TxKnown(ctx context.Context, hash string) (bool, error)
	BroadcastTx(ctx context.Context, txBytes []byte) (*sdk.TxResponse, error)
}

// grpcBackend implements CosmosBackend over the node's gRPC services.
type grpcBackend struct {
	tx   txn.ServiceClient
	auth authtypes.QueryClient
	node cmtservice.ServiceClient
}

func newGRPCBackend(conn *grpc.ClientConn) *grpcBackend {
	return &grpcBackend{
		tx:   txn.NewServiceClient(conn),
		auth: authtypes.NewQueryClient(conn),
		node: cmtservice.NewServiceClient(conn),
	}
}

func (b *grpcBackend) LatestHeight(ctx context.Context) (int64, error) {
	res, err := b.node.GetLatestBlock(ctx, &cmtservice.GetLatestBlockRequest{})
	if err != nil {
		return 0, err
	}
	return res.GetSdkBlock().GetHeader().Height, nil
}

func (b *grpcBackend) Account(ctx context.Context, address string) (uint64, uint64, error) {
	res, err := b.auth.AccountInfo(ctx, &authtypes.QueryAccountInfoRequest{Address: address})
	if err != nil {
		return 0, 0, err
	}
	return res.GetInfo().GetAccountNumber(), res.GetInfo().GetSequence(), nil
}

func (b *grpcBackend) TxKnown(ctx context.Context, hash string) (bool, error) {
	_, err := b.tx.GetTx(ctx, &txn.GetTxRequest{Hash: hash})
	if err == nil {
		return true, nil
	}
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	return false, err
}

func (b *grpcBackend) BroadcastTx(ctx context.Context, txBytes []byte) (*sdk.TxResponse, error) {
	res, err := b.tx.BroadcastTx(ctx, &txn.BroadcastTxRequest{
		TxBytes: txBytes,
		Mode:    txn.BroadcastMode_BROADCAST_MODE_SYNC,
	})
	if err != nil {
		return nil, err
	}
	return res.GetTxResponse(), nil
}

// CosmosClient sends a bank denomination with MsgSend over gRPC.
type CosmosClient struct {
	backend  CosmosBackend
	conn     *grpc.ClientConn
	txConfig client.TxConfig
	signer   signer.Signer
	pubKey   *secp256k1.PubKey
	from     string
	prefix   string
	chainID  string
	denom    string
	gasLimit uint64
	gasPrice sdkmath.LegacyDec
	priceID  string
	prices   PriceFeed
	txs      *txCache
}

func NewCosmosClient(cfg types.ClientConfig, s signer.Signer, opts ...Option) (*CosmosClient, error) {
	cfg.Currency = types.CurrencyCosmos
	if s == nil || s.Type() != signer.SignatureCosmos {
		return nil, types.NewCurrencyError(types.ErrCodeConfigError, cfg.Currency, "a secp256k1 signer is required", nil)
	}
	if cfg.ChainID == "" {
		return nil, types.NewCurrencyError(types.ErrCodeConfigError, cfg.Currency, "chain id is required", nil)
	}

	prefix := cfg.Bech32Prefix
	if prefix == "" {
		prefix = types.DefaultCosmosPrefix
	}
	denom := cfg.Denom
	if denom == "" {
		denom = types.DefaultCosmosDenom
	}
	if err := sdk.ValidateDenom(denom); err != nil {
		return nil, types.NewCurrencyError(types.ErrCodeConfigError, cfg.Currency, "invalid denom", err)
	}
	gasLimit := cfg.GasLimit
	if gasLimit == 0 {
		gasLimit = types.DefaultCosmosGasLimit
	}
	rawPrice := cfg.GasPrice
	if rawPrice == "" {
		rawPrice = types.DefaultCosmosGasPrice
	}
	gasPrice, err := sdkmath.LegacyNewDecFromStr(rawPrice)
	if err != nil || gasPrice.IsNegative() {
		return nil, types.NewCurrencyError(types.ErrCodeConfigError, cfg.Currency,
			fmt.Sprintf("invalid gas price %q", rawPrice), err)
	}

	pub := &secp256k1.PubKey{Key: s.PublicKey()}
	from, err := sdk.Bech32ifyAddressBytes(prefix, pub.Address())
	if err != nil {
		return nil, types.NewCurrencyError(types.ErrCodeConfigError, cfg.Currency, "invalid bech32 prefix", err)
	}

	interfaceRegistry, err := codectypes.NewInterfaceRegistryWithOptions(codectypes.InterfaceRegistryOptions{
		ProtoFiles: proto.HybridResolver,
		SigningOptions: txsigning.Options{
			AddressCodec:          address.NewBech32Codec(prefix),
			ValidatorAddressCodec: address.NewBech32Codec(prefix + sdk.PrefixValidator + sdk.PrefixOperator),
		},
	})
	if err != nil {
		return nil, types.NewCurrencyError(types.ErrCodeConfigError, cfg.Currency, "cannot build interface registry", err)
	}
	std.RegisterInterfaces(interfaceRegistry)
	banktypes.RegisterInterfaces(interfaceRegistry)
	marshaler := codec.NewProtoCodec(interfaceRegistry)

	o := buildOptions(opts)
	c := &CosmosClient{
		backend:  o.cosmosBackend,
		txConfig: authtx.NewTxConfig(marshaler, authtx.DefaultSignModes),
		signer:   s,
		pubKey:   pub,
		from:     from,
		prefix:   prefix,
		chainID:  cfg.ChainID,
		denom:    denom,
		gasLimit: gasLimit,
		gasPrice: gasPrice,
		priceID:  priceID(cfg),
		prices:   o.prices,
		txs:      newTxCache(cfg.Currency, o.cacheSize),
	}
	if c.backend == nil {
		conn := o.grpcConn
		if conn == nil {
			conn, err = grpc.NewClient(cfg.GRPCUrl, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return nil, connectError(cfg.Currency, cfg.GRPCUrl, err)
			}
			c.conn = conn
		}
		c.backend = newGRPCBackend(conn)
	}

	return c, nil
}

func (c *CosmosClient) Kind() types.CurrencyKind { return types.CurrencyCosmos }

func (c *CosmosClient) NeedsFee() bool { return true }

func (c *CosmosClient) Signer() signer.Signer { return c.signer }

// Address is the bech32 account derived from the signer.
func (c *CosmosClient) Address() string { return c.from }

func (c *CosmosClient) TxView(txID string) (*types.Tx, error) {
	return c.txs.get(strings.ToUpper(txID))
}

// OwnerToAddress accepts a compressed secp256k1 key in hex or base64 and
// returns its bech32 account address.
func (c *CosmosClient) OwnerToAddress(owner string) (string, error) {
	key, err := hex.DecodeString(strings.TrimPrefix(owner, "0x"))
	if err != nil {
		key, err = base64.StdEncoding.DecodeString(owner)
		if err != nil {
			return "", malformedOwner(types.CurrencyCosmos, err)
		}
	}
	if len(key) != secp256k1.PubKeySize {
		return "", malformedOwner(types.CurrencyCosmos, fmt.Errorf("unexpected public key length %d", len(key)))
	}
	if _, err := crypto.DecompressPubkey(key); err != nil {
		return "", malformedOwner(types.CurrencyCosmos, err)
	}

	addr, err := sdk.Bech32ifyAddressBytes(c.prefix, (&secp256k1.PubKey{Key: key}).Address())
	if err != nil {
		return "", malformedOwner(types.CurrencyCosmos, err)
	}
	return addr, nil
}

func (c *CosmosClient) Price(ctx context.Context) (string, error) {
	quote, err := c.prices.Price(ctx, c.priceID)
	if err != nil {
		return "", providerError(types.CurrencyCosmos, "price", err)
	}
	return quote.String(), nil
}

func (c *CosmosClient) CurrentHeight(ctx context.Context) (*big.Int, error) {
	h, err := c.backend.LatestHeight(ctx)
	if err != nil {
		return nil, providerError(types.CurrencyCosmos, "latest block", err)
	}
	return big.NewInt(h), nil
}

// EstimateFee returns ceil(gasLimit * gasPrice) scaled by multiplier.
func (c *CosmosClient) EstimateFee(_ context.Context, amount *big.Int, to string, multiplier *big.Rat) (*big.Int, error) {
	if err := c.validateTransfer(amount, to); err != nil {
		return nil, err
	}
	fee := c.gasPrice.MulInt64(int64(c.gasLimit)).Ceil().TruncateInt()
	return ApplyMultiplier(fee.BigInt(), multiplier)
}

// CreateTx signs a MsgSend in SIGN_MODE_DIRECT using the account's current sequence.
func (c *CosmosClient) CreateTx(ctx context.Context, amount *big.Int, to string, fee *big.Int) (*types.Tx, error) {
	if err := c.validateTransfer(amount, to); err != nil {
		return nil, err
	}
	if err := validateFee(types.CurrencyCosmos, fee, sdkmath.MaxBitLen); err != nil {
		return nil, err
	}

	accNum, seq, err := c.backend.Account(ctx, c.from)
	if err != nil {
		return nil, providerError(types.CurrencyCosmos, "account info", err)
	}

	builder := c.txConfig.NewTxBuilder()
	msg := &banktypes.MsgSend{
		FromAddress: c.from,
		ToAddress:   to,
		Amount:      sdk.NewCoins(sdk.NewCoin(c.denom, sdkmath.NewIntFromBigInt(amount))),
	}
	if err := builder.SetMsgs(msg); err != nil {
		return nil, buildError(types.CurrencyCosmos, "set messages", err)
	}
	builder.SetGasLimit(c.gasLimit)
	builder.SetFeeAmount(sdk.NewCoins(sdk.NewCoin(c.denom, sdkmath.NewIntFromBigInt(fee))))

	sigV2 := signingtypes.SignatureV2{
		PubKey: c.pubKey,
		Data: &signingtypes.SingleSignatureData{
			SignMode: signingtypes.SignMode_SIGN_MODE_DIRECT,
		},
		Sequence: seq,
	}
	if err := builder.SetSignatures(sigV2); err != nil {
		return nil, buildError(types.CurrencyCosmos, "set signer info", err)
	}

	signerData := authsigning.SignerData{
		Address:       c.from,
		ChainID:       c.chainID,
		AccountNumber: accNum,
		Sequence:      seq,
		PubKey:        c.pubKey,
	}
	signBytes, err := authsigning.GetSignBytesAdapter(
		ctx, c.txConfig.SignModeHandler(), signingtypes.SignMode_SIGN_MODE_DIRECT, signerData, builder.GetTx(),
	)
	if err != nil {
		return nil, buildError(types.CurrencyCosmos, "build sign bytes", err)
	}

	sig, err := c.signer.Sign(signBytes)
	if err != nil {
		return nil, buildError(types.CurrencyCosmos, "sign transaction", err)
	}
	sigV2.Data = &signingtypes.SingleSignatureData{
		SignMode:  signingtypes.SignMode_SIGN_MODE_DIRECT,
		Signature: sig,
	}
	if err := builder.SetSignatures(sigV2); err != nil {
		return nil, buildError(types.CurrencyCosmos, "set signature", err)
	}

	raw, err := c.txConfig.TxEncoder()(builder.GetTx())
	if err != nil {
		return nil, buildError(types.CurrencyCosmos, "encode transaction", err)
	}

	out := &types.Tx{
		ID:       txHash(raw),
		Currency: types.CurrencyCosmos,
		From:     c.from,
		To:       to,
		Amount:   new(big.Int).Set(amount),
		Fee:      new(big.Int).Set(fee),
		Pending:  true,
		Raw:      raw,
	}
	c.txs.put(out)
	return out.Clone(), nil
}

// ItemID returns the hash of encoded tx bytes, broadcasting them when the node
// has not indexed the transaction.
func (c *CosmosClient) ItemID(ctx context.Context, item []byte) (string, error) {
	if _, err := c.txConfig.TxDecoder()(item); err != nil {
		return "", types.NewCurrencyError(types.ErrCodeInvalidArgument, types.CurrencyCosmos, "invalid raw transaction", err)
	}

	hash := txHash(item)
	known, err := c.backend.TxKnown(ctx, hash)
	if err != nil {
		return "", providerError(types.CurrencyCosmos, "tx lookup", err)
	}
	if known {
		return hash, nil
	}

	if _, err := c.Broadcast(ctx, item); err != nil {
		return "", err
	}
	return hash, nil
}

func (c *CosmosClient) Broadcast(ctx context.Context, raw []byte) (bool, error) {
	res, err := c.backend.BroadcastTx(ctx, raw)
	if err != nil {
		return false, bundlingError(types.CurrencyCosmos, err)
	}
	if res == nil {
		return false, bundlingError(types.CurrencyCosmos, fmt.Errorf("empty broadcast response"))
	}
	if res.Code != 0 {
		rejected := fmt.Errorf("code %d (%s): %s", res.Code, res.Codespace, res.RawLog)
		if res.Codespace == sdkCodespace && (res.Code == codeInsufficientFunds || res.Code == codeInsufficientFee) {
			return false, types.NewCurrencyError(types.ErrCodeInsufficientAmount, types.CurrencyCosmos, "transaction rejected", rejected)
		}
		return false, bundlingError(types.CurrencyCosmos, rejected)
	}
	return true, nil
}

// Close closes the gRPC connection if the adapter opened it.
func (c *CosmosClient) Close() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *CosmosClient) validateTransfer(amount *big.Int, to string) error {
	if err := validateAmount(types.CurrencyCosmos, "amount", amount); err != nil {
		return err
	}
	if amount.BitLen() > sdkmath.MaxBitLen {
		return types.NewCurrencyError(types.ErrCodeInvalidArgument, types.CurrencyCosmos, "amount out of range", nil)
	}
	if _, err := sdk.GetFromBech32(to, c.prefix); err != nil {
		return invalidDestination(types.CurrencyCosmos, to, err)
	}
	return nil
}

func txHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
