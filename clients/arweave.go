package clients

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/vitwit/currency/signer"
	"github.com/vitwit/currency/types"
)

const arweaveFormat = 2

// Owner moduli accepted by OwnerToAddress: 2048-bit up to the standard 4096-bit wallet key.
const (
	arweaveMinOwnerSize = 256
	arweaveMaxOwnerSize = 512
)

var b64 = base64.RawURLEncoding

// ArweaveTag is a name/value pair, both base64url encoded on the wire.
type ArweaveTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ArweaveTx is the JSON form of a format 2 transaction accepted by POST /tx.
type ArweaveTx struct {
	Format    int          `json:"format"`
	ID        string       `json:"id"`
	LastTx    string       `json:"last_tx"`
	Owner     string       `json:"owner"`
	Tags      []ArweaveTag `json:"tags"`
	Target    string       `json:"target"`
	Quantity  string       `json:"quantity"`
	Data      string       `json:"data"`
	DataSize  string       `json:"data_size"`
	DataRoot  string       `json:"data_root"`
	Reward    string       `json:"reward"`
	Signature string       `json:"signature"`
}

// ArweaveClient sends winston to a wallet through a gateway's HTTP API.
type ArweaveClient struct {
	baseURL    string
	httpClient *http.Client
	signer     signer.Signer
	owner      []byte
	from       string
	priceID    string
	prices     PriceFeed
	txs        *txCache
}

func NewArweaveClient(cfg types.ClientConfig, s signer.Signer, opts ...Option) (*ArweaveClient, error) {
	cfg.Currency = types.CurrencyArweave
	if s == nil || s.Type() != signer.SignatureArweave {
		return nil, types.NewCurrencyError(types.ErrCodeConfigError, cfg.Currency, "an arweave signer is required", nil)
	}
	if cfg.RPCUrl == "" {
		return nil, types.NewCurrencyError(types.ErrCodeConfigError, cfg.Currency, "gateway url is required", nil)
	}

	o := buildOptions(opts)
	httpClient := o.httpClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = types.DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	owner := s.PublicKey()
	return &ArweaveClient{
		baseURL:    strings.TrimRight(cfg.RPCUrl, "/"),
		httpClient: httpClient,
		signer:     s,
		owner:      owner,
		from:       arweaveAddress(owner),
		priceID:    priceID(cfg),
		prices:     o.prices,
		txs:        newTxCache(cfg.Currency, o.cacheSize),
	}, nil
}

func (c *ArweaveClient) Kind() types.CurrencyKind { return types.CurrencyArweave }

func (c *ArweaveClient) NeedsFee() bool { return true }

func (c *ArweaveClient) Signer() signer.Signer { return c.signer }

// Address is the wallet address of the signer.
func (c *ArweaveClient) Address() string { return c.from }

func (c *ArweaveClient) TxView(txID string) (*types.Tx, error) {
	return c.txs.get(txID)
}

// OwnerToAddress hashes a base64url RSA modulus into its wallet address.
func (c *ArweaveClient) OwnerToAddress(owner string) (string, error) {
	n, err := b64.DecodeString(strings.TrimRight(owner, "="))
	if err != nil {
		return "", malformedOwner(types.CurrencyArweave, err)
	}
	if len(n) < arweaveMinOwnerSize || len(n) > arweaveMaxOwnerSize {
		return "", malformedOwner(types.CurrencyArweave,
			fmt.Errorf("owner modulus is %d bytes, want %d to %d", len(n), arweaveMinOwnerSize, arweaveMaxOwnerSize))
	}
	return arweaveAddress(n), nil
}

func (c *ArweaveClient) Price(ctx context.Context) (string, error) {
	quote, err := c.prices.Price(ctx, c.priceID)
	if err != nil {
		return "", providerError(types.CurrencyArweave, "price", err)
	}
	return quote.String(), nil
}

func (c *ArweaveClient) CurrentHeight(ctx context.Context) (*big.Int, error) {
	body, err := c.get(ctx, "/info")
	if err != nil {
		return nil, providerError(types.CurrencyArweave, "network info", err)
	}

	var info struct {
		Height json.Number `json:"height"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&info); err != nil {
		return nil, providerError(types.CurrencyArweave, "network info", err)
	}

	h, ok := new(big.Int).SetString(info.Height.String(), 10)
	if !ok {
		return nil, providerError(types.CurrencyArweave, "network info", fmt.Errorf("invalid height %q", info.Height))
	}
	return h, nil
}

// EstimateFee asks the gateway for the reward of a data-less transfer to to.
// The quote includes the new-wallet surcharge when to has never been seen.
func (c *ArweaveClient) EstimateFee(ctx context.Context, amount *big.Int, to string, multiplier *big.Rat) (*big.Int, error) {
	if err := c.validateTransfer(amount, to); err != nil {
		return nil, err
	}

	body, err := c.get(ctx, "/price/0/"+to)
	if err != nil {
		return nil, providerError(types.CurrencyArweave, "price quote", err)
	}

	fee, ok := new(big.Int).SetString(strings.TrimSpace(string(body)), 10)
	if !ok {
		return nil, providerError(types.CurrencyArweave, "price quote", fmt.Errorf("invalid reward %q", body))
	}
	return ApplyMultiplier(fee, multiplier)
}

// CreateTx signs a format 2 wallet-to-wallet transfer. Raw holds the JSON body for POST /tx.
func (c *ArweaveClient) CreateTx(ctx context.Context, amount *big.Int, to string, fee *big.Int) (*types.Tx, error) {
	if err := c.validateTransfer(amount, to); err != nil {
		return nil, err
	}
	if err := validateAmount(types.CurrencyArweave, "fee", fee); err != nil {
		return nil, err
	}

	anchor, err := c.get(ctx, "/tx_anchor")
	if err != nil {
		return nil, providerError(types.CurrencyArweave, "tx anchor", err)
	}

	tx := &ArweaveTx{
		Format:   arweaveFormat,
		LastTx:   strings.TrimSpace(string(anchor)),
		Owner:    b64.EncodeToString(c.owner),
		Tags:     []ArweaveTag{},
		Target:   to,
		Quantity: amount.String(),
		DataSize: "0",
		Reward:   fee.String(),
	}
	if err := c.sign(tx); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(tx)
	if err != nil {
		return nil, buildError(types.CurrencyArweave, "encode transaction", err)
	}

	out := &types.Tx{
		ID:       tx.ID,
		Currency: types.CurrencyArweave,
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

// ItemID returns the id of a signed transaction, posting it when the gateway
// does not know it.
func (c *ArweaveClient) ItemID(ctx context.Context, item []byte) (string, error) {
	tx, err := decodeArweaveTx(item)
	if err != nil {
		return "", err
	}

	_, err = c.get(ctx, "/tx/"+tx.ID+"/status")
	if err == nil {
		return tx.ID, nil
	}
	var se *httpStatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		return "", providerError(types.CurrencyArweave, "tx status", err)
	}

	if _, err := c.Broadcast(ctx, item); err != nil {
		return "", err
	}
	return tx.ID, nil
}

// Broadcast posts raw to /tx. 208 means the gateway already has it.
func (c *ArweaveClient) Broadcast(ctx context.Context, raw []byte) (bool, error) {
	if _, err := decodeArweaveTx(raw); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tx", bytes.NewReader(raw))
	if err != nil {
		return false, bundlingError(types.CurrencyArweave, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, bundlingError(types.CurrencyArweave, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	switch resp.StatusCode {
	case http.StatusOK, http.StatusAlreadyReported:
		return true, nil
	case http.StatusPaymentRequired:
		return false, types.NewCurrencyError(types.ErrCodeInsufficientAmount, types.CurrencyArweave,
			"transaction rejected", &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)})
	default:
		return false, bundlingError(types.CurrencyArweave, &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)})
	}
}

func (c *ArweaveClient) sign(tx *ArweaveTx) error {
	msg, err := tx.SignatureData()
	if err != nil {
		return types.NewCurrencyError(types.ErrCodeInvalidArgument, types.CurrencyArweave, "invalid transaction fields", err)
	}

	sig, err := c.signer.Sign(msg)
	if err != nil {
		return buildError(types.CurrencyArweave, "sign transaction", err)
	}

	id := sha256.Sum256(sig)
	tx.Signature = b64.EncodeToString(sig)
	tx.ID = b64.EncodeToString(id[:])
	return nil
}

func (c *ArweaveClient) validateTransfer(amount *big.Int, to string) error {
	if err := validateAmount(types.CurrencyArweave, "amount", amount); err != nil {
		return err
	}
	addr, err := b64.DecodeString(to)
	if err != nil {
		return invalidDestination(types.CurrencyArweave, to, err)
	}
	if len(addr) != sha256.Size {
		return invalidDestination(types.CurrencyArweave, to, fmt.Errorf("address must be %d bytes", sha256.Size))
	}
	return nil
}

func (c *ArweaveClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// SignatureData is the deep hash of the fields covered by a format 2 signature.
func (tx *ArweaveTx) SignatureData() ([]byte, error) {
	owner, err := b64.DecodeString(tx.Owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	target, err := b64.DecodeString(tx.Target)
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	lastTx, err := b64.DecodeString(tx.LastTx)
	if err != nil {
		return nil, fmt.Errorf("last_tx: %w", err)
	}
	dataRoot, err := b64.DecodeString(tx.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("data_root: %w", err)
	}

	tags := make([]any, 0, len(tx.Tags))
	for _, tag := range tx.Tags {
		name, err := b64.DecodeString(tag.Name)
		if err != nil {
			return nil, fmt.Errorf("tag name: %w", err)
		}
		value, err := b64.DecodeString(tag.Value)
		if err != nil {
			return nil, fmt.Errorf("tag value: %w", err)
		}
		tags = append(tags, []any{name, value})
	}

	return deepHash([]any{
		[]byte(strconv.Itoa(tx.Format)),
		owner,
		target,
		[]byte(tx.Quantity),
		[]byte(tx.Reward),
		lastTx,
		tags,
		[]byte(tx.DataSize),
		dataRoot,
	}), nil
}

// deepHash hashes a tree of byte blobs with SHA-384, tagging each node with
// its kind and length.
func deepHash(v any) []byte {
	switch node := v.(type) {
	case []byte:
		tag := sha512.Sum384([]byte("blob" + strconv.Itoa(len(node))))
		data := sha512.Sum384(node)
		sum := sha512.Sum384(append(tag[:], data[:]...))
		return sum[:]
	case []any:
		acc := sha512.Sum384([]byte("list" + strconv.Itoa(len(node))))
		for _, child := range node {
			acc = sha512.Sum384(append(acc[:], deepHash(child)...))
		}
		return acc[:]
	default:
		panic(fmt.Sprintf("deepHash: unsupported node %T", v))
	}
}

func arweaveAddress(owner []byte) string {
	sum := sha256.Sum256(owner)
	return b64.EncodeToString(sum[:])
}

func decodeArweaveTx(raw []byte) (*ArweaveTx, error) {
	var tx ArweaveTx
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, types.NewCurrencyError(types.ErrCodeInvalidArgument, types.CurrencyArweave, "invalid raw transaction", err)
	}
	if tx.ID == "" || tx.Signature == "" {
		return nil, types.NewCurrencyError(types.ErrCodeInvalidArgument, types.CurrencyArweave, "transaction is not signed", nil)
	}

	sig, err := b64.DecodeString(tx.Signature)
	if err != nil {
		return nil, types.NewCurrencyError(types.ErrCodeInvalidArgument, types.CurrencyArweave, "invalid signature encoding", err)
	}
	if id := sha256.Sum256(sig); b64.EncodeToString(id[:]) != tx.ID {
		return nil, types.NewCurrencyError(types.ErrCodeInvalidArgument, types.CurrencyArweave, "id does not match signature", nil)
	}
	return &tx, nil
}
