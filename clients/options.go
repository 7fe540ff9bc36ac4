package clients

import (
	"net/http"

	"google.golang.org/grpc"

	"github.com/vitwit/currency/types"
)

type options struct {
	prices     PriceFeed
	cacheSize  int
	httpClient *http.Client
	ethBackend EthBackend
	solanaRPC  SolanaRPC
	grpcConn   *grpc.ClientConn

	cosmosBackend CosmosBackend
}

// Option configures a currency adapter.
type Option func(*options)

// WithPriceFeed overrides the price source used by Price.
func WithPriceFeed(f PriceFeed) Option {
	return func(o *options) {
		o.prices = f
	}
}

// WithTxCacheSize bounds how many created transactions TxView remembers.
func WithTxCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// WithHTTPClient sets the HTTP client used by HTTP-backed adapters.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithEthBackend injects the Ethereum RPC backend instead of dialing RPCUrl.
func WithEthBackend(b EthBackend) Option {
	return func(o *options) {
		o.ethBackend = b
	}
}

// WithSolanaRPC injects the Solana RPC client instead of creating one for RPCUrl.
func WithSolanaRPC(c SolanaRPC) Option {
	return func(o *options) {
		o.solanaRPC = c
	}
}

// WithGRPCConn reuses an existing Cosmos gRPC connection. The adapter will not close it.
func WithGRPCConn(conn *grpc.ClientConn) Option {
	return func(o *options) {
		o.grpcConn = conn
	}
}

// WithCosmosBackend replaces the Cosmos gRPC backend.
func WithCosmosBackend(b CosmosBackend) Option {
	return func(o *options) {
		o.cosmosBackend = b
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.prices == nil {
		o.prices = NewCoinGeckoFeed(types.DefaultPriceFeedURL, o.httpClient)
	}
	return o
}

func priceID(cfg types.ClientConfig) string {
	if cfg.PriceID != "" {
		return cfg.PriceID
	}
	return types.DefaultPriceID(cfg.Currency)
}
