package types

import "time"

// ClientConfig contains configuration for a single currency adapter.
type ClientConfig struct {
	Currency CurrencyKind `json:"currency" toml:"currency" yaml:"currency" validate:"required"`

	// RPCUrl is the JSON-RPC endpoint (Ethereum, ERC-20, Solana) or gateway URL (Arweave).
	RPCUrl string `json:"rpcUrl,omitempty" toml:"rpc_url" yaml:"rpcUrl" validate:"required_without=GRPCUrl,omitempty,url"`

	// GRPCUrl is the host:port of a Cosmos gRPC endpoint.
	GRPCUrl string `json:"grpcUrl,omitempty" toml:"grpc_url" yaml:"grpcUrl" validate:"required_if=Currency 5"`

	// ChainID is the Cosmos chain id; EVM chain ids are read from the node.
	ChainID string `json:"chainId,omitempty" toml:"chain_id" yaml:"chainId" validate:"required_if=Currency 5"`

	// TokenAddress is the ERC-20 contract address.
	TokenAddress string `json:"tokenAddress,omitempty" toml:"token_address" yaml:"tokenAddress" validate:"required_if=Currency 4"`

	Denom        string `json:"denom,omitempty" toml:"denom" yaml:"denom"`
	Bech32Prefix string `json:"bech32Prefix,omitempty" toml:"bech32_prefix" yaml:"bech32Prefix"`

	// GasPrice is a decimal price per gas unit in Denom (Cosmos only).
	GasPrice string `json:"gasPrice,omitempty" toml:"gas_price" yaml:"gasPrice" validate:"omitempty,numeric"`
	GasLimit uint64 `json:"gasLimit,omitempty" toml:"gas_limit" yaml:"gasLimit"`

	// FeePerGas pins the EVM gas price in wei instead of asking the node.
	FeePerGas string `json:"feePerGas,omitempty" toml:"fee_per_gas" yaml:"feePerGas" validate:"omitempty,number"`

	Decimals int    `json:"decimals,omitempty" toml:"decimals" yaml:"decimals" validate:"gte=0,lte=36"`
	PriceID  string `json:"priceId,omitempty" toml:"price_id" yaml:"priceId"`

	KeyHex  string `json:"-" toml:"key_hex" yaml:"keyHex"`
	KeyFile string `json:"keyFile,omitempty" toml:"key_file" yaml:"keyFile"`

	Timeout time.Duration `json:"timeout,omitempty" toml:"timeout" yaml:"timeout"`
}

// Config contains global configuration for the currency registry.
type Config struct {
	DefaultTimeout time.Duration  `json:"defaultTimeout,omitempty" toml:"default_timeout" yaml:"defaultTimeout"`
	LogLevel       string         `json:"logLevel,omitempty" toml:"log_level" yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`
	EnableMetrics  bool           `json:"enableMetrics,omitempty" toml:"enable_metrics" yaml:"enableMetrics"`
	PriceFeedURL   string         `json:"priceFeedUrl,omitempty" toml:"price_feed_url" yaml:"priceFeedUrl" validate:"omitempty,url"`
	Database       string         `json:"database,omitempty" toml:"database" yaml:"database"`
	Currencies     []ClientConfig `json:"currencies,omitempty" toml:"currencies" yaml:"currencies" validate:"dive"`
}

// Default values applied by adapters when the corresponding config field is unset.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultPriceFeedURL = "https://api.coingecko.com/api/v3"

	DefaultEthereumGasLimit uint64 = 21_000
	DefaultErc20GasLimit    uint64 = 65_000
	DefaultCosmosGasLimit   uint64 = 200_000

	DefaultCosmosDenom    = "uatom"
	DefaultCosmosPrefix   = "cosmos"
	DefaultCosmosGasPrice = "0.025"
)

// DefaultPriceID returns the CoinGecko id quoted for a currency when none is configured.
func DefaultPriceID(kind CurrencyKind) string {
	switch kind {
	case CurrencyArweave:
		return "arweave"
	case CurrencySolana:
		return "solana"
	case CurrencyEthereum:
		return "ethereum"
	case CurrencyErc20:
		return "usd-coin"
	case CurrencyCosmos:
		return "cosmos"
	default:
		return ""
	}
}
