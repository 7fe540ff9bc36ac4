package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/vitwit/currency/signer"
	"github.com/vitwit/currency/types"
)

const erc20ABI = `[
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

// ERC20Client sends a fungible token through its transfer method.
// Fees are paid in ether by the same account.
type ERC20Client struct {
	*EthereumClient
	token    common.Address
	tokenABI abi.ABI
}

func NewERC20Client(cfg types.ClientConfig, s signer.Signer, opts ...Option) (*ERC20Client, error) {
	cfg.Currency = types.CurrencyErc20
	if !common.IsHexAddress(cfg.TokenAddress) {
		return nil, types.NewCurrencyError(types.ErrCodeConfigError, cfg.Currency,
			fmt.Sprintf("invalid token address %q", cfg.TokenAddress), nil)
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = types.DefaultErc20GasLimit
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, buildError(cfg.Currency, "parse erc20 abi", err)
	}

	base, err := newEthereumClient(cfg, s, buildOptions(opts))
	if err != nil {
		return nil, err
	}

	return &ERC20Client{
		EthereumClient: base,
		token:          common.HexToAddress(cfg.TokenAddress),
		tokenABI:       parsed,
	}, nil
}

// Token is the contract address of the token.
func (c *ERC20Client) Token() common.Address { return c.token }

// CreateTx signs a call to transfer(to, amount) on the token contract.
// The descriptor records the token recipient, not the contract.
func (c *ERC20Client) CreateTx(ctx context.Context, amount *big.Int, to string, fee *big.Int) (*types.Tx, error) {
	if err := c.validateTransfer(amount, to); err != nil {
		return nil, err
	}
	if err := validateAmount(c.kind, "fee", fee); err != nil {
		return nil, err
	}

	data, err := c.tokenABI.Pack("transfer", common.HexToAddress(to), amount)
	if err != nil {
		return nil, types.NewCurrencyError(types.ErrCodeInvalidArgument, c.kind, "failed to encode transfer", err)
	}

	signed, paid, err := c.signTx(ctx, c.token, new(big.Int), data, fee)
	if err != nil {
		return nil, err
	}
	return c.record(signed, to, amount, paid)
}

// Balance returns the token balance of owner.
func (c *ERC20Client) Balance(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := c.tokenABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}

	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.token, Data: data}, nil)
	if err != nil {
		return nil, providerError(c.kind, "balanceOf", err)
	}

	values, err := c.tokenABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, providerError(c.kind, "balanceOf", err)
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, providerError(c.kind, "balanceOf", fmt.Errorf("unexpected result type %T", values[0]))
	}
	return balance, nil
}
