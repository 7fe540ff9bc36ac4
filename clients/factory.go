package clients

import (
	"fmt"

	"github.com/vitwit/currency/signer"
	"github.com/vitwit/currency/types"
)

// New builds the adapter for cfg.Currency.
func New(cfg types.ClientConfig, s signer.Signer, opts ...Option) (Currency, error) {
	switch cfg.Currency {
	case types.CurrencyArweave:
		return adapt(NewArweaveClient(cfg, s, opts...))
	case types.CurrencySolana:
		return adapt(NewSolanaClient(cfg, s, opts...))
	case types.CurrencyEthereum:
		return adapt(NewEthereumClient(cfg, s, opts...))
	case types.CurrencyErc20:
		return adapt(NewERC20Client(cfg, s, opts...))
	case types.CurrencyCosmos:
		return adapt(NewCosmosClient(cfg, s, opts...))
	default:
		return nil, &types.CurrencyError{
			Code:    types.ErrCodeUnsupportedCurrency,
			Message: fmt.Sprintf("unsupported currency: %s", cfg.Currency),
		}
	}
}

func adapt[T Currency](c T, err error) (Currency, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}
