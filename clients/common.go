package clients

import (
	"fmt"
	"math/big"

	lru "github.com/hashicorp/golang-lru"

	"github.com/vitwit/currency/types"
)

// DefaultTxCacheSize bounds the number of created transactions kept for TxView.
const DefaultTxCacheSize = 4096

// ApplyMultiplier scales fee by multiplier, rounding up so a larger multiplier
// never yields a smaller fee. A nil multiplier means 1.
func ApplyMultiplier(fee *big.Int, multiplier *big.Rat) (*big.Int, error) {
	if fee == nil || fee.Sign() < 0 {
		return nil, &types.CurrencyError{
			Code:    types.ErrCodeInvalidArgument,
			Message: fmt.Sprintf("fee must be non-negative, got %v", fee),
		}
	}
	if multiplier == nil {
		return new(big.Int).Set(fee), nil
	}
	if multiplier.Sign() < 0 {
		return nil, &types.CurrencyError{
			Code:    types.ErrCodeInvalidArgument,
			Message: fmt.Sprintf("fee multiplier must be non-negative, got %s", multiplier.RatString()),
		}
	}

	num := new(big.Int).Mul(fee, multiplier.Num())
	den := multiplier.Denom()

	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q, nil
}

func validateAmount(kind types.CurrencyKind, name string, v *big.Int) error {
	if v == nil {
		return types.NewCurrencyError(types.ErrCodeInvalidArgument, kind, name+" is required", nil)
	}
	if v.Sign() < 0 {
		return types.NewCurrencyError(types.ErrCodeInvalidArgument, kind,
			fmt.Sprintf("%s must be non-negative, got %s", name, v), nil)
	}
	return nil
}

// validateFee rejects fees that do not fit the chain's integer width.
func validateFee(kind types.CurrencyKind, fee *big.Int, maxBits int) error {
	if err := validateAmount(kind, "fee", fee); err != nil {
		return err
	}
	if fee.BitLen() > maxBits {
		return types.NewCurrencyError(types.ErrCodeInvalidArgument, kind,
			fmt.Sprintf("fee exceeds %d bits", maxBits), nil)
	}
	return nil
}

func insufficient(kind types.CurrencyKind, format string, args ...any) error {
	return types.NewCurrencyError(types.ErrCodeInsufficientAmount, kind, fmt.Sprintf(format, args...), nil)
}

func invalidDestination(kind types.CurrencyKind, to string, err error) error {
	return types.NewCurrencyError(types.ErrCodeInvalidArgument, kind,
		fmt.Sprintf("invalid destination address %q", to), err)
}

func malformedOwner(kind types.CurrencyKind, err error) error {
	return types.NewCurrencyError(types.ErrCodeMalformedKey, kind, "malformed owner key", err)
}

// txCache remembers transactions built by CreateTx so TxView can resolve them locally.
// The underlying LRU is safe for concurrent use.
type txCache struct {
	kind  types.CurrencyKind
	cache *lru.Cache
}

func newTxCache(kind types.CurrencyKind, size int) *txCache {
	if size <= 0 {
		size = DefaultTxCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		panic(err)
	}
	return &txCache{kind: kind, cache: c}
}

func (c *txCache) put(tx *types.Tx) {
	c.cache.Add(tx.ID, tx.Clone())
}

func (c *txCache) get(id string) (*types.Tx, error) {
	v, ok := c.cache.Get(id)
	if !ok {
		return nil, types.NewCurrencyError(types.ErrCodeTxNotFound, c.kind,
			fmt.Sprintf("transaction %s is not known locally", id), nil)
	}
	return v.(*types.Tx).Clone(), nil
}
