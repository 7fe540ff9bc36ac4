package utils

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vitwit/currency/types"
)

var (
	hexPattern       = regexp.MustCompile("^[0-9a-fA-F]+$")
	base58Pattern    = regexp.MustCompile("^[1-9A-HJ-NP-Za-km-z]+$")
	base64URLPattern = regexp.MustCompile("^[A-Za-z0-9_-]+$")
)

// ValidateAmount checks if an amount string is a valid non-negative decimal
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, invalid("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, invalid(fmt.Sprintf("invalid amount format: %v", err))
	}

	if dec.IsNegative() {
		return nil, invalid("amount cannot be negative")
	}

	return &dec, nil
}

// ParseBaseUnits parses a non-negative integer amount in base units (wei, lamports, winston, ...).
func ParseBaseUnits(value string) (*big.Int, error) {
	if value == "" {
		return nil, invalid("value cannot be empty")
	}

	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, invalid(fmt.Sprintf("invalid integer %q", value))
	}
	if v.Sign() < 0 {
		return nil, invalid("value cannot be negative")
	}
	return v, nil
}

// ParseMultiplier accepts "3/2", "1.25" or "2". An empty string means no multiplier.
func ParseMultiplier(value string) (*big.Rat, error) {
	if value == "" {
		return nil, nil
	}

	r, ok := new(big.Rat).SetString(value)
	if !ok {
		return nil, invalid(fmt.Sprintf("invalid multiplier %q", value))
	}
	if r.Sign() < 0 {
		return nil, invalid("multiplier cannot be negative")
	}
	return r, nil
}

// ToBaseUnits converts a display amount ("1.5") to base units given the
// currency's decimals. Fractions finer than one base unit are rejected.
func ToBaseUnits(amount string, decimals int) (*big.Int, error) {
	dec, err := ValidateAmount(amount)
	if err != nil {
		return nil, err
	}

	scaled := dec.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, invalid(fmt.Sprintf("%s has more than %d decimal places", amount, decimals))
	}
	return scaled.BigInt(), nil
}

// FormatBaseUnits renders a base-unit amount as a display decimal.
func FormatBaseUnits(amount *big.Int, decimals int) string {
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// DefaultDecimals is the base-unit exponent of each currency's native asset.
func DefaultDecimals(kind types.CurrencyKind) int {
	switch kind {
	case types.CurrencyArweave:
		return 12
	case types.CurrencySolana:
		return 9
	case types.CurrencyEthereum:
		return 18
	case types.CurrencyErc20, types.CurrencyCosmos:
		return 6
	default:
		return 0
	}
}

// ValidateTransactionHash checks the shape of a transaction id for a currency.
func ValidateTransactionHash(hash string, kind types.CurrencyKind) error {
	if hash == "" {
		return invalid("transaction hash cannot be empty")
	}

	switch kind {
	case types.CurrencyEthereum, types.CurrencyErc20:
		if !strings.HasPrefix(hash, "0x") || len(hash) != 66 || !hexPattern.MatchString(hash[2:]) {
			return invalid("EVM transaction hash must be 0x followed by 64 hex characters")
		}

	case types.CurrencySolana:
		if len(hash) < 80 || len(hash) > 90 || !base58Pattern.MatchString(hash) {
			return invalid("Solana transaction signature must be 80-90 base58 characters")
		}

	case types.CurrencyCosmos:
		if len(hash) != 64 || !hexPattern.MatchString(hash) {
			return invalid("Cosmos transaction hash must be 64 hex characters")
		}

	case types.CurrencyArweave:
		if len(hash) != 43 || !base64URLPattern.MatchString(hash) {
			return invalid("Arweave transaction id must be 43 base64url characters")
		}

	default:
		return types.NewCurrencyError(types.ErrCodeUnsupportedCurrency, kind, "unsupported currency", nil)
	}

	return nil
}

func invalid(msg string) error {
	return &types.CurrencyError{Code: types.ErrCodeInvalidArgument, Message: msg}
}
