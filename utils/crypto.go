package utils

import (
	"encoding/base64"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gagliardetto/solana-go"

	"github.com/vitwit/currency/signer"
	"github.com/vitwit/currency/types"
)

// EncodeOwner renders a signer's public key in the owner encoding that the
// currency's OwnerToAddress accepts.
func EncodeOwner(kind types.CurrencyKind, pub []byte) (string, error) {
	switch kind {
	case types.CurrencyEthereum, types.CurrencyErc20, types.CurrencyCosmos:
		return hexutil.Encode(pub), nil
	case types.CurrencySolana:
		if len(pub) != 32 {
			return "", fmt.Errorf("solana public key must be 32 bytes, got %d", len(pub))
		}
		return solana.PublicKeyFromBytes(pub).String(), nil
	case types.CurrencyArweave:
		return base64.RawURLEncoding.EncodeToString(pub), nil
	default:
		return "", types.NewCurrencyError(types.ErrCodeUnsupportedCurrency, kind, "unsupported currency", nil)
	}
}

// SignerOwner is EncodeOwner applied to s.PublicKey().
func SignerOwner(kind types.CurrencyKind, s signer.Signer) (string, error) {
	if s == nil {
		return "", types.NewCurrencyError(types.ErrCodeConfigError, kind, "no signer configured", nil)
	}
	return EncodeOwner(kind, s.PublicKey())
}
