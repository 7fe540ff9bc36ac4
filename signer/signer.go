// Package signer provides the signing capability borrowed by currency adapters.
//
// Adapters never hold key material themselves: they ask a Signer to sign the exact
// payload their chain's signature scheme consumes and read its public key.
// Every Signer in this package is safe for concurrent use.
package signer

import (
	"fmt"
	"os"
	"strings"

	"github.com/vitwit/currency/types"
)

// SignatureType identifies the signature scheme of a Signer.
type SignatureType int

const (
	SignatureArweave  SignatureType = 1
	SignatureEd25519  SignatureType = 2
	SignatureEthereum SignatureType = 3
	SignatureCosmos   SignatureType = 4
)

func (t SignatureType) String() string {
	switch t {
	case SignatureArweave:
		return "arweave"
	case SignatureEd25519:
		return "ed25519"
	case SignatureEthereum:
		return "ethereum"
	case SignatureCosmos:
		return "cosmos"
	default:
		return fmt.Sprintf("signature(%d)", int(t))
	}
}

// Signer produces signatures over arbitrary bytes and exposes its public key.
type Signer interface {
	// Sign signs message. What message must contain depends on the scheme:
	// Ethereum signers expect a 32-byte digest, the others hash internally.
	Sign(message []byte) ([]byte, error)

	// PublicKey returns the raw public key bytes in the scheme's native encoding.
	PublicKey() []byte

	Type() SignatureType
	SignatureLength() int
	PublicKeyLength() int
}

// FromConfig loads the signer matching cfg.Currency from cfg.KeyHex or cfg.KeyFile.
func FromConfig(cfg types.ClientConfig) (Signer, error) {
	switch cfg.Currency {
	case types.CurrencyEthereum, types.CurrencyErc20:
		key, err := keyMaterial(cfg)
		if err != nil {
			return nil, err
		}
		return NewEthereumSigner(key)
	case types.CurrencyCosmos:
		key, err := keyMaterial(cfg)
		if err != nil {
			return nil, err
		}
		return NewCosmosSigner(key)
	case types.CurrencySolana:
		if cfg.KeyFile != "" {
			return NewSolanaSignerFromKeygenFile(cfg.KeyFile)
		}
		if cfg.KeyHex == "" {
			return nil, missingKey(cfg.Currency)
		}
		return NewSolanaSigner(cfg.KeyHex)
	case types.CurrencyArweave:
		if cfg.KeyFile == "" {
			return nil, missingKey(cfg.Currency)
		}
		return NewArweaveSignerFromFile(cfg.KeyFile)
	default:
		return nil, &types.CurrencyError{
			Code:    types.ErrCodeUnsupportedCurrency,
			Message: fmt.Sprintf("no signer for currency %s", cfg.Currency),
		}
	}
}

func keyMaterial(cfg types.ClientConfig) (string, error) {
	if cfg.KeyHex != "" {
		return cfg.KeyHex, nil
	}
	if cfg.KeyFile == "" {
		return "", missingKey(cfg.Currency)
	}
	data, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return "", types.NewCurrencyError(types.ErrCodeConfigError, cfg.Currency, "unable to read key file", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func missingKey(kind types.CurrencyKind) error {
	return types.NewCurrencyError(types.ErrCodeConfigError, kind, "no key configured", nil)
}

func malformedKey(kind types.CurrencyKind, err error) error {
	return types.NewCurrencyError(types.ErrCodeMalformedKey, kind, "invalid private key", err)
}
